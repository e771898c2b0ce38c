package somfy

import "somfy-rts/internal/bitbuffer"

// PayloadBits is the number of Manchester-decoded bits in one frame.
const PayloadBits = 56

// RawMessage is the 7-byte payload in transmit order:
// seed, control|checksum, counter (BE), address (3 bytes).
type RawMessage [7]byte

// DecodePayload Manchester-decodes exactly PayloadBits bits starting at dataStart.
func DecodePayload(row bitbuffer.Row, dataStart int) (RawMessage, error) {
	var msg RawMessage
	decoded, _ := row.ManchesterDecode(dataStart, PayloadBits)
	if decoded.Len() < PayloadBits {
		return msg, integrityErr("incomplete Manchester decode")
	}
	decoded.ExtractBytes(0, msg[:], PayloadBits)
	return msg, nil
}

// Descramble undoes the XOR chaining. It walks from the last byte down so each
// step uses the still-scrambled previous byte.
func Descramble(m RawMessage) RawMessage {
	for i := len(m) - 1; i > 0; i-- {
		m[i] ^= m[i-1]
	}
	return m
}

// Scramble is the inverse of Descramble: each byte is XORed with the already
// scrambled byte before it.
func Scramble(m RawMessage) RawMessage {
	for i := 1; i < len(m); i++ {
		m[i] ^= m[i-1]
	}
	return m
}

// Checksum XORs all bytes and folds the result to a nibble. A valid
// descrambled message yields 0.
func Checksum(m RawMessage) uint8 {
	var x uint8
	for _, b := range m {
		x ^= b
	}
	return (x & 0x0f) ^ (x >> 4)
}

// SetChecksum rewrites the low nibble of byte 1 so that Checksum returns 0.
func SetChecksum(m RawMessage) RawMessage {
	m[1] &= 0xf0
	m[1] |= Checksum(m)
	return m
}

// decodeFrame runs the frame decoder stage: Manchester, descramble, checksum.
func decodeFrame(row bitbuffer.Row, dataStart int) (RawMessage, error) {
	msg, err := DecodePayload(row, dataStart)
	if err != nil {
		return msg, err
	}
	msg = Descramble(msg)
	if Checksum(msg) != 0 {
		return msg, integrityErr("checksum mismatch")
	}
	return msg, nil
}
