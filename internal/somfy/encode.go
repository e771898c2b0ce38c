package somfy

import "somfy-rts/internal/bitbuffer"

// Encode builds a complete row for a descrambled message: the variant
// preamble, one separator bit, then the scrambled payload Manchester coded.
// The checksum nibble is taken from msg as is; use SetChecksum first for a
// valid frame.
func Encode(msg RawMessage, v Variant) bitbuffer.Row {
	var row bitbuffer.Row
	row.AppendBits(v.Preamble(), v.PreambleBits())
	// The bit between the preamble and DataStart is the low half of the
	// software sync pulse.
	for row.Len() < v.DataStart() {
		row.AppendBit(0)
	}
	scrambled := Scramble(msg)
	payload := bitbuffer.ManchesterEncode(scrambled[:], PayloadBits)
	for i := 0; i < payload.Len(); i++ {
		row.AppendBit(payload.Bit(i))
	}
	return row
}

// NewMessage assembles a descrambled message with a valid checksum.
func NewMessage(seed uint8, ctrl Control, counter uint16, id uint32) RawMessage {
	m := RawMessage{
		seed,
		uint8(ctrl&0x0f) << 4,
		byte(counter >> 8),
		byte(counter),
		byte(id),
		byte(id >> 8),
		byte(id >> 16),
	}
	return SetChecksum(m)
}
