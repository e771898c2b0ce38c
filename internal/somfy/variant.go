package somfy

import "somfy-rts/internal/bitbuffer"

// Variant is the frame encoding selected from the row length.
type Variant int

const (
	VariantFirstFrame Variant = iota
	VariantRetransmission
)

const (
	retransmissionMinBits = 171
	firstFrameMinBits     = 131
)

var (
	firstFramePreamble     = []byte{0xf0, 0xf0, 0xff}
	retransmissionPreamble = []byte{0xf0, 0xf0, 0xf0, 0xf0, 0xf0, 0xf0, 0xf0, 0xff}
)

func (v Variant) String() string {
	if v == VariantRetransmission {
		return "retransmission"
	}
	return "first"
}

// Preamble returns a copy of the variant's preamble pattern.
func (v Variant) Preamble() []byte {
	if v == VariantRetransmission {
		return append([]byte(nil), retransmissionPreamble...)
	}
	return append([]byte(nil), firstFramePreamble...)
}

func (v Variant) PreambleBits() int {
	if v == VariantRetransmission {
		return 64
	}
	return 24
}

// DataStart is the bit offset of the Manchester payload, relative to the row start.
func (v Variant) DataStart() int {
	if v == VariantRetransmission {
		return 65
	}
	return 25
}

// Classify picks the first row long enough to hold a frame. Rows are scanned
// once in order; each row is tested for the retransmission length before the
// first-frame length, and the first row matching either wins.
func Classify(buf bitbuffer.Buffer) (int, Variant, error) {
	for i, row := range buf.Rows {
		switch n := row.Len(); {
		case n >= retransmissionMinBits:
			return i, VariantRetransmission, nil
		case n >= firstFrameMinBits:
			return i, VariantFirstFrame, nil
		}
	}
	return -1, 0, sanityErr("no candidate frame row")
}

// LocatePreamble requires the variant preamble at bit 0 of the row and returns
// the payload start offset.
func LocatePreamble(row bitbuffer.Row, v Variant) (int, error) {
	// Search reports a miss as Len(), which is 0 for an empty row.
	if row.Len() < v.PreambleBits() || row.Search(0, v.Preamble(), v.PreambleBits()) != 0 {
		return 0, sanityErr("preamble mismatch")
	}
	return v.DataStart(), nil
}
