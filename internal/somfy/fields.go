package somfy

import "fmt"

const (
	Model = "Somfy-RTS"
	// IntegrityChecksum marks a record whose nibble checksum was verified.
	IntegrityChecksum = "CHECKSUM"
)

// Frame is one decoded Somfy RTS message. Fields without a JSON name are
// diagnostics and not part of the output record.
type Frame struct {
	Model          string  `json:"model"`
	ID             uint32  `json:"id"`
	Control        string  `json:"control"`
	Counter        uint16  `json:"counter"`
	Address        string  `json:"address"`
	Retransmission bool    `json:"retransmission"`
	Integrity      string  `json:"integrity"`
	ControlCode    Control `json:"-"`
	Seed           uint8   `json:"-"`
	ChecksumNibble uint8   `json:"-"`
}

// Field is one entry of the flat output record.
type Field struct {
	Key   string
	Label string
	Value any
}

// ExtractFields maps a validated, descrambled message onto a Frame.
//
// The address is rendered big-endian while the ID is composed little-endian:
// successive channels of one remote increment as little-endian integers.
func ExtractFields(m RawMessage, v Variant) Frame {
	ctrl := Control(m[1] >> 4)
	return Frame{
		Model:          Model,
		ID:             uint32(m[6])<<16 | uint32(m[5])<<8 | uint32(m[4]),
		Control:        ctrl.String(),
		Counter:        uint16(m[2])<<8 | uint16(m[3]),
		Address:        fmt.Sprintf("%02X%02X%02X", m[4], m[5], m[6]),
		Retransmission: v == VariantRetransmission,
		Integrity:      IntegrityChecksum,
		ControlCode:    ctrl,
		Seed:           m[0],
		ChecksumNibble: m[1] & 0x0f,
	}
}

// Fields returns the output record in its stable key order.
func (f Frame) Fields() []Field {
	return []Field{
		{Key: "model", Label: "", Value: f.Model},
		{Key: "id", Label: "Id", Value: f.ID},
		{Key: "control", Label: "Control", Value: f.Control},
		{Key: "counter", Label: "Counter", Value: f.Counter},
		{Key: "address", Label: "Address", Value: f.Address},
		{Key: "retransmission", Label: "Retransmission", Value: f.Retransmission},
		{Key: "integrity", Label: "Integrity", Value: f.Integrity},
	}
}

// Message rebuilds the descrambled payload the frame was decoded from.
func (f Frame) Message() RawMessage {
	return RawMessage{
		f.Seed,
		uint8(f.ControlCode)<<4 | f.ChecksumNibble&0x0f,
		byte(f.Counter >> 8),
		byte(f.Counter),
		byte(f.ID),
		byte(f.ID >> 8),
		byte(f.ID >> 16),
	}
}

// Variant reports which frame encoding the record came from.
func (f Frame) Variant() Variant {
	if f.Retransmission {
		return VariantRetransmission
	}
	return VariantFirstFrame
}
