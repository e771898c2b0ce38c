package bitbuffer

import (
	"encoding/hex"
	"strconv"
	"strings"
)

// Row is one demodulated bit row. Bits are packed MSB-first.
type Row struct {
	data []byte
	bits int
}

// Buffer holds every row produced by the demodulator for one capture.
type Buffer struct {
	Rows []Row
}

// NewRow copies the first bits of data into a new row.
func NewRow(data []byte, bits int) Row {
	if bits < 0 {
		bits = 0
	}
	if max := len(data) * 8; bits > max {
		bits = max
	}
	n := (bits + 7) / 8
	out := make([]byte, n)
	copy(out, data[:n])
	// Keep the unused tail bits zero so Bytes/Hex are canonical.
	if rem := bits % 8; rem != 0 {
		out[n-1] &= byte(0xff << (8 - rem))
	}
	return Row{data: out, bits: bits}
}

func (r Row) Len() int {
	return r.bits
}

// Bit returns the bit at position i, or 0 when i is out of range.
func (r Row) Bit(i int) uint8 {
	if i < 0 || i >= r.bits {
		return 0
	}
	return (r.data[i>>3] >> (7 - uint(i&7))) & 1
}

func (r *Row) AppendBit(b uint8) {
	if r.bits%8 == 0 {
		r.data = append(r.data, 0)
	}
	if b&1 != 0 {
		r.data[r.bits>>3] |= 0x80 >> uint(r.bits&7)
	}
	r.bits++
}

// AppendBits appends the first bits of data, MSB-first.
func (r *Row) AppendBits(data []byte, bits int) {
	for i := 0; i < bits && i < len(data)*8; i++ {
		r.AppendBit((data[i>>3] >> (7 - uint(i&7))) & 1)
	}
}

// Bytes returns a copy of the packed row.
func (r Row) Bytes() []byte {
	return append([]byte(nil), r.data...)
}

func (r Row) Hex() string {
	return hex.EncodeToString(r.data)
}

// String renders the row in rtl_433 code notation, e.g. "{24}f0f0ff".
func (r Row) String() string {
	return "{" + strconv.Itoa(r.bits) + "}" + r.Hex()
}

// ExtractBytes copies bits starting at an arbitrary bit offset into out, MSB-first.
// Bits past the end of the row read as 0.
func (r Row) ExtractBytes(start int, out []byte, bits int) {
	for i := range out {
		out[i] = 0
	}
	for i := 0; i < bits && i < len(out)*8; i++ {
		if r.Bit(start+i) != 0 {
			out[i>>3] |= 0x80 >> uint(i&7)
		}
	}
}

// Search returns the first offset >= start where the first patternBits bits of
// pattern match the row exactly. It returns Len() when the pattern is absent.
func (r Row) Search(start int, pattern []byte, patternBits int) int {
	if start < 0 {
		start = 0
	}
	if patternBits <= 0 || patternBits > len(pattern)*8 {
		return r.bits
	}
	for pos := start; pos+patternBits <= r.bits; pos++ {
		match := true
		for i := 0; i < patternBits; i++ {
			want := (pattern[i>>3] >> (7 - uint(i&7))) & 1
			if r.Bit(pos+i) != want {
				match = false
				break
			}
		}
		if match {
			return pos
		}
	}
	return r.bits
}

// ManchesterDecode decodes raw bit pairs starting at start. Low-high (01) is a
// 1 and high-low (10) is a 0, per IEEE 802.3. Decoding stops at the first
// pair without a transition, at the end of the row, or after maxBits logical
// bits. It returns the decoded bits and the raw position reached.
func (r Row) ManchesterDecode(start int, maxBits int) (Row, int) {
	var out Row
	pos := start
	if pos < 0 {
		pos = 0
	}
	for out.bits < maxBits && pos+1 < r.bits {
		a, b := r.Bit(pos), r.Bit(pos+1)
		if a == b {
			break
		}
		out.AppendBit(b)
		pos += 2
	}
	return out, pos
}

// ManchesterEncode is the inverse of ManchesterDecode.
func ManchesterEncode(data []byte, bits int) Row {
	var out Row
	for i := 0; i < bits && i < len(data)*8; i++ {
		if (data[i>>3]>>(7-uint(i&7)))&1 != 0 {
			out.AppendBit(0)
			out.AppendBit(1)
		} else {
			out.AppendBit(1)
			out.AppendBit(0)
		}
	}
	return out
}

// Append returns a copy of the buffer with row added.
func (b Buffer) Append(row Row) Buffer {
	rows := make([]Row, 0, len(b.Rows)+1)
	rows = append(rows, b.Rows...)
	rows = append(rows, row)
	return Buffer{Rows: rows}
}

// String renders all rows in code notation separated by spaces.
func (b Buffer) String() string {
	parts := make([]string, 0, len(b.Rows))
	for _, r := range b.Rows {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, " ")
}
