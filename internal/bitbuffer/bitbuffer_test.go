package bitbuffer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRowMasksTailBits(t *testing.T) {
	r := NewRow([]byte{0xff, 0xff}, 12)
	require.Equal(t, 12, r.Len())
	require.Equal(t, []byte{0xff, 0xf0}, r.Bytes())
	require.Equal(t, "{12}fff0", r.String())
}

func TestBitOutOfRange(t *testing.T) {
	r := NewRow([]byte{0x80}, 1)
	require.Equal(t, uint8(1), r.Bit(0))
	require.Equal(t, uint8(0), r.Bit(1))
	require.Equal(t, uint8(0), r.Bit(-1))
}

func TestAppendBits(t *testing.T) {
	var r Row
	r.AppendBits([]byte{0xa5}, 8)
	r.AppendBit(1)
	require.Equal(t, 9, r.Len())
	require.Equal(t, []byte{0xa5, 0x80}, r.Bytes())
}

func TestSearch(t *testing.T) {
	r := NewRow([]byte{0x0f, 0x0f, 0x0f}, 24)
	require.Equal(t, 4, r.Search(0, []byte{0xf0, 0xf0, 0xff}, 20))
	require.Equal(t, r.Len(), r.Search(5, []byte{0xf0, 0xf0, 0xff}, 20))
	require.Equal(t, 0, r.Search(0, []byte{0x0f}, 8))
	require.Equal(t, 8, r.Search(1, []byte{0x0f}, 8))
	require.Equal(t, r.Len(), r.Search(0, []byte{0xaa}, 8))
	require.Equal(t, r.Len(), r.Search(0, []byte{0xaa}, 0))
}

func TestExtractBytesUnaligned(t *testing.T) {
	r := NewRow([]byte{0x0a, 0xbc, 0xd0}, 20)
	out := make([]byte, 2)
	r.ExtractBytes(4, out, 16)
	require.Equal(t, []byte{0xab, 0xcd}, out)
}

func TestManchesterRoundTrip(t *testing.T) {
	data := []byte{0xa1, 0x2f, 0x00, 0x05, 0x01, 0x02, 0x03}
	enc := ManchesterEncode(data, 56)
	require.Equal(t, 112, enc.Len())

	dec, end := enc.ManchesterDecode(0, 56)
	require.Equal(t, 56, dec.Len())
	require.Equal(t, 112, end)
	require.Equal(t, data, dec.Bytes())
}

func TestManchesterDecodeStopsOnDefect(t *testing.T) {
	// 01 10 11 -> 1, 0, defect.
	r := NewRow([]byte{0x6c}, 6)
	dec, end := r.ManchesterDecode(0, 8)
	require.Equal(t, 2, dec.Len())
	require.Equal(t, 4, end)
	require.Equal(t, uint8(1), dec.Bit(0))
	require.Equal(t, uint8(0), dec.Bit(1))
}

func TestManchesterDecodeStopsAtRowEnd(t *testing.T) {
	enc := ManchesterEncode([]byte{0xff}, 8)
	dec, end := enc.ManchesterDecode(2, 56)
	require.Equal(t, 7, dec.Len())
	require.Equal(t, 16, end)
}

func TestParseRow(t *testing.T) {
	r, err := ParseRow("{24}f0f0ff")
	require.NoError(t, err)
	require.Equal(t, 24, r.Len())
	require.Equal(t, "f0f0ff", r.Hex())

	r, err = ParseRow("{5}f8")
	require.NoError(t, err)
	require.Equal(t, 5, r.Len())

	r, err = ParseRow("abc")
	require.NoError(t, err)
	require.Equal(t, 12, r.Len())
	require.Equal(t, "abc0", r.Hex())
	require.Equal(t, "{12}abc0", r.String())

	r, err = ParseRow("0xf0f0ff")
	require.NoError(t, err)
	require.Equal(t, 24, r.Len())
}

func TestParseRowErrors(t *testing.T) {
	for _, in := range []string{"", "{12", "{x}ff", "{17}ffff", "{8}zz"} {
		_, err := ParseRow(in)
		require.Error(t, err, in)
		require.True(t, errors.Is(err, ErrInvalidCode), in)
	}
}

func TestParseCodes(t *testing.T) {
	buf, err := ParseCodes("{1}80, {24}f0f0ff;{4}a")
	require.NoError(t, err)
	require.Len(t, buf.Rows, 3)
	require.Equal(t, "{1}80 {24}f0f0ff {4}a0", buf.String())

	_, err = ParseCodes("   ")
	require.Error(t, err)
}

func TestParseFlexJSON(t *testing.T) {
	raw := []byte(`{"time":"2026-01-02 10:00:00","model":"somfy","count":1,"num_rows":2,` +
		`"rows":[{"len":1,"data":"8"},{"len":24,"data":"f0f0ff"}],"codes":["{1}8","{24}f0f0ff"]}`)
	buf, err := ParseFlexJSON(raw)
	require.NoError(t, err)
	require.Len(t, buf.Rows, 2)
	require.Equal(t, 24, buf.Rows[1].Len())

	buf, err = ParseFlexJSON([]byte(`{"codes":["{24}f0f0ff"]}`))
	require.NoError(t, err)
	require.Len(t, buf.Rows, 1)

	_, err = ParseFlexJSON([]byte(`{"model":"x"}`))
	require.Error(t, err)
	_, err = ParseFlexJSON([]byte(`not json`))
	require.Error(t, err)
}

func TestBufferAppendDoesNotAlias(t *testing.T) {
	a := Buffer{Rows: make([]Row, 1, 4)}
	b := a.Append(NewRow([]byte{0xff}, 8))
	c := a.Append(NewRow([]byte{0x00}, 4))
	require.Equal(t, 8, b.Rows[1].Len())
	require.Equal(t, 4, c.Rows[1].Len())
}
