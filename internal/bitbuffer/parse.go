package bitbuffer

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidCode = errors.New("bitbuffer: invalid code")

// ParseRow parses one row in rtl_433 code notation: "{<bits>}<hex>".
// A bare hex string is accepted as a row of 4 bits per digit.
func ParseRow(code string) (Row, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Row{}, fmt.Errorf("%w: empty", ErrInvalidCode)
	}

	bits := -1
	if strings.HasPrefix(code, "{") {
		end := strings.IndexByte(code, '}')
		if end < 0 {
			return Row{}, fmt.Errorf("%w: missing '}' in %q", ErrInvalidCode, code)
		}
		n, err := strconv.Atoi(strings.TrimSpace(code[1:end]))
		if err != nil || n < 0 {
			return Row{}, fmt.Errorf("%w: bad bit length in %q", ErrInvalidCode, code)
		}
		bits = n
		code = code[end+1:]
	}

	code = strings.TrimPrefix(strings.TrimPrefix(code, "0x"), "0X")
	if bits < 0 {
		bits = 4 * len(code)
	}
	if len(code)%2 != 0 {
		code += "0"
	}
	data, err := hex.DecodeString(code)
	if err != nil {
		return Row{}, fmt.Errorf("%w: %v", ErrInvalidCode, err)
	}
	if bits > len(data)*8 {
		return Row{}, fmt.Errorf("%w: %d bits declared but only %d present", ErrInvalidCode, bits, len(data)*8)
	}
	return NewRow(data, bits), nil
}

// ParseCodes parses a capture written as several codes separated by
// whitespace, ',' or ';'.
func ParseCodes(s string) (Buffer, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ',' || r == ';' || r == '\n' || r == '\r'
	})
	if len(fields) == 0 {
		return Buffer{}, fmt.Errorf("%w: no rows", ErrInvalidCode)
	}
	buf := Buffer{Rows: make([]Row, 0, len(fields))}
	for i, f := range fields {
		row, err := ParseRow(f)
		if err != nil {
			return Buffer{}, fmt.Errorf("row %d: %w", i, err)
		}
		buf.Rows = append(buf.Rows, row)
	}
	return buf, nil
}

// FlexMessage is the subset of an rtl_433 flex decoder JSON event used here.
type FlexMessage struct {
	Time    string    `json:"time,omitempty"`
	Model   string    `json:"model,omitempty"`
	Count   int       `json:"count,omitempty"`
	NumRows int       `json:"num_rows,omitempty"`
	Rows    []FlexRow `json:"rows,omitempty"`
	Codes   []string  `json:"codes,omitempty"`
}

type FlexRow struct {
	Len  int    `json:"len"`
	Data string `json:"data"`
}

// ParseFlexJSON parses one rtl_433 flex decoder JSON object. Rows are taken
// from "rows" when present, otherwise from "codes".
func ParseFlexJSON(raw []byte) (Buffer, error) {
	var msg FlexMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Buffer{}, fmt.Errorf("decode flex json: %w", err)
	}
	return msg.Buffer()
}

func (m FlexMessage) Buffer() (Buffer, error) {
	if len(m.Rows) > 0 {
		buf := Buffer{Rows: make([]Row, 0, len(m.Rows))}
		for i, fr := range m.Rows {
			row, err := ParseRow("{" + strconv.Itoa(fr.Len) + "}" + fr.Data)
			if err != nil {
				return Buffer{}, fmt.Errorf("row %d: %w", i, err)
			}
			buf.Rows = append(buf.Rows, row)
		}
		return buf, nil
	}
	if len(m.Codes) > 0 {
		return ParseCodes(strings.Join(m.Codes, " "))
	}
	return Buffer{}, fmt.Errorf("%w: flex message has no rows", ErrInvalidCode)
}
