package filters

import (
	"bytes"
	"errors"
)

const (
	lzwClear    = 256
	lzwEOD      = 257
	lzwMaxWidth = 12
)

// lzwDecode implements the PDF flavor of LZW (PDF 7.4.4): MSB-first codes,
// 9 to 12 bit widths, and the EarlyChange width bump enabled by default.
func lzwDecode(data []byte, earlyChange bool) ([]byte, error) {
	var out bytes.Buffer

	table := make([][]byte, 0, 1<<lzwMaxWidth)
	reset := func() {
		table = table[:0]
		for i := 0; i < 256; i++ {
			table = append(table, []byte{byte(i)})
		}
		// placeholders for the clear and EOD codes
		table = append(table, nil, nil)
	}
	reset()

	early := 0
	if earlyChange {
		early = 1
	}

	width := 9
	var prev []byte
	var acc uint32
	bits := 0
	pos := 0

	readCode := func() (int, bool) {
		for bits < width {
			if pos >= len(data) {
				return 0, false
			}
			acc = acc<<8 | uint32(data[pos])
			pos++
			bits += 8
		}
		code := int(acc>>uint(bits-width)) & (1<<uint(width) - 1)
		bits -= width
		return code, true
	}

	for {
		code, ok := readCode()
		if !ok {
			break
		}
		if code == lzwClear {
			reset()
			width = 9
			prev = nil
			continue
		}
		if code == lzwEOD {
			break
		}

		var entry []byte
		switch {
		case code < len(table) && table[code] != nil:
			entry = table[code]
		case code == len(table) && prev != nil:
			// KwKwK case: the code being defined right now.
			entry = append(append([]byte(nil), prev...), prev[0])
		default:
			return nil, errors.New("lzw: code out of range")
		}
		out.Write(entry)

		if prev != nil && len(table) < 1<<lzwMaxWidth {
			table = append(table, append(append([]byte(nil), prev...), entry[0]))
		}
		prev = entry

		if len(table)+early >= 1<<uint(width) && width < lzwMaxWidth {
			width++
		}
	}
	return out.Bytes(), nil
}
