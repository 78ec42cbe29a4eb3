package xref

import (
	"context"
	"errors"
	"fmt"

	"github.com/idrisr/pepys/filters"
	"github.com/idrisr/pepys/ir/raw"
	"github.com/idrisr/pepys/scanner"
)

// parseStreamSection reads a cross-reference stream object (PDF 7.5.8):
// "N G obj << /Type /XRef /W [...] ... >> stream ... endstream". The stream
// dictionary doubles as the section trailer.
func parseStreamSection(ctx context.Context, data []byte, offset int64, table *Table, pipeline *filters.Pipeline) (*raw.Dict, error) {
	sc := scanner.New(data)
	if err := sc.Seek(offset); err != nil {
		return nil, err
	}

	// object header: num gen obj
	for i := 0; i < 3; i++ {
		tok, err := sc.Next()
		if err != nil {
			return nil, fmt.Errorf("xref stream header: %w", err)
		}
		if i == 2 && !(tok.Type == scanner.TokenKeyword && tok.Str == "obj") {
			return nil, errors.New("xref stream: obj keyword missing")
		}
	}

	obj, err := parseValue(sc)
	if err != nil {
		return nil, fmt.Errorf("xref stream dict: %w", err)
	}
	dict, ok := obj.(*raw.Dict)
	if !ok {
		return nil, errors.New("xref stream: object is not a dictionary")
	}
	if typ, _ := dict.Name("Type"); typ != "XRef" {
		return nil, errors.New("xref stream: /Type is not XRef")
	}

	if length, ok := dict.Int("Length"); ok {
		sc.SetNextStreamLength(length)
	}
	tok, err := sc.Next()
	if err != nil {
		return nil, fmt.Errorf("xref stream payload: %w", err)
	}
	if tok.Type != scanner.TokenStream {
		return nil, errors.New("xref stream: stream payload missing")
	}

	names, params := filters.ExtractFilters(dict)
	payload, err := pipeline.Decode(ctx, tok.Bytes, names, params)
	if err != nil {
		return nil, fmt.Errorf("decode xref stream: %w", err)
	}

	widths, err := fieldWidths(dict)
	if err != nil {
		return nil, err
	}
	rowLen := widths[0] + widths[1] + widths[2]
	if rowLen == 0 {
		return nil, errors.New("xref stream: zero-width rows")
	}

	for _, span := range indexSpans(dict) {
		for i := 0; i < span.count; i++ {
			if len(payload) < rowLen {
				return nil, errors.New("xref stream: payload shorter than declared index")
			}
			row := payload[:rowLen]
			payload = payload[rowLen:]

			typ := int64(1) // PDF 7.5.8: default type when W[0] == 0
			if widths[0] > 0 {
				typ = beInt(row[:widths[0]])
			}
			f2 := beInt(row[widths[0] : widths[0]+widths[1]])
			f3 := beInt(row[widths[0]+widths[1]:])

			num := span.start + i
			switch typ {
			case 0: // free
			case 1:
				table.Set(num, Entry{Offset: f2, Gen: int(f3), Source: SourceStream})
			case 2:
				table.Set(num, Entry{
					InObjStream: true,
					StreamNum:   int(f2),
					StreamIdx:   int(f3),
					Source:      SourceStream,
				})
			}
		}
	}
	return dict, nil
}

type span struct{ start, count int }

// indexSpans returns the /Index pairs, defaulting to [0 Size].
func indexSpans(dict *raw.Dict) []span {
	if arr, ok := dict.Get("Index"); ok {
		if a, ok := arr.(*raw.Array); ok && a.Len()%2 == 0 {
			spans := make([]span, 0, a.Len()/2)
			for i := 0; i+1 < a.Len(); i += 2 {
				s, okS := a.Items[i].(raw.Number)
				c, okC := a.Items[i+1].(raw.Number)
				if okS && okC {
					spans = append(spans, span{start: int(s.Int()), count: int(c.Int())})
				}
			}
			return spans
		}
	}
	size, _ := dict.Int("Size")
	return []span{{start: 0, count: int(size)}}
}

func fieldWidths(dict *raw.Dict) ([3]int, error) {
	var widths [3]int
	arr, ok := dict.Get("W")
	if !ok {
		return widths, errors.New("xref stream: /W missing")
	}
	a, ok := arr.(*raw.Array)
	if !ok || a.Len() != 3 {
		return widths, errors.New("xref stream: /W must have three entries")
	}
	for i := 0; i < 3; i++ {
		n, ok := a.Items[i].(raw.Number)
		if !ok {
			return widths, errors.New("xref stream: /W entry is not a number")
		}
		widths[i] = int(n.Int())
	}
	return widths, nil
}

func beInt(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}
