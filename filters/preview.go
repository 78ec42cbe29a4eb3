package filters

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/idrisr/pepys/ir/raw"
)

// DefaultPreviewCap bounds how many decoded bytes a preview carries.
const DefaultPreviewCap = 8192

// Preview is the decode result for one stream, shaped for display. A decode
// failure lands in Err and never fails the enclosing request.
type Preview struct {
	Filters   []string `json:"filters"`
	Length    int64    `json:"length"`
	Decoded   bool     `json:"decoded"`
	Opaque    bool     `json:"opaque"`
	Data      []byte   `json:"-"`
	Encoding  string   `json:"preview_encoding"` // "utf-8" or "hex"
	Binary    bool     `json:"is_binary"`
	Truncated bool     `json:"truncated"`
	Err       string   `json:"error,omitempty"`
}

// PreviewStream applies the stream's declared filter chain and truncates the
// result to cap bytes. Truncated is set only when bytes were dropped, so an
// empty stream and a capped stream stay distinguishable.
func PreviewStream(ctx context.Context, p *Pipeline, stream *raw.Stream, capBytes int) Preview {
	if capBytes <= 0 {
		capBytes = DefaultPreviewCap
	}
	names, params := ExtractFilters(stream.Dict)

	pv := Preview{Filters: names, Length: int64(len(stream.Raw))}
	if declared, ok := stream.Dict.Int("Length"); ok {
		pv.Length = declared
	}

	data := stream.Raw
	decoded, err := p.Decode(ctx, data, names, params)
	switch {
	case err == nil:
		pv.Decoded = true
		data = decoded
	case errors.Is(err, ErrOpaqueFilter) || errors.Is(err, ErrUnknownFilter):
		// Recognized-but-undecodable chains fall back to whatever the
		// earlier stages produced, flagged rather than failed.
		pv.Opaque = true
		if decoded != nil {
			data = decoded
		}
	default:
		pv.Err = err.Error()
	}

	if len(data) > capBytes {
		data = data[:capBytes]
		pv.Truncated = true
	}
	pv.Data = append([]byte(nil), data...)
	pv.Binary = detectBinary(pv.Data)
	if pv.Binary {
		pv.Encoding = "hex"
	} else {
		pv.Encoding = "utf-8"
	}
	return pv
}

// Text renders Data for transport: hex digits when the preview is
// binary, UTF-8 with invalid sequences replaced otherwise.
func (p Preview) Text() string {
	if p.Binary {
		return hex.EncodeToString(p.Data)
	}
	return strings.ToValidUTF8(string(p.Data), "�")
}

// detectBinary mirrors the display heuristic: a NUL byte, or more than 30%
// non-printable bytes in the first 2 KiB, flips the preview to hex.
func detectBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	sample := data
	if len(sample) > 2048 {
		sample = sample[:2048]
	}
	nonPrintable := 0
	for _, b := range sample {
		if b == 0x00 {
			return true
		}
		if !isPrintable(b) {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(len(sample)) > 0.3
}

func isPrintable(b byte) bool {
	if b >= 0x20 && b < 0x7f {
		return true
	}
	switch b {
	case '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
