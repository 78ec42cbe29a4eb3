// Package filters decodes PDF stream filter chains. Recognized filters are
// FlateDecode, LZWDecode, ASCII85Decode, ASCIIHexDecode and RunLengthDecode;
// image and encryption codecs are treated as opaque and never attempted.
package filters

import (
	"bytes"
	"context"
	"encoding/ascii85"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"

	"github.com/idrisr/pepys/ir/raw"
)

// Decoder decodes a single filter stage.
type Decoder interface {
	Name() string
	Decode(ctx context.Context, input []byte, params *raw.Dict) ([]byte, error)
}

// Limits bounds decode output so a hostile stream cannot exhaust memory.
type Limits struct {
	MaxDecodedBytes int64
}

var ErrDecodedTooLarge = errors.New("decoded stream exceeds size limit")

// ErrOpaqueFilter marks a filter that is recognized but deliberately not
// decoded (image codecs, Crypt).
var ErrOpaqueFilter = errors.New("opaque filter")

// ErrUnknownFilter marks a filter name outside the recognized set.
var ErrUnknownFilter = errors.New("unknown filter")

// opaque filters are left encoded by design: their payloads are image or
// encrypted data with no useful textual preview.
var opaqueFilters = map[string]bool{
	"DCTDecode":      true,
	"JPXDecode":      true,
	"CCITTFaxDecode": true,
	"JBIG2Decode":    true,
	"Crypt":          true,
}

// IsOpaque reports whether name is a recognized-but-undecoded filter.
func IsOpaque(name string) bool { return opaqueFilters[name] }

// Pipeline applies a declared filter chain in order.
type Pipeline struct {
	decoders map[string]Decoder
	limits   Limits
}

// NewPipeline builds a pipeline with the standard decoder set.
func NewPipeline(limits Limits) *Pipeline {
	p := &Pipeline{decoders: make(map[string]Decoder), limits: limits}
	for _, d := range []Decoder{
		flateDecoder{},
		lzwDecoder{},
		ascii85Decoder{},
		asciiHexDecoder{},
		runLengthDecoder{},
	} {
		p.decoders[d.Name()] = d
	}
	return p
}

// Decode runs input through the named filters in declared order. On an
// opaque filter it stops and returns the bytes decoded so far together with
// ErrOpaqueFilter; the caller decides how to present the partial result.
func (p *Pipeline) Decode(ctx context.Context, input []byte, names []string, params []*raw.Dict) ([]byte, error) {
	data := input
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if IsOpaque(name) {
			return data, fmt.Errorf("filter %s: %w", name, ErrOpaqueFilter)
		}
		dec, ok := p.decoders[name]
		if !ok {
			return data, fmt.Errorf("filter %s: %w", name, ErrUnknownFilter)
		}
		var param *raw.Dict
		if i < len(params) {
			param = params[i]
		}
		out, err := dec.Decode(ctx, data, param)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", name, err)
		}
		if p.limits.MaxDecodedBytes > 0 && int64(len(out)) > p.limits.MaxDecodedBytes {
			return nil, ErrDecodedTooLarge
		}
		data = out
	}
	return data, nil
}

// ExtractFilters reads the Filter and DecodeParms entries of a stream
// dictionary. A single name or dict is normalized to a one-element slice.
func ExtractFilters(dict *raw.Dict) ([]string, []*raw.Dict) {
	if dict == nil {
		return nil, nil
	}
	var names []string
	fObj, ok := dict.Get("Filter")
	if !ok {
		return nil, nil
	}
	switch f := fObj.(type) {
	case raw.Name:
		names = []string{f.Val}
	case *raw.Array:
		for _, item := range f.Items {
			if n, ok := item.(raw.Name); ok {
				names = append(names, n.Val)
			}
		}
	}
	var params []*raw.Dict
	if pObj, ok := dict.Get("DecodeParms"); ok {
		switch p := pObj.(type) {
		case *raw.Dict:
			params = []*raw.Dict{p}
		case *raw.Array:
			for _, item := range p.Items {
				d, _ := item.(*raw.Dict)
				params = append(params, d) // keep positions aligned, nil ok
			}
		}
	}
	return names, params
}

type flateDecoder struct{}

func (flateDecoder) Name() string { return "FlateDecode" }

func (flateDecoder) Decode(ctx context.Context, in []byte, params *raw.Dict) ([]byte, error) {
	var out bytes.Buffer
	zr, err := zlib.NewReader(bytes.NewReader(in))
	if err == nil {
		_, err = io.Copy(&out, zr)
		zr.Close()
	}
	if err != nil {
		// Some producers emit raw deflate without the zlib wrapper.
		out.Reset()
		fr := flate.NewReader(bytes.NewReader(in))
		if _, ferr := io.Copy(&out, fr); ferr != nil {
			fr.Close()
			return nil, err
		}
		fr.Close()
	}
	return applyPredictor(out.Bytes(), params)
}

type lzwDecoder struct{}

func (lzwDecoder) Name() string { return "LZWDecode" }

func (lzwDecoder) Decode(ctx context.Context, in []byte, params *raw.Dict) ([]byte, error) {
	earlyChange := int64(1)
	if params != nil {
		if v, ok := params.Int("EarlyChange"); ok {
			earlyChange = v
		}
	}
	out, err := lzwDecode(in, earlyChange == 1)
	if err != nil {
		return nil, err
	}
	return applyPredictor(out, params)
}

type ascii85Decoder struct{}

func (ascii85Decoder) Name() string { return "ASCII85Decode" }

func (ascii85Decoder) Decode(ctx context.Context, in []byte, params *raw.Dict) ([]byte, error) {
	trimmed := bytes.TrimSpace(in)
	trimmed = bytes.TrimPrefix(trimmed, []byte("<~"))
	if i := bytes.Index(trimmed, []byte("~>")); i >= 0 {
		trimmed = trimmed[:i]
	}
	out := make([]byte, ascii85.MaxEncodedLen(len(trimmed)))
	n, _, err := ascii85.Decode(out, trimmed, true)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

type asciiHexDecoder struct{}

func (asciiHexDecoder) Name() string { return "ASCIIHexDecode" }

func (asciiHexDecoder) Decode(ctx context.Context, in []byte, params *raw.Dict) ([]byte, error) {
	compact := make([]byte, 0, len(in))
	for _, c := range in {
		if c == '>' {
			break
		}
		if isHexDigit(c) {
			compact = append(compact, c)
		} else if !isSpace(c) {
			return nil, fmt.Errorf("invalid hex digit %q", c)
		}
	}
	if len(compact)%2 == 1 {
		compact = append(compact, '0')
	}
	out := make([]byte, hex.DecodedLen(len(compact)))
	n, err := hex.Decode(out, compact)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

type runLengthDecoder struct{}

func (runLengthDecoder) Name() string { return "RunLengthDecode" }

func (runLengthDecoder) Decode(ctx context.Context, in []byte, params *raw.Dict) ([]byte, error) {
	var out bytes.Buffer
	i := 0
	for i < len(in) {
		l := int(in[i])
		i++
		if l == 128 { // EOD
			break
		}
		if l < 128 {
			end := i + l + 1
			if end > len(in) {
				return nil, errors.New("literal run past end of data")
			}
			out.Write(in[i:end])
			i = end
			continue
		}
		if i >= len(in) {
			return nil, errors.New("replicated run past end of data")
		}
		for k := 0; k < 257-l; k++ {
			out.WriteByte(in[i])
		}
		i++
	}
	return out.Bytes(), nil
}

func isSpace(c byte) bool {
	switch c {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}
