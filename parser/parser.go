// Package parser turns PDF bytes into a raw.Document. Resolution is
// structured first: follow startxref, load every object the xref knows
// about. When the cross-reference machinery is unusable the parser falls
// back to a brute scan for "N G obj" markers and rebuilds the object set
// from whatever it finds. Individual broken objects never fail the
// document; they are recorded in Document.Malformed and skipped.
package parser

import (
	"bytes"
	"context"
	"regexp"
	"sort"

	"github.com/idrisr/pepys/filters"
	"github.com/idrisr/pepys/ir/raw"
	"github.com/idrisr/pepys/recovery"
	"github.com/idrisr/pepys/scanner"
	"github.com/idrisr/pepys/xref"
)

// headerWindow is how far into the file the %PDF- header may sit. Some
// generators prepend junk; Adobe's implementation note allows 1 KiB.
const headerWindow = 1024

// Config bounds a single parse.
type Config struct {
	// MaxDecodedBytes caps each stream decode (object streams and xref
	// streams during parsing). Zero means filters.Limits' default.
	MaxDecodedBytes int64
}

// Parser builds raw.Documents. The zero Config is usable.
type Parser struct {
	pipeline *filters.Pipeline
}

func New(cfg Config) *Parser {
	return &Parser{
		pipeline: filters.NewPipeline(filters.Limits{MaxDecodedBytes: cfg.MaxDecodedBytes}),
	}
}

// Parse reads the whole document. Document-level failures come back as
// *ParseError; everything object-level lands in the returned document's
// Malformed map.
func (p *Parser) Parse(ctx context.Context, data []byte) (*raw.Document, error) {
	if len(data) == 0 {
		return nil, malformedErr("empty input", nil)
	}
	version, ok := headerVersion(data)
	if !ok {
		return nil, malformedErr("missing %PDF header", nil)
	}

	doc := &raw.Document{
		Objects:   make(map[raw.ObjectRef]raw.Object),
		Version:   version,
		Malformed: make(map[raw.ObjectRef]string),
	}

	table, err := xref.Resolve(ctx, data, p.pipeline)
	if err == nil {
		doc.Trailer = table.Trailer()
		if encErr := rejectEncrypted(doc.Trailer); encErr != nil {
			return nil, encErr
		}
		ld := newLoader(data, table, p.pipeline)
		for _, num := range table.Objects() {
			if num == 0 {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			obj, gen, loadErr := ld.load(ctx, num)
			if loadErr != nil {
				doc.Malformed[raw.ObjectRef{Num: num}] = loadErr.Error()
				continue
			}
			ref := raw.ObjectRef{Num: num, Gen: gen}
			doc.Objects[ref] = obj
			entry, _ := table.Lookup(num)
			doc.Xref = append(doc.Xref, raw.XrefEntry{
				Ref:         ref,
				ID:          ref.String(),
				Offset:      entry.Offset,
				InObjStream: entry.InObjStream,
				StreamNum:   entry.StreamNum,
				Source:      string(entry.Source),
			})
		}
		if len(doc.Objects) > 0 {
			return doc, nil
		}
		// An xref that resolves but yields nothing usable is treated the
		// same as no xref at all.
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.recover(ctx, data, doc)
}

// recover rebuilds the document by scanning for object markers. The last
// occurrence of each object number wins, matching incremental-update
// semantics where later bodies supersede earlier ones.
func (p *Parser) recover(ctx context.Context, data []byte, doc *raw.Document) (*raw.Document, error) {
	candidates := recovery.Scan(data)
	if len(candidates) == 0 {
		if !bytes.Contains(data, []byte("%%EOF")) {
			return nil, truncatedErr("no objects and no %%EOF marker", nil)
		}
		return nil, malformedErr("no indirect objects found", nil)
	}

	latest := make(map[int]recovery.Candidate, len(candidates))
	for _, c := range candidates {
		latest[c.Num] = c
	}
	order := make([]int, 0, len(latest))
	for num := range latest {
		order = append(order, num)
	}
	sort.Ints(order)

	if doc.Trailer == nil {
		doc.Trailer = recoverTrailer(data)
	}
	if encErr := rejectEncrypted(doc.Trailer); encErr != nil {
		return nil, encErr
	}

	table := xref.NewTable()
	for num, c := range latest {
		table.Set(num, xref.Entry{Offset: c.Offset, Gen: c.Gen, Source: xref.SourceRecovered})
	}
	ld := newLoader(data, table, p.pipeline)
	for _, num := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		obj, gen, loadErr := ld.loadAt(ctx, num, latest[num].Offset)
		if loadErr != nil {
			doc.Malformed[raw.ObjectRef{Num: num}] = loadErr.Error()
			continue
		}
		ref := raw.ObjectRef{Num: num, Gen: gen}
		doc.Objects[ref] = obj
		doc.Recovered++
		doc.Xref = append(doc.Xref, raw.XrefEntry{
			Ref:    ref,
			ID:     ref.String(),
			Offset: latest[num].Offset,
			Source: string(xref.SourceRecovered),
		})
	}
	if len(doc.Objects) == 0 {
		return nil, malformedErr("every candidate object failed to parse", nil)
	}
	return doc, nil
}

func rejectEncrypted(trailer *raw.Dict) error {
	if trailer == nil {
		return nil
	}
	if _, ok := trailer.Get("Encrypt"); ok {
		return &ParseError{Kind: EncryptedUnsupported, Msg: "document declares /Encrypt"}
	}
	return nil
}

var versionRe = regexp.MustCompile(`%PDF-(\d+\.\d+)`)

// headerVersion finds the %PDF-m.n header within the leading window.
func headerVersion(data []byte) (string, bool) {
	window := data
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}
	m := versionRe.FindSubmatch(window)
	if m == nil {
		return "", false
	}
	return string(m[1]), true
}

// recoverTrailer tries each trailer keyword from the end of the file
// backwards and returns the first dict that parses. Recovery-mode
// documents often have an intact trailer even when the xref is shot.
func recoverTrailer(data []byte) *raw.Dict {
	rest := data
	base := 0
	var offsets []int
	for {
		idx := bytes.Index(rest, []byte("trailer"))
		if idx < 0 {
			break
		}
		offsets = append(offsets, base+idx+len("trailer"))
		rest = rest[idx+len("trailer"):]
		base += idx + len("trailer")
	}
	for i := len(offsets) - 1; i >= 0; i-- {
		sc := scanner.New(data)
		if err := sc.Seek(int64(offsets[i])); err != nil {
			continue
		}
		tok, err := sc.Next()
		if err != nil || tok.Type != scanner.TokenDictOpen {
			continue
		}
		obj, err := parseDict(&tokenReader{sc: sc}, 0)
		if err != nil {
			continue
		}
		if d, ok := obj.(*raw.Dict); ok {
			return d
		}
	}
	return nil
}
