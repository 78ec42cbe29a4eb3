// Package xref resolves a document's cross-reference information: the index
// mapping object identities to byte offsets (classic tables) or to object
// stream slots (xref streams), following /Prev chains across incremental
// updates.
package xref

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/idrisr/pepys/filters"
	"github.com/idrisr/pepys/ir/raw"
	"github.com/idrisr/pepys/scanner"
)

// EntrySource records which resolution path produced an entry.
type EntrySource string

const (
	SourceTable     EntrySource = "table"
	SourceStream    EntrySource = "stream"
	SourceRecovered EntrySource = "recovered"
)

// Entry locates one object. Either Offset is valid (direct objects) or
// InObjStream is set and StreamNum/StreamIdx locate it inside an object
// stream.
type Entry struct {
	Offset      int64
	Gen         int
	InObjStream bool
	StreamNum   int
	StreamIdx   int
	Source      EntrySource
}

// Table is the merged cross-reference index for a document.
type Table struct {
	entries map[int]Entry
	trailer *raw.Dict
}

func NewTable() *Table {
	return &Table{entries: make(map[int]Entry)}
}

// Set records an entry unless the object already has one. Sections are
// visited newest-first, and the newest definition wins.
func (t *Table) Set(num int, e Entry) {
	if _, exists := t.entries[num]; !exists {
		t.entries[num] = e
	}
}

func (t *Table) Lookup(num int) (Entry, bool) {
	e, ok := t.entries[num]
	return e, ok
}

// Objects returns all known object numbers in ascending order.
func (t *Table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for n := range t.entries {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func (t *Table) Len() int { return len(t.entries) }

// Trailer returns the merged trailer dictionary, newest section first.
func (t *Table) Trailer() *raw.Dict { return t.trailer }

func (t *Table) mergeTrailer(d *raw.Dict) {
	if d == nil {
		return
	}
	if t.trailer == nil {
		t.trailer = raw.NewDict()
	}
	for _, key := range d.Keys() {
		if _, exists := t.trailer.Get(key); exists {
			continue
		}
		v, _ := d.Get(key)
		t.trailer.Set(key, v)
	}
}

// maxPrevSections bounds /Prev chain following so a looped chain terminates.
const maxPrevSections = 64

// Resolve locates the startxref pointer and walks the xref section chain.
// pipeline is needed because xref streams are themselves filtered.
func Resolve(ctx context.Context, data []byte, pipeline *filters.Pipeline) (*Table, error) {
	offset, err := startXRefOffset(data)
	if err != nil {
		return nil, err
	}

	table := NewTable()
	seen := make(map[int64]bool)
	for section := 0; section < maxPrevSections; section++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if offset <= 0 || offset >= int64(len(data)) {
			return nil, fmt.Errorf("xref offset %d out of range", offset)
		}
		if seen[offset] {
			break
		}
		seen[offset] = true

		var trailer *raw.Dict
		if bytes.HasPrefix(bytes.TrimLeft(data[offset:], "\r\n \t"), []byte("xref")) {
			trailer, err = parseClassicSection(data, offset, table)
		} else {
			trailer, err = parseStreamSection(ctx, data, offset, table, pipeline)
		}
		if err != nil {
			return nil, err
		}
		table.mergeTrailer(trailer)

		prev, ok := trailer.Int("Prev")
		if !ok {
			break
		}
		offset = prev
	}
	return table, nil
}

// startXRefOffset finds the last startxref keyword and the offset after it.
func startXRefOffset(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, errors.New("startxref not found")
	}
	rest := data[idx+len("startxref"):]
	lines := bufio.NewScanner(bytes.NewReader(rest))
	for lines.Scan() {
		text := strings.TrimSpace(lines.Text())
		if text == "" {
			continue
		}
		val, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse startxref value: %w", err)
		}
		return val, nil
	}
	return 0, errors.New("startxref value missing")
}

// parseClassicSection reads one "xref ... trailer <<...>>" section and
// returns its trailer dictionary.
func parseClassicSection(data []byte, offset int64, table *Table) (*raw.Dict, error) {
	sc := bufio.NewScanner(bytes.NewReader(data[offset:]))
	consumed := int64(0)
	scanLine := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		line := sc.Text()
		consumed += int64(len(line)) + 1
		return strings.TrimSpace(line), true
	}

	line, ok := scanLine()
	if !ok || line != "xref" {
		return nil, errors.New("xref keyword not found at offset")
	}

	for {
		line, ok = scanLine()
		if !ok {
			return nil, errors.New("unexpected end of xref section")
		}
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "trailer") {
			break
		}
		parts := strings.Fields(line)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid xref subsection header %q", line)
		}
		start, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("parse xref subsection start: %w", err)
		}
		count, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("parse xref subsection count: %w", err)
		}
		for i := 0; i < count; i++ {
			line, ok = scanLine()
			if !ok {
				return nil, errors.New("unexpected end of xref subsection")
			}
			fields := strings.Fields(line)
			if len(fields) < 3 {
				return nil, fmt.Errorf("invalid xref entry %q", line)
			}
			off, err := strconv.ParseInt(fields[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse xref entry offset: %w", err)
			}
			gen, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("parse xref entry generation: %w", err)
			}
			if fields[2] != "n" {
				continue // free entry
			}
			table.Set(start+i, Entry{Offset: off, Gen: gen, Source: SourceTable})
		}
	}

	// The trailer dictionary follows the trailer keyword.
	dictStart := offset + consumed
	if idx := bytes.Index(data[offset:], []byte("trailer")); idx >= 0 {
		dictStart = offset + int64(idx) + int64(len("trailer"))
	}
	sc2 := scanner.New(data)
	if err := sc2.Seek(dictStart); err != nil {
		return nil, err
	}
	obj, err := parseValue(sc2)
	if err != nil {
		return nil, fmt.Errorf("parse trailer: %w", err)
	}
	trailer, ok2 := obj.(*raw.Dict)
	if !ok2 {
		return nil, errors.New("trailer is not a dictionary")
	}
	return trailer, nil
}
