package xref

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/idrisr/pepys/filters"
	"github.com/idrisr/pepys/internal/pdftest"
)

func resolve(t *testing.T, data []byte) *Table {
	t.Helper()
	table, err := Resolve(context.Background(), data, filters.NewPipeline(filters.Limits{}))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return table
}

func TestResolveClassicTable(t *testing.T) {
	data := pdftest.New().
		Add(1, 0, "<< /Type /Catalog /Pages 2 0 R >>").
		Add(2, 0, "<< /Type /Pages /Kids [] /Count 0 >>").
		Build("/Root 1 0 R")

	table := resolve(t, data)
	if table.Len() != 2 {
		t.Fatalf("entries: %d", table.Len())
	}
	entry, ok := table.Lookup(1)
	if !ok || entry.Source != SourceTable {
		t.Fatalf("entry 1: %+v %v", entry, ok)
	}
	if !bytes.HasPrefix(data[entry.Offset:], []byte("1 0 obj")) {
		t.Fatalf("offset %d does not point at object 1", entry.Offset)
	}
	if table.Trailer() == nil {
		t.Fatal("trailer missing")
	}
	if _, ok := table.Trailer().Get("Root"); !ok {
		t.Fatal("trailer Root missing")
	}
}

func TestResolveXrefStream(t *testing.T) {
	// Assemble by hand: two objects plus a /Type /XRef stream with
	// W [1 2 1] rows. Offsets are patched in after layout.
	var body bytes.Buffer
	body.WriteString("%PDF-1.5\n")
	off1 := body.Len()
	body.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	off2 := body.Len()
	body.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")
	xrefOff := body.Len()

	var rows bytes.Buffer
	writeRow := func(typ byte, f2 int, f3 byte) {
		rows.WriteByte(typ)
		rows.WriteByte(byte(f2 >> 8))
		rows.WriteByte(byte(f2))
		rows.WriteByte(f3)
	}
	writeRow(0, 0, 255)      // free head
	writeRow(1, off1, 0)     // object 1
	writeRow(1, off2, 0)     // object 2
	writeRow(1, xrefOff, 0)  // the xref stream itself
	payload := pdftest.Flate(rows.Bytes())

	fmt.Fprintf(&body,
		"3 0 obj\n<< /Type /XRef /Size 4 /W [1 2 1] /Filter /FlateDecode /Length %d /Root 1 0 R >>\nstream\n",
		len(payload))
	body.Write(payload)
	body.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(&body, "startxref\n%d\n%%%%EOF\n", xrefOff)

	table := resolve(t, body.Bytes())
	entry, ok := table.Lookup(2)
	if !ok || entry.Source != SourceStream {
		t.Fatalf("entry 2: %+v %v", entry, ok)
	}
	if entry.Offset != int64(off2) {
		t.Fatalf("offset %d want %d", entry.Offset, off2)
	}
	if _, ok := table.Trailer().Get("Root"); !ok {
		t.Fatal("xref stream dict not merged as trailer")
	}
}

func TestResolveObjStreamEntries(t *testing.T) {
	// Type-2 rows point into an object stream instead of at a byte offset.
	var rows bytes.Buffer
	row := func(typ byte, f2 int, f3 byte) {
		rows.WriteByte(typ)
		rows.WriteByte(byte(f2 >> 8))
		rows.WriteByte(byte(f2))
		rows.WriteByte(f3)
	}
	row(0, 0, 255)
	row(2, 5, 0) // object 1 lives in object stream 5, index 0
	row(2, 5, 1) // object 2 lives in object stream 5, index 1
	payload := pdftest.Flate(rows.Bytes())

	var body bytes.Buffer
	body.WriteString("%PDF-1.5\n")
	xrefOff := body.Len()
	fmt.Fprintf(&body,
		"3 0 obj\n<< /Type /XRef /Size 3 /W [1 2 1] /Filter /FlateDecode /Length %d >>\nstream\n",
		len(payload))
	body.Write(payload)
	body.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(&body, "startxref\n%d\n%%%%EOF\n", xrefOff)

	table := resolve(t, body.Bytes())
	entry, ok := table.Lookup(2)
	if !ok || !entry.InObjStream {
		t.Fatalf("entry 2: %+v %v", entry, ok)
	}
	if entry.StreamNum != 5 || entry.StreamIdx != 1 {
		t.Fatalf("objstream location: %+v", entry)
	}
}

func TestNewestSectionWins(t *testing.T) {
	table := NewTable()
	table.Set(4, Entry{Offset: 100, Source: SourceTable})
	table.Set(4, Entry{Offset: 999, Source: SourceTable})
	entry, _ := table.Lookup(4)
	if entry.Offset != 100 {
		t.Fatalf("first-seen entry should win, got offset %d", entry.Offset)
	}
}

func TestResolveMissingStartxref(t *testing.T) {
	_, err := Resolve(context.Background(), []byte("%PDF-1.4\nno xref here"), filters.NewPipeline(filters.Limits{}))
	if err == nil {
		t.Fatal("expected error")
	}
}
