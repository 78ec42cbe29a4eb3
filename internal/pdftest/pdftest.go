// Package pdftest assembles small, offset-correct PDF files for tests.
// Fixtures are built programmatically so byte offsets in the xref table
// always match the object bodies they point at.
package pdftest

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/klauspost/compress/zlib"
)

type object struct {
	num, gen int
	body     string
}

// Builder accumulates numbered objects and renders them with a classic
// xref table and trailer. Object numbers may be added in any order.
type Builder struct {
	header  string
	objects []object
}

func New() *Builder {
	return &Builder{header: "%PDF-1.7\n"}
}

func (b *Builder) Header(h string) *Builder {
	b.header = h
	return b
}

// Add appends one object. body is everything between "N G obj" and
// "endobj", e.g. "<< /Type /Catalog /Pages 2 0 R >>".
func (b *Builder) Add(num, gen int, body string) *Builder {
	b.objects = append(b.objects, object{num: num, gen: gen, body: body})
	return b
}

// AddStream appends a stream object. dict must omit /Length; it is
// inserted to match the payload.
func (b *Builder) AddStream(num, gen int, dict string, payload []byte) *Builder {
	d := fmt.Sprintf("<< /Length %d %s >>", len(payload), bytes.TrimSpace([]byte(trimDict(dict))))
	body := d + "\nstream\n" + string(payload) + "\nendstream"
	return b.Add(num, gen, body)
}

// trimDict strips the outer << >> so dict fragments compose.
func trimDict(dict string) string {
	s := bytes.TrimSpace([]byte(dict))
	s = bytes.TrimPrefix(s, []byte("<<"))
	s = bytes.TrimSuffix(s, []byte(">>"))
	return string(s)
}

// Build renders header, objects, a classic xref table and a trailer.
// trailerExtra is spliced into the trailer dict, e.g. "/Root 1 0 R".
func (b *Builder) Build(trailerExtra string) []byte {
	var buf bytes.Buffer
	buf.WriteString(b.header)

	sorted := append([]object{}, b.objects...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].num < sorted[j].num })

	offsets := make(map[int]int64)
	gens := make(map[int]int)
	maxNum := 0
	for _, o := range sorted {
		offsets[o.num] = int64(buf.Len())
		gens[o.num] = o.gen
		fmt.Fprintf(&buf, "%d %d obj\n%s\nendobj\n", o.num, o.gen, o.body)
		if o.num > maxNum {
			maxNum = o.num
		}
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", maxNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num <= maxNum; num++ {
		if off, ok := offsets[num]; ok {
			fmt.Fprintf(&buf, "%010d %05d n \n", off, gens[num])
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d %s >>\n", maxNum+1, trimDict(trailerExtra))
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes()
}

// BuildXrefStream renders header and objects followed by a cross-reference
// stream instead of a classic table. compressed maps object numbers to
// their {container, index} slot inside an object stream added via
// AddStream. trailerExtra is spliced into the xref stream dictionary.
func (b *Builder) BuildXrefStream(compressed map[int][2]int, trailerExtra string) []byte {
	var buf bytes.Buffer
	buf.WriteString(b.header)

	sorted := append([]object{}, b.objects...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].num < sorted[j].num })

	offsets := make(map[int]int64)
	maxNum := 0
	for _, o := range sorted {
		offsets[o.num] = int64(buf.Len())
		fmt.Fprintf(&buf, "%d %d obj\n%s\nendobj\n", o.num, o.gen, o.body)
		if o.num > maxNum {
			maxNum = o.num
		}
	}
	for num := range compressed {
		if num > maxNum {
			maxNum = num
		}
	}

	xrefNum := maxNum + 1
	xrefOffset := int64(buf.Len())
	size := xrefNum + 1

	var rows bytes.Buffer
	row := func(typ byte, f2 int64, f3 int) {
		rows.WriteByte(typ)
		rows.WriteByte(byte(f2 >> 8))
		rows.WriteByte(byte(f2))
		rows.WriteByte(byte(f3))
	}
	for num := 0; num < size; num++ {
		switch {
		case num == 0:
			row(0, 0, 255)
		case num == xrefNum:
			row(1, xrefOffset, 0)
		default:
			if off, ok := offsets[num]; ok {
				row(1, off, 0)
			} else if slot, ok := compressed[num]; ok {
				row(2, int64(slot[0]), slot[1])
			} else {
				row(0, 0, 255)
			}
		}
	}
	payload := Flate(rows.Bytes())
	fmt.Fprintf(&buf,
		"%d 0 obj\n<< /Type /XRef /Size %d /W [1 2 1] /Filter /FlateDecode /Length %d %s >>\nstream\n",
		xrefNum, size, len(payload), trimDict(trailerExtra))
	buf.Write(payload)
	buf.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes()
}

// BuildRaw renders header and objects with no xref table at all, for
// exercising the recovery path.
func (b *Builder) BuildRaw() []byte {
	var buf bytes.Buffer
	buf.WriteString(b.header)
	for _, o := range b.objects {
		fmt.Fprintf(&buf, "%d %d obj\n%s\nendobj\n", o.num, o.gen, o.body)
	}
	buf.WriteString("%%EOF\n")
	return buf.Bytes()
}

// Flate zlib-compresses data the way FlateDecode expects.
func Flate(data []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		panic(err)
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// MinimalDoc is a one-page document with a flate content stream, an
// annotation and a dangling reference, used across packages.
func MinimalDoc() []byte {
	content := []byte("BT /F1 12 Tf 72 720 Td (Hello) Tj (World) Tj ET")
	return New().
		Add(1, 0, "<< /Type /Catalog /Pages 2 0 R >>").
		Add(2, 0, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>").
		Add(3, 0, "<< /Type /Page /Parent 2 0 R /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> /Annots [6 0 R 9 0 R] >>").
		AddStream(4, 0, "<< /Filter /FlateDecode >>", Flate(content)).
		Add(5, 0, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>").
		Add(6, 0, "<< /Type /Annot /Subtype /Link >>").
		Build("/Root 1 0 R")
}
