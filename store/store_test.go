package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idrisr/pepys/internal/pdftest"
	"github.com/idrisr/pepys/ir/raw"
	"github.com/idrisr/pepys/parser"
)

func newTestStore() *Store {
	return New(Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore()
	doc, err := s.Create(context.Background(), "minimal.pdf", pdftest.MinimalDoc())
	require.NoError(t, err)
	require.NotEmpty(t, doc.Meta.ID)

	assert.Equal(t, "minimal.pdf", doc.Meta.Filename)
	assert.Equal(t, "1.7", doc.Meta.PdfVersion)
	assert.Equal(t, 6, doc.Meta.ObjectCount)
	assert.Equal(t, 1, doc.Meta.PageCount)
	assert.Zero(t, doc.Meta.RecoveredObjects)
	assert.Zero(t, doc.Meta.MalformedObjects)
	assert.False(t, doc.Meta.CreatedAt.IsZero())

	got, err := s.Get(doc.Meta.ID)
	require.NoError(t, err)
	assert.Same(t, doc, got)
	assert.Equal(t, 1, s.Len())
}

func TestCreateParseFailure(t *testing.T) {
	s := newTestStore()
	_, err := s.Create(context.Background(), "bad.bin", []byte("not a pdf"))
	var perr *parser.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, parser.Malformed, perr.Kind)
	assert.Zero(t, s.Len())
}

func TestCreateEncryptedRejected(t *testing.T) {
	data := pdftest.New().
		Add(1, 0, "<< /Type /Catalog >>").
		Add(2, 0, "<< /Filter /Standard >>").
		Build("/Root 1 0 R /Encrypt 2 0 R")

	s := newTestStore()
	_, err := s.Create(context.Background(), "enc.pdf", data)
	var perr *parser.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, parser.EncryptedUnsupported, perr.Kind)
}

func TestGetUnknownID(t *testing.T) {
	s := newTestStore()
	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := newTestStore()
	doc, err := s.Create(context.Background(), "a.pdf", pdftest.MinimalDoc())
	require.NoError(t, err)

	require.NoError(t, s.Delete(doc.Meta.ID))
	_, err = s.Get(doc.Meta.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(doc.Meta.ID), ErrNotFound)
}

func TestSnapshotSurvivesDelete(t *testing.T) {
	s := newTestStore()
	doc, err := s.Create(context.Background(), "a.pdf", pdftest.MinimalDoc())
	require.NoError(t, err)
	require.NoError(t, s.Delete(doc.Meta.ID))

	// A reader holding the snapshot keeps a fully consistent view.
	detail, err := doc.ObjectDetail(context.Background(), "3 0 R")
	require.NoError(t, err)
	assert.Equal(t, "Page", detail.Type)
}

func TestDocumentsIndependent(t *testing.T) {
	s := newTestStore()
	a, err := s.Create(context.Background(), "a.pdf", pdftest.MinimalDoc())
	require.NoError(t, err)
	b, err := s.Create(context.Background(), "b.pdf", pdftest.MinimalDoc())
	require.NoError(t, err)

	assert.NotEqual(t, a.Meta.ID, b.Meta.ID)
	require.NoError(t, s.Delete(a.Meta.ID))
	_, err = s.Get(b.Meta.ID)
	assert.NoError(t, err)
}

func TestObjectDetail(t *testing.T) {
	s := newTestStore()
	doc, err := s.Create(context.Background(), "a.pdf", pdftest.MinimalDoc())
	require.NoError(t, err)

	detail, err := doc.ObjectDetail(context.Background(), "3 0 R")
	require.NoError(t, err)
	assert.Equal(t, "3 0 R", detail.ID)
	assert.Equal(t, "Page", detail.Type)
	assert.Equal(t, "Dictionary", detail.Kind)
	assert.Nil(t, detail.Stream)

	// Outgoing references include the dangling annotation.
	var paths []string
	for _, r := range detail.Refs {
		paths = append(paths, fmt.Sprintf("%s via %s", r.ObjID, r.Path))
	}
	assert.Contains(t, paths, "5 0 R via Resources.Font.F1")
	assert.Contains(t, paths, "9 0 R via Annots.1")

	dict, ok := detail.Dict.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/Page", dict["Type"])
	assert.Equal(t, "2 0 R", dict["Parent"])
}

func TestObjectDetailLooseIDSpellings(t *testing.T) {
	s := newTestStore()
	doc, err := s.Create(context.Background(), "a.pdf", pdftest.MinimalDoc())
	require.NoError(t, err)

	for _, spelling := range []string{"3 0 R", "3 0", "3-0", "3_0", "3:0"} {
		detail, err := doc.ObjectDetail(context.Background(), spelling)
		require.NoError(t, err, spelling)
		assert.Equal(t, "3 0 R", detail.ID, spelling)
	}
}

func TestObjectDetailNotFound(t *testing.T) {
	s := newTestStore()
	doc, err := s.Create(context.Background(), "a.pdf", pdftest.MinimalDoc())
	require.NoError(t, err)

	_, err = doc.ObjectDetail(context.Background(), "99 0 R")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	_, err = doc.ObjectDetail(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestObjectDetailStream(t *testing.T) {
	s := newTestStore()
	doc, err := s.Create(context.Background(), "a.pdf", pdftest.MinimalDoc())
	require.NoError(t, err)

	detail, err := doc.ObjectDetail(context.Background(), "4 0 R")
	require.NoError(t, err)
	assert.True(t, detail.HasStream)
	require.NotNil(t, detail.Stream)
	assert.True(t, detail.Stream.Decoded)
	assert.Contains(t, string(detail.Stream.Data), "(Hello) Tj")
}

func TestStreamPreview(t *testing.T) {
	s := newTestStore()
	doc, err := s.Create(context.Background(), "a.pdf", pdftest.MinimalDoc())
	require.NoError(t, err)

	pv, err := doc.StreamPreview(context.Background(), "4 0 R")
	require.NoError(t, err)
	assert.True(t, pv.Decoded)
	assert.False(t, pv.Truncated)

	_, err = doc.StreamPreview(context.Background(), "1 0 R")
	assert.ErrorIs(t, err, ErrNoStream)
	_, err = doc.StreamPreview(context.Background(), "99 0 R")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestStreamPreviewCached(t *testing.T) {
	s := newTestStore()
	doc, err := s.Create(context.Background(), "a.pdf", pdftest.MinimalDoc())
	require.NoError(t, err)

	a, err := doc.StreamPreview(context.Background(), "4 0 R")
	require.NoError(t, err)
	b, err := doc.StreamPreview(context.Background(), "4 0 R")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, doc.previews.Len())
}

func TestNormalizeID(t *testing.T) {
	s := newTestStore()
	doc, err := s.Create(context.Background(), "a.pdf", pdftest.MinimalDoc())
	require.NoError(t, err)

	id, ok := doc.NormalizeID("12_0")
	assert.True(t, ok)
	assert.Equal(t, "12 0 R", id)
	_, ok = doc.NormalizeID("x")
	assert.False(t, ok)
}

func TestXrefListing(t *testing.T) {
	s := newTestStore()
	doc, err := s.Create(context.Background(), "a.pdf", pdftest.MinimalDoc())
	require.NoError(t, err)

	listing := doc.XrefListing()
	require.Len(t, listing, 6)
	assert.Equal(t, "1 0 R", listing[0].ID)
	assert.Equal(t, "table", listing[0].Source)
	for i := 1; i < len(listing); i++ {
		assert.True(t, listing[i-1].Ref.Less(listing[i].Ref))
	}
}

func TestSimplifyCaps(t *testing.T) {
	big := raw.NewDict()
	for i := 0; i < 60; i++ {
		big.Set(fmt.Sprintf("K%02d", i), raw.Number{I: int64(i), IsInt: true})
	}
	out, ok := simplify(big, simplifyDepth).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, out["__truncated__"])
	assert.Len(t, out, maxDictItems+1)

	arr := &raw.Array{}
	for i := 0; i < 60; i++ {
		arr.Append(raw.Number{I: int64(i), IsInt: true})
	}
	list, ok := simplify(arr, simplifyDepth).([]any)
	require.True(t, ok)
	assert.Len(t, list, maxListItems+1)
	assert.Equal(t, "...", list[maxListItems])
}

func TestSimplifyDepthCut(t *testing.T) {
	inner := raw.NewDict()
	inner.Set("Leaf", raw.Name{Val: "X"})
	v := raw.Object(inner)
	for i := 0; i < 6; i++ {
		d := raw.NewDict()
		d.Set("Next", v)
		v = d
	}
	out := simplify(v, simplifyDepth)
	cur, ok := out.(map[string]any)
	require.True(t, ok)
	for i := 0; i < simplifyDepth; i++ {
		next, ok := cur["Next"].(map[string]any)
		require.True(t, ok, "level %d", i)
		cur = next
	}
	assert.Equal(t, "...", cur["Next"])
}
