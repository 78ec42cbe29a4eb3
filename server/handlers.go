package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/idrisr/pepys/graph"
	"github.com/idrisr/pepys/pages"
	"github.com/idrisr/pepys/parser"
	"github.com/idrisr/pepys/store"
)

// Traversal budget defaults and ceilings. Requests may lower the
// defaults freely; the ceilings are hard.
const (
	defaultTraverseDepth    = 4
	defaultTraverseNodes    = 200
	defaultTraverseChildren = 12
	maxTraverseDepth        = 16
	maxTraverseNodes        = 2000
	maxTraverseChildren     = 100
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) createDocument(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Upload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Upload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload"})
		return
	}
	filename := header.Filename
	if filename == "" {
		filename = "upload.pdf"
	}

	doc, err := s.store.Create(c.Request.Context(), filename, data)
	if err != nil {
		var pe *parser.ParseError
		if errors.As(err, &pe) {
			status := http.StatusBadRequest
			if pe.Kind == parser.EncryptedUnsupported {
				status = http.StatusUnprocessableEntity
			}
			c.JSON(status, gin.H{
				"error":  "Failed to parse PDF",
				"kind":   pe.Kind.String(),
				"detail": pe.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to parse PDF", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": doc.Meta.ID, "meta": doc.Meta})
}

func (s *Server) getMeta(c *gin.Context) {
	doc, ok := s.doc(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, doc.Meta)
}

// getStatus reports build progress. Documents build synchronously inside
// the upload request, so a stored id is always done; anything else is
// missing.
func (s *Server) getStatus(c *gin.Context) {
	if _, err := s.store.Get(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "missing"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "done"})
}

func (s *Server) getGraph(c *gin.Context) {
	doc, ok := s.doc(c)
	if !ok {
		return
	}
	limit := intQuery(c, "limit", 0)
	offset := intQuery(c, "offset", 0)
	listing := doc.Graph.List(limit, offset, c.Query("type"))
	c.JSON(http.StatusOK, listing)
}

// getObject serves both ".../object/12 0" (detail) and
// ".../object/12 0/stream" (preview). The object id segment may contain
// spaces, so the route is a wildcard and dispatch happens here.
func (s *Server) getObject(c *gin.Context) {
	doc, ok := s.doc(c)
	if !ok {
		return
	}
	objID := strings.TrimPrefix(c.Param("obj"), "/")
	wantStream := false
	if rest, found := strings.CutSuffix(objID, "/stream"); found {
		objID = rest
		wantStream = true
	}

	if wantStream {
		pv, err := doc.StreamPreview(c.Request.Context(), objID)
		switch {
		case errors.Is(err, store.ErrObjectNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		case errors.Is(err, store.ErrNoStream):
			c.JSON(http.StatusNotFound, gin.H{"error": "Object has no stream"})
		default:
			c.JSON(http.StatusOK, gin.H{
				"filters":          pv.Filters,
				"length":           pv.Length,
				"decoded":          pv.Decoded,
				"opaque":           pv.Opaque,
				"preview":          pv.Text(),
				"preview_encoding": pv.Encoding,
				"is_binary":        pv.Binary,
				"truncated":        pv.Truncated,
				"error":            pv.Err,
			})
		}
		return
	}

	detail, err := doc.ObjectDetail(c.Request.Context(), objID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	if detail.Stream != nil {
		c.JSON(http.StatusOK, gin.H{
			"id": detail.ID, "type": detail.Type, "subtype": detail.Subtype,
			"kind": detail.Kind, "label": detail.Label, "size": detail.Size,
			"has_stream": detail.HasStream, "dict": detail.Dict, "refs": detail.Refs,
			"stream": gin.H{
				"filters":          detail.Stream.Filters,
				"length":           detail.Stream.Length,
				"decoded":          detail.Stream.Decoded,
				"opaque":           detail.Stream.Opaque,
				"preview":          detail.Stream.Text(),
				"preview_encoding": detail.Stream.Encoding,
				"is_binary":        detail.Stream.Binary,
				"truncated":        detail.Stream.Truncated,
				"error":            detail.Stream.Err,
			},
		})
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) getFile(c *gin.Context) {
	doc, ok := s.doc(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "application/pdf", doc.Bytes)
}

func (s *Server) getXref(c *gin.Context) {
	doc, ok := s.doc(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": doc.XrefListing()})
}

func (s *Server) getPages(c *gin.Context) {
	doc, ok := s.doc(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"pages": doc.Pages})
}

// getAttribution apportions a rendered run count across one page's
// content streams. The mapping is approximate and labelled as such.
func (s *Server) getAttribution(c *gin.Context) {
	doc, ok := s.doc(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 || index >= len(doc.Pages) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	runs := intQuery(c, "runs", 0)
	if runs < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "runs must be non-negative"})
		return
	}
	page := doc.Pages[index]
	slices := pages.Apportion(page.ContentStreams, runs)

	out := make([]gin.H, len(slices))
	for i, n := range slices {
		out[i] = gin.H{"id": page.ContentStreams[i].ID, "runs": n}
	}
	c.JSON(http.StatusOK, gin.H{"page": page.Number, "approximate": true, "slices": out})
}

func (s *Server) search(c *gin.Context) {
	doc, ok := s.doc(c)
	if !ok {
		return
	}
	results := doc.Index.Search(c.Query("q"))
	if results == nil {
		results = []graph.Node{}
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

func (s *Server) traverse(c *gin.Context) {
	doc, ok := s.doc(c)
	if !ok {
		return
	}
	rootsParam := strings.TrimSpace(c.Query("roots"))
	if rootsParam == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "roots query parameter required"})
		return
	}
	var roots []string
	for _, part := range strings.Split(rootsParam, ",") {
		if id, ok := doc.NormalizeID(part); ok {
			roots = append(roots, id)
		}
	}

	b := graph.Budgets{
		MaxDepth:    clamp(intQuery(c, "depth", defaultTraverseDepth), 0, maxTraverseDepth),
		MaxNodes:    clamp(intQuery(c, "nodes", defaultTraverseNodes), 1, maxTraverseNodes),
		MaxChildren: clamp(intQuery(c, "children", defaultTraverseChildren), 0, maxTraverseChildren),
	}
	forest := doc.Graph.Traverse(roots, b)
	c.JSON(http.StatusOK, forest)
}

func (s *Server) deleteDocument(c *gin.Context) {
	if err := s.store.Delete(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) doc(c *gin.Context) (*store.Document, bool) {
	doc, err := s.store.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return nil, false
	}
	return doc, true
}

func intQuery(c *gin.Context, name string, def int) int {
	v := c.Query(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
