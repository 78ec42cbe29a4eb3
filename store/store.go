// Package store owns document lifecycle: create parses and builds the
// whole derived structure synchronously, get hands out immutable
// snapshots, delete drops the entry. There is no shared mutable state
// between documents, so reads against one never observe another.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/google/uuid"
	"github.com/idrisr/pepys/filters"
	"github.com/idrisr/pepys/graph"
	"github.com/idrisr/pepys/ir/raw"
	"github.com/idrisr/pepys/pages"
	"github.com/idrisr/pepys/parser"
)

var (
	ErrNotFound       = errors.New("document not found")
	ErrObjectNotFound = errors.New("object not found")
	ErrNoStream       = errors.New("object has no stream")
)

const defaultPreviewCacheSize = 64

type Config struct {
	// PreviewCap bounds decoded stream previews in bytes. Zero means
	// filters.DefaultPreviewCap.
	PreviewCap int
	// PreviewCacheSize is the per-document LRU size for decoded previews.
	PreviewCacheSize int
	// MaxDecodedBytes caps any single stream decode. Zero means the
	// filters default.
	MaxDecodedBytes int64
	Logger          *slog.Logger
}

type Meta struct {
	ID               string    `json:"id"`
	Filename         string    `json:"filename"`
	Size             int64     `json:"size"`
	CreatedAt        time.Time `json:"created_at"`
	PageCount        int       `json:"page_count"`
	ObjectCount      int       `json:"object_count"`
	PdfVersion       string    `json:"pdf_version"`
	Encrypted        bool      `json:"is_encrypted"`
	RecoveredObjects int       `json:"recovered_objects"`
	MalformedObjects int       `json:"malformed_objects"`
}

// Document bundles everything derived from one upload. All exported
// fields are frozen once Create returns; the preview cache is the only
// internally mutable piece and is safe for concurrent use.
type Document struct {
	Meta  Meta
	Bytes []byte
	Doc   *raw.Document
	Graph *graph.Graph
	Index *graph.SearchIndex
	Pages []pages.Page

	pipeline   *filters.Pipeline
	previewCap int
	previews   *lru.Cache[string, filters.Preview]
}

type Store struct {
	mu   sync.RWMutex
	docs map[string]*Document

	cfg    Config
	parser *parser.Parser
	log    *slog.Logger
}

func New(cfg Config) *Store {
	if cfg.PreviewCacheSize <= 0 {
		cfg.PreviewCacheSize = defaultPreviewCacheSize
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		docs:   make(map[string]*Document),
		cfg:    cfg,
		parser: parser.New(parser.Config{MaxDecodedBytes: cfg.MaxDecodedBytes}),
		log:    log,
	}
}

// Create parses data, derives graph, pages and search index, and only
// then publishes the document. A caller never observes a half-built
// entry. Parse failures abort creation with the parser's typed error.
func (s *Store) Create(ctx context.Context, filename string, data []byte) (*Document, error) {
	start := time.Now()
	rawDoc, err := s.parser.Parse(ctx, data)
	if err != nil {
		return nil, err
	}

	pipeline := filters.NewPipeline(filters.Limits{MaxDecodedBytes: s.cfg.MaxDecodedBytes})
	g := graph.Build(rawDoc)
	pageList := pages.Collect(ctx, rawDoc, pipeline)
	index := graph.NewSearchIndex(g, rawDoc)

	previews, err := lru.New[string, filters.Preview](s.cfg.PreviewCacheSize)
	if err != nil {
		return nil, fmt.Errorf("preview cache: %w", err)
	}

	u := uuid.New()
	doc := &Document{
		Meta: Meta{
			ID:               fmt.Sprintf("%x", u[:]),
			Filename:         filename,
			Size:             int64(len(data)),
			CreatedAt:        time.Now().UTC(),
			PageCount:        len(pageList),
			ObjectCount:      len(g.Nodes),
			PdfVersion:       rawDoc.Version,
			RecoveredObjects: rawDoc.Recovered,
			MalformedObjects: len(rawDoc.Malformed),
		},
		Bytes:      data,
		Doc:        rawDoc,
		Graph:      g,
		Index:      index,
		Pages:      pageList,
		pipeline:   pipeline,
		previewCap: s.cfg.PreviewCap,
		previews:   previews,
	}

	s.mu.Lock()
	s.docs[doc.Meta.ID] = doc
	s.mu.Unlock()

	s.log.Info("document created",
		"id", doc.Meta.ID,
		"filename", filename,
		"objects", doc.Meta.ObjectCount,
		"pages", doc.Meta.PageCount,
		"recovered", doc.Meta.RecoveredObjects,
		"elapsed", time.Since(start))
	return doc, nil
}

// Get returns the immutable snapshot for id. Readers holding the
// returned pointer keep a consistent view even if the document is
// deleted underneath them.
func (s *Store) Get(id string) (*Document, error) {
	s.mu.RLock()
	doc, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return ErrNotFound
	}
	delete(s.docs, id)
	s.log.Info("document deleted", "id", id)
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
