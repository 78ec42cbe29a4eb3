// Package server exposes the document store over HTTP. Route shapes and
// response payloads follow the viewer API: upload, metadata, build
// status, graph listing, object detail, stream preview, pages, search,
// bounded traversal, xref listing and raw file download.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/idrisr/pepys/store"
)

const (
	defaultMaxUploadBytes = 100 << 20
)

type Config struct {
	Addr           string
	MaxUploadBytes int64
	Logger         *slog.Logger
}

type Server struct {
	cfg    Config
	store  *store.Store
	log    *slog.Logger
	engine *gin.Engine
}

func New(cfg Config, st *store.Store) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{cfg: cfg, store: st, log: log, engine: engine}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.engine.Group("/api")
	api.Use(requestLogger(s.log), compression())

	api.GET("/health", s.health)
	api.POST("/pdfs", s.createDocument)

	doc := api.Group("/pdfs/:id")
	{
		doc.GET("", s.getMeta)
		doc.GET("/status", s.getStatus)
		doc.GET("/graph", s.getGraph)
		doc.GET("/object/*obj", s.getObject)
		doc.GET("/file", s.getFile)
		doc.GET("/xref", s.getXref)
		doc.GET("/pages", s.getPages)
		doc.GET("/pages/:index/attribution", s.getAttribution)
		doc.GET("/search", s.search)
		doc.GET("/traverse", s.traverse)
		doc.DELETE("", s.deleteDocument)
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) Run() error {
	s.log.Info("listening", "addr", s.cfg.Addr)
	return s.engine.Run(s.cfg.Addr)
}
