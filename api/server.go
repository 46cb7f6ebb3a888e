// Package api wires the HTTP surface of the service: intake of clinical
// documents, report retrieval, summary retries, and authentication.
package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/clinbrief/clinbrief/auth"
	"github.com/clinbrief/clinbrief/dbopen"
	"github.com/clinbrief/clinbrief/extract"
	"github.com/clinbrief/clinbrief/ocr"
	"github.com/clinbrief/clinbrief/report"
	"github.com/clinbrief/clinbrief/shield"
	"github.com/clinbrief/clinbrief/summarize"

	_ "modernc.org/sqlite"
)

// Server holds the wired application and its router.
type Server struct {
	cfg       *Config
	logger    *slog.Logger
	db        *sql.DB
	reports   *report.Service
	extractor *extract.Extractor
	authH     *auth.Handler
	limiter   *shield.RateLimiter
	router    http.Handler
	done      chan struct{}
}

// New opens the database and wires every component from cfg.
func New(cfg *Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll())
	if err != nil {
		return nil, err
	}

	store, err := report.NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	users, err := auth.NewUserStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	var engine ocr.Engine
	if cfg.OCR.Endpoint != "" {
		engine = ocr.NewClient(cfg.OCR)
	} else {
		logger.Warn("no OCR endpoint configured, image uploads will store the unavailability notice")
	}

	var summarizer summarize.Summarizer
	if cfg.Summarizer.Endpoint != "" {
		summarizer = summarize.NewClient(cfg.Summarizer)
	} else {
		logger.Warn("no summarizer endpoint configured, reports will stay pending")
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		reports:   report.NewService(store, summarize.NewInvoker(summarizer, logger), logger),
		extractor: extract.New(engine, logger),
		authH: auth.NewHandler(users, auth.Config{
			AccessSecret:  []byte(cfg.JWTAccessSecret),
			RefreshSecret: []byte(cfg.JWTRefreshSecret),
			SecureCookies: cfg.SecureCookies,
		}, logger),
		limiter: shield.NewRateLimiter(cfg.RateLimit, "/health"),
		done:    make(chan struct{}),
	}
	s.limiter.StartGC(s.done)
	s.router = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Close stops background work and releases the database. Call once.
func (s *Server) Close() error {
	close(s.done)
	return s.db.Close()
}
