package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clinbrief/clinbrief/auth"
	"github.com/clinbrief/clinbrief/shield"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(shield.SecurityHeaders(shield.DefaultHeaders()))
	r.Use(shield.MaxBody(s.cfg.MaxUploadBytes()))
	r.Use(shield.TraceID)
	r.Use(s.limiter.Middleware)
	r.Use(auth.Optional([]byte(s.cfg.JWTAccessSecret)))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found")
	})

	r.Get("/health", s.health)
	r.Route("/auth", s.authH.Mount)

	r.Route("/reports", func(r chi.Router) {
		r.Get("/", s.listReports)
		r.With(auth.Require).Post("/", s.createReport)
		r.With(auth.Require).Post("/pdf", s.createReportFromPDF)
		r.Get("/{id}", s.getReport)
	})

	r.Route("/summaries", func(r chi.Router) {
		r.Get("/", s.summariesInfo)
		r.Get("/{reportID}", s.getSummary)
		r.Post("/{reportID}", s.retrySummary)
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
