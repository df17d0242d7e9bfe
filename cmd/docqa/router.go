package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/brunobiangulo/docqa"
)

// newRouter wires the HTTP API.
// Middleware order: recovery -> cors -> request id -> auth -> logging.
func newRouter(e docqa.Engine, cfg docqa.ServerConfig) http.Handler {
	h := newHandler(e, cfg.MaxUploadBytes)

	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(middleware.RequestID)
	r.Use(authMiddleware(cfg.APIKey))
	r.Use(logMiddleware)

	r.Get("/health", h.handleHealth)

	r.Route("/documents", func(r chi.Router) {
		r.Post("/", h.handleUpload)
		r.Get("/", h.handleList)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Put("/", h.handleReplace)
			r.Delete("/", h.handleDelete)
			r.Get("/text", h.handleText)
			r.Post("/ask", h.handleAsk)
			r.Get("/questions", h.handleQuestions)
		})
	})

	return r
}
