package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brunobiangulo/docqa"
	"github.com/brunobiangulo/docqa/store"
)

const (
	// askTimeout covers extraction plus two 20s generation attempts.
	askTimeout    = 90 * time.Second
	uploadTimeout = 2 * time.Minute

	noTextHint = "no extractable text found: the document may be a scanned image. " +
		"Run it through OCR or upload a PDF or DOCX with a text layer."
)

type handler struct {
	engine    docqa.Engine
	maxUpload int64
}

func newHandler(e docqa.Engine, maxUpload int64) *handler {
	if maxUpload <= 0 {
		maxUpload = docqa.DefaultConfig().Server.MaxUploadBytes
	}
	return &handler{engine: e, maxUpload: maxUpload}
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Ping(r.Context()); err != nil {
		slog.Error("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /documents
// Multipart form with a "file" part and an optional "title" field.
func (h *handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), uploadTimeout)
	defer cancel()

	req, closeFile, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	defer closeFile()

	doc, err := h.engine.Upload(ctx, req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// GET /documents?limit=&offset=&format=
func (h *handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := store.ListOptions{Format: q.Get("format")}

	var err error
	if opts.Limit, err = intParam(q.Get("limit"), store.DefaultListLimit); err != nil || opts.Limit < 1 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if opts.Offset, err = intParam(q.Get("offset"), 0); err != nil || opts.Offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	if opts.Limit > store.MaxListLimit {
		opts.Limit = store.MaxListLimit
	}

	docs, total, err := h.engine.List(r.Context(), opts)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"total":     total,
		"limit":     opts.Limit,
		"offset":    opts.Offset,
	})
}

// GET /documents/{id}
func (h *handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	doc, err := h.engine.Get(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// PUT /documents/{id}
// Same form as upload; replaces the stored file.
func (h *handler) handleReplace(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), uploadTimeout)
	defer cancel()

	req, closeFile, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	defer closeFile()

	doc, err := h.engine.Replace(ctx, id, req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DELETE /documents/{id}
func (h *handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	if err := h.engine.Delete(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /documents/{id}/text
func (h *handler) handleText(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	res, err := h.engine.Text(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"document_id": id,
		"text":        res.Text,
		"format":      res.Format,
		"strategy":    res.Strategy,
	})
}

// POST /documents/{id}/ask
// Body: {"question": "..."}
func (h *handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), askTimeout)
	defer cancel()

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: expected JSON with 'question'")
		return
	}

	ans, err := h.engine.Ask(ctx, id, req.Question)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"answer":    ans.Text,
		"truncated": ans.Truncated,
		"attempts":  ans.Attempts,
		"model":     ans.Model,
	})
}

// GET /documents/{id}/questions?limit=
func (h *handler) handleQuestions(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	limit, err := intParam(r.URL.Query().Get("limit"), store.DefaultListLimit)
	if err != nil || limit < 1 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	logs, err := h.engine.Questions(r.Context(), id, limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"questions": logs})
}

// readUpload parses the multipart form. On failure it has already written
// the response and returns ok=false.
func (h *handler) readUpload(w http.ResponseWriter, r *http.Request) (docqa.UploadRequest, func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return docqa.UploadRequest{}, nil, false
		}
		writeError(w, http.StatusBadRequest, "invalid request: expected multipart form with a 'file' part")
		return docqa.UploadRequest{}, nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing 'file' part")
		return docqa.UploadRequest{}, nil, false
	}

	return docqa.UploadRequest{
		Title:    r.FormValue("title"),
		Filename: header.Filename,
		Body:     file,
	}, closer(file, r.MultipartForm), true
}

func closer(f multipart.File, form *multipart.Form) func() {
	return func() {
		f.Close()
		if form != nil {
			form.RemoveAll()
		}
	}
}

func docID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return 0, false
	}
	return id, true
}

func intParam(s string, def int) (int, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

// writeEngineError maps the error taxonomy onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	var upErr *docqa.UpstreamError
	var tooLarge *http.MaxBytesError

	switch {
	case errors.Is(err, docqa.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, "document not found")
	case errors.Is(err, docqa.ErrDocumentExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, docqa.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, "unsupported document format: upload a PDF or DOCX file")
	case errors.Is(err, docqa.ErrNoExtractableText):
		writeError(w, http.StatusUnprocessableEntity, noTextHint)
	case errors.Is(err, docqa.ErrEmptyUpload):
		writeError(w, http.StatusBadRequest, "uploaded file is empty")
	case errors.Is(err, docqa.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, "question must not be empty")
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
	case errors.Is(err, docqa.ErrMissingAPIKey):
		writeError(w, http.StatusServiceUnavailable, "question answering is not configured")
	case errors.Is(err, docqa.ErrUpstreamUnreachable):
		writeError(w, http.StatusServiceUnavailable, "generation service unreachable, retry later")
	case errors.Is(err, docqa.ErrUpstreamMalformed):
		writeError(w, http.StatusBadGateway, "generation service returned a malformed response")
	case errors.As(err, &upErr):
		status := upErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, map[string]interface{}{
			"error":    upErr.Error(),
			"upstream": upErr.Body,
		})
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	case errors.Is(err, docqa.ErrUnreadableFile):
		slog.Error("stored file unreadable", "error", err)
		writeError(w, http.StatusInternalServerError, "stored file could not be read")
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
