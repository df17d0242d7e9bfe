// Package docqa stores uploaded PDF and DOCX documents, extracts their text
// and answers questions about them through a remote generation service.
package docqa

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/brunobiangulo/docqa/llm"
	"github.com/brunobiangulo/docqa/parser"
	"github.com/brunobiangulo/docqa/store"
)

// Document is a stored document's metadata.
type Document = store.Document

// Engine is the main entry point for document storage and question answering.
type Engine interface {
	// Upload stores a new document. Identical content already stored
	// yields ErrDocumentExists.
	Upload(ctx context.Context, req UploadRequest) (*Document, error)

	// Get returns one document.
	Get(ctx context.Context, id int64) (*Document, error)

	// List returns a page of documents, newest first, and the total count.
	List(ctx context.Context, opts store.ListOptions) ([]Document, int, error)

	// Replace swaps a document's file for new content, keeping its id.
	Replace(ctx context.Context, id int64, req UploadRequest) (*Document, error)

	// Delete removes a document and its file.
	Delete(ctx context.Context, id int64) error

	// Text returns the extracted text of a stored document.
	Text(ctx context.Context, id int64) (*parser.Result, error)

	// Ask answers a question from a stored document's text.
	Ask(ctx context.Context, id int64, question string) (*llm.Answer, error)

	// Questions returns the recent questions asked about a document.
	Questions(ctx context.Context, id int64, limit int) ([]store.QuestionLog, error)

	// Ping checks the database.
	Ping(ctx context.Context) error

	// Close cleanly shuts down the engine.
	Close() error
}

// UploadRequest carries a document's bytes and naming.
type UploadRequest struct {
	Title    string
	Filename string
	Body     io.Reader
}

// Answerer produces answers from document text. *llm.Gateway implements it.
type Answerer interface {
	Answer(ctx context.Context, req llm.AnswerRequest) (*llm.Answer, error)
}

type noKeyAnswerer struct{}

func (noKeyAnswerer) Answer(context.Context, llm.AnswerRequest) (*llm.Answer, error) {
	return nil, ErrMissingAPIKey
}

// Option customizes New.
type Option func(*engine)

// WithAnswerer replaces the generation gateway.
func WithAnswerer(a Answerer) Option {
	return func(e *engine) { e.answerer = a }
}

// WithHTTPClient sets the client used by the default gateway.
func WithHTTPClient(c *http.Client) Option {
	return func(e *engine) { e.httpClient = c }
}

// WithRegistry replaces the extraction chains.
func WithRegistry(r *parser.Registry) Option {
	return func(e *engine) { e.registry = r }
}

type engine struct {
	cfg        Config
	store      *store.Store
	files      *store.FileStore
	registry   *parser.Registry
	extractor  *parser.Extractor
	answerer   Answerer
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates an Engine with the given configuration.
func New(cfg Config, opts ...Option) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &engine{cfg: cfg, logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}

	s, err := store.New(cfg.resolveDBPath())
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	e.store = s

	files, err := store.NewFileStore(cfg.resolveUploadDir())
	if err != nil {
		s.Close()
		return nil, err
	}
	e.files = files

	if e.registry == nil {
		e.registry = parser.NewRegistry(cfg.ChainConfig())
	}
	e.extractor = parser.NewExtractor(e.registry, e.logger)

	switch {
	case e.answerer != nil:
	case cfg.LLM.APIKey == "":
		e.logger.Warn("no generation service API key configured; questions will fail")
		e.answerer = noKeyAnswerer{}
	default:
		e.answerer = llm.NewGateway(cfg.LLM, e.httpClient)
	}
	return e, nil
}

func (e *engine) Upload(ctx context.Context, req UploadRequest) (*Document, error) {
	saved, format, extracted, err := e.save(ctx, req)
	if err != nil {
		return nil, err
	}

	doc := Document{
		Title:       titleOrDefault(req.Title, req.Filename),
		Filename:    cleanFilename(req.Filename),
		Path:        saved.Path,
		Format:      string(format),
		ContentHash: saved.Hash,
		Size:        saved.Size,
		Status:      store.StatusStored,
	}
	id, err := e.store.CreateDocument(ctx, doc)
	if err != nil {
		e.discard(saved.Path)
		return nil, e.conflictDetail(ctx, saved.Hash, err)
	}
	doc.ID = id
	e.cacheExtraction(ctx, id, extracted)

	e.logger.Info("document uploaded",
		"id", id,
		"filename", doc.Filename,
		"format", doc.Format,
		"size", doc.Size,
	)
	return e.store.GetDocument(ctx, id)
}

func (e *engine) Get(ctx context.Context, id int64) (*Document, error) {
	return e.store.GetDocument(ctx, id)
}

func (e *engine) List(ctx context.Context, opts store.ListOptions) ([]Document, int, error) {
	return e.store.ListDocuments(ctx, opts)
}

func (e *engine) Replace(ctx context.Context, id int64, req UploadRequest) (*Document, error) {
	old, err := e.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	saved, format, extracted, err := e.save(ctx, req)
	if err != nil {
		return nil, err
	}

	doc := *old
	doc.Path = saved.Path
	doc.Format = string(format)
	doc.ContentHash = saved.Hash
	doc.Size = saved.Size
	doc.Status = store.StatusStored
	if req.Filename != "" {
		doc.Filename = cleanFilename(req.Filename)
	}
	if strings.TrimSpace(req.Title) != "" {
		doc.Title = strings.TrimSpace(req.Title)
	}

	if err := e.store.UpdateDocument(ctx, doc); err != nil {
		e.discard(saved.Path)
		return nil, e.conflictDetail(ctx, saved.Hash, err)
	}
	// The row points at the new file now, so the old one can go.
	e.discard(old.Path)
	e.cacheExtraction(ctx, id, extracted)

	e.logger.Info("document replaced", "id", id, "filename", doc.Filename, "format", doc.Format)
	return e.store.GetDocument(ctx, id)
}

func (e *engine) Delete(ctx context.Context, id int64) error {
	doc, err := e.store.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if err := e.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	e.discard(doc.Path)
	e.logger.Info("document deleted", "id", id)
	return nil
}

func (e *engine) Text(ctx context.Context, id int64) (*parser.Result, error) {
	doc, err := e.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	if cached, err := e.store.GetExtraction(ctx, id); err == nil {
		return &parser.Result{
			Text:     cached.Text,
			Strategy: cached.Strategy,
			Format:   parser.Format(cached.Format),
		}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		e.logger.Warn("reading extraction cache", "id", id, "error", err)
	}

	res, err := e.extractor.ExtractText(ctx, doc.Path)
	if err != nil {
		if errors.Is(err, parser.ErrNoExtractableText) {
			if serr := e.store.UpdateDocumentStatus(ctx, id, store.StatusNoText); serr != nil {
				e.logger.Warn("updating document status", "id", id, "error", serr)
			}
		}
		return nil, err
	}

	e.cacheExtraction(ctx, id, res)
	return res, nil
}

// cacheExtraction stores res for the document and marks it extracted.
// A nil res is ignored.
func (e *engine) cacheExtraction(ctx context.Context, id int64, res *parser.Result) {
	if res == nil {
		return
	}
	if err := e.store.SaveExtraction(ctx, store.Extraction{
		DocumentID: id,
		Text:       res.Text,
		Strategy:   res.Strategy,
		Format:     string(res.Format),
	}); err != nil {
		e.logger.Warn("caching extraction", "id", id, "error", err)
	} else if err := e.store.UpdateDocumentStatus(ctx, id, store.StatusExtracted); err != nil {
		e.logger.Warn("updating document status", "id", id, "error", err)
	}
}

func (e *engine) Ask(ctx context.Context, id int64, question string) (*llm.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	res, err := e.Text(ctx, id)
	if err != nil {
		return nil, err
	}

	ans, err := e.answerer.Answer(ctx, llm.AnswerRequest{DocumentText: res.Text, Question: question})
	if err != nil {
		return nil, err
	}

	if err := e.store.LogQuestion(ctx, store.QuestionLog{
		DocumentID: id,
		Question:   question,
		Answer:     ans.Text,
		ModelUsed:  ans.Model,
		Attempts:   ans.Attempts,
		Truncated:  ans.Truncated,
	}); err != nil {
		e.logger.Warn("logging question", "id", id, "error", err)
	}
	return ans, nil
}

func (e *engine) Questions(ctx context.Context, id int64, limit int) ([]store.QuestionLog, error) {
	if _, err := e.store.GetDocument(ctx, id); err != nil {
		return nil, err
	}
	return e.store.ListQuestions(ctx, id, limit)
}

func (e *engine) Ping(ctx context.Context) error {
	return e.store.Ping(ctx)
}

func (e *engine) Close() error {
	return e.store.Close()
}

// save sniffs the upload, writes it to the file store and makes sure an
// unrecognized file is at least a readable DOCX package. The returned
// format is what the document will be recorded as. For an unrecognized
// file the extraction done to accept it is returned so it can be cached.
func (e *engine) save(ctx context.Context, req UploadRequest) (*store.SavedFile, parser.Format, *parser.Result, error) {
	if req.Body == nil {
		return nil, "", nil, ErrEmptyUpload
	}
	ext := strings.ToLower(filepath.Ext(req.Filename))

	br := bufio.NewReader(req.Body)
	head, _ := br.Peek(5)
	format := parser.SniffBytes(head, ext)

	saved, err := e.files.Save(br, ext)
	if err != nil {
		return nil, "", nil, fmt.Errorf("storing upload: %w", err)
	}
	if saved.Size == 0 {
		e.discard(saved.Path)
		return nil, "", nil, fmt.Errorf("%w: %s", ErrEmptyUpload, cleanFilename(req.Filename))
	}

	if format != parser.FormatUnknown {
		return saved, format, nil, nil
	}
	res, err := e.extractor.ExtractText(ctx, saved.Path)
	if err != nil {
		e.discard(saved.Path)
		if errors.Is(err, parser.ErrUnsupportedFormat) {
			return nil, "", nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(req.Filename))
		}
		return nil, "", nil, err
	}
	// Only the DOCX fallback can succeed for an unknown file.
	return saved, parser.FormatDOCX, res, nil
}

// conflictDetail names the document that already holds the content.
func (e *engine) conflictDetail(ctx context.Context, hash string, err error) error {
	if !errors.Is(err, store.ErrConflict) {
		return err
	}
	if existing, gerr := e.store.GetDocumentByHash(ctx, hash); gerr == nil {
		return fmt.Errorf("%w: same content as document %d", ErrDocumentExists, existing.ID)
	}
	return err
}

func (e *engine) discard(path string) {
	if err := e.files.Remove(path); err != nil {
		e.logger.Warn("removing stored file", "path", path, "error", err)
	}
}

func cleanFilename(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) {
		return "upload"
	}
	return base
}

func titleOrDefault(title, filename string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	base := cleanFilename(filename)
	if t := strings.TrimSuffix(base, filepath.Ext(base)); t != "" {
		return t
	}
	return "Untitled"
}
