package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when no row matches the given id.
	ErrNotFound = errors.New("docqa: not found")

	// ErrConflict is returned when a write violates a unique constraint,
	// e.g. uploading the same content twice.
	ErrConflict = errors.New("docqa: conflict")
)

// Document statuses.
const (
	StatusStored    = "stored"
	StatusExtracted = "extracted"
	StatusNoText    = "no_text"
)

// Document represents a row in the documents table.
type Document struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Filename    string `json:"filename"`
	Path        string `json:"-"`
	Format      string `json:"format"`
	ContentHash string `json:"content_hash"`
	Size        int64  `json:"size"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Extraction is the cached text of a document.
type Extraction struct {
	DocumentID int64  `json:"document_id"`
	Text       string `json:"text"`
	Strategy   string `json:"strategy"`
	Format     string `json:"format"`
	CreatedAt  string `json:"created_at"`
}

// QuestionLog represents a row in the question_log table.
type QuestionLog struct {
	ID         int64  `json:"id"`
	DocumentID int64  `json:"document_id"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	ModelUsed  string `json:"model_used"`
	Attempts   int    `json:"attempts"`
	Truncated  bool   `json:"truncated"`
	CreatedAt  string `json:"created_at"`
}

// ListOptions pages and filters ListDocuments.
type ListOptions struct {
	Limit  int
	Offset int
	Format string
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Store wraps the SQLite database holding the document registry.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at dbPath and brings the schema
// up to date.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Document operations ---

const documentColumns = `id, title, filename, path, format, content_hash, size, status, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	d := &Document{}
	err := row.Scan(&d.ID, &d.Title, &d.Filename, &d.Path, &d.Format,
		&d.ContentHash, &d.Size, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// CreateDocument inserts a document and returns its id.
func (s *Store) CreateDocument(ctx context.Context, doc Document) (int64, error) {
	if doc.Status == "" {
		doc.Status = StatusStored
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (title, filename, path, format, content_hash, size, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, doc.Title, doc.Filename, doc.Path, doc.Format, doc.ContentHash, doc.Size, doc.Status)
	if err != nil {
		return 0, mapError(err)
	}
	return res.LastInsertId()
}

// GetDocument retrieves a document by id.
func (s *Store) GetDocument(ctx context.Context, id int64) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	d, err := scanDocument(row)
	if err != nil {
		return nil, mapError(err)
	}
	return d, nil
}

// GetDocumentByHash retrieves the document holding the given content.
func (s *Store) GetDocumentByHash(ctx context.Context, hash string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE content_hash = ?", hash)
	d, err := scanDocument(row)
	if err != nil {
		return nil, mapError(err)
	}
	return d, nil
}

// ListDocuments returns one page of documents, newest first, plus the
// total number of documents matching the filter.
func (s *Store) ListDocuments(ctx context.Context, opts ListOptions) ([]Document, int, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}
	if opts.Limit > MaxListLimit {
		opts.Limit = MaxListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	var (
		where string
		args  []any
	)
	if opts.Format != "" {
		where = " WHERE format = ?"
		args = append(args, strings.ToLower(opts.Format))
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting documents: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents"+where+
			" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, *d)
	}
	return docs, total, rows.Err()
}

// UpdateDocument overwrites the mutable fields of doc.ID. Any cached
// extraction is dropped because the file may have changed.
func (s *Store) UpdateDocument(ctx context.Context, doc Document) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE documents SET
				title = ?, filename = ?, path = ?, format = ?,
				content_hash = ?, size = ?, status = ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, doc.Title, doc.Filename, doc.Path, doc.Format,
			doc.ContentHash, doc.Size, doc.Status, doc.ID)
		if err != nil {
			return mapError(err)
		}
		if err := requireRow(res); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM extractions WHERE document_id = ?", doc.ID)
		return err
	})
}

// UpdateDocumentStatus updates just the status field.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		status, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteDocument removes a document. Its extraction and question log
// rows go with it.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// --- Extraction cache ---

// SaveExtraction stores or replaces the extracted text of a document.
func (s *Store) SaveExtraction(ctx context.Context, e Extraction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO extractions (document_id, text, strategy, format)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			text = excluded.text,
			strategy = excluded.strategy,
			format = excluded.format,
			created_at = CURRENT_TIMESTAMP
	`, e.DocumentID, e.Text, e.Strategy, e.Format)
	return mapError(err)
}

// GetExtraction returns the cached text of a document.
func (s *Store) GetExtraction(ctx context.Context, documentID int64) (*Extraction, error) {
	e := &Extraction{}
	err := s.db.QueryRowContext(ctx, `
		SELECT document_id, text, strategy, format, created_at
		FROM extractions WHERE document_id = ?
	`, documentID).Scan(&e.DocumentID, &e.Text, &e.Strategy, &e.Format, &e.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return e, nil
}

// --- Question log ---

// LogQuestion writes an entry to the question audit log.
func (s *Store) LogQuestion(ctx context.Context, q QuestionLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO question_log (document_id, question, answer, model_used, attempts, truncated)
		VALUES (?, ?, ?, ?, ?, ?)
	`, q.DocumentID, q.Question, q.Answer, q.ModelUsed, q.Attempts, q.Truncated)
	return mapError(err)
}

// ListQuestions returns the most recent questions asked about a document.
func (s *Store) ListQuestions(ctx context.Context, documentID int64, limit int) ([]QuestionLog, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, question, COALESCE(answer, ''), COALESCE(model_used, ''),
			attempts, truncated, created_at
		FROM question_log WHERE document_id = ?
		ORDER BY id DESC LIMIT ?
	`, documentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []QuestionLog{}
	for rows.Next() {
		var q QuestionLog
		if err := rows.Scan(&q.ID, &q.DocumentID, &q.Question, &q.Answer, &q.ModelUsed,
			&q.Attempts, &q.Truncated, &q.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, q)
	}
	return logs, rows.Err()
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// mapError translates driver errors into the package sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var se sqlite3.Error
	if errors.As(err, &se) &&
		(se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
