package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileStore keeps uploaded document bytes on disk under random names.
type FileStore struct {
	dir string
}

// SavedFile describes a file written by Save.
type SavedFile struct {
	Path string
	Size int64
	Hash string // hex sha256 of the content
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the storage directory.
func (fs *FileStore) Dir() string { return fs.dir }

// Save copies r into a new file named <uuid><ext>. The file is synced
// before Save returns so extraction never reads a partial write.
func (fs *FileStore) Save(r io.Reader, ext string) (*SavedFile, error) {
	ext = strings.ToLower(ext)
	path := filepath.Join(fs.dir, uuid.NewString()+ext)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}

	h := sha256.New()
	n, err := io.Copy(f, io.TeeReader(r, h))
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	return &SavedFile{Path: path, Size: n, Hash: hex.EncodeToString(h.Sum(nil))}, nil
}

// Remove deletes a stored file. A missing file is not an error.
func (fs *FileStore) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing file: %w", err)
	}
	return nil
}
