package credstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/ErlanBelekov/safejob-auth/internal/domain"
	"github.com/ErlanBelekov/safejob-auth/internal/metrics"
)

const fileFormatVersion = 1

type fileDocument struct {
	Version    int                `json:"version"`
	Credential *domain.Credential `json:"credential"`
}

// FileStore persists the credential as a JSON document readable only by the
// current user. Writes go through a temp file and rename so a reader never
// sees a half-written document.
type FileStore struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

func NewFileStore(path string, logger *slog.Logger) *FileStore {
	return &FileStore{
		path:   filepath.Clean(path),
		logger: logger.With("component", "credstore", "path", path),
	}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Read(ctx context.Context) (*domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read credential: %v", domain.ErrStorage, err)
	}

	cred, err := decode(raw)
	if err != nil {
		metrics.CredentialCorruptTotal.Inc()
		s.logger.WarnContext(ctx, "discarding unreadable credential", "error", err)
		if rmErr := s.remove(); rmErr != nil {
			s.logger.ErrorContext(ctx, "clear corrupted credential", "error", rmErr)
		}
		return nil, nil
	}
	return cred, nil
}

func (s *FileStore) Write(_ context.Context, cred *domain.Credential) error {
	if err := cred.Validate(); err != nil {
		return err
	}

	raw, err := json.Marshal(fileDocument{Version: fileFormatVersion, Credential: cred})
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: create dir: %v", domain.ErrStorage, err)
	}

	tmp, err := os.CreateTemp(dir, ".credential-*")
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", domain.ErrStorage, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write temp: %v", domain.ErrStorage, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: sync temp: %v", domain.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp: %v", domain.ErrStorage, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: replace credential: %v", domain.ErrStorage, err)
	}
	return nil
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.remove(); err != nil {
		return fmt.Errorf("%w: remove credential: %v", domain.ErrStorage, err)
	}
	return nil
}

func (s *FileStore) remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func decode(raw []byte) (*domain.Credential, error) {
	var doc fileDocument
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if doc.Version != fileFormatVersion {
		return nil, fmt.Errorf("unsupported credential format version %d", doc.Version)
	}
	if err := doc.Credential.Validate(); err != nil {
		return nil, err
	}
	return doc.Credential, nil
}
