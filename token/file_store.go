package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// FileStore keeps the token record as an indented JSON document at a fixed path.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) (*Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		log.Ctx(ctx).Err(err).Str("path", s.path).Msg("Failed to read token file")
		return nil, nil
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Ctx(ctx).Err(err).Str("path", s.path).Msg("Failed to parse token file")
		return nil, nil
	}
	if rec.AccessToken == "" {
		log.Ctx(ctx).Warn().Str("path", s.path).Msg("Token file has no access token, ignoring it")
		return nil, nil
	}
	return &rec, nil
}

// Save replaces the stored record. The new document is written to a sibling temp file and
// renamed into place so the previous record stays readable if the write fails.
func (s *FileStore) Save(ctx context.Context, record *Record) error {
	if record == nil {
		return errors.New("[FileStore Save] record cannot be nil")
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("[FileStore Save] marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("[FileStore Save] mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("[FileStore Save] create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("[FileStore Save] write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("[FileStore Save] sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("[FileStore Save] close: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("[FileStore Save] chmod: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("[FileStore Save] rename: %w", err)
	}

	log.Ctx(ctx).Info().Str("path", s.path).Msg("Saved tokens")
	return nil
}
