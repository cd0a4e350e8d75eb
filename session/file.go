package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// FileStore keeps the session in a JSON object on disk, one entry per
// persisted key. Writes go through a lock file and an atomic rename.
type FileStore struct {
	path string
	log  *zap.SugaredLogger
}

// NewFileStore returns a store backed by the file at path. A nil logger
// disables logging.
func NewFileStore(path string, log *zap.SugaredLogger) *FileStore {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &FileStore{path: path, log: log}
}

// Path returns the session file location.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Get(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	return decodeValues(values), nil
}

func (f *FileStore) Set(ctx context.Context, s Session) error {
	values, err := encodeValues(s)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}

	lock, err := acquireFileLock(ctx, f.path)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer f.release(lock)

	tempFile := f.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempFile, f.path); err != nil {
		if removeErr := os.Remove(tempFile); removeErr != nil {
			return fmt.Errorf(
				"failed to rename temp file: %v; additionally failed to remove temp file: %w",
				err,
				removeErr,
			)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	f.log.Debugw("session saved", "path", f.path)
	return nil
}

func (f *FileStore) Clear(ctx context.Context) error {
	lock, err := acquireFileLock(ctx, f.path)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer f.release(lock)

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}

	f.log.Debugw("session cleared", "path", f.path)
	return nil
}

func (f *FileStore) release(lock *fileLock) {
	if err := lock.release(); err != nil {
		f.log.Warnw("failed to release lock", "path", f.path, "error", err)
	}
}
