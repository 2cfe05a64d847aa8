package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/hongminglow/all-in-dash/internal/storage"
)

// Ensure Store satisfies the storage interfaces at compile time.
var (
	_ storage.CredentialStore = (*Store)(nil)
	_ storage.Watcher         = (*Store)(nil)
)

// ErrWatchUnsupported is returned by Watch on filesystems fsnotify cannot observe.
var ErrWatchUnsupported = errors.New("credential watch needs the OS filesystem")

// Store keeps the credential in a single file.
type Store struct {
	fs     afero.Fs
	path   string
	logger *zap.Logger
}

// NewStore creates a Store writing to path on fs.
func NewStore(fs afero.Fs, path string, logger *zap.Logger) *Store {
	return &Store{fs: fs, path: path, logger: logger}
}

// Path returns the credential file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored credential or storage.ErrNotFound.
func (s *Store) Load(ctx context.Context) (string, error) {
	raw, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("read credential: %w", err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", storage.ErrNotFound
	}
	return token, nil
}

// Save writes the credential with owner-only permissions.
func (s *Store) Save(ctx context.Context, token string) error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write credential: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("replace credential: %w", err)
	}
	return nil
}

// Remove deletes the credential file.
func (s *Store) Remove(ctx context.Context) error {
	if err := s.fs.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credential: %w", err)
	}
	return nil
}

// Watch observes the credential's directory and calls onChange for events on
// the credential file. Only works when the store is backed by afero.OsFs.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	if _, ok := s.fs.(*afero.OsFs); !ok {
		return ErrWatchUnsupported
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file system watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	go s.watchLoop(ctx, watcher, onChange)
	s.logger.Debug("watching credential file", zap.String("path", s.path))
	return nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, onChange func()) {
	defer watcher.Close()
	target := filepath.Clean(s.path)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				s.logger.Debug("credential file changed", zap.String("op", event.Op.String()))
				onChange()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("credential watcher error", zap.Error(err))
		}
	}
}
