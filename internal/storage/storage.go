package storage

import (
	"context"
	"errors"
)

// ErrNotFound indicates no credential is stored.
var ErrNotFound = errors.New("credential not found")

// CredentialStore persists the single bearer credential across restarts.
type CredentialStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	// Remove deletes the credential. Removing a missing credential is not an error.
	Remove(ctx context.Context) error
}

// Watcher is implemented by stores that can report changes made by other processes.
type Watcher interface {
	// Watch calls onChange after the stored credential changes. It returns
	// once the watch is established and stops when ctx is done.
	Watch(ctx context.Context, onChange func()) error
}
