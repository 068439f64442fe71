package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownDocument indicates an update against an id that is not present.
var ErrUnknownDocument = errors.New("store: unknown document id")

// Document is a single record returned from a collection scan. Body holds the
// decoded fields and Raw the exact persisted JSON so callers that depend on
// key order (the journal codec) can re-derive it from the token stream.
type Document struct {
	ID   string
	Body map[string]any
	Raw  []byte
}

// Store is the full adapter contract against the external document store.
// The core issues no queries beyond these three primitives.
type Store interface {
	InsertOne(ctx context.Context, collection string, doc map[string]any) (string, error)
	Find(ctx context.Context, collection string) ([]Document, error)
	UpdateOne(ctx context.Context, collection string, id string, doc map[string]any, upsert bool) (string, error)
}

// StorageError wraps an adapter failure. The core never retries; the error
// propagates to the caller as-is.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func newStorageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
