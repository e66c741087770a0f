// Package storage owns the document files on disk.
// Documents are plain files named "{id}{extension}" in a single root directory;
// the directory listing is the only index.
package storage

import (
	"context"
	"errors"
	"io"

	"docstore/internal/model"
)

var (
	// ErrNotFound is returned when no stored file matches an ID.
	ErrNotFound = errors.New("document not found")
	// ErrExtensionMismatch is returned when an update carries a different extension than the stored file.
	ErrExtensionMismatch = errors.New("extension mismatch")
	// ErrInvalidFilename is returned when an uploaded filename has no usable extension.
	ErrInvalidFilename = errors.New("invalid filename")
	// ErrIDCollision is returned when no unused ID could be drawn within the attempt budget.
	ErrIDCollision = errors.New("could not allocate an unused document id")
	// ErrRootInUse is returned by Provision when the root already holds entries it did not create.
	ErrRootInUse = errors.New("store root already in use")
	// ErrIO wraps any underlying filesystem failure.
	ErrIO = errors.New("storage io failure")
)

// Storage is the document store consumed by the service layer.
// Implementations must be safe for concurrent use by multiple goroutines.
type Storage interface {
	// Create writes r to a new file named after a freshly generated ID and the
	// extension of originalFilename.
	Create(ctx context.Context, r io.Reader, originalFilename string) (model.Document, error)
	// Open resolves id and returns its content positioned at offset 0. The caller closes it.
	Open(ctx context.Context, id string) (io.ReadCloser, model.Document, error)
	// Update overwrites the content of id. The extension of originalFilename must
	// match the stored one, ignoring case.
	Update(ctx context.Context, id string, r io.Reader, originalFilename string) (model.Document, error)
	// Delete removes the file stored for id.
	Delete(ctx context.Context, id string) error
}
