package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"docstore/internal/idgen"
	"docstore/internal/model"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600

	defaultMaxIDAttempts = 5
)

// errFound stops a directory walk once a match has been recorded.
var errFound = errors.New("found")

// LocalStore implements Storage on top of a directory in an afero filesystem.
// There is no lock: every operation re-reads the directory, so concurrent
// callers see whatever the filesystem shows at that moment.
type LocalStore struct {
	fs            afero.Fs
	root          string
	newID         func() string
	maxIDAttempts uint64
	logger        hclog.Logger

	teardownOnce sync.Once
	teardownErr  error
}

// Option configures a LocalStore.
type Option func(*LocalStore)

// WithIDGenerator replaces idgen.Generate, mostly for tests.
func WithIDGenerator(gen func() string) Option {
	return func(s *LocalStore) { s.newID = gen }
}

// WithLogger sets the logger used for teardown diagnostics.
func WithLogger(l hclog.Logger) Option {
	return func(s *LocalStore) { s.logger = l }
}

// WithMaxIDAttempts bounds how many IDs Create draws before giving up on collisions.
func WithMaxIDAttempts(n int) Option {
	return func(s *LocalStore) {
		if n > 0 {
			s.maxIDAttempts = uint64(n)
		}
	}
}

// NewLocal creates a store rooted at root. The root is fixed for the life of
// the store; call Provision before serving requests.
func NewLocal(fsys afero.Fs, root string, opts ...Option) *LocalStore {
	s := &LocalStore{
		fs:            fsys,
		root:          filepath.Clean(root),
		newID:         idgen.Generate,
		maxIDAttempts: defaultMaxIDAttempts,
		logger:        hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Storage = (*LocalStore)(nil)

// TempRoot allocates a fresh process-local directory to be used as a store root.
func TempRoot(fsys afero.Fs, prefix string) (string, error) {
	dir, err := afero.TempDir(fsys, "", prefix)
	if err != nil {
		return "", fmt.Errorf("%w: create temp root: %w", ErrIO, err)
	}
	return dir, nil
}

// Root returns the directory backing the store.
func (s *LocalStore) Root() string { return s.root }

// Provision creates the root directory. An existing root is adopted only when
// it is an empty directory, since Teardown deletes whatever lies under it.
func (s *LocalStore) Provision(_ context.Context) error {
	if err := s.fs.MkdirAll(filepath.Dir(s.root), dirPerm); err != nil {
		return fmt.Errorf("%w: provision %s: %w", ErrIO, s.root, err)
	}
	err := s.fs.Mkdir(s.root, dirPerm)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrExist):
		if err := s.checkAdoptable(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: provision %s: %w", ErrIO, s.root, err)
	}
	s.logger.Info("store provisioned", "root", s.root)
	return nil
}

func (s *LocalStore) checkAdoptable() error {
	isDir, err := afero.IsDir(s.fs, s.root)
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", ErrIO, s.root, err)
	}
	if !isDir {
		return fmt.Errorf("%w: %s is not a directory", ErrRootInUse, s.root)
	}
	empty, err := afero.IsEmpty(s.fs, s.root)
	if err != nil {
		return fmt.Errorf("%w: list %s: %w", ErrIO, s.root, err)
	}
	if !empty {
		return fmt.Errorf("%w: %s is not empty", ErrRootInUse, s.root)
	}
	return nil
}

// Ping reports whether the root directory is still present.
func (s *LocalStore) Ping(_ context.Context) error {
	fi, err := s.fs.Stat(s.root)
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", ErrIO, s.root, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrIO, s.root)
	}
	return nil
}

// Create stores r under a new ID. IDs already present in the root, under any
// extension, are skipped and another one is drawn.
func (s *LocalStore) Create(ctx context.Context, r io.Reader, originalFilename string) (model.Document, error) {
	ext, err := extensionOf(originalFilename)
	if err != nil {
		return model.Document{}, err
	}

	var (
		attempts uint64
		created  afero.File
	)
	b := backoff.WithMaxRetries(&backoff.ZeroBackOff{}, s.maxIDAttempts-1)
	path, err := backoff.RetryWithData(func() (string, error) {
		attempts++
		id := s.newID()
		if _, err := s.resolve(ctx, id); err == nil {
			return "", errIDTaken
		} else if !errors.Is(err, ErrNotFound) {
			return "", backoff.Permanent(err)
		}
		path := filepath.Join(s.root, id+ext)
		f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
		if err != nil {
			if errors.Is(err, fs.ErrExist) {
				return "", errIDTaken
			}
			return "", backoff.Permanent(fmt.Errorf("%w: create %s: %w", ErrIO, id+ext, err))
		}
		created = f
		return path, nil
	}, b)
	if err != nil {
		if errors.Is(err, errIDTaken) {
			return model.Document{}, fmt.Errorf("%w after %d attempts", ErrIDCollision, attempts)
		}
		return model.Document{}, err
	}

	f := created
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(path)
		return model.Document{}, fmt.Errorf("%w: write %s: %w", ErrIO, filepath.Base(path), err)
	}

	return s.describe(path, n)
}

// errIDTaken marks a retryable collision inside Create.
var errIDTaken = errors.New("id already in use")

// Open resolves id and opens the matching file for reading.
func (s *LocalStore) Open(ctx context.Context, id string) (io.ReadCloser, model.Document, error) {
	path, err := s.resolve(ctx, id)
	if err != nil {
		return nil, model.Document{}, err
	}
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, model.Document{}, fmt.Errorf("%w: open %s: %w", ErrIO, filepath.Base(path), err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, model.Document{}, fmt.Errorf("%w: stat %s: %w", ErrIO, filepath.Base(path), err)
	}
	return f, documentFor(path, fi), nil
}

// Update replaces the content stored for id. An unknown id is reported before
// the filename is looked at; a different extension is rejected before anything
// is written.
func (s *LocalStore) Update(ctx context.Context, id string, r io.Reader, originalFilename string) (model.Document, error) {
	path, err := s.resolve(ctx, id)
	if err != nil {
		return model.Document{}, err
	}
	ext, err := extensionOf(originalFilename)
	if err != nil {
		return model.Document{}, err
	}
	if stored := filepath.Ext(path); !strings.EqualFold(stored, ext) {
		return model.Document{}, fmt.Errorf("%w: stored %q, got %q", ErrExtensionMismatch, stored, ext)
	}

	// No O_CREATE: a file deleted since resolve is reported, not recreated.
	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return model.Document{}, fmt.Errorf("%w: open %s for write: %w", ErrIO, filepath.Base(path), err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return model.Document{}, fmt.Errorf("%w: write %s: %w", ErrIO, filepath.Base(path), err)
	}
	return s.describe(path, n)
}

// Delete removes the file stored for id.
func (s *LocalStore) Delete(ctx context.Context, id string) error {
	path, err := s.resolve(ctx, id)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(path); err != nil {
		return fmt.Errorf("%w: remove %s: %w", ErrIO, filepath.Base(path), err)
	}
	return nil
}

// Teardown deletes every regular file directly under the root and then the
// root itself. A failure on one file is logged and does not stop the rest.
// Only the first call does any work; later calls return its result.
func (s *LocalStore) Teardown(_ context.Context) error {
	s.teardownOnce.Do(func() {
		s.teardownErr = s.teardown()
	})
	return s.teardownErr
}

func (s *LocalStore) teardown() error {
	var result *multierror.Error

	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		s.logger.Error("unable to list store root", "root", s.root, "error", err)
		result = multierror.Append(result, fmt.Errorf("%w: list %s: %w", ErrIO, s.root, err))
	}

	removed := 0
	for _, fi := range entries {
		if !fi.Mode().IsRegular() {
			continue
		}
		path := filepath.Join(s.root, fi.Name())
		if err := s.fs.Remove(path); err != nil {
			s.logger.Error("unable to delete file", "file", path, "error", err)
			result = multierror.Append(result, fmt.Errorf("%w: remove %s: %w", ErrIO, fi.Name(), err))
			continue
		}
		removed++
	}

	if err := s.fs.Remove(s.root); err != nil {
		s.logger.Error("unable to delete store root", "root", s.root, "error", err)
		result = multierror.Append(result, fmt.Errorf("%w: remove %s: %w", ErrIO, s.root, err))
	}

	s.logger.Info("store torn down", "root", s.root, "files_removed", removed)
	return result.ErrorOrNil()
}

// resolve walks the root for the regular file whose name without its final
// extension equals id. The walk is in lexical order, so with several matches
// the same one wins for an unchanged directory.
func (s *LocalStore) resolve(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", ErrNotFound
	}

	var match string
	err := afero.Walk(s.fs, s.root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			// Another caller removed this entry after it was listed.
			if path != s.root && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		if stem, ok := stemOf(fi.Name()); ok && stem == id {
			match = path
			return errFound
		}
		return nil
	})
	switch {
	case errors.Is(err, errFound):
		return match, nil
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: scan %s: %w", ErrIO, s.root, err)
	default:
		return "", ErrNotFound
	}
}

func (s *LocalStore) describe(path string, written int64) (model.Document, error) {
	fi, err := s.fs.Stat(path)
	if err != nil {
		// The write succeeded; a concurrent delete may have removed it since.
		name := filepath.Base(path)
		stem, _ := stemOf(name)
		return model.Document{ID: stem, Filename: name, Extension: filepath.Ext(name), Size: written}, nil
	}
	return documentFor(path, fi), nil
}

func documentFor(path string, fi os.FileInfo) model.Document {
	name := filepath.Base(path)
	stem, _ := stemOf(name)
	return model.Document{
		ID:        stem,
		Filename:  name,
		Extension: filepath.Ext(name),
		Size:      fi.Size(),
		ModTime:   fi.ModTime(),
	}
}

// stemOf strips the final extension from a file name. Names without a dot
// are not documents.
func stemOf(name string) (string, bool) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return "", false
	}
	return name[:i], true
}

// extensionOf returns the suffix of filename from its last dot, dot included.
// Suffixes that could escape the root or break a quoted header value are refused.
func extensionOf(filename string) (string, error) {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 {
		return "", fmt.Errorf("%w: %q has no extension", ErrInvalidFilename, filename)
	}
	ext := filename[i:]
	if strings.ContainsAny(ext, `/\"`) || strings.IndexFunc(ext, unicode.IsControl) >= 0 {
		return "", fmt.Errorf("%w: %q has no usable extension", ErrInvalidFilename, filename)
	}
	return ext, nil
}
