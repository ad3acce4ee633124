// Package index provides the indexing context: the unit that binds one
// repository directory to one on-disk search index, guarded by a single
// writer lock. All record reads and writes go through a Context.
package index

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/gofrs/flock"

	"github.com/mvnidx/mvnidx/internal/artifact"
	"github.com/mvnidx/mvnidx/internal/creator"
	ierr "github.com/mvnidx/mvnidx/internal/errors"
)

const (
	// bleveDirName is the subdirectory of the index dir holding the search
	// index segments.
	bleveDirName = "bleve"

	// timestampFileName is the sidecar recording the context timestamp.
	timestampFileName = "timestamp"

	// lockFileName is the single-writer lock file.
	lockFileName = "write.lock"

	// descriptorDocID is the reserved document id of the descriptor record.
	descriptorDocID = "DESCRIPTOR"

	// FormatVersion is the index format version published in the descriptor
	// record.
	FormatVersion = "1.0"
)

// Options configures a Context.
type Options struct {
	// ID is the context identifier, published in the descriptor.
	ID string
	// RepositoryID names the repository this index describes.
	RepositoryID string
	// RepositoryDir is the root of the scanned repository layout.
	RepositoryDir string
	// IndexDir is where the index and its sidecars live.
	IndexDir string
	// Creators is the ordered creator set. Defaults to creator.Default().
	Creators []creator.IndexCreator
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Context is an indexing context over one repository.
type Context struct {
	id            string
	repositoryID  string
	repositoryDir string
	indexDir      string
	creators      []creator.IndexCreator
	logger        *slog.Logger

	lock *flock.Flock

	mu        sync.RWMutex
	idx       bleve.Index
	searcher  *Searcher
	timestamp time.Time
	closed    bool
	recovered bool
}

// Open creates or opens the indexing context. The single-writer lock is
// obtained without blocking; a held lock fails the open. A structurally
// corrupted index is cleared and recreated empty, which forces the next
// update to behave like a full scan.
func Open(opts Options) (*Context, error) {
	if opts.ID == "" {
		return nil, ierr.InvalidArgumentError("context id must not be empty", nil)
	}
	if opts.RepositoryDir == "" || opts.IndexDir == "" {
		return nil, ierr.InvalidArgumentError("repository and index directories must be set", nil)
	}
	st, err := os.Stat(opts.RepositoryDir)
	if err != nil {
		return nil, ierr.New(ierr.ErrCodeInvalidPath, "repository directory not accessible", err).
			WithDetail("path", opts.RepositoryDir)
	}
	if !st.IsDir() {
		return nil, ierr.New(ierr.ErrCodeInvalidPath, "repository path is not a directory", nil).
			WithDetail("path", opts.RepositoryDir)
	}

	if err := os.MkdirAll(opts.IndexDir, 0o755); err != nil {
		return nil, ierr.Wrap(ierr.ErrCodeWriteFailed, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	creators := opts.Creators
	if len(creators) == 0 {
		creators = creator.Default()
	}

	lock := flock.New(filepath.Join(opts.IndexDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, ierr.LockError("obtain index write lock", err).
			WithDetail("path", lock.Path())
	}
	if !locked {
		return nil, ierr.LockError("index is locked by another writer", nil).
			WithDetail("path", lock.Path())
	}

	c := &Context{
		id:            opts.ID,
		repositoryID:  opts.RepositoryID,
		repositoryDir: opts.RepositoryDir,
		indexDir:      opts.IndexDir,
		creators:      creators,
		logger:        logger,
		lock:          lock,
	}

	if err := c.openIndex(); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	c.timestamp = c.readTimestamp()

	return c, nil
}

// openIndex opens the search index, clearing and recreating it when it is
// structurally corrupted.
func (c *Context) openIndex() error {
	blevePath := filepath.Join(c.indexDir, bleveDirName)

	if validErr := validateIndexIntegrity(blevePath); validErr != nil {
		c.logger.Warn("index_corrupted",
			slog.String("code", ierr.ErrCodeCorruptIndex),
			slog.String("path", blevePath),
			slog.String("error", validErr.Error()))
		if removeErr := os.RemoveAll(blevePath); removeErr != nil {
			return ierr.CorruptIndexError("corrupted index cannot be cleared", removeErr).
				WithDetail("path", blevePath)
		}
		c.clearTimestamp()
		c.recovered = true
		c.logger.Info("index_cleared", slog.String("path", blevePath))
	}

	idx, err := bleve.Open(blevePath)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = c.createIndex(blevePath)
	} else if err != nil && isCorruptionError(err) {
		c.logger.Warn("index_open_failed",
			slog.String("code", ierr.ErrCodeCorruptIndex),
			slog.String("path", blevePath),
			slog.String("error", err.Error()))
		if removeErr := os.RemoveAll(blevePath); removeErr != nil {
			return ierr.CorruptIndexError("corrupted index cannot be cleared", removeErr).
				WithDetail("path", blevePath)
		}
		c.clearTimestamp()
		c.recovered = true
		idx, err = c.createIndex(blevePath)
	}
	if err != nil {
		return ierr.Wrap(ierr.ErrCodeCorruptIndex, err)
	}

	c.idx = idx
	return nil
}

// createIndex creates a fresh index holding only the descriptor record.
func (c *Context) createIndex(path string) (bleve.Index, error) {
	im, err := createRecordMapping()
	if err != nil {
		return nil, err
	}
	idx, err := bleve.New(path, im)
	if err != nil {
		return nil, err
	}

	rec := artifact.NewDescriptorRecord(FormatVersion, c.id)
	if err := idx.Index(descriptorDocID, recordToDocument(rec)); err != nil {
		_ = idx.Close()
		return nil, err
	}
	return idx, nil
}

// validateIndexIntegrity checks the on-disk index before opening. Returns
// nil for a missing index, which will be created.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty")
	}
	return nil
}

// isCorruptionError checks if an open error indicates index corruption.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	if err == bleve.ErrorIndexMetaCorrupt {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "unexpected end of JSON") ||
		strings.Contains(s, "error parsing mapping JSON") ||
		strings.Contains(s, "failed to load segment") ||
		strings.Contains(s, "error opening bolt")
}

// ID returns the context identifier.
func (c *Context) ID() string { return c.id }

// RepositoryID returns the repository identifier.
func (c *Context) RepositoryID() string { return c.repositoryID }

// RepositoryDir returns the repository root directory.
func (c *Context) RepositoryDir() string { return c.repositoryDir }

// IndexDir returns the index directory.
func (c *Context) IndexDir() string { return c.indexDir }

// Creators returns the ordered creator set.
func (c *Context) Creators() []creator.IndexCreator { return c.creators }

// RecoveredFromCorruption reports whether the on-disk index was found
// corrupted at open time and cleared. Callers use this to flag that the
// next publication is a full regeneration.
func (c *Context) RecoveredFromCorruption() bool { return c.recovered }

// Timestamp returns the context timestamp, zero when never set.
func (c *Context) Timestamp() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timestamp
}

// UpdateTimestamp sets the context timestamp and persists it. The sidecar
// is replaced via temp file and rename so readers never observe a partial
// write.
func (c *Context) UpdateTimestamp(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timestamp = t

	data := strconv.FormatInt(t.UnixMilli(), 10) + "\n"
	tmp, err := os.CreateTemp(c.indexDir, timestampFileName+".tmp-*")
	if err != nil {
		return ierr.Wrap(ierr.ErrCodeWriteFailed, err)
	}
	if _, err := tmp.WriteString(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return ierr.Wrap(ierr.ErrCodeWriteFailed, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return ierr.Wrap(ierr.ErrCodeWriteFailed, err)
	}
	if err := os.Rename(tmp.Name(), c.timestampPath()); err != nil {
		os.Remove(tmp.Name())
		return ierr.Wrap(ierr.ErrCodeWriteFailed, err)
	}
	return nil
}

func (c *Context) timestampPath() string {
	return filepath.Join(c.indexDir, timestampFileName)
}

func (c *Context) readTimestamp() time.Time {
	data, err := os.ReadFile(c.timestampPath())
	if err != nil {
		return time.Time{}
	}
	millis, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(millis).UTC()
}

func (c *Context) clearTimestamp() {
	c.timestamp = time.Time{}
	_ = os.Remove(c.timestampPath())
}

// DocCount returns the number of documents, descriptor included.
func (c *Context) DocCount() (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return 0, ierr.InternalError("context is closed", nil)
	}
	return c.idx.DocCount()
}

// Purge drops every record and recreates the empty index with a fresh
// descriptor. The timestamp is cleared so the next update runs full.
func (c *Context) Purge() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ierr.InternalError("context is closed", nil)
	}

	c.invalidateSearcherLocked()
	if err := c.idx.Close(); err != nil {
		return ierr.Wrap(ierr.ErrCodeInternal, err)
	}
	blevePath := filepath.Join(c.indexDir, bleveDirName)
	if err := os.RemoveAll(blevePath); err != nil {
		return ierr.Wrap(ierr.ErrCodeWriteFailed, err)
	}
	c.clearTimestamp()

	idx, err := c.createIndex(blevePath)
	if err != nil {
		return ierr.Wrap(ierr.ErrCodeInternal, err)
	}
	c.idx = idx
	return nil
}

// Optimize requests segment housekeeping. The underlying store merges in
// the background, so this only logs the request.
func (c *Context) Optimize() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ierr.InternalError("context is closed", nil)
	}
	c.logger.Debug("optimize_requested", slog.String("context", c.id))
	return nil
}

// Close closes the index and releases the writer lock.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.invalidateSearcherLocked()

	err := c.idx.Close()
	if unlockErr := c.lock.Unlock(); err == nil {
		err = unlockErr
	}
	if err != nil {
		return ierr.Wrap(ierr.ErrCodeInternal, err)
	}
	return nil
}
