package index

import (
	bleveindex "github.com/blevesearch/bleve_index_api"

	"github.com/mvnidx/mvnidx/internal/artifact"
	ierr "github.com/mvnidx/mvnidx/internal/errors"
)

// Searcher is a reference-counted point-in-time snapshot of the index. A
// searcher keeps observing the state it was acquired against even while
// the writer commits; the last release closes the underlying reader.
type Searcher struct {
	reader bleveindex.IndexReader
	refs   int
	stale  bool
}

// AcquireSearcher returns the current snapshot, opening a new reader only
// when the cached one has been invalidated by a write. Acquisition never
// blocks the writer beyond the context mutex.
func (c *Context) AcquireSearcher() (*Searcher, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ierr.InternalError("context is closed", nil)
	}

	if c.searcher == nil {
		ii, err := c.idx.Advanced()
		if err != nil {
			return nil, ierr.Wrap(ierr.ErrCodeInternal, err)
		}
		reader, err := ii.Reader()
		if err != nil {
			return nil, ierr.Wrap(ierr.ErrCodeInternal, err)
		}
		c.searcher = &Searcher{reader: reader, refs: 1}
	}
	c.searcher.refs++
	return c.searcher, nil
}

// ReleaseSearcher returns a searcher obtained from AcquireSearcher. The
// reader is closed once the last reference is gone and the snapshot is no
// longer current.
func (c *Context) ReleaseSearcher(s *Searcher) error {
	if s == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return s.release()
}

// release drops one reference. Caller holds c.mu.
func (s *Searcher) release() error {
	s.refs--
	if s.refs == 0 {
		return s.reader.Close()
	}
	return nil
}

// invalidateSearcherLocked drops the context's own reference to the cached
// snapshot after a write. Outstanding holders keep reading their snapshot
// until they release it. Caller holds c.mu.
func (c *Context) invalidateSearcherLocked() {
	if c.searcher == nil {
		return
	}
	c.searcher.stale = true
	_ = c.searcher.release()
	c.searcher = nil
}

// Record returns the stored record for a unique key as of the snapshot,
// nil when absent.
func (s *Searcher) Record(uinfo string) (*artifact.Record, error) {
	doc, err := s.reader.Document(uinfo)
	if err != nil {
		return nil, ierr.Wrap(ierr.ErrCodeInternal, err)
	}
	if doc == nil {
		return nil, nil
	}
	return documentToRecord(doc), nil
}

// Enumerate walks every record in the snapshot, descriptor excluded, in
// unspecified order. The callback returning an error stops the walk.
func (s *Searcher) Enumerate(fn func(rec *artifact.Record) error) error {
	ids, err := s.reader.DocIDReaderAll()
	if err != nil {
		return ierr.Wrap(ierr.ErrCodeInternal, err)
	}
	defer ids.Close()

	for {
		internalID, err := ids.Next()
		if err != nil {
			return ierr.Wrap(ierr.ErrCodeInternal, err)
		}
		if internalID == nil {
			return nil
		}

		extID, err := s.reader.ExternalID(internalID)
		if err != nil {
			return ierr.Wrap(ierr.ErrCodeInternal, err)
		}
		if extID == descriptorDocID {
			continue
		}

		doc, err := s.reader.Document(extID)
		if err != nil {
			return ierr.Wrap(ierr.ErrCodeInternal, err)
		}
		if doc == nil {
			continue
		}
		if err := fn(documentToRecord(doc)); err != nil {
			return err
		}
	}
}
