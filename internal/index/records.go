package index

import (
	"strconv"
	"time"

	bleveindex "github.com/blevesearch/bleve_index_api"

	"github.com/mvnidx/mvnidx/internal/artifact"
	ierr "github.com/mvnidx/mvnidx/internal/errors"
)

// nowMillis supplies record modification times in epoch milliseconds.
var nowMillis = func() int64 { return time.Now().UnixMilli() }

// AddArtifactContext runs the creator chain over the artifact and writes the
// resulting record. The record's modification time is the insertion wall
// clock, not the artifact file time.
func (c *Context) AddArtifactContext(ac *artifact.Context) error {
	for _, cr := range c.creators {
		if err := cr.Populate(ac); err != nil {
			ac.AddError(err)
		}
	}

	rec := artifact.NewRecord()
	rec.Set(artifact.FieldUInfo, ac.Info.UInfo())
	for _, cr := range c.creators {
		cr.UpdateRecord(ac.Info, rec)
	}
	rec.Set(artifact.FieldLastModified, strconv.FormatInt(nowMillis(), 10))

	return c.AddRecord(rec)
}

// DeleteArtifactContext replaces the artifact's record with a tombstone so
// incremental consumers observe the deletion.
func (c *Context) DeleteArtifactContext(ac *artifact.Context) error {
	return c.DeleteUInfo(ac.Info.UInfo())
}

// DeleteUInfo writes a tombstone for the given unique key.
func (c *Context) DeleteUInfo(uinfo string) error {
	rec := artifact.NewRecord()
	rec.Set(artifact.FieldDeleted, uinfo)
	rec.Set(artifact.FieldLastModified, strconv.FormatInt(nowMillis(), 10))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ierr.InternalError("context is closed", nil)
	}
	if err := c.idx.Index(uinfo, recordToDocument(rec)); err != nil {
		return ierr.Wrap(ierr.ErrCodeWriteFailed, err)
	}
	c.invalidateSearcherLocked()
	return nil
}

// RemoveUInfo physically removes the document for a unique key, without
// leaving a tombstone.
func (c *Context) RemoveUInfo(uinfo string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ierr.InternalError("context is closed", nil)
	}
	if err := c.idx.Delete(uinfo); err != nil {
		return ierr.Wrap(ierr.ErrCodeWriteFailed, err)
	}
	c.invalidateSearcherLocked()
	return nil
}

// AddRecord writes one record keyed by its unique key. Descriptor records
// and records without a key are rejected.
func (c *Context) AddRecord(rec *artifact.Record) error {
	if rec.IsDescriptor() {
		return ierr.InvalidArgumentError("descriptor records are managed by the context", nil)
	}
	docID := rec.UInfo()
	if docID == "" {
		if v, ok := rec.Get(artifact.FieldDeleted.Key); ok {
			docID = v
		}
	}
	if docID == "" {
		return ierr.InvalidArgumentError("record has no unique key", nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ierr.InternalError("context is closed", nil)
	}
	if err := c.idx.Index(docID, recordToDocument(rec)); err != nil {
		return ierr.Wrap(ierr.ErrCodeWriteFailed, err)
	}
	c.invalidateSearcherLocked()
	return nil
}

// AddRecords writes records in one batch.
func (c *Context) AddRecords(recs []*artifact.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ierr.InternalError("context is closed", nil)
	}

	batch := c.idx.NewBatch()
	for _, rec := range recs {
		if rec.IsDescriptor() {
			continue
		}
		docID := rec.UInfo()
		if docID == "" {
			if v, ok := rec.Get(artifact.FieldDeleted.Key); ok {
				docID = v
			}
		}
		if docID == "" {
			continue
		}
		if err := batch.Index(docID, recordToDocument(rec)); err != nil {
			return ierr.Wrap(ierr.ErrCodeWriteFailed, err)
		}
	}
	if err := c.idx.Batch(batch); err != nil {
		return ierr.Wrap(ierr.ErrCodeWriteFailed, err)
	}
	c.invalidateSearcherLocked()
	return nil
}

// GetRecord returns the stored record for a unique key, nil when absent.
func (c *Context) GetRecord(uinfo string) (*artifact.Record, error) {
	s, err := c.AcquireSearcher()
	if err != nil {
		return nil, err
	}
	defer c.ReleaseSearcher(s)
	return s.Record(uinfo)
}

// EnumerateRecords walks every record in the index, descriptor excluded, in
// unspecified order. The callback returning an error stops the walk.
func (c *Context) EnumerateRecords(fn func(rec *artifact.Record) error) error {
	s, err := c.AcquireSearcher()
	if err != nil {
		return err
	}
	defer c.ReleaseSearcher(s)
	return s.Enumerate(fn)
}

// documentToRecord rebuilds a record from the stored fields of a document,
// in canonical field order.
func documentToRecord(doc bleveindex.Document) *artifact.Record {
	values := make(map[string]string)
	doc.VisitFields(func(f bleveindex.Field) {
		if f.Name() == "_id" {
			return
		}
		if _, ok := artifact.FieldByKey(f.Name()); ok {
			values[f.Name()] = string(f.Value())
		}
	})

	rec := artifact.NewRecord()
	for _, f := range recordFields {
		if v, ok := values[f.Key]; ok {
			rec.Set(f, v)
		}
	}
	return rec
}
