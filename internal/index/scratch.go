package index

import (
	"github.com/blevesearch/bleve/v2"

	"github.com/mvnidx/mvnidx/internal/artifact"
	ierr "github.com/mvnidx/mvnidx/internal/errors"
)

// WriteRecordsIndex builds a standalone, compacted index of the given
// records at dir. The directory must not already hold an index. Used by the
// legacy archive writer, which zips the resulting files.
func WriteRecordsIndex(dir string, recs []*artifact.Record) error {
	im, err := createRecordMapping()
	if err != nil {
		return ierr.Wrap(ierr.ErrCodeInternal, err)
	}
	idx, err := bleve.New(dir, im)
	if err != nil {
		return ierr.Wrap(ierr.ErrCodeWriteFailed, err)
	}

	batch := idx.NewBatch()
	for _, rec := range recs {
		docID := rec.UInfo()
		if rec.IsDescriptor() {
			docID = descriptorDocID
		}
		if docID == "" {
			if v, ok := rec.Get(artifact.FieldDeleted.Key); ok {
				docID = v
			}
		}
		if docID == "" {
			continue
		}
		if err := batch.Index(docID, recordToDocument(rec)); err != nil {
			idx.Close()
			return ierr.Wrap(ierr.ErrCodeWriteFailed, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		idx.Close()
		return ierr.Wrap(ierr.ErrCodeWriteFailed, err)
	}
	if err := idx.Close(); err != nil {
		return ierr.Wrap(ierr.ErrCodeWriteFailed, err)
	}
	return nil
}
