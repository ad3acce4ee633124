package index

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/mvnidx/mvnidx/internal/artifact"
)

// recordFields is the canonical field order used when rebuilding records
// from stored documents.
var recordFields = []artifact.Field{
	artifact.FieldUInfo,
	artifact.FieldInfo,
	artifact.FieldLastModified,
	artifact.FieldName,
	artifact.FieldDescription,
	artifact.FieldSHA1,
	artifact.FieldClassnames,
	artifact.FieldDeleted,
	artifact.FieldDescriptor,
	artifact.FieldIDXInfo,
}

// createRecordMapping builds the index mapping from the published field set.
// Exact-match fields use the keyword analyzer, tokenized fields the standard
// one, and stored-only fields are kept out of the inverted index entirely.
func createRecordMapping() (*mapping.IndexMappingImpl, error) {
	doc := bleve.NewDocumentMapping()
	doc.Dynamic = false

	for _, f := range recordFields {
		fm := bleve.NewTextFieldMapping()
		fm.Store = f.Stored
		fm.Index = f.Indexed
		fm.IncludeInAll = false
		fm.IncludeTermVectors = false
		if f.Indexed {
			if f.Tokenized {
				fm.Analyzer = standard.Name
			} else {
				fm.Analyzer = keyword.Name
			}
		}
		doc.AddFieldMappingsAt(f.Key, fm)
	}

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = keyword.Name
	im.StoreDynamic = false
	im.IndexDynamic = false

	if err := im.Validate(); err != nil {
		return nil, fmt.Errorf("validate record mapping: %w", err)
	}
	return im, nil
}

// recordToDocument converts a record to the flat document shape handed to
// the index.
func recordToDocument(rec *artifact.Record) map[string]interface{} {
	doc := make(map[string]interface{}, rec.Len())
	for _, rf := range rec.Fields() {
		doc[rf.Field.Key] = rf.Value
	}
	return doc
}
