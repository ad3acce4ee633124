// Package creator provides the pluggable index creators that enrich artifact
// records during scanning. Creators are held by the indexing context as an
// ordered collection; all Populate calls complete before any UpdateRecord
// call, so creators may read each other's enrichments.
package creator

import (
	"github.com/mvnidx/mvnidx/internal/artifact"
)

// IndexCreator contributes typed fields to an artifact record.
type IndexCreator interface {
	// ID returns the stable, unique creator identifier. The set of creator
	// ids in use is recorded in the published descriptor; a mismatch forces
	// clients onto the full dump.
	ID() string

	// Populate enriches the context's Info from on-disk evidence. Errors are
	// per-artifact: implementations return them (or attach them via
	// ac.AddError) and the scan continues.
	Populate(ac *artifact.Context) error

	// UpdateRecord writes this creator's fields into the record.
	UpdateRecord(ai *artifact.Info, rec *artifact.Record)

	// UpdateArtifactInfo reads this creator's fields back from a record.
	// It reports whether any field was consumed.
	UpdateArtifactInfo(rec *artifact.Record, ai *artifact.Info) bool
}

// LegacyRecordUpdater is the secondary capability implemented by creators
// that also know how to render the legacy record schema. It is tested by
// interface assertion, never by concrete type.
type LegacyRecordUpdater interface {
	UpdateLegacyRecord(ai *artifact.Info, rec *artifact.Record)
}

// IDs returns the ordered creator ids, used for the descriptor entry.
func IDs(creators []IndexCreator) []string {
	ids := make([]string, 0, len(creators))
	for _, c := range creators {
		ids = append(ids, c.ID())
	}
	return ids
}

// Default returns the standard ordered creator set: the minimal info creator
// followed by the archive contents creator.
func Default() []IndexCreator {
	return []IndexCreator{
		NewMinimalCreator(),
		NewJarContentCreator(),
	}
}
