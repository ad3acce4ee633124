// Package scanner walks a repository layout, recognizes artifact files and
// feeds them to a listener. It respects the repository conventions for
// checksums, signatures and metadata, which are companions rather than
// artifacts of their own.
package scanner

import (
	"context"
	"time"

	"github.com/mvnidx/mvnidx/internal/artifact"
)

// Options configures a scan.
type Options struct {
	// FromPath restricts the walk to a repository-relative subtree. Empty
	// scans the whole repository.
	FromPath string

	// Update reconciles the index against the walked tree: unchanged
	// artifacts are not re-indexed and artifacts that vanished from disk are
	// tombstoned.
	Update bool
}

// Result summarizes one scan.
type Result struct {
	// VisitedFiles is the number of regular files the walk looked at.
	VisitedFiles int
	// TotalFiles is the number of artifact files handed to the listener.
	TotalFiles int
	// DeletedFiles is the number of records tombstoned because their
	// artifact vanished from disk.
	DeletedFiles int
	// Started is when the walk began.
	Started time.Time
	// Duration is the wall time of the walk including reconciliation.
	Duration time.Duration
	// Errors collects per-artifact failures. The scan continues past them.
	Errors []error
}

// Listener receives walk progress and discovered artifacts during a scan.
type Listener interface {
	// ScanStarted is called once before the walk starts.
	ScanStarted(ctx context.Context) error

	// ScanningFile is called for every regular file the walk visits,
	// including companions and files that turn out not to be artifacts.
	ScanningFile(ctx context.Context, relPath string)

	// ArtifactDiscovered is called for every recognized artifact file.
	// Returned errors are recorded per artifact; a fatal error aborts the
	// scan.
	ArtifactDiscovered(ctx context.Context, ac *artifact.Context) error

	// ArtifactError is called for every per-artifact failure, whether
	// returned by ArtifactDiscovered or accumulated on the artifact context.
	ArtifactError(ctx context.Context, ac *artifact.Context, err error)

	// ScanFinished is called once after the walk, reporting how many records
	// were reconciled away.
	ScanFinished(ctx context.Context) (deleted int, err error)
}
