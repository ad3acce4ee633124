package scanner

import (
	"context"
	"os"

	"github.com/mvnidx/mvnidx/internal/artifact"
	"github.com/mvnidx/mvnidx/internal/index"
)

// IndexListener feeds discovered artifacts into an indexing context. In
// update mode it skips artifacts whose file predates the context timestamp
// and, after the walk, tombstones records whose artifact vanished from disk.
type IndexListener struct {
	ic     *index.Context
	update bool

	seen map[string]struct{}
}

// NewIndexListener creates the listener over an open context.
func NewIndexListener(ic *index.Context, update bool) *IndexListener {
	return &IndexListener{
		ic:     ic,
		update: update,
		seen:   make(map[string]struct{}),
	}
}

// ScanStarted implements Listener.
func (l *IndexListener) ScanStarted(ctx context.Context) error {
	return nil
}

// ScanningFile implements Listener.
func (l *IndexListener) ScanningFile(ctx context.Context, relPath string) {}

// ArtifactDiscovered implements Listener.
func (l *IndexListener) ArtifactDiscovered(ctx context.Context, ac *artifact.Context) error {
	uinfo := ac.Info.UInfo()
	l.seen[uinfo] = struct{}{}

	if l.update && l.unchanged(ac, uinfo) {
		return nil
	}
	return l.ic.AddArtifactContext(ac)
}

// unchanged reports whether the artifact predates the context timestamp and
// already has a live record, so re-indexing would be a no-op.
func (l *IndexListener) unchanged(ac *artifact.Context, uinfo string) bool {
	since := l.ic.Timestamp()
	if since.IsZero() || ac.File == "" {
		return false
	}
	st, err := os.Stat(ac.File)
	if err != nil || !st.ModTime().Before(since) {
		return false
	}
	rec, err := l.ic.GetRecord(uinfo)
	return err == nil && rec != nil && !rec.IsTombstone()
}

// ArtifactError implements Listener. Failed artifacts keep their seen entry;
// a botched re-index must not tombstone a record whose file is still on disk.
func (l *IndexListener) ArtifactError(ctx context.Context, ac *artifact.Context, err error) {}

// ScanFinished implements Listener. In update mode it tombstones every live
// record whose unique key was not seen during the walk.
func (l *IndexListener) ScanFinished(ctx context.Context) (int, error) {
	if !l.update {
		return 0, nil
	}

	var vanished []string
	err := l.ic.EnumerateRecords(func(rec *artifact.Record) error {
		if rec.IsTombstone() {
			return nil
		}
		uinfo := rec.UInfo()
		if uinfo == "" {
			return nil
		}
		if _, ok := l.seen[uinfo]; !ok {
			vanished = append(vanished, uinfo)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, uinfo := range vanished {
		if err := l.ic.DeleteUInfo(uinfo); err != nil {
			return 0, err
		}
	}
	return len(vanished), nil
}
