// Package packer drives a publication cycle: it turns the live index into
// the portable file set consumers mirror (full dump, incremental chunks,
// legacy archive, descriptor, checksum siblings).
package packer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mvnidx/mvnidx/internal/artifact"
	"github.com/mvnidx/mvnidx/internal/creator"
	"github.com/mvnidx/mvnidx/internal/datastream"
	"github.com/mvnidx/mvnidx/internal/digest"
	ierr "github.com/mvnidx/mvnidx/internal/errors"
	"github.com/mvnidx/mvnidx/internal/incremental"
	"github.com/mvnidx/mvnidx/internal/index"
)

// DefaultMaxIncrementalChunks bounds the chunk history kept in the
// descriptor and on disk.
const DefaultMaxIncrementalChunks = 30

// Request describes one publication cycle.
type Request struct {
	// Context is the open indexing context to publish from.
	Context *index.Context
	// TargetDir receives the publication files. Created if missing.
	TargetDir string
	// FormatV1 publishes the full dump (and enables incremental chunks).
	FormatV1 bool
	// FormatLegacy publishes the legacy zip archive.
	FormatLegacy bool
	// CreateIncrementalChunks emits a chunk for records changed since the
	// last publication. Requires FormatV1.
	CreateIncrementalChunks bool
	// CreateChecksums writes .sha1/.md5 siblings for every published file.
	CreateChecksums bool
	// MaxIncrementalChunks caps the chunk history; zero means the default.
	MaxIncrementalChunks int
	// UseTargetProperties loads publication state from the target directory
	// descriptor instead of the sidecar kept in the index directory.
	UseTargetProperties bool

	Logger *slog.Logger
}

// Result reports what a publication cycle produced.
type Result struct {
	// PublishedFiles lists the file names written under the target
	// directory, checksum siblings included.
	PublishedFiles []string
	// ChunkNumber is the emitted incremental chunk, zero when none.
	ChunkNumber int
	// FullRecords is the number of live records in the full dump.
	FullRecords int
	// ChainReset reports that the incremental chain was restarted this
	// cycle, forcing consumers onto the full dump.
	ChainReset bool
}

// Pack runs one publication cycle. File writes are atomic (temp sibling plus
// rename); the descriptor is only stored after every requested file landed,
// so a failed cycle never advances publication state.
func Pack(ctx context.Context, req Request) (*Result, error) {
	if req.Context == nil {
		return nil, ierr.InvalidArgumentError("packer requires an open context", nil)
	}
	if !req.FormatV1 && !req.FormatLegacy {
		return nil, ierr.InvalidArgumentError("packer requires at least one output format", nil)
	}
	if err := prepareTargetDir(req.TargetDir); err != nil {
		return nil, err
	}
	log := req.Logger
	if log == nil {
		log = slog.Default()
	}
	maxChunks := req.MaxIncrementalChunks
	if maxChunks <= 0 {
		maxChunks = DefaultMaxIncrementalChunks
	}

	ic := req.Context
	desc := loadOrInitDescriptor(req, log)
	res := &Result{}
	ts := time.Now().UTC().Truncate(time.Millisecond)

	if req.FormatV1 && req.CreateIncrementalChunks {
		if err := packChunk(ctx, req, desc, ts, maxChunks, res, log); err != nil {
			return nil, err
		}
	}

	if req.FormatLegacy {
		if err := ctx.Err(); err != nil {
			return nil, ierr.Wrap(ierr.ErrCodeInternal, err)
		}
		desc.SetLegacyTimestamp(ts)
		path := filepath.Join(req.TargetDir, LegacyFileName)
		if err := writeAtomic(path, func(w io.Writer) error {
			return writeLegacyArchive(w, ic, ts)
		}); err != nil {
			return nil, err
		}
		if err := publish(path, req.CreateChecksums, res); err != nil {
			return nil, err
		}
		log.Info("legacy_archive_published", "file", LegacyFileName)
	}

	if req.FormatV1 {
		if err := ctx.Err(); err != nil {
			return nil, ierr.Wrap(ierr.ErrCodeInternal, err)
		}
		desc.SetTimestamp(ts)
		path := filepath.Join(req.TargetDir, DumpFileName)
		var count int
		if err := writeAtomic(path, func(w io.Writer) error {
			var err error
			count, err = writeFullDump(w, ic, ts)
			return err
		}); err != nil {
			return nil, err
		}
		if err := publish(path, req.CreateChecksums, res); err != nil {
			return nil, err
		}
		if err := ic.UpdateTimestamp(ts); err != nil {
			return nil, err
		}
		res.FullRecords = count
		log.Info("full_dump_published", "file", DumpFileName, "records", count)
	}

	desc.SetCreators(creator.IDs(ic.Creators()))
	if err := storeDescriptor(req, desc, res); err != nil {
		return nil, err
	}

	return res, nil
}

// packChunk asks the incremental handler for the change set and emits the
// chunk file. It runs before the full dump is rewritten so the diff is
// computed against the state the previous publication described.
func packChunk(ctx context.Context, req Request, desc *Descriptor, ts time.Time, maxChunks int, res *Result, log *slog.Logger) error {
	if err := ctx.Err(); err != nil {
		return ierr.Wrap(ierr.ErrCodeInternal, err)
	}

	changed, err := incremental.Compute(incremental.Request{
		Context:  req.Context,
		ChainID:  desc.ChainID(),
		Since:    desc.Timestamp(),
		Creators: desc.Creators(),
	})
	if err != nil {
		return err
	}
	if changed == nil {
		desc.ResetChain()
		res.ChainReset = true
		log.Info("incremental_chain_reset", "chain_id", desc.ChainID())
		return nil
	}
	if len(changed) == 0 {
		log.Debug("no_changes_since_last_publication")
		return nil
	}

	n := desc.ChunkCounter()
	if n < 1 {
		n = 1
	}
	name := ChunkFileName(n)
	path := filepath.Join(req.TargetDir, name)
	if err := writeAtomic(path, func(w io.Writer) error {
		return writeChunk(w, req.Context, ts, changed)
	}); err != nil {
		return err
	}
	if err := publish(path, req.CreateChecksums, res); err != nil {
		return err
	}

	desc.SetChunkCounter(n + 1)
	evicted := desc.AddChunkMarker(n, maxChunks)
	for _, e := range evicted {
		removeWithSiblings(filepath.Join(req.TargetDir, ChunkFileName(e)))
	}
	res.ChunkNumber = n
	log.Info("incremental_chunk_published", "file", name, "records", len(changed))
	return nil
}

// writeChunk streams the changed records, tombstones included, preceded by
// the descriptor record.
func writeChunk(w io.Writer, ic *index.Context, ts time.Time, recs []*artifact.Record) error {
	dw, err := datastream.NewWriter(w, ts)
	if err != nil {
		return err
	}
	if err := dw.WriteRecord(artifact.NewDescriptorRecord(index.FormatVersion, ic.ID())); err != nil {
		return err
	}
	for _, rec := range recs {
		if err := dw.WriteRecord(rec); err != nil {
			return err
		}
	}
	return dw.Close()
}

// writeFullDump streams every live record. Tombstones are dropped: the full
// dump is a complete statement of what exists, so deletions are implicit.
func writeFullDump(w io.Writer, ic *index.Context, ts time.Time) (int, error) {
	dw, err := datastream.NewWriter(w, ts)
	if err != nil {
		return 0, err
	}
	if err := dw.WriteRecord(artifact.NewDescriptorRecord(index.FormatVersion, ic.ID())); err != nil {
		return 0, err
	}
	count := 0
	err = ic.EnumerateRecords(func(rec *artifact.Record) error {
		if rec.IsTombstone() {
			return nil
		}
		if err := dw.WriteRecord(rec); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, dw.Close()
}

// writeLegacyArchive rebuilds each live record through the legacy record
// capability of the creators into a scratch index directory, then zips that
// directory with the timestamp entry. The scratch directory is removed on
// every exit path.
func writeLegacyArchive(w io.Writer, ic *index.Context, ts time.Time) error {
	var updaters []creator.LegacyRecordUpdater
	for _, cr := range ic.Creators() {
		if u, ok := cr.(creator.LegacyRecordUpdater); ok {
			updaters = append(updaters, u)
		}
	}

	recs := []*artifact.Record{artifact.NewDescriptorRecord(index.FormatVersion, ic.ID())}
	err := ic.EnumerateRecords(func(rec *artifact.Record) error {
		if rec.IsTombstone() {
			return nil
		}
		ai := index.InfoFromRecord(ic.Creators(), rec)
		if ai == nil {
			return nil
		}
		legacy := artifact.NewRecord()
		legacy.Set(artifact.FieldUInfo, ai.UInfo())
		for _, u := range updaters {
			u.UpdateLegacyRecord(ai, legacy)
		}
		if legacy.Len() <= 1 {
			return nil
		}
		recs = append(recs, legacy)
		return nil
	})
	if err != nil {
		return err
	}

	scratch, err := os.MkdirTemp("", "mvnidx-legacy-*")
	if err != nil {
		return ierr.Wrap(ierr.ErrCodeWriteFailed, err)
	}
	defer os.RemoveAll(scratch)

	idxDir := filepath.Join(scratch, "index")
	if err := index.WriteRecordsIndex(idxDir, recs); err != nil {
		return err
	}
	return datastream.WriteLegacyArchive(w, idxDir, ts)
}

// loadOrInitDescriptor loads publication state from the sidecar (or the
// target copy when requested). Missing, unreadable, or foreign descriptors,
// and descriptors whose chunk counter is absent or unparseable, start fresh,
// which implicitly resets the incremental chain.
func loadOrInitDescriptor(req Request, log *slog.Logger) *Descriptor {
	path := filepath.Join(req.Context.IndexDir(), SidecarFileName)
	if req.UseTargetProperties {
		path = filepath.Join(req.TargetDir, PropertiesFileName)
	}
	desc, err := LoadDescriptor(path)
	if err != nil {
		log.Debug("descriptor_unavailable", "path", path, "error", err.Error())
		return NewDescriptor(req.Context.ID())
	}
	if desc.ID() != req.Context.ID() {
		log.Warn("descriptor_context_mismatch",
			"descriptor_id", desc.ID(), "context_id", req.Context.ID())
		return NewDescriptor(req.Context.ID())
	}
	if n, err := strconv.Atoi(desc.props.GetString(keyChunkCounter, "")); err != nil || n < 0 {
		log.Warn("descriptor_counter_invalid", "path", path)
		return NewDescriptor(req.Context.ID())
	}
	return desc
}

// storeDescriptor writes publication state to the sidecar first, then the
// published copy in the target directory.
func storeDescriptor(req Request, desc *Descriptor, res *Result) error {
	if err := desc.Store(filepath.Join(req.Context.IndexDir(), SidecarFileName)); err != nil {
		return err
	}
	target := filepath.Join(req.TargetDir, PropertiesFileName)
	if err := desc.Store(target); err != nil {
		return err
	}
	return publish(target, req.CreateChecksums, res)
}

// prepareTargetDir creates the target directory and verifies it is usable.
func prepareTargetDir(dir string) error {
	if dir == "" {
		return ierr.InvalidArgumentError("target directory is required", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ierr.New(ierr.ErrCodeInvalidArgument, "target directory not usable", err).
			WithDetail("path", dir)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return ierr.New(ierr.ErrCodeInvalidArgument, "target is not a directory", err).
			WithDetail("path", dir)
	}
	probe, err := os.CreateTemp(dir, ".mvnidx-probe-*")
	if err != nil {
		return ierr.New(ierr.ErrCodeInvalidArgument, "target directory not writable", err).
			WithDetail("path", dir)
	}
	probe.Close()
	_ = os.Remove(probe.Name())
	return nil
}

// writeAtomic writes one publication file via a temp sibling and renames it
// into place. Failed writes leave no partial output behind.
func writeAtomic(path string, fn func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return ierr.Wrap(ierr.ErrCodeWriteFailed, err)
	}
	if err := fn(tmp); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return ierr.New(ierr.ErrCodeWriteFailed, "publication write failed", err).
			WithDetail("path", path)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return ierr.Wrap(ierr.ErrCodeWriteFailed, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return ierr.Wrap(ierr.ErrCodeWriteFailed, err)
	}
	return nil
}

// publish records a landed file in the result and writes its checksum
// siblings when requested.
func publish(path string, checksums bool, res *Result) error {
	base := filepath.Base(path)
	res.PublishedFiles = append(res.PublishedFiles, base)
	if !checksums {
		return nil
	}
	if err := digest.WriteSiblings(path); err != nil {
		return err
	}
	res.PublishedFiles = append(res.PublishedFiles, base+".sha1", base+".md5")
	return nil
}

// removeWithSiblings deletes an evicted chunk file and its checksums.
func removeWithSiblings(path string) {
	_ = os.Remove(path)
	_ = os.Remove(path + ".sha1")
	_ = os.Remove(path + ".md5")
}
