package datastream

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"

	ierr "github.com/mvnidx/mvnidx/internal/errors"
)

// LegacyTimestampEntry is the archive entry carrying the publication time.
// It is always present, even when the index directory holds no such file.
const LegacyTimestampEntry = "timestamp"

// WriteLegacyArchive zips the files of an index directory at maximum
// compression, one entry per file in listing order, preceded by the
// timestamp entry. Entry names are slash-separated paths relative to dir.
func WriteLegacyArchive(w io.Writer, dir string, timestamp time.Time) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	tw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     LegacyTimestampEntry,
		Method:   zip.Deflate,
		Modified: timestamp,
	})
	if err != nil {
		return err
	}
	if _, err := tw.Write([]byte(strconv.FormatInt(timestamp.UnixMilli(), 10))); err != nil {
		return err
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if name == LegacyTimestampEntry {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		ew, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: timestamp,
		})
		if err != nil {
			return err
		}
		_, err = io.Copy(ew, f)
		return err
	})
	if err != nil {
		return err
	}
	return zw.Close()
}

// ReadLegacyTimestamp extracts the publication time from a legacy archive.
func ReadLegacyTimestamp(r io.ReaderAt, size int64) (time.Time, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return time.Time{}, ierr.New(ierr.ErrCodeFileCorrupt, "legacy archive unreadable", err)
	}
	for _, f := range zr.File {
		if f.Name != LegacyTimestampEntry {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return time.Time{}, ierr.New(ierr.ErrCodeFileCorrupt, "legacy timestamp entry unreadable", err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return time.Time{}, ierr.New(ierr.ErrCodeFileCorrupt, "legacy timestamp entry unreadable", err)
		}
		millis, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
		if err != nil {
			return time.Time{}, ierr.New(ierr.ErrCodeFileCorrupt, "legacy timestamp entry malformed", err)
		}
		return time.UnixMilli(millis).UTC(), nil
	}
	return time.Time{}, ierr.New(ierr.ErrCodeFileCorrupt, "legacy archive has no timestamp entry", nil)
}
