package datastream

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvnidx/mvnidx/internal/artifact"
	ierr "github.com/mvnidx/mvnidx/internal/errors"
)

func sampleRecord(uinfo string) *artifact.Record {
	rec := artifact.NewRecord()
	rec.Set(artifact.FieldUInfo, uinfo)
	rec.Set(artifact.FieldInfo, "jar|1700000000000|1024|1|0|0")
	rec.Set(artifact.FieldName, "Sample")
	return rec
}

func TestStreamRoundTrip(t *testing.T) {
	ts := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	var buf bytes.Buffer

	w, err := NewWriter(&buf, ts)
	require.NoError(t, err)
	require.NoError(t, w.WriteRecord(sampleRecord("g|a|1.0|NA|jar")))
	require.NoError(t, w.WriteRecord(sampleRecord("g|b|2.0|NA|jar")))
	assert.Equal(t, 2, w.Records())
	require.NoError(t, w.Close())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, ts.UnixMilli(), r.Timestamp().UnixMilli())

	rec, err := r.ReadRecord()
	require.NoError(t, err)
	assert.Equal(t, "g|a|1.0|NA|jar", rec.UInfo())
	name, _ := rec.Get(artifact.FieldName.Key)
	assert.Equal(t, "Sample", name)

	rec, err = r.ReadRecord()
	require.NoError(t, err)
	assert.Equal(t, "g|b|2.0|NA|jar", rec.UInfo())

	_, err = r.ReadRecord()
	assert.Equal(t, io.EOF, err)
}

func TestReaderPreservesUnknownFields(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, time.Now())
	require.NoError(t, err)

	rec := sampleRecord("g|a|1.0|NA|jar")
	rec.Set(artifact.Field{Key: "zz", Indexed: true, Stored: true}, "future value")
	require.NoError(t, w.WriteRecord(rec))
	require.NoError(t, w.Close())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	defer r.Close()

	got, err := r.ReadRecord()
	require.NoError(t, err)
	v, ok := got.Get("zz")
	require.True(t, ok)
	assert.Equal(t, "future value", v)
}

func TestReaderRejectsGarbage(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("definitely not gzip")))
	require.Error(t, err)
	assert.Equal(t, ierr.ErrCodeFileCorrupt, ierr.GetCode(err))
}

func TestReaderReportsTruncation(t *testing.T) {
	ts := time.Now()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, ts)
	require.NoError(t, err)
	require.NoError(t, w.WriteRecord(sampleRecord("g|a|1.0|NA|jar")))
	require.NoError(t, w.Close())

	// cut the compressed stream short
	raw := buf.Bytes()
	r, err := NewReader(bytes.NewReader(raw[:len(raw)-6]))
	if err != nil {
		assert.Equal(t, ierr.ErrCodeFileCorrupt, ierr.GetCode(err))
		return
	}
	defer r.Close()
	for {
		_, err := r.ReadRecord()
		if err != nil {
			assert.NotEqual(t, io.EOF, err, "truncated stream must not end cleanly")
			return
		}
	}
}

func TestLegacyArchiveHoldsDirectoryFiles(t *testing.T) {
	ts := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "segments.gen"), []byte("gen"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "store"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "store", "root.bolt"), []byte("bolt"), 0o644))

	var buf bytes.Buffer
	require.NoError(t, WriteLegacyArchive(&buf, dir, ts))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{LegacyTimestampEntry, "segments.gen", "store/root.bolt"}, names)

	got, err := ReadLegacyTimestamp(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, ts.UnixMilli(), got.UnixMilli())
}

func TestLegacyArchiveTimestampEntryAlwaysWins(t *testing.T) {
	ts := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	// a stray file with the reserved name must not produce a second entry
	require.NoError(t, os.WriteFile(filepath.Join(dir, LegacyTimestampEntry), []byte("stale"), 0o644))

	var buf bytes.Buffer
	require.NoError(t, WriteLegacyArchive(&buf, dir, ts))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, LegacyTimestampEntry, zr.File[0].Name)

	got, err := ReadLegacyTimestamp(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, ts.UnixMilli(), got.UnixMilli())
}

func TestLegacyArchiveWithoutTimestampIsCorrupt(t *testing.T) {
	var buf bytes.Buffer
	// an empty zip is a valid archive but not a valid publication artifact
	buf.Write([]byte("PK\x05\x06"))
	buf.Write(make([]byte, 18))

	_, err := ReadLegacyTimestamp(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.Error(t, err)
	assert.Equal(t, ierr.ErrCodeFileCorrupt, ierr.GetCode(err))
}
