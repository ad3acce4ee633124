package index

import (
	"path/filepath"
	"testing"

	"github.com/blevesearch/bleve/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvnidx/mvnidx/internal/artifact"
)

func TestSearcherSeesPointInTimeState(t *testing.T) {
	c := newTestContext(t)
	require.NoError(t, c.AddArtifactContext(depositArtifact(t, c, "com.example", "a", "1.0")))

	s, err := c.AcquireSearcher()
	require.NoError(t, err)
	defer c.ReleaseSearcher(s)

	require.NoError(t, c.AddArtifactContext(depositArtifact(t, c, "com.example", "b", "2.0")))

	rec, err := s.Record("com.example|b|2.0|NA|jar")
	require.NoError(t, err)
	assert.Nil(t, rec, "snapshot must not observe later commits")

	rec, err = s.Record("com.example|a|1.0|NA|jar")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "com.example|a|1.0|NA|jar", rec.UInfo())
}

func TestSearcherIsSharedUntilInvalidated(t *testing.T) {
	c := newTestContext(t)
	require.NoError(t, c.AddArtifactContext(depositArtifact(t, c, "com.example", "a", "1.0")))

	s1, err := c.AcquireSearcher()
	require.NoError(t, err)
	s2, err := c.AcquireSearcher()
	require.NoError(t, err)
	assert.Same(t, s1, s2, "acquisitions between writes share one snapshot")
	require.NoError(t, c.ReleaseSearcher(s2))

	require.NoError(t, c.AddArtifactContext(depositArtifact(t, c, "com.example", "b", "2.0")))

	s3, err := c.AcquireSearcher()
	require.NoError(t, err)
	defer c.ReleaseSearcher(s3)
	assert.NotSame(t, s1, s3, "writes invalidate the cached snapshot")

	rec, err := s3.Record("com.example|b|2.0|NA|jar")
	require.NoError(t, err)
	assert.NotNil(t, rec)

	// the old snapshot stays readable until its last holder lets go
	rec, err = s1.Record("com.example|a|1.0|NA|jar")
	require.NoError(t, err)
	assert.NotNil(t, rec)
	require.NoError(t, c.ReleaseSearcher(s1))
}

func TestWriteRecordsIndex(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scratch")

	rec := artifact.NewRecord()
	rec.Set(artifact.FieldUInfo, "com.example|app|1.0|NA|jar")
	rec.Set(artifact.FieldName, "App")
	recs := []*artifact.Record{
		artifact.NewDescriptorRecord(FormatVersion, "test"),
		rec,
	}
	require.NoError(t, WriteRecordsIndex(dir, recs))

	idx, err := bleve.Open(dir)
	require.NoError(t, err)
	defer idx.Close()

	n, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}
