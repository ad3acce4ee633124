package digest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierr "github.com/mvnidx/mvnidx/internal/errors"
)

func writeTemp(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload.gz")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestWriteSiblings(t *testing.T) {
	path := writeTemp(t, "hello index")

	require.NoError(t, WriteSiblings(path))

	sha, err := os.ReadFile(path + ".sha1")
	require.NoError(t, err)
	md, err := os.ReadFile(path + ".md5")
	require.NoError(t, err)

	// lowercase hex, digest only, no newline
	assert.Len(t, sha, 40)
	assert.Len(t, md, 32)
	assert.NotContains(t, string(sha), "\n")
	assert.NotContains(t, string(md), "\n")

	want, err := SHA1File(path)
	require.NoError(t, err)
	assert.Equal(t, want, string(sha))
}

func TestVerifySibling(t *testing.T) {
	path := writeTemp(t, "payload")
	require.NoError(t, WriteSiblings(path))

	assert.NoError(t, VerifySibling(path))

	// corrupt the payload after checksumming
	require.NoError(t, os.WriteFile(path, []byte("tampered"), 0o644))
	err := VerifySibling(path)
	require.Error(t, err)
	assert.Equal(t, ierr.ErrCodeFileCorrupt, ierr.GetCode(err))
}

func TestVerifySiblingToleratesAnnotatedBody(t *testing.T) {
	path := writeTemp(t, "payload")
	sum, err := SHA1File(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path+".sha1", []byte(sum+"  payload.gz\n"), 0o644))

	assert.NoError(t, VerifySibling(path))
}

func TestVerifySiblingMissingIsOK(t *testing.T) {
	path := writeTemp(t, "payload")
	assert.NoError(t, VerifySibling(path))
}
