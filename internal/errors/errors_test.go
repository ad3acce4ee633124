package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		category Category
		severity Severity
	}{
		{"config", ErrCodeConfigInvalid, CategoryConfig, SeverityError},
		{"io", ErrCodeFileNotFound, CategoryIO, SeverityError},
		{"validation", ErrCodeInvalidArgument, CategoryValidation, SeverityError},
		{"internal", ErrCodeInternal, CategoryInternal, SeverityError},
		{"corrupt index is fatal", ErrCodeCorruptIndex, CategoryIO, SeverityFatal},
		{"lock is fatal", ErrCodeLockObtainFailed, CategoryIO, SeverityFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
		})
	}
}

func TestErrorFormat(t *testing.T) {
	err := New(ErrCodeFileNotFound, "missing pom", nil)
	assert.Equal(t, "[ERR_201_FILE_NOT_FOUND] missing pom", err.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk gone")
	err := Wrap(ErrCodeWriteFailed, cause)

	require.NotNil(t, err)
	assert.Equal(t, "disk gone", err.Message)
	assert.ErrorIs(t, err, cause)
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeWriteFailed, nil))
}

func TestIsMatchesByCode(t *testing.T) {
	a := New(ErrCodeCorruptIndex, "segment header mismatch", nil)
	b := New(ErrCodeCorruptIndex, "different message", nil)
	c := New(ErrCodeFileNotFound, "other", nil)

	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, c)
}

func TestWithDetail(t *testing.T) {
	err := New(ErrCodeInvalidPath, "outside repository", nil).
		WithDetail("path", "/tmp/escape").
		WithDetail("repository", "/srv/repo")

	assert.Equal(t, "/tmp/escape", err.Details["path"])
	assert.Equal(t, "/srv/repo", err.Details["repository"])
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(stderrors.New("plain")))
	assert.False(t, IsFatal(New(ErrCodeFileNotFound, "x", nil)))
	assert.True(t, IsFatal(New(ErrCodeCorruptIndex, "x", nil)))
	assert.True(t, IsFatal(LockError("held by another writer", nil)))
}

func TestIsCodeWalksChain(t *testing.T) {
	inner := CorruptIndexError("truncated record", nil)
	outer := fmt.Errorf("open context: %w", inner)

	assert.True(t, IsCode(outer, ErrCodeCorruptIndex))
	assert.False(t, IsCode(outer, ErrCodeFileNotFound))
	assert.False(t, IsCode(nil, ErrCodeCorruptIndex))
}

func TestGetCodeAndCategory(t *testing.T) {
	err := InvalidArgumentError("bad gav", nil)
	assert.Equal(t, ErrCodeInvalidArgument, GetCode(err))
	assert.Equal(t, CategoryValidation, GetCategory(err))

	plain := stderrors.New("plain")
	assert.Empty(t, GetCode(plain))
	assert.Empty(t, string(GetCategory(plain)))
}
