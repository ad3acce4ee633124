package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, 10, cfg.MaxSizeMB)
	assert.Equal(t, 5, cfg.Backups)
	assert.True(t, cfg.Stderr)
	assert.Empty(t, cfg.File, "file logging is opt-in")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestSetupWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mvnidx.log")

	logger, cleanup, err := Setup(Config{
		Level:     "debug",
		File:      path,
		MaxSizeMB: 1,
		Backups:   2,
	})
	require.NoError(t, err)

	logger.Info("scan_finished", "artifacts", 42)
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"scan_finished"`)
	assert.Contains(t, string(data), `"artifacts":42`)
}

func TestRunFileRollsOverAtOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mvnidx.log")
	big := strings.Repeat("x", 256)
	require.NoError(t, os.WriteFile(path, []byte(big), 0o644))

	f, err := openRunFile(path, 128, 2)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	rolled, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, big, string(rolled))

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, st.Size(), "the new run starts on a fresh file")
}

func TestRunFileBelowCapAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mvnidx.log")
	require.NoError(t, os.WriteFile(path, []byte("prior run\n"), 0o644))

	f, err := openRunFile(path, 1024, 2)
	require.NoError(t, err)
	_, err = f.WriteString("this run\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "prior run\nthis run\n", string(data))
	assert.NoFileExists(t, path+".1")
}

func TestRolloverKeepsBackupLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mvnidx.log")
	line := strings.Repeat("y", 64)

	for i := 0; i < 6; i++ {
		require.NoError(t, os.WriteFile(path, []byte(line), 0o644))
		f, err := openRunFile(path, 32, 2)
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}

	matches, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(matches), 2)
}
