package scanner

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mvnidx/mvnidx/internal/artifact"
	ierr "github.com/mvnidx/mvnidx/internal/errors"
)

// Scanner walks repository layouts.
type Scanner struct {
	logger *slog.Logger
}

// New creates a Scanner. A nil logger defaults to slog.Default().
func New(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{logger: logger}
}

// Scan walks the repository rooted at repositoryDir and feeds every
// recognized artifact to the listener. Hidden entries, checksums, signatures
// and repository metadata are skipped. Per-artifact failures are collected
// in the result; only fatal errors abort the walk.
func (s *Scanner) Scan(ctx context.Context, repositoryDir string, opts Options, listener Listener) (*Result, error) {
	absRoot, err := filepath.Abs(repositoryDir)
	if err != nil {
		return nil, ierr.New(ierr.ErrCodeInvalidPath, "resolve repository directory", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, ierr.New(ierr.ErrCodeInvalidPath, "repository directory not accessible", err).
			WithDetail("path", absRoot)
	}
	if !info.IsDir() {
		return nil, ierr.New(ierr.ErrCodeInvalidPath, "repository path is not a directory", nil).
			WithDetail("path", absRoot)
	}

	start := filepath.Join(absRoot, filepath.FromSlash(strings.Trim(opts.FromPath, "/")))
	if rel, err := filepath.Rel(absRoot, start); err != nil || strings.HasPrefix(rel, "..") {
		return nil, ierr.New(ierr.ErrCodeInvalidPath, "scan path escapes the repository", nil).
			WithDetail("path", opts.FromPath)
	}

	res := &Result{Started: time.Now()}

	if err := listener.ScanStarted(ctx); err != nil {
		return nil, err
	}

	walkErr := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			// unreadable entries are skipped, the scan goes on
			res.Errors = append(res.Errors, ierr.Wrap(ierr.ErrCodeFilePermission, err))
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if path != start && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		rel := filepath.ToSlash(relPath)

		res.VisitedFiles++
		listener.ScanningFile(ctx, rel)

		if artifact.IsChecksum(rel) || artifact.IsSignature(rel) || artifact.IsRepositoryMetadata(rel) {
			return nil
		}

		gav, err := artifact.ParseFromPath(rel)
		if err != nil {
			s.logger.Debug("skip_unrecognized_file",
				slog.String("path", rel),
				slog.String("reason", err.Error()))
			return nil
		}

		ac := contextFor(path, *gav)
		res.TotalFiles++

		if err := listener.ArtifactDiscovered(ctx, ac); err != nil {
			if ierr.IsFatal(err) {
				return err
			}
			listener.ArtifactError(ctx, ac, err)
			res.Errors = append(res.Errors, err)
		}
		for _, aerr := range ac.Errors() {
			listener.ArtifactError(ctx, ac, aerr)
			res.Errors = append(res.Errors, aerr)
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	deleted, err := listener.ScanFinished(ctx)
	if err != nil {
		return nil, err
	}
	res.DeletedFiles = deleted
	res.Duration = time.Since(res.Started)

	s.logger.Info("scan_finished",
		slog.String("repository", absRoot),
		slog.Int("visited", res.VisitedFiles),
		slog.Int("artifacts", res.TotalFiles),
		slog.Int("deleted", res.DeletedFiles),
		slog.Int("errors", len(res.Errors)),
		slog.Duration("duration", res.Duration))

	return res, nil
}

// contextFor builds the artifact context, locating the sibling POM when the
// artifact is not itself a POM.
func contextFor(path string, gav artifact.Coordinate) *artifact.Context {
	pomPath := ""
	if gav.Extension == "pom" && gav.Classifier == "" {
		pomPath = path
	} else {
		sibling := filepath.Join(filepath.Dir(path), gav.ArtifactID+"-"+gav.Version+".pom")
		if _, err := os.Stat(sibling); err == nil {
			pomPath = sibling
		}
	}

	metadataPath := ""
	metadata := filepath.Join(filepath.Dir(path), "maven-metadata.xml")
	if _, err := os.Stat(metadata); err == nil {
		metadataPath = metadata
	}

	return artifact.NewContext(pomPath, path, metadataPath, gav)
}
