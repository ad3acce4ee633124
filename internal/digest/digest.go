// Package digest writes and verifies the checksum sibling files published
// next to every index artifact.
package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	ierr "github.com/mvnidx/mvnidx/internal/errors"
)

// File computes the named hash of a file as lowercase hex.
func File(path string, h hash.Hash) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SHA1File returns the lowercase hex SHA-1 of a file.
func SHA1File(path string) (string, error) {
	return File(path, sha1.New())
}

// MD5File returns the lowercase hex MD5 of a file.
func MD5File(path string) (string, error) {
	return File(path, md5.New())
}

// WriteSiblings writes `<path>.sha1` and `<path>.md5`, each holding only
// the lowercase hex digest with no trailing newline. Both digests are
// computed concurrently.
func WriteSiblings(path string) error {
	var g errgroup.Group

	g.Go(func() error {
		sum, err := SHA1File(path)
		if err != nil {
			return err
		}
		return os.WriteFile(path+".sha1", []byte(sum), 0o644)
	})
	g.Go(func() error {
		sum, err := MD5File(path)
		if err != nil {
			return err
		}
		return os.WriteFile(path+".md5", []byte(sum), 0o644)
	})

	if err := g.Wait(); err != nil {
		return ierr.New(ierr.ErrCodeWriteFailed, "write checksum siblings", err).
			WithDetail("path", path)
	}
	return nil
}

// VerifySibling checks a file against its `.sha1` sibling. A missing
// sibling is not an error; a mismatch is.
func VerifySibling(path string) error {
	want, err := os.ReadFile(path + ".sha1")
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	got, err := SHA1File(path)
	if err != nil {
		return err
	}

	// tolerate historic `<hex>  <filename>` sibling bodies
	wantHex := strings.Fields(strings.TrimSpace(string(want)))
	if len(wantHex) == 0 || !strings.EqualFold(wantHex[0], got) {
		return ierr.New(ierr.ErrCodeFileCorrupt,
			fmt.Sprintf("checksum mismatch for %s", path), nil).
			WithDetail("expected", strings.TrimSpace(string(want))).
			WithDetail("actual", got)
	}
	return nil
}
