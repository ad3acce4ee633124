// Package artifact provides the coordinate and record model for repository
// artifacts. A coordinate identifies an artifact by groupId, artifactId,
// version, optional classifier and extension; its UINFO string is the
// canonical unique key used throughout the index.
package artifact

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// FS is the field separator used inside composite index values (UINFO, INFO).
const FS = "|"

// NA marks an absent optional component inside a composite value.
const NA = "NA"

// snapshotSuffix is the literal suffix of non-timestamped snapshot versions.
const snapshotSuffix = "-SNAPSHOT"

// timestampedSnapshot matches the `<base>-yyyyMMdd.HHmmss-<build>` version form
// deployed for snapshot artifacts.
var timestampedSnapshot = regexp.MustCompile(`^(.*)-(\d{8}\.\d{6})-(\d+)$`)

var snapshotVersionPrefix = regexp.MustCompile(`^(\d{8}\.\d{6}-\d+)`)

// Coordinate identifies a single artifact within a repository.
type Coordinate struct {
	GroupID    string
	ArtifactID string
	Version    string
	Classifier string // empty when absent
	Extension  string
}

// UInfo returns the canonical unique key `g|a|v|c|e` with NA for an absent
// classifier. It is case-sensitive and stable across time.
func (c Coordinate) UInfo() string {
	classifier := c.Classifier
	if classifier == "" {
		classifier = NA
	}
	return strings.Join([]string{c.GroupID, c.ArtifactID, c.Version, classifier, c.Extension}, FS)
}

// BaseVersion returns the version with any timestamped snapshot suffix
// collapsed to `-SNAPSHOT`. Release versions are returned unchanged.
func (c Coordinate) BaseVersion() string {
	if m := timestampedSnapshot.FindStringSubmatch(c.Version); m != nil {
		return m[1] + snapshotSuffix
	}
	return c.Version
}

// IsSnapshot reports whether the version is a snapshot, either literal or
// timestamped.
func (c Coordinate) IsSnapshot() bool {
	return strings.HasSuffix(c.Version, snapshotSuffix) || timestampedSnapshot.MatchString(c.Version)
}

func (c Coordinate) String() string {
	return c.UInfo()
}

// IsChecksum reports whether the path names a checksum sibling file.
func IsChecksum(p string) bool {
	return strings.HasSuffix(p, ".sha1") || strings.HasSuffix(p, ".md5")
}

// IsSignature reports whether the path names a detached signature file.
func IsSignature(p string) bool {
	return strings.HasSuffix(p, ".asc")
}

// IsRepositoryMetadata reports whether the path names a repository metadata
// file rather than an artifact.
func IsRepositoryMetadata(p string) bool {
	return path.Base(filepathToSlash(p)) == "maven-metadata.xml"
}

// ParseFromPath parses a repository-relative path of the form
// `g1/g2/.../a/v/a-v[-c].e[.ext2]` into a Coordinate. Checksum, signature and
// metadata files are rejected with an error; callers classify those with the
// Is* predicates before parsing. Unknown extensions are preserved verbatim
// and never default to jar.
func ParseFromPath(p string) (*Coordinate, error) {
	sp := strings.Trim(filepathToSlash(p), "/")

	if IsChecksum(sp) || IsSignature(sp) {
		return nil, fmt.Errorf("not an artifact path (checksum or signature): %s", p)
	}
	if IsRepositoryMetadata(sp) {
		return nil, fmt.Errorf("not an artifact path (repository metadata): %s", p)
	}

	parts := strings.Split(sp, "/")
	if len(parts) < 4 {
		return nil, fmt.Errorf("path too short for an artifact coordinate: %s", p)
	}

	file := parts[len(parts)-1]
	version := parts[len(parts)-2]
	artifactID := parts[len(parts)-3]
	groupID := strings.Join(parts[:len(parts)-3], ".")

	prefix := artifactID + "-"
	if !strings.HasPrefix(file, prefix) {
		return nil, fmt.Errorf("file %q does not belong to artifact %q", file, artifactID)
	}
	rest := file[len(prefix):]

	fileVersion, err := matchFileVersion(rest, version)
	if err != nil {
		return nil, fmt.Errorf("file %q does not match version %q: %w", file, version, err)
	}

	tail := rest[len(fileVersion):]

	coord := &Coordinate{
		GroupID:    groupID,
		ArtifactID: artifactID,
		Version:    fileVersion,
	}

	switch {
	case strings.HasPrefix(tail, "."):
		coord.Extension = tail[1:]
	case strings.HasPrefix(tail, "-"):
		tail = tail[1:]
		dot := strings.Index(tail, ".")
		if dot <= 0 {
			return nil, fmt.Errorf("missing extension in %q", file)
		}
		coord.Classifier = tail[:dot]
		coord.Extension = tail[dot+1:]
	default:
		return nil, fmt.Errorf("missing extension in %q", file)
	}

	if coord.Extension == "" {
		return nil, fmt.Errorf("missing extension in %q", file)
	}

	return coord, nil
}

// matchFileVersion returns the version prefix of rest: either the directory
// version verbatim, or its timestamped snapshot form when the directory
// version is a snapshot.
func matchFileVersion(rest, version string) (string, error) {
	if strings.HasPrefix(rest, version) {
		return version, nil
	}

	if strings.HasSuffix(version, snapshotSuffix) {
		base := strings.TrimSuffix(version, snapshotSuffix)
		if strings.HasPrefix(rest, base+"-") {
			// the version portion runs up to the classifier dash or extension dot
			remainder := rest[len(base)+1:]
			if m := snapshotVersionPrefix.FindString(remainder); m != "" {
				return base + "-" + m, nil
			}
		}
	}

	return "", fmt.Errorf("no version prefix")
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
