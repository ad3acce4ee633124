package artifact

import (
	"fmt"
	"strconv"
	"strings"
)

// Availability describes whether a companion file (sources, javadoc,
// signature) exists next to the artifact.
type Availability int

const (
	// NotPresent means the companion was checked for and is absent.
	NotPresent Availability = 0
	// Present means the companion exists.
	Present Availability = 1
	// Unknown means presence was not determined.
	Unknown Availability = 2
)

func (a Availability) String() string {
	return strconv.Itoa(int(a))
}

// ParseAvailability converts the single-digit wire form back.
func ParseAvailability(s string) Availability {
	switch s {
	case "0":
		return NotPresent
	case "1":
		return Present
	default:
		return Unknown
	}
}

// Info is the mutable per-artifact state populated by the index creators
// during a scan and reconstructed from records when reading an index back.
type Info struct {
	GroupID    string
	ArtifactID string
	Version    string
	Classifier string

	// Packaging is the POM packaging, or the file extension when no POM
	// declares one.
	Packaging string
	// FileExtension is the artifact file extension, preserved verbatim.
	FileExtension string

	Name        string
	Description string

	// LastModified is the artifact file modification time, epoch millis.
	LastModified int64
	// Size is the artifact file size in bytes, -1 when unknown.
	Size int64
	// SHA1 is the lowercase hex digest of the artifact file.
	SHA1 string

	// Classnames holds newline-joined class names from the archive.
	Classnames string

	SourcesExists   Availability
	JavadocExists   Availability
	SignatureExists Availability
}

// NewInfo returns an Info for the given coordinate with unknown companions.
func NewInfo(c Coordinate) *Info {
	return &Info{
		GroupID:         c.GroupID,
		ArtifactID:      c.ArtifactID,
		Version:         c.Version,
		Classifier:      c.Classifier,
		FileExtension:   c.Extension,
		Size:            -1,
		SourcesExists:   Unknown,
		JavadocExists:   Unknown,
		SignatureExists: Unknown,
	}
}

// UInfo returns the canonical unique key for this artifact.
func (ai *Info) UInfo() string {
	return ai.CalculateGav().UInfo()
}

// CalculateGav reconstructs the Coordinate from the info fields.
func (ai *Info) CalculateGav() Coordinate {
	ext := ai.FileExtension
	if ext == "" {
		ext = ai.Packaging
	}
	return Coordinate{
		GroupID:    ai.GroupID,
		ArtifactID: ai.ArtifactID,
		Version:    ai.Version,
		Classifier: ai.Classifier,
		Extension:  ext,
	}
}

// PackInfo renders the composite `i` field value:
// packaging|lastModified|size|sourcesExists|javadocExists|signatureExists.
func (ai *Info) PackInfo() string {
	packaging := ai.Packaging
	if packaging == "" {
		packaging = NA
	}
	return strings.Join([]string{
		packaging,
		strconv.FormatInt(ai.LastModified, 10),
		strconv.FormatInt(ai.Size, 10),
		ai.SourcesExists.String(),
		ai.JavadocExists.String(),
		ai.SignatureExists.String(),
	}, FS)
}

// UnpackInfo parses a composite `i` field value into the info.
func (ai *Info) UnpackInfo(v string) error {
	parts := strings.Split(v, FS)
	if len(parts) < 6 {
		return fmt.Errorf("malformed info value %q", v)
	}
	if parts[0] != NA {
		ai.Packaging = parts[0]
	}
	lm, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return fmt.Errorf("malformed lastModified in info value %q: %w", v, err)
	}
	size, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return fmt.Errorf("malformed size in info value %q: %w", v, err)
	}
	ai.LastModified = lm
	ai.Size = size
	ai.SourcesExists = ParseAvailability(parts[3])
	ai.JavadocExists = ParseAvailability(parts[4])
	ai.SignatureExists = ParseAvailability(parts[5])
	return nil
}

// SetUInfo fills the coordinate fields from a `u` field value.
func (ai *Info) SetUInfo(uinfo string) error {
	parts := strings.Split(uinfo, FS)
	if len(parts) < 5 {
		return fmt.Errorf("malformed uinfo %q", uinfo)
	}
	ai.GroupID = parts[0]
	ai.ArtifactID = parts[1]
	ai.Version = parts[2]
	if parts[3] != NA {
		ai.Classifier = parts[3]
	}
	ai.FileExtension = parts[4]
	return nil
}
