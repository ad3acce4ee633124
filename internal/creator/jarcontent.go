package creator

import (
	"archive/zip"
	"fmt"
	"sort"
	"strings"

	"github.com/mvnidx/mvnidx/internal/artifact"
)

// JarContentCreatorID identifies the archive contents creator.
const JarContentCreatorID = "jarContent"

// archiveExtensions are the artifact extensions peeked into for class names.
var archiveExtensions = map[string]bool{
	"jar": true,
	"war": true,
	"ear": true,
	"zip": true,
}

// JarContentCreator extracts class names from archive artifacts so clients
// can search by contained class.
type JarContentCreator struct{}

// NewJarContentCreator creates the archive contents creator.
func NewJarContentCreator() *JarContentCreator {
	return &JarContentCreator{}
}

// ID implements IndexCreator.
func (c *JarContentCreator) ID() string {
	return JarContentCreatorID
}

// Populate implements IndexCreator.
func (c *JarContentCreator) Populate(ac *artifact.Context) error {
	if ac.File == "" || !archiveExtensions[ac.Info.FileExtension] {
		return nil
	}

	names, err := classNames(ac.File)
	if err != nil {
		// a broken archive stays indexed with its minimal fields
		ac.AddError(fmt.Errorf("read archive entries: %w", err))
		return nil
	}

	ac.Info.Classnames = strings.Join(names, "\n")
	return nil
}

// classNames lists the classes contained in the archive, each with a leading
// slash and without the .class suffix. Entries under META-INF are skipped.
func classNames(path string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var names []string
	for _, f := range r.File {
		name := f.Name
		if !strings.HasSuffix(name, ".class") || strings.HasPrefix(name, "META-INF/") {
			continue
		}
		name = strings.TrimSuffix(name, ".class")
		if !strings.HasPrefix(name, "/") {
			name = "/" + name
		}
		names = append(names, name)
	}

	sort.Strings(names)
	return names, nil
}

// UpdateRecord implements IndexCreator.
func (c *JarContentCreator) UpdateRecord(ai *artifact.Info, rec *artifact.Record) {
	if ai.Classnames != "" {
		rec.Set(artifact.FieldClassnames, ai.Classnames)
	}
}

// UpdateArtifactInfo implements IndexCreator.
func (c *JarContentCreator) UpdateArtifactInfo(rec *artifact.Record, ai *artifact.Info) bool {
	if v, ok := rec.Get(artifact.FieldClassnames.Key); ok {
		ai.Classnames = v
		return true
	}
	return false
}

// UpdateLegacyRecord implements LegacyRecordUpdater.
func (c *JarContentCreator) UpdateLegacyRecord(ai *artifact.Info, rec *artifact.Record) {
	if ai.Classnames != "" {
		rec.Set(artifact.FieldClassnames, ai.Classnames)
	}
}
