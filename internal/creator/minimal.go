package creator

import (
	"archive/zip"
	"crypto/sha1"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mvnidx/mvnidx/internal/artifact"
)

// MinimalCreatorID identifies the minimal info creator.
const MinimalCreatorID = "min"

// pomModelCacheSize bounds the parsed POM cache. Sibling artifacts of one
// coordinate (main jar, sources, javadoc) share a single POM file, so the
// cache saves repeated parses within a version directory.
const pomModelCacheSize = 256

// pomModel is the subset of the POM consumed by the index.
type pomModel struct {
	XMLName     xml.Name `xml:"project"`
	Packaging   string   `xml:"packaging"`
	Name        string   `xml:"name"`
	Description string   `xml:"description"`
}

// MinimalCreator contributes the required record subset: the packed info
// field, name, description and SHA-1 digest. It also detects sources,
// javadoc and signature companions next to the artifact file.
type MinimalCreator struct {
	pomCache *lru.Cache[string, *pomModel]
}

// NewMinimalCreator creates the minimal info creator.
func NewMinimalCreator() *MinimalCreator {
	cache, _ := lru.New[string, *pomModel](pomModelCacheSize)
	return &MinimalCreator{pomCache: cache}
}

// ID implements IndexCreator.
func (c *MinimalCreator) ID() string {
	return MinimalCreatorID
}

// Populate implements IndexCreator.
func (c *MinimalCreator) Populate(ac *artifact.Context) error {
	ai := ac.Info

	if ac.File != "" {
		st, err := os.Stat(ac.File)
		if err != nil {
			return fmt.Errorf("stat artifact file: %w", err)
		}
		ai.LastModified = st.ModTime().UnixMilli()
		ai.Size = st.Size()

		digest, err := fileSHA1(ac.File)
		if err != nil {
			ac.AddError(fmt.Errorf("digest artifact file: %w", err))
		} else {
			ai.SHA1 = digest
		}

		c.checkCompanions(ac)
	}

	model, err := c.resolvePomModel(ac)
	if err != nil {
		ac.AddError(fmt.Errorf("read pom: %w", err))
	} else if model != nil {
		if model.Packaging != "" {
			ai.Packaging = model.Packaging
		}
		ai.Name = strings.TrimSpace(model.Name)
		ai.Description = strings.TrimSpace(model.Description)
	}

	if ai.Packaging == "" {
		ai.Packaging = ai.FileExtension
	}

	return nil
}

// checkCompanions records the presence of sources, javadoc and signature
// siblings for the main artifact. Classified artifacts skip the check.
func (c *MinimalCreator) checkCompanions(ac *artifact.Context) {
	ai := ac.Info
	if ai.Classifier != "" {
		return
	}

	dir := filepath.Dir(ac.File)
	base := ai.ArtifactID + "-" + ai.Version

	ai.SourcesExists = existsAsAvailability(filepath.Join(dir, base+"-sources.jar"))
	ai.JavadocExists = existsAsAvailability(filepath.Join(dir, base+"-javadoc.jar"))
	ai.SignatureExists = existsAsAvailability(ac.File + ".asc")
}

func existsAsAvailability(path string) artifact.Availability {
	if _, err := os.Stat(path); err == nil {
		return artifact.Present
	}
	return artifact.NotPresent
}

// resolvePomModel finds the POM for an artifact: the sibling POM file when
// one exists, otherwise the pom.xml the build embedded under META-INF/maven
// inside the artifact itself. Returns nil when neither is available.
func (c *MinimalCreator) resolvePomModel(ac *artifact.Context) (*pomModel, error) {
	if ac.Pom != "" {
		return c.pomModelFor(ac.Pom)
	}
	if ac.File != "" {
		return c.embeddedPomModel(ac)
	}
	return nil, nil
}

// embeddedPomModel reads META-INF/maven/<groupId>/<artifactId>/pom.xml from
// a zip-packaged artifact. Non-zip artifacts carry no embedded POM.
func (c *MinimalCreator) embeddedPomModel(ac *artifact.Context) (*pomModel, error) {
	key := ac.File + "!pom.xml"
	if model, ok := c.pomCache.Get(key); ok {
		return model, nil
	}

	zr, err := zip.OpenReader(ac.File)
	if err != nil {
		return nil, nil
	}
	defer zr.Close()

	want := "META-INF/maven/" + ac.Info.GroupID + "/" + ac.Info.ArtifactID + "/pom.xml"
	for _, f := range zr.File {
		if f.Name != want {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, err
		}
		model := &pomModel{}
		if err := xml.Unmarshal(data, model); err != nil {
			return nil, err
		}
		c.pomCache.Add(key, model)
		return model, nil
	}
	return nil, nil
}

// pomModelFor parses the POM, serving repeated requests for the same path
// from the LRU cache.
func (c *MinimalCreator) pomModelFor(path string) (*pomModel, error) {
	if model, ok := c.pomCache.Get(path); ok {
		return model, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	model := &pomModel{}
	if err := xml.Unmarshal(data, model); err != nil {
		return nil, err
	}

	c.pomCache.Add(path, model)
	return model, nil
}

// UpdateRecord implements IndexCreator.
func (c *MinimalCreator) UpdateRecord(ai *artifact.Info, rec *artifact.Record) {
	rec.Set(artifact.FieldInfo, ai.PackInfo())

	if ai.Name != "" {
		rec.Set(artifact.FieldName, ai.Name)
	}
	if ai.Description != "" {
		rec.Set(artifact.FieldDescription, ai.Description)
	}
	if ai.SHA1 != "" {
		rec.Set(artifact.FieldSHA1, ai.SHA1)
	}
}

// UpdateArtifactInfo implements IndexCreator.
func (c *MinimalCreator) UpdateArtifactInfo(rec *artifact.Record, ai *artifact.Info) bool {
	updated := false

	if v, ok := rec.Get(artifact.FieldInfo.Key); ok {
		if err := ai.UnpackInfo(v); err == nil {
			updated = true
		}
	}
	if v, ok := rec.Get(artifact.FieldName.Key); ok {
		ai.Name = v
		updated = true
	}
	if v, ok := rec.Get(artifact.FieldDescription.Key); ok {
		ai.Description = v
		updated = true
	}
	if v, ok := rec.Get(artifact.FieldSHA1.Key); ok {
		ai.SHA1 = v
		updated = true
	}

	return updated
}

// UpdateLegacyRecord implements LegacyRecordUpdater.
func (c *MinimalCreator) UpdateLegacyRecord(ai *artifact.Info, rec *artifact.Record) {
	rec.Set(artifact.FieldInfo, ai.PackInfo())
	if ai.Name != "" {
		rec.Set(artifact.FieldName, ai.Name)
	}
	if ai.SHA1 != "" {
		rec.Set(artifact.FieldSHA1, ai.SHA1)
	}
}

func fileSHA1(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
