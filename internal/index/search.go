package index

import (
	"context"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"

	"github.com/mvnidx/mvnidx/internal/artifact"
	"github.com/mvnidx/mvnidx/internal/creator"
	ierr "github.com/mvnidx/mvnidx/internal/errors"
)

// searchPageSize bounds one result page when collecting matches.
const searchPageSize = 500

// SearchCoordinate finds live records whose unique key starts with the
// given coordinate prefix (group, optionally artifact, version). Tombstones
// are excluded.
func (c *Context) SearchCoordinate(ctx context.Context, gav artifact.Coordinate) ([]*artifact.Info, error) {
	var prefix strings.Builder
	prefix.WriteString(gav.GroupID)
	prefix.WriteString(artifact.FS)
	if gav.ArtifactID != "" {
		prefix.WriteString(gav.ArtifactID)
		prefix.WriteString(artifact.FS)
		if gav.Version != "" {
			prefix.WriteString(gav.Version)
			prefix.WriteString(artifact.FS)
		}
	}

	q := bleve.NewPrefixQuery(prefix.String())
	q.SetField(artifact.FieldUInfo.Key)
	return c.searchInfos(ctx, q)
}

// SearchSHA1 finds live records by exact artifact digest.
func (c *Context) SearchSHA1(ctx context.Context, digest string) ([]*artifact.Info, error) {
	q := bleve.NewTermQuery(strings.ToLower(digest))
	q.SetField(artifact.FieldSHA1.Key)
	return c.searchInfos(ctx, q)
}

// SearchClassname finds live records whose archives contain the class. The
// term matches a single path element of the class name.
func (c *Context) SearchClassname(ctx context.Context, classname string) ([]*artifact.Info, error) {
	q := bleve.NewMatchQuery(classname)
	q.SetField(artifact.FieldClassnames.Key)
	return c.searchInfos(ctx, q)
}

func (c *Context) searchInfos(ctx context.Context, q bleve.Query) ([]*artifact.Info, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, ierr.InternalError("context is closed", nil)
	}
	idx := c.idx
	c.mu.RUnlock()

	s, err := c.AcquireSearcher()
	if err != nil {
		return nil, err
	}
	defer c.ReleaseSearcher(s)

	var infos []*artifact.Info
	from := 0
	for {
		req := bleve.NewSearchRequestOptions(q, searchPageSize, from, false)
		res, err := idx.SearchInContext(ctx, req)
		if err != nil {
			return nil, ierr.Wrap(ierr.ErrCodeInternal, err)
		}

		for _, hit := range res.Hits {
			if hit.ID == descriptorDocID {
				continue
			}
			rec, err := s.Record(hit.ID)
			if err != nil {
				return nil, err
			}
			if rec == nil || rec.IsTombstone() {
				continue
			}
			if ai := c.infoFromRecord(rec); ai != nil {
				infos = append(infos, ai)
			}
		}

		if from+len(res.Hits) >= int(res.Total) || len(res.Hits) == 0 {
			break
		}
		from += len(res.Hits)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].UInfo() < infos[j].UInfo() })
	return infos, nil
}

// infoFromRecord rebuilds artifact info from a stored record through the
// creator chain.
func (c *Context) infoFromRecord(rec *artifact.Record) *artifact.Info {
	return InfoFromRecord(c.creators, rec)
}

// InfoFromRecord rebuilds artifact info from a stored record through the
// given creator chain. Returns nil for records without a parseable key.
func InfoFromRecord(creators []creator.IndexCreator, rec *artifact.Record) *artifact.Info {
	ai := artifact.NewInfo(artifact.Coordinate{})
	if err := ai.SetUInfo(rec.UInfo()); err != nil {
		return nil
	}
	for _, cr := range creators {
		cr.UpdateArtifactInfo(rec, ai)
	}
	return ai
}
