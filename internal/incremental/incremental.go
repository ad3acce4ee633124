// Package incremental computes the set of records that changed since the
// last publication, feeding the packer's chunk emission. When the change set
// cannot be established safely it signals a chain reset instead, which
// forces consumers onto the next full dump.
package incremental

import (
	"sort"
	"strconv"
	"time"

	"github.com/mvnidx/mvnidx/internal/artifact"
	ierr "github.com/mvnidx/mvnidx/internal/errors"
	"github.com/mvnidx/mvnidx/internal/index"
)

// Request carries the publication state the handler compares the live index
// against. ChainID, Since and Creators come from the stored descriptor.
type Request struct {
	Context  *index.Context
	ChainID  string
	Since    time.Time
	Creators []string
}

// Compute returns the records whose modification time is newer than the last
// publication, tombstones included. A nil slice with a nil error means the
// change set cannot be computed and the caller must reset the incremental
// chain; an empty non-nil slice means nothing changed.
func Compute(req Request) ([]*artifact.Record, error) {
	if req.Context == nil {
		return nil, ierr.InvalidArgumentError("incremental compute requires a context", nil)
	}
	if !canCompute(req) {
		return nil, nil
	}

	since := req.Since.UnixMilli()
	changed := []*artifact.Record{}
	err := req.Context.EnumerateRecords(func(rec *artifact.Record) error {
		m, ok := rec.Get(artifact.FieldLastModified.Key)
		if !ok {
			return nil
		}
		millis, perr := strconv.ParseInt(m, 10, 64)
		if perr != nil {
			return nil
		}
		if millis > since {
			changed = append(changed, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(changed, func(i, j int) bool {
		mi, _ := changed[i].Get(artifact.FieldLastModified.Key)
		mj, _ := changed[j].Get(artifact.FieldLastModified.Key)
		if mi != mj {
			return mi < mj
		}
		return keyOf(changed[i]) < keyOf(changed[j])
	})
	return changed, nil
}

// canCompute checks the preconditions for a valid incremental diff: an
// existing chain, a prior v1 publication, an index at least as new as that
// publication, and an unchanged creator set.
func canCompute(req Request) bool {
	if req.ChainID == "" || req.Since.IsZero() {
		return false
	}
	ctxTS := req.Context.Timestamp()
	if ctxTS.IsZero() || ctxTS.Before(req.Since) {
		return false
	}
	if len(req.Creators) > 0 && !sameIDs(req.Creators, contextCreatorIDs(req.Context)) {
		return false
	}
	return true
}

func contextCreatorIDs(c *index.Context) []string {
	ids := make([]string, 0, len(c.Creators()))
	for _, cr := range c.Creators() {
		ids = append(ids, cr.ID())
	}
	return ids
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func keyOf(rec *artifact.Record) string {
	if u := rec.UInfo(); u != "" {
		return u
	}
	v, _ := rec.Get(artifact.FieldDeleted.Key)
	return v
}
