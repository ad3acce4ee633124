package packer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/magiconair/properties"

	ierr "github.com/mvnidx/mvnidx/internal/errors"
)

// Prefix is the base name shared by every published index file.
const Prefix = "nexus-maven-repository-index"

// Published file names under the target directory.
const (
	PropertiesFileName = Prefix + ".properties"
	DumpFileName       = Prefix + ".gz"
	LegacyFileName     = Prefix + ".zip"
)

// SidecarFileName is the packer's private descriptor copy kept in the index
// directory. It is the authoritative source when loading publication state;
// the target copy exists for consumers.
const SidecarFileName = Prefix + "-packer.properties"

// Descriptor property keys.
const (
	keyID              = "nexus.index.id"
	keyTimestamp       = "nexus.index.timestamp"
	keyLegacyTimestamp = "nexus.index.legacy-timestamp"
	keyChainID         = "nexus.index.chain-id"
	keyChunkCounter    = "nexus.index.chunk-counter"
	keyCreators        = "nexus.index.creators"
	chunkKeyPrefix     = "nexus.index.incremental-chunk-"
)

// timestampLayout renders descriptor timestamps in GMT with millisecond
// precision.
const timestampLayout = "20060102150405.000"

// ChunkFileName returns the published name of incremental chunk n.
func ChunkFileName(n int) string {
	return fmt.Sprintf("%s.%d.gz", Prefix, n)
}

// Descriptor is the publication state carried in the properties file: the
// context identity, commit timestamps, and the incremental chain bookkeeping.
type Descriptor struct {
	props *properties.Properties
}

// NewDescriptor starts a fresh descriptor for a context: new chain id, chunk
// counter at zero, no history.
func NewDescriptor(contextID string) *Descriptor {
	d := &Descriptor{props: properties.NewProperties()}
	d.props.Set(keyID, contextID)
	d.props.Set(keyChainID, uuid.NewString())
	d.props.Set(keyChunkCounter, "0")
	return d
}

// LoadDescriptor reads a descriptor from disk. A missing file returns
// ErrCodeFileNotFound so callers can fall back to a fresh descriptor.
func LoadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ierr.New(ierr.ErrCodeFileNotFound, "descriptor not found", err).
			WithDetail("path", path)
	}
	if err != nil {
		return nil, ierr.Wrap(ierr.ErrCodeFilePermission, err)
	}
	p, err := properties.Load(data, properties.UTF8)
	if err != nil {
		return nil, ierr.New(ierr.ErrCodeFileCorrupt, "descriptor unreadable", err).
			WithDetail("path", path)
	}
	return &Descriptor{props: p}, nil
}

// ID returns the context identifier.
func (d *Descriptor) ID() string {
	return d.props.GetString(keyID, "")
}

// ChainID returns the current incremental chain id, empty if absent.
func (d *Descriptor) ChainID() string {
	return d.props.GetString(keyChainID, "")
}

// ResetChain starts a new incremental chain: fresh chain id, counter back to
// zero, all chunk history dropped. Consumers seeing the new chain id fall
// back to the full dump.
func (d *Descriptor) ResetChain() {
	d.props.Set(keyChainID, uuid.NewString())
	d.props.Set(keyChunkCounter, "0")
	for _, k := range d.props.Keys() {
		if strings.HasPrefix(k, chunkKeyPrefix) {
			d.props.Delete(k)
		}
	}
}

// ChunkCounter returns the next chunk number to assign. Unparseable values
// read as zero, which forces a chain reset upstream.
func (d *Descriptor) ChunkCounter() int {
	n, err := strconv.Atoi(d.props.GetString(keyChunkCounter, "0"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// SetChunkCounter records the next chunk number.
func (d *Descriptor) SetChunkCounter(n int) {
	d.props.Set(keyChunkCounter, strconv.Itoa(n))
}

// Timestamp returns the last v1 publication time, zero if absent or
// unparseable.
func (d *Descriptor) Timestamp() time.Time {
	return d.parseTime(keyTimestamp)
}

// SetTimestamp records the v1 publication time.
func (d *Descriptor) SetTimestamp(t time.Time) {
	d.props.Set(keyTimestamp, formatTime(t))
}

// LegacyTimestamp returns the last legacy publication time, zero if absent.
func (d *Descriptor) LegacyTimestamp() time.Time {
	return d.parseTime(keyLegacyTimestamp)
}

// SetLegacyTimestamp records the legacy publication time.
func (d *Descriptor) SetLegacyTimestamp(t time.Time) {
	d.props.Set(keyLegacyTimestamp, formatTime(t))
}

// Creators returns the creator id list recorded at last publication.
func (d *Descriptor) Creators() []string {
	v := d.props.GetString(keyCreators, "")
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}

// SetCreators records the creator ids contributing to this publication.
func (d *Descriptor) SetCreators(ids []string) {
	d.props.Set(keyCreators, strings.Join(ids, ","))
}

// AddChunkMarker records chunk number n under the current chain id
// (incremental-chunk-<n> = <chain-id>) and drops history entries beyond keep,
// oldest first. It returns the chunk numbers evicted so the caller can remove
// their files.
func (d *Descriptor) AddChunkMarker(n, keep int) []int {
	d.props.Set(chunkKeyPrefix+strconv.Itoa(n), d.ChainID())

	chunks := d.ChunkMarkers()
	var evicted []int
	for i, c := range chunks {
		if keep > 0 && i >= keep {
			evicted = append(evicted, c)
			d.props.Delete(chunkKeyPrefix + strconv.Itoa(c))
		}
	}
	return evicted
}

// ChunkMarkers returns the recorded chunk numbers, newest first.
func (d *Descriptor) ChunkMarkers() []int {
	var nums []int
	for _, k := range d.props.Keys() {
		if !strings.HasPrefix(k, chunkKeyPrefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(k, chunkKeyPrefix))
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(nums)))
	return nums
}

// Store writes the descriptor atomically: temp sibling, then rename.
func (d *Descriptor) Store(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return ierr.Wrap(ierr.ErrCodeWriteFailed, err)
	}
	_, werr := d.props.Write(tmp, properties.UTF8)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(tmp.Name())
		if werr != nil {
			return ierr.Wrap(ierr.ErrCodeWriteFailed, werr)
		}
		return ierr.Wrap(ierr.ErrCodeWriteFailed, cerr)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return ierr.Wrap(ierr.ErrCodeWriteFailed, err)
	}
	return nil
}

func (d *Descriptor) parseTime(key string) time.Time {
	v := d.props.GetString(key, "")
	if v == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(timestampLayout, v, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
