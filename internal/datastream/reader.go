package datastream

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/mvnidx/mvnidx/internal/artifact"
	ierr "github.com/mvnidx/mvnidx/internal/errors"
)

// maxFieldValueLen bounds a single field value read from a stream, guarding
// against corrupted length prefixes.
const maxFieldValueLen = 512 * 1024 * 1024

// Reader consumes a compressed dump stream.
type Reader struct {
	gz        *gzip.Reader
	timestamp time.Time
}

// NewReader opens a dump stream and validates its header.
func NewReader(r io.Reader) (*Reader, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, ierr.New(ierr.ErrCodeFileCorrupt, "dump stream is not gzip", err)
	}

	var version [1]byte
	if _, err := io.ReadFull(gz, version[:]); err != nil {
		return nil, ierr.New(ierr.ErrCodeFileCorrupt, "dump stream truncated before version", err)
	}
	if version[0] != FormatVersion {
		return nil, ierr.New(ierr.ErrCodeFileCorrupt,
			fmt.Sprintf("unsupported dump format version %d", version[0]), nil)
	}

	var millis int64
	if err := binary.Read(gz, binary.BigEndian, &millis); err != nil {
		return nil, ierr.New(ierr.ErrCodeFileCorrupt, "dump stream truncated before timestamp", err)
	}

	return &Reader{gz: gz, timestamp: time.UnixMilli(millis).UTC()}, nil
}

// Timestamp returns the stream timestamp from the header.
func (r *Reader) Timestamp() time.Time {
	return r.timestamp
}

// ReadRecord returns the next record, or io.EOF at the clean end of the
// stream. Unknown field names are preserved with their wire flags.
func (r *Reader) ReadRecord() (*artifact.Record, error) {
	var fieldCount int32
	if err := binary.Read(r.gz, binary.BigEndian, &fieldCount); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, ierr.New(ierr.ErrCodeFileCorrupt, "dump record truncated", err)
	}
	if fieldCount < 0 {
		return nil, ierr.New(ierr.ErrCodeFileCorrupt,
			fmt.Sprintf("negative field count %d", fieldCount), nil)
	}

	rec := artifact.NewRecord()
	for i := int32(0); i < fieldCount; i++ {
		if err := r.readField(rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (r *Reader) readField(rec *artifact.Record) error {
	var flags [1]byte
	if _, err := io.ReadFull(r.gz, flags[:]); err != nil {
		return ierr.New(ierr.ErrCodeFileCorrupt, "dump field truncated", err)
	}

	var nameLen uint16
	if err := binary.Read(r.gz, binary.BigEndian, &nameLen); err != nil {
		return ierr.New(ierr.ErrCodeFileCorrupt, "dump field name truncated", err)
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r.gz, name); err != nil {
		return ierr.New(ierr.ErrCodeFileCorrupt, "dump field name truncated", err)
	}

	var valueLen int32
	if err := binary.Read(r.gz, binary.BigEndian, &valueLen); err != nil {
		return ierr.New(ierr.ErrCodeFileCorrupt, "dump field value truncated", err)
	}
	if valueLen < 0 || valueLen > maxFieldValueLen {
		return ierr.New(ierr.ErrCodeFileCorrupt,
			fmt.Sprintf("implausible field value length %d", valueLen), nil)
	}
	value := make([]byte, valueLen)
	if _, err := io.ReadFull(r.gz, value); err != nil {
		return ierr.New(ierr.ErrCodeFileCorrupt, "dump field value truncated", err)
	}

	key := string(name)
	field, ok := artifact.FieldByKey(key)
	if !ok {
		field = artifact.FieldFromFlags(key, flags[0])
	}
	rec.Set(field, string(value))
	return nil
}

// Close closes the decompressor. The underlying reader stays open.
func (r *Reader) Close() error {
	return r.gz.Close()
}
