// Package datastream implements the portable index dump format: a gzip
// stream carrying a version header, the stream timestamp and a sequence of
// field records. The same codec serves the full dump and the incremental
// chunks; readers keep field names they do not know, with their wire flags.
package datastream

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/mvnidx/mvnidx/internal/artifact"
)

// FormatVersion is the stream format version byte.
const FormatVersion = 1

// Writer emits records into a compressed dump stream.
type Writer struct {
	gz      *gzip.Writer
	records int
	closed  bool
}

// NewWriter starts a dump stream on w, stamped with the given time. The
// header is written immediately.
func NewWriter(w io.Writer, timestamp time.Time) (*Writer, error) {
	gz, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return nil, err
	}

	dw := &Writer{gz: gz}
	if err := dw.writeByte(FormatVersion); err != nil {
		return nil, err
	}
	if err := binary.Write(gz, binary.BigEndian, timestamp.UnixMilli()); err != nil {
		return nil, err
	}
	return dw, nil
}

// WriteRecord appends one record to the stream.
func (w *Writer) WriteRecord(rec *artifact.Record) error {
	if w.closed {
		return fmt.Errorf("write to closed dump stream")
	}
	if rec.Len() > math.MaxInt32 {
		return fmt.Errorf("record has too many fields: %d", rec.Len())
	}

	if err := binary.Write(w.gz, binary.BigEndian, int32(rec.Len())); err != nil {
		return err
	}
	for _, rf := range rec.Fields() {
		if err := w.writeField(rf); err != nil {
			return err
		}
	}

	w.records++
	return nil
}

func (w *Writer) writeField(rf artifact.RecordField) error {
	name := []byte(rf.Field.Key)
	if len(name) > math.MaxUint16 {
		return fmt.Errorf("field name too long: %d bytes", len(name))
	}
	value := []byte(rf.Value)
	if len(value) > math.MaxInt32 {
		return fmt.Errorf("field value too long: %d bytes", len(value))
	}

	if err := w.writeByte(rf.Field.Flags()); err != nil {
		return err
	}
	if err := binary.Write(w.gz, binary.BigEndian, uint16(len(name))); err != nil {
		return err
	}
	if _, err := w.gz.Write(name); err != nil {
		return err
	}
	if err := binary.Write(w.gz, binary.BigEndian, int32(len(value))); err != nil {
		return err
	}
	_, err := w.gz.Write(value)
	return err
}

func (w *Writer) writeByte(b byte) error {
	_, err := w.gz.Write([]byte{b})
	return err
}

// Records returns the number of records written so far.
func (w *Writer) Records() int {
	return w.records
}

// Close finishes the compressed stream. The underlying writer stays open.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.gz.Close()
}
