package artifact

// Field describes a named index field and how it is handled by the index and
// the portable dump format.
type Field struct {
	// Key is the wire name of the field, stable across format versions.
	Key string
	// Indexed marks the field as searchable in the inverted index.
	Indexed bool
	// Tokenized marks the field value as analyzed rather than kept exact.
	Tokenized bool
	// Stored marks the field value as round-trippable from the index.
	Stored bool
}

// Flags packs the field handling bits for the v1 dump format:
// bit0=indexed, bit1=tokenized, bit2=stored.
func (f Field) Flags() byte {
	var b byte
	if f.Indexed {
		b |= 1
	}
	if f.Tokenized {
		b |= 2
	}
	if f.Stored {
		b |= 4
	}
	return b
}

// FieldFromFlags reconstructs a Field for an arbitrary wire name and flag
// byte. Used by dump readers for field names they do not know.
func FieldFromFlags(key string, flags byte) Field {
	return Field{
		Key:       key,
		Indexed:   flags&1 != 0,
		Tokenized: flags&2 != 0,
		Stored:    flags&4 != 0,
	}
}

// The published field set. Wire names are part of the dump format and never
// change.
var (
	// FieldUInfo is the unique artifact key.
	FieldUInfo = Field{Key: "u", Indexed: true, Stored: true}
	// FieldInfo is the packed artifact info:
	// packaging|lastModified|size|sourcesExists|javadocExists|signatureExists.
	FieldInfo = Field{Key: "i", Stored: true}
	// FieldLastModified is the record modification time, epoch millis. It is
	// assigned when the record enters the index, not from the artifact file.
	FieldLastModified = Field{Key: "m", Stored: true}
	// FieldName is the artifact display name from the POM.
	FieldName = Field{Key: "n", Indexed: true, Tokenized: true, Stored: true}
	// FieldDescription is the artifact description from the POM.
	FieldDescription = Field{Key: "d", Indexed: true, Tokenized: true, Stored: true}
	// FieldSHA1 is the hex SHA-1 digest of the artifact file.
	FieldSHA1 = Field{Key: "1", Indexed: true, Stored: true}
	// FieldClassnames holds newline-joined class names found in the archive.
	FieldClassnames = Field{Key: "c", Indexed: true, Tokenized: true, Stored: true}
	// FieldDeleted is the tombstone marker; its value is the deleted UINFO.
	FieldDeleted = Field{Key: "del", Indexed: true, Stored: true}
	// FieldDescriptor is the sentinel identifying the descriptor record.
	FieldDescriptor = Field{Key: "DESCRIPTOR", Indexed: true, Stored: true}
	// FieldIDXInfo carries the format version and context id on the
	// descriptor record.
	FieldIDXInfo = Field{Key: "IDXINFO", Stored: true}
)

// DescriptorContents is the value of the sentinel descriptor field.
const DescriptorContents = "NexusIndex"

// NewDescriptorRecord builds the descriptor record emitted first in every
// dump stream and stored in the live index.
func NewDescriptorRecord(formatVersion, contextID string) *Record {
	rec := NewRecord()
	rec.Set(FieldDescriptor, DescriptorContents)
	rec.Set(FieldIDXInfo, formatVersion+FS+contextID)
	return rec
}

var knownFields = map[string]Field{
	FieldUInfo.Key:        FieldUInfo,
	FieldInfo.Key:         FieldInfo,
	FieldLastModified.Key: FieldLastModified,
	FieldName.Key:         FieldName,
	FieldDescription.Key:  FieldDescription,
	FieldSHA1.Key:         FieldSHA1,
	FieldClassnames.Key:   FieldClassnames,
	FieldDeleted.Key:      FieldDeleted,
	FieldDescriptor.Key:   FieldDescriptor,
	FieldIDXInfo.Key:      FieldIDXInfo,
}

// FieldByKey returns the published Field for a wire name. ok is false for
// unknown names; callers preserve those verbatim with FieldFromFlags.
func FieldByKey(key string) (Field, bool) {
	f, ok := knownFields[key]
	return f, ok
}

// RecordField is one field instance inside a record.
type RecordField struct {
	Field Field
	Value string
}

// Record is an ordered, typed field mapping for a single artifact (or for the
// descriptor or a tombstone). Insertion order is preserved; setting an
// existing key replaces its value in place.
type Record struct {
	fields []RecordField
	byKey  map[string]int
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{byKey: make(map[string]int)}
}

// Set adds or replaces the field value.
func (r *Record) Set(f Field, value string) {
	if i, ok := r.byKey[f.Key]; ok {
		r.fields[i] = RecordField{Field: f, Value: value}
		return
	}
	r.byKey[f.Key] = len(r.fields)
	r.fields = append(r.fields, RecordField{Field: f, Value: value})
}

// Get returns the value for a wire name.
func (r *Record) Get(key string) (string, bool) {
	i, ok := r.byKey[key]
	if !ok {
		return "", false
	}
	return r.fields[i].Value, true
}

// Fields returns the fields in insertion order. The slice is shared; callers
// must not mutate it.
func (r *Record) Fields() []RecordField {
	return r.fields
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return len(r.fields)
}

// UInfo returns the record's unique key, empty for descriptor and malformed
// records.
func (r *Record) UInfo() string {
	v, _ := r.Get(FieldUInfo.Key)
	return v
}

// IsDescriptor reports whether this is the descriptor record, keyed on the
// sentinel field name rather than record position.
func (r *Record) IsDescriptor() bool {
	v, ok := r.Get(FieldDescriptor.Key)
	return ok && v == DescriptorContents
}

// IsTombstone reports whether this record marks a deletion.
func (r *Record) IsTombstone() bool {
	_, ok := r.Get(FieldDeleted.Key)
	return ok
}
