package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSetGet(t *testing.T) {
	r := NewRecord()
	r.Set(FieldUInfo, "g|a|1.0|NA|jar")
	r.Set(FieldName, "A")

	v, ok := r.Get("u")
	require.True(t, ok)
	assert.Equal(t, "g|a|1.0|NA|jar", v)
	assert.Equal(t, 2, r.Len())

	// replace keeps position and count
	r.Set(FieldName, "B")
	assert.Equal(t, 2, r.Len())
	v, _ = r.Get("n")
	assert.Equal(t, "B", v)
	assert.Equal(t, "n", r.Fields()[1].Field.Key)
}

func TestRecordDescriptorSentinel(t *testing.T) {
	r := NewRecord()
	assert.False(t, r.IsDescriptor())

	r.Set(FieldDescriptor, DescriptorContents)
	r.Set(FieldIDXInfo, "1.0|central")
	assert.True(t, r.IsDescriptor())
	assert.Empty(t, r.UInfo())
}

func TestRecordTombstone(t *testing.T) {
	r := NewRecord()
	r.Set(FieldDeleted, "g|a|1.0|NA|jar")
	assert.True(t, r.IsTombstone())
}

func TestFieldFlagsRoundTrip(t *testing.T) {
	for _, f := range []Field{FieldUInfo, FieldInfo, FieldName, FieldDeleted, FieldDescriptor} {
		got := FieldFromFlags(f.Key, f.Flags())
		assert.Equal(t, f, got, "field %s", f.Key)
	}
}

func TestFieldByKey(t *testing.T) {
	f, ok := FieldByKey("u")
	require.True(t, ok)
	assert.Equal(t, FieldUInfo, f)

	_, ok = FieldByKey("no-such-field")
	assert.False(t, ok)
}

func TestInfoPackUnpack(t *testing.T) {
	ai := &Info{
		GroupID:         "org.ex",
		ArtifactID:      "a",
		Version:         "1.0",
		Packaging:       "jar",
		FileExtension:   "jar",
		LastModified:    1234567890123,
		Size:            4,
		SourcesExists:   Present,
		JavadocExists:   NotPresent,
		SignatureExists: Unknown,
	}

	packed := ai.PackInfo()
	assert.Equal(t, "jar|1234567890123|4|1|0|2", packed)

	out := &Info{}
	require.NoError(t, out.UnpackInfo(packed))
	assert.Equal(t, "jar", out.Packaging)
	assert.Equal(t, int64(1234567890123), out.LastModified)
	assert.Equal(t, int64(4), out.Size)
	assert.Equal(t, Present, out.SourcesExists)
	assert.Equal(t, NotPresent, out.JavadocExists)
	assert.Equal(t, Unknown, out.SignatureExists)
}

func TestInfoUnpackMalformed(t *testing.T) {
	out := &Info{}
	assert.Error(t, out.UnpackInfo("jar|notanumber|4|1|0|2"))
	assert.Error(t, out.UnpackInfo("jar|1|2"))
}

func TestInfoUInfoAndCalculateGav(t *testing.T) {
	ai := NewInfo(Coordinate{GroupID: "org.ex", ArtifactID: "a", Version: "1.0", Extension: "jar"})
	assert.Equal(t, "org.ex|a|1.0|NA|jar", ai.UInfo())

	out := &Info{}
	require.NoError(t, out.SetUInfo("org.ex|a|1.0|sources|jar"))
	gav := out.CalculateGav()
	assert.Equal(t, "org.ex", gav.GroupID)
	assert.Equal(t, "sources", gav.Classifier)
	assert.Equal(t, "jar", gav.Extension)
}
