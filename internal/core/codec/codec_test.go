package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/protostore/internal/core/document"
)

type testPose struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type testRecord struct {
	ID         string    `json:"id"`
	TemplateID string    `json:"templateId,omitempty"`
	Name       string    `json:"name,omitempty"`
	Pose       *testPose `json:"pose,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	HP         int       `json:"hp,omitempty"`
}

func TestCodec_RoundTrip(t *testing.T) {
	c := New[*testRecord](Config{Strict: true})

	in := &testRecord{
		ID:   "goblin",
		Name: "Goblin",
		Pose: &testPose{X: 1, Y: 2},
		Tags: []string{"enemy", "small"},
		HP:   30,
	}

	doc, err := c.Encode(in)
	require.NoError(t, err)
	assert.Equal(t, "goblin", doc[document.FieldID])

	out, err := c.Decode(doc)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCodec_EncodeDecodeEncodeIsStable(t *testing.T) {
	c := New[*testRecord](Config{Strict: true})

	in := &testRecord{ID: "a", TemplateID: "b", HP: 7}
	doc, err := c.Encode(in)
	require.NoError(t, err)

	out, err := c.Decode(doc)
	require.NoError(t, err)

	again, err := c.Encode(out)
	require.NoError(t, err)
	assert.True(t, document.Equal(doc, again))
}

func TestCodec_StrictRejectsUnknownFields(t *testing.T) {
	c := New[*testRecord](Config{Strict: true})

	doc := document.Document{"id": "a", "legacyField": true}

	_, err := c.Decode(doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "/legacyField")
}

func TestCodec_NonStrictToleratesUnknownFields(t *testing.T) {
	c := New[*testRecord](Config{Strict: false})

	doc := document.Document{"id": "a", "legacyField": true}

	out, err := c.Decode(doc)
	require.NoError(t, err)
	assert.Equal(t, "a", out.ID)
}

func TestCodec_EncodeRejectsNonObjectRecords(t *testing.T) {
	c := New[[]string](Config{})

	_, err := c.Encode([]string{"not", "an", "object"})
	assert.Error(t, err)
}
