package json

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Tags  []string `json:"tags,omitempty"`
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	in := sample{Name: "chunks", Count: 3, Tags: []string{"a", "b"}}

	data, err := Marshal(in)
	require.NoError(t, err)

	var out sample
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(sample{Name: "doc"}))

	var out sample
	require.NoError(t, NewDecoder(&buf).Decode(&out))
	assert.Equal(t, "doc", out.Name)
}

func TestMarshalString(t *testing.T) {
	s, err := MarshalString(map[string]int{"k": 5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":5}`, s)
}

func TestUnmarshalInvalid(t *testing.T) {
	var out sample
	assert.Error(t, Unmarshal([]byte("{not json"), &out))
}
