package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValid_RejectsLeadingZeros(t *testing.T) {
	assert.True(t, Valid([]byte(`{"x":0}`)))
	assert.True(t, Valid([]byte(`{"x":0.1}`)))
	assert.False(t, Valid([]byte(`{"x":01}`)))
	assert.False(t, Valid([]byte(`[-012]`)))
}

func TestCompactString(t *testing.T) {
	got, err := CompactString([]byte("{ \"a\" : [ 1, 2 ] }"))
	require.NoError(t, err)
	assert.Equal(t, `{"a":[1,2]}`, got)

	_, err = CompactString([]byte(`{"a":`))
	assert.Error(t, err)
}
