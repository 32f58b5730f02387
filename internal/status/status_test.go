package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReporter(t *testing.T) {
	r := NewMemoryReporter()

	_, ok := r.Last()
	assert.False(t, ok)

	r.Show("Translating… 50%", false)
	r.Show("Translation service unreachable", true)
	r.Hide()

	msgs := r.Messages()
	require.Len(t, msgs, 2)
	assert.False(t, msgs[0].IsError)
	assert.True(t, msgs[1].IsError)
	assert.Equal(t, 1, r.Hidden())

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, "Translation service unreachable", last.Text)
}
