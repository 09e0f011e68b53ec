package id

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsSortable(t *testing.T) {
	t.Parallel()

	ids := make([]string, 100)
	for i := range ids {
		ids[i] = New()
	}
	assert.True(t, sort.StringsAreSorted(ids))

	seen := map[string]bool{}
	for _, s := range ids {
		assert.Len(t, s, 26)
		assert.False(t, seen[s], s)
		seen[s] = true
	}
}

func TestAtCarriesTime(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)
	s := At(at)
	got, err := Time(s)
	require.NoError(t, err)
	assert.True(t, got.Equal(at), got)
	assert.Less(t, s, At(at.Add(time.Millisecond)))

	_, err = Time("not-a-ulid")
	assert.Error(t, err)
}
