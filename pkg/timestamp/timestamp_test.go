package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAcceptsBothLayouts(t *testing.T) {
	naive, err := Parse("2025-08-13T16:00:05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 8, 13, 16, 0, 5, 0, time.UTC), naive)

	rfc, err := Parse("2025-08-13T16:00:05Z")
	require.NoError(t, err)
	assert.True(t, naive.Equal(rfc))
}

func TestParseEmptyReturnsZero(t *testing.T) {
	ts, err := Parse("")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("13/08/2025 16:00")
	assert.Error(t, err)
}

func TestFormatRoundTrip(t *testing.T) {
	ts := time.Date(2025, 8, 13, 16, 0, 5, 0, time.UTC)
	assert.Equal(t, "2025-08-13T16:00:05Z", Format(ts))
	assert.Equal(t, "", Format(time.Time{}))

	back, err := Parse(Format(ts))
	require.NoError(t, err)
	assert.True(t, ts.Equal(back))
}

func TestBucketStability(t *testing.T) {
	window := time.Minute
	a := time.Date(2025, 8, 13, 16, 0, 5, 0, time.UTC)
	b := time.Date(2025, 8, 13, 16, 0, 55, 0, time.UTC)
	c := time.Date(2025, 8, 13, 16, 1, 5, 0, time.UTC)

	assert.Equal(t, Bucket(a, window), Bucket(b, window))
	assert.NotEqual(t, Bucket(a, window), Bucket(c, window))

	// Non-positive window collapses everything into one bucket.
	assert.Equal(t, Bucket(a, 0), Bucket(c, 0))
}

func TestWithinIsSymmetric(t *testing.T) {
	a := time.Date(2025, 8, 13, 16, 0, 0, 0, time.UTC)
	b := a.Add(45 * time.Second)

	assert.True(t, Within(a, b, time.Minute))
	assert.True(t, Within(b, a, time.Minute))
	assert.False(t, Within(a, b, 30*time.Second))
	assert.True(t, Within(a, a.Add(time.Minute), time.Minute)) // inclusive
}
