package domain

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAreaOfInterest(t *testing.T) {
	t.Run("5km square at mid latitude", func(t *testing.T) {
		aoi, err := NewAreaOfInterest(45.0, 9.0, 5000)
		require.NoError(t, err)

		b := aoi.Bound()
		latSpan := b.Max[1] - b.Min[1]
		lonSpan := b.Max[0] - b.Min[0]
		assert.InDelta(t, 5000.0/metersPerDegreeLat, latSpan, 1e-9)
		// cos(45°) widens the longitude span by sqrt(2).
		assert.InDelta(t, latSpan*math.Sqrt2, lonSpan, 1e-9)
		assert.InDelta(t, 45.0, (b.Min[1]+b.Max[1])/2, 1e-9)
		assert.InDelta(t, 9.0, (b.Min[0]+b.Max[0])/2, 1e-9)
	})

	t.Run("ring is closed", func(t *testing.T) {
		aoi, err := NewAreaOfInterest(45.0, 9.0, 5000)
		require.NoError(t, err)

		ring := aoi.Polygon()[0]
		require.Len(t, ring, 5)
		assert.Equal(t, ring[0], ring[4])
	})

	t.Run("rejects non-positive side", func(t *testing.T) {
		_, err := NewAreaOfInterest(45.0, 9.0, 0)
		assert.ErrorIs(t, err, ErrInvalidParameter)

		_, err = NewAreaOfInterest(45.0, 9.0, -100)
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})

	t.Run("rejects polar center", func(t *testing.T) {
		_, err := NewAreaOfInterest(90.0, 0.0, 5000)
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})

	t.Run("rejects NaN center", func(t *testing.T) {
		_, err := NewAreaOfInterest(math.NaN(), 9.0, 5000)
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
}

func TestAreaOfInterestContains(t *testing.T) {
	aoi, err := NewAreaOfInterest(45.0, 9.0, 5000)
	require.NoError(t, err)

	t.Run("center is inside", func(t *testing.T) {
		assert.True(t, aoi.Contains(9.0, 45.0))
	})

	t.Run("far point is outside", func(t *testing.T) {
		assert.False(t, aoi.Contains(10.0, 45.0))
		assert.False(t, aoi.Contains(9.0, 46.0))
	})

	t.Run("just inside the edge", func(t *testing.T) {
		b := aoi.Bound()
		assert.True(t, aoi.Contains(b.Min[0]+1e-9, 45.0))
	})

	t.Run("repeated evaluation is consistent", func(t *testing.T) {
		b := aoi.Bound()
		first := aoi.Contains(b.Min[0], 45.0)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, aoi.Contains(b.Min[0], 45.0))
		}
	})
}

func TestAreaOfInterestWKT(t *testing.T) {
	aoi, err := NewAreaOfInterest(45.0, 9.0, 5000)
	require.NoError(t, err)

	wkt := aoi.WKT()
	assert.True(t, strings.HasPrefix(wkt, "POLYGON"), "got %q", wkt)
	assert.Contains(t, wkt, "(")
}
