package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTitle = "S3A_SL_2_LST____20240512T101015_rest"

func TestReduceScene(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		filtered := Grid{{20, 22, math.NaN()}, {24, math.NaN(), math.NaN()}}

		rec, err := ReduceScene(testTitle, filtered, 42.0, 1.0)

		require.NoError(t, err)
		assert.Equal(t, "2024-05-12", rec.Date)
		assert.Equal(t, "10:10:15", rec.Time)
		assert.Equal(t, 22.0, rec.MedianTempC)
		assert.Equal(t, 42.0, rec.ClearSkyPct)
	})

	t.Run("below threshold", func(t *testing.T) {
		filtered := Grid{{20}}

		_, err := ReduceScene(testTitle, filtered, 0.99, 1.0)
		assert.ErrorIs(t, err, ErrBelowClearSkyThreshold)
	})

	t.Run("threshold is inclusive", func(t *testing.T) {
		filtered := Grid{{20}}

		_, err := ReduceScene(testTitle, filtered, 1.0, 1.0)
		assert.NoError(t, err)
	})

	t.Run("no valid pixels", func(t *testing.T) {
		filtered := Grid{{math.NaN()}}

		_, err := ReduceScene(testTitle, filtered, 50.0, 1.0)
		assert.ErrorIs(t, err, ErrEmptyScene)
	})

	t.Run("unparseable title", func(t *testing.T) {
		filtered := Grid{{20}}

		_, err := ReduceScene("no timestamp", filtered, 50.0, 1.0)

		var parseErr *DateTimeParseError
		assert.ErrorAs(t, err, &parseErr)
	})

	t.Run("even pixel count averages middle pair", func(t *testing.T) {
		filtered := Grid{{10, 20}, {30, 40}}

		rec, err := ReduceScene(testTitle, filtered, 100.0, 1.0)

		require.NoError(t, err)
		assert.Equal(t, 25.0, rec.MedianTempC)
	})
}
