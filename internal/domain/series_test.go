package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSurfaceSeries(t *testing.T) {
	windows := []DateInterval{{Start: day(2023, time.May, 1), End: day(2023, time.September, 30)}}

	t.Run("satellite mean wins when plausible", func(t *testing.T) {
		days := []WeatherDay{{Date: day(2023, time.June, 1), TempMin: 15, TempMax: 25}}
		records := []SceneReductionRecord{
			{Date: "2023-06-01", Time: "10:00:00", MedianTempC: 28},
			{Date: "2023-06-01", Time: "21:00:00", MedianTempC: 22},
		}

		series := BuildSurfaceSeries(days, records, windows)

		require.Len(t, series, 1)
		assert.Equal(t, SourceSatellite, series[0].Source)
		assert.InDelta(t, 25.0, series[0].TempC, 1e-9)
	})

	t.Run("implausibly cold satellite mean falls back to air midpoint", func(t *testing.T) {
		days := []WeatherDay{{Date: day(2023, time.June, 1), TempMin: 15, TempMax: 25}}
		records := []SceneReductionRecord{{Date: "2023-06-01", Time: "10:00:00", MedianTempC: 3}}

		series := BuildSurfaceSeries(days, records, windows)

		require.Len(t, series, 1)
		assert.Equal(t, SourceAir, series[0].Source)
		assert.InDelta(t, 20.0, series[0].TempC, 1e-9)
	})

	t.Run("day without satellite uses air midpoint", func(t *testing.T) {
		days := []WeatherDay{{Date: day(2023, time.July, 10), TempMin: 10, TempMax: 30}}

		series := BuildSurfaceSeries(days, nil, windows)

		require.Len(t, series, 1)
		assert.Equal(t, SourceAir, series[0].Source)
		assert.InDelta(t, 20.0, series[0].TempC, 1e-9)
	})

	t.Run("satellite day without weather is dropped", func(t *testing.T) {
		records := []SceneReductionRecord{{Date: "2023-06-01", Time: "10:00:00", MedianTempC: 25}}

		series := BuildSurfaceSeries(nil, records, windows)
		assert.Empty(t, series)
	})

	t.Run("days outside the windows are dropped", func(t *testing.T) {
		days := []WeatherDay{
			{Date: day(2023, time.April, 30), TempMin: 5, TempMax: 15},
			{Date: day(2023, time.May, 1), TempMin: 5, TempMax: 15},
		}

		series := BuildSurfaceSeries(days, nil, windows)

		require.Len(t, series, 1)
		assert.Equal(t, day(2023, time.May, 1), series[0].Date)
	})

	t.Run("output sorted by date", func(t *testing.T) {
		days := []WeatherDay{
			{Date: day(2023, time.June, 3), TempMin: 10, TempMax: 20},
			{Date: day(2023, time.June, 1), TempMin: 10, TempMax: 20},
			{Date: day(2023, time.June, 2), TempMin: 10, TempMax: 20},
		}

		series := BuildSurfaceSeries(days, nil, windows)

		require.Len(t, series, 3)
		assert.True(t, series[0].Date.Before(series[1].Date))
		assert.True(t, series[1].Date.Before(series[2].Date))
	})
}
