package domain

import (
	"sort"
	"time"
)

// WeatherDay is one day of station-model weather for the AOI center.
type WeatherDay struct {
	Date        time.Time
	TempMin     float64
	TempMax     float64
	Precip      float64
	PrecipProb  float64
	PrecipCover float64
}

// SurfacePoint is one day of the blended surface-temperature series.
// Source records which estimator produced the value.
type SurfacePoint struct {
	Date   time.Time
	TempC  float64
	Source string // "satellite" or "air"
}

// Surface source labels.
const (
	SourceSatellite = "satellite"
	SourceAir       = "air"
)

// BuildSurfaceSeries blends satellite reductions with daily weather into one
// temperature per day, restricted to the given windows.
//
// For each day with weather data: when satellite overpasses exist and their
// mean is at least the day's minimum air temperature, the mean is used
// directly. A satellite mean below the daily minimum indicates residual
// cloud contamination, so the day falls back to the air-temperature midpoint
// (tempmin+tempmax)/2. Days without weather data are dropped, since the
// plausibility check cannot run. Output is sorted by date.
func BuildSurfaceSeries(days []WeatherDay, records []SceneReductionRecord, windows []DateInterval) []SurfacePoint {
	satByDay := make(map[time.Time][]float64)
	for _, rec := range records {
		day, err := rec.Day()
		if err != nil {
			continue
		}
		satByDay[day] = append(satByDay[day], rec.MedianTempC)
	}

	inWindows := func(day time.Time) bool {
		for _, w := range windows {
			if w.Contains(day) {
				return true
			}
		}
		return false
	}

	var series []SurfacePoint
	for _, wd := range days {
		day := time.Date(wd.Date.Year(), wd.Date.Month(), wd.Date.Day(), 0, 0, 0, 0, time.UTC)
		if !inWindows(day) {
			continue
		}

		point := SurfacePoint{Date: day, TempC: (wd.TempMin + wd.TempMax) / 2, Source: SourceAir}
		if temps := satByDay[day]; len(temps) > 0 {
			sum := 0.0
			for _, t := range temps {
				sum += t
			}
			mean := sum / float64(len(temps))
			if mean >= wd.TempMin {
				point.TempC = mean
				point.Source = SourceSatellite
			}
		}
		series = append(series, point)
	}

	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series
}
