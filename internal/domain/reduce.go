package domain

import "fmt"

// ReduceScene collapses a masked temperature grid into a single
// SceneReductionRecord. Scenes under the clear-sky threshold yield
// ErrBelowClearSkyThreshold; a grid with no valid pixels yields
// ErrEmptyScene. Both are expected per-scene outcomes.
func ReduceScene(title string, filtered Grid, clearSkyPct, thresholdPct float64) (SceneReductionRecord, error) {
	if clearSkyPct < thresholdPct {
		return SceneReductionRecord{}, fmt.Errorf("%w: %.3f%% < %.3f%%", ErrBelowClearSkyThreshold, clearSkyPct, thresholdPct)
	}

	vals := filtered.ValidValues()
	if len(vals) == 0 {
		return SceneReductionRecord{}, ErrEmptyScene
	}

	date, clock, err := ExtractDateTime(title)
	if err != nil {
		return SceneReductionRecord{}, err
	}

	return SceneReductionRecord{
		Date:        date,
		Time:        clock,
		MedianTempC: Median(vals),
		ClearSkyPct: clearSkyPct,
	}, nil
}
