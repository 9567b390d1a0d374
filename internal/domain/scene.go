package domain

import (
	"fmt"
	"regexp"
	"time"
)

// CloudFlagNames are the SLSTR cloud classifier flags OR-ed into the
// combined cloud mask. Flags absent from a scene are treated as
// "no cloud" contribution, never as "all cloud".
var CloudFlagNames = []string{
	"cloud_in",
	"cloud_in_1_37_threshold",
	"cloud_in_1_6_small_histogram",
	"cloud_in_1_6_large_histogram",
	"cloud_in_2_25_small_histogram",
	"cloud_in_2_25_large_histogram",
	"cloud_in_11_spatial_coherence",
	"cloud_in_gross_cloud",
	"cloud_in_thin_cirrus",
	"cloud_in_medium_high",
	"cloud_in_fog_low_stratus",
	"cloud_in_11_12_view_difference",
	"cloud_in_3_7_11_view_difference",
	"cloud_in_thermal_histogram",
	"cloud_in_visible",
	"cloud_in_spare_1",
	"cloud_in_spare_2",
}

// SceneDescriptor identifies one catalog product.
type SceneDescriptor struct {
	ID    string
	Title string
}

// SceneArchive is the local artifact for an acquired scene. Extracted is a
// terminal, idempotent marker: re-acquiring the same title is a no-op.
type SceneArchive struct {
	SceneID      string
	Title        string
	LocalPath    string // path of the downloaded zip
	ExtractedDir string // directory the archive was extracted into
	Extracted    bool
}

// RawSceneGrids is a read-only view of an extracted scene: the temperature
// grid in Kelvin, per-pixel geodetic coordinates, and whichever named cloud
// flags the scene carries. It is never persisted.
type RawSceneGrids struct {
	TemperatureK Grid
	PixelLat     Grid
	PixelLon     Grid
	Flags        map[string]Grid
}

// SceneReductionRecord is the per-scene result persisted into the
// time-series store. Created once per qualifying scene, never mutated.
type SceneReductionRecord struct {
	Date        string  `db:"date" json:"date"` // YYYY-MM-DD
	Time        string  `db:"time" json:"time"` // HH:MM:SS
	MedianTempC float64 `db:"median_temp_c" json:"median_temp_c"`
	ClearSkyPct float64 `db:"clear_sky_pct" json:"clear_sky_pct"`
}

// Key returns the store key, "YYYY-MM-DD,HH:MM:SS".
func (r SceneReductionRecord) Key() string {
	return r.Date + "," + r.Time
}

// Day returns the record's date at UTC midnight.
func (r SceneReductionRecord) Day() (time.Time, error) {
	return time.ParseInLocation("2006-01-02", r.Date, time.UTC)
}

// sceneTimestampRe matches the acquisition timestamp token embedded in
// product titles, e.g. "S3A_SL_2_LST____20240512T101015_..." → 20240512T101015.
var sceneTimestampRe = regexp.MustCompile(`(\d{8})T(\d{6})`)

// ExtractDateTime pulls the acquisition date and time out of a scene title.
// Returns a DateTimeParseError when the title has no valid timestamp token.
func ExtractDateTime(title string) (date, clock string, err error) {
	m := sceneTimestampRe.FindStringSubmatch(title)
	if m == nil {
		return "", "", &DateTimeParseError{Title: title}
	}
	if _, perr := time.Parse("20060102T150405", m[0]); perr != nil {
		return "", "", &DateTimeParseError{Title: title}
	}
	d, t := m[1], m[2]
	date = fmt.Sprintf("%s-%s-%s", d[:4], d[4:6], d[6:8])
	clock = fmt.Sprintf("%s:%s:%s", t[:2], t[2:4], t[4:6])
	return date, clock, nil
}
