package domain

import (
	"errors"
	"fmt"
)

// Sentinel outcomes. These are expected per-scene results, not failures:
// callers match them with errors.Is and count them in the batch summary.
var (
	// ErrEmptyScene marks a scene whose valid subset is empty after AOI
	// cropping and cloud dilation (e.g. a fully overcast pass).
	ErrEmptyScene = errors.New("scene has no valid pixels after masking")

	// ErrBelowClearSkyThreshold marks a scene rejected by the clear-sky gate.
	ErrBelowClearSkyThreshold = errors.New("clear-sky percentage below threshold")

	// ErrInvalidParameter marks structurally invalid input, fatal for the run.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// AuthenticationError is fatal for the whole run once the single
// refresh-and-retry has been exhausted.
type AuthenticationError struct {
	Status int
	Body   string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: status %d: %s", e.Status, e.Body)
}

// CatalogQueryError is fatal for one search call only; scenes already
// acquired from other windows are unaffected.
type CatalogQueryError struct {
	Status int
	Body   string
}

func (e *CatalogQueryError) Error() string {
	return fmt.Sprintf("catalog query failed: status %d: %s", e.Status, e.Body)
}

// AcquisitionError is a per-scene download or extraction failure; the batch
// logs it and continues with the remaining scenes.
type AcquisitionError struct {
	Title  string
	Status int
	Err    error
}

func (e *AcquisitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("acquire %s: %v", e.Title, e.Err)
	}
	return fmt.Sprintf("acquire %s: status %d", e.Title, e.Status)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// DateTimeParseError marks a scene title without a usable acquisition
// timestamp; the scene is skipped, the batch continues.
type DateTimeParseError struct {
	Title string
}

func (e *DateTimeParseError) Error() string {
	return fmt.Sprintf("no acquisition timestamp in scene title %q", e.Title)
}
