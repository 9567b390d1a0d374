package domain

import (
	"fmt"
	"time"
)

// DateInterval is an inclusive day range. Both endpoints are UTC midnights.
type DateInterval struct {
	Start time.Time
	End   time.Time
}

// NewDateInterval parses two YYYY-MM-DD dates into an interval.
func NewDateInterval(start, end string) (DateInterval, error) {
	s, err := time.ParseInLocation("2006-01-02", start, time.UTC)
	if err != nil {
		return DateInterval{}, fmt.Errorf("%w: start date %q", ErrInvalidParameter, start)
	}
	e, err := time.ParseInLocation("2006-01-02", end, time.UTC)
	if err != nil {
		return DateInterval{}, fmt.Errorf("%w: end date %q", ErrInvalidParameter, end)
	}
	if e.Before(s) {
		return DateInterval{}, fmt.Errorf("%w: end %s before start %s", ErrInvalidParameter, end, start)
	}
	return DateInterval{Start: s, End: e}, nil
}

// Contains reports whether day falls inside the interval, endpoints included.
func (i DateInterval) Contains(day time.Time) bool {
	return !day.Before(i.Start) && !day.After(i.End)
}

// Days returns the number of days covered, endpoints included.
func (i DateInterval) Days() int {
	return int(i.End.Sub(i.Start).Hours()/24) + 1
}

func (i DateInterval) String() string {
	return i.Start.Format("2006-01-02") + " to " + i.End.Format("2006-01-02")
}

// TrailingInterval returns the interval ending today (UTC) and starting
// lookbackDays-1 days earlier, the scheduled daemon's default request.
func TrailingInterval(lookbackDays int) DateInterval {
	now := clock.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return DateInterval{Start: today.AddDate(0, 0, -(lookbackDays - 1)), End: today}
}

// SeasonalWindows slices a request interval into the May-through-September
// growing-season windows of each year it touches, clipped to the request.
// Years whose season falls entirely outside the request contribute nothing.
func SeasonalWindows(req DateInterval) []DateInterval {
	var windows []DateInterval
	for year := req.Start.Year(); year <= req.End.Year(); year++ {
		w := DateInterval{
			Start: time.Date(year, time.May, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(year, time.September, 30, 0, 0, 0, 0, time.UTC),
		}
		if w.Start.Before(req.Start) {
			w.Start = req.Start
		}
		if w.End.After(req.End) {
			w.End = req.End
		}
		if w.End.Before(w.Start) {
			continue
		}
		windows = append(windows, w)
	}
	return windows
}
