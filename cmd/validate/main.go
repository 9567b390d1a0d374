// Command validate performs integrity checks across a data directory: store
// files, their summary CSVs, and weather coverage extracts. It verifies key
// formats, date containment, value plausibility, and store-to-CSV
// consistency.
//
// Usage:
//
//	go run ./cmd/validate -data-dir ./data
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/couchcryptid/lst-ingest/internal/coverage"
	"github.com/couchcryptid/lst-ingest/internal/domain"
	"github.com/couchcryptid/lst-ingest/internal/observability"
	"github.com/couchcryptid/lst-ingest/internal/store"
)

var keyRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2},\d{2}:\d{2}:\d{2}$`)

var extractNameRe = regexp.MustCompile(`^WeatherData_(\d{4}-\d{2}-\d{2})_to_(\d{4}-\d{2}-\d{2})_(-?\d+\.\d{5})_(-?\d+\.\d{5})\.csv$`)

// Plausibility bounds for surface temperature in °C.
const (
	minPlausibleTempC = -80.0
	maxPlausibleTempC = 80.0
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "./data", "data directory to validate")
	flag.Parse()

	if code := run(*dataDir); code != 0 {
		os.Exit(code)
	}
}

func run(dataDir string) int {
	fmt.Println("=== LST Data Integrity Validation ===")
	fmt.Println()

	infos, err := store.Scan(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: scan data directory: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateStores(infos),
		validateSummaryCSVs(infos),
		validateWeatherExtracts(dataDir),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// validateStores checks every store's keys and record values.
func validateStores(infos []store.Info) *phase {
	p := &phase{name: "store key and value integrity"}

	logger := observability.NewLogger("error", "text")
	for _, info := range infos {
		s, err := store.Open(info.Path, logger)
		if err != nil {
			p.errorf("%s: open: %v", info.Path, err)
			continue
		}

		recs, err := s.Records()
		if err != nil {
			p.errorf("%s: read records: %v", info.Path, err)
			s.Close()
			continue
		}
		for _, rec := range recs {
			key := rec.Key()
			if !keyRe.MatchString(key) {
				p.errorf("%s: malformed key %q", info.Path, key)
				continue
			}
			day, err := rec.Day()
			if err != nil {
				p.errorf("%s: unparseable date in key %q", info.Path, key)
				continue
			}
			if !info.Interval.Contains(day) {
				p.errorf("%s: key %q outside the file's range %s", info.Path, key, info.Interval)
			}
			if rec.MedianTempC < minPlausibleTempC || rec.MedianTempC > maxPlausibleTempC {
				p.errorf("%s: key %q has implausible median %.2f°C", info.Path, key, rec.MedianTempC)
			}
			if rec.ClearSkyPct < 0 || rec.ClearSkyPct > 100 {
				p.errorf("%s: key %q has clear-sky %.2f%% outside [0,100]", info.Path, key, rec.ClearSkyPct)
			}
		}
		s.Close()
	}

	fmt.Printf("Checked %d store file(s)\n", len(infos))
	return p
}

// validateSummaryCSVs checks each store's exported CSV row count against
// the store itself.
func validateSummaryCSVs(infos []store.Info) *phase {
	p := &phase{name: "summary CSV consistency"}

	logger := observability.NewLogger("error", "text")
	for _, info := range infos {
		csvPath := strings.TrimSuffix(info.Path, ".db") + ".csv"
		content, err := os.ReadFile(csvPath)
		if os.IsNotExist(err) {
			// A store without an export is fine; the CSV is a convenience.
			continue
		}
		if err != nil {
			p.errorf("%s: read: %v", csvPath, err)
			continue
		}

		lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
		if len(lines) == 0 || lines[0] != "date,time,median_temp_c,clear_sky_pct" {
			p.errorf("%s: unexpected header", csvPath)
			continue
		}

		s, err := store.Open(info.Path, logger)
		if err != nil {
			p.errorf("%s: open store: %v", info.Path, err)
			continue
		}
		keys, err := s.Keys()
		s.Close()
		if err != nil {
			p.errorf("%s: read keys: %v", info.Path, err)
			continue
		}
		if len(lines)-1 != len(keys) {
			p.errorf("%s: %d CSV rows but %d store records", csvPath, len(lines)-1, len(keys))
		}
	}
	return p
}

// validateWeatherExtracts checks that every extract's rows stay inside the
// range its file name declares, with unique ascending dates.
func validateWeatherExtracts(dataDir string) *phase {
	p := &phase{name: "weather extract containment"}

	entries, err := os.ReadDir(dataDir)
	if os.IsNotExist(err) {
		return p
	}
	if err != nil {
		p.errorf("read %s: %v", dataDir, err)
		return p
	}

	checked := 0
	for _, e := range entries {
		m := extractNameRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		checked++
		path := filepath.Join(dataDir, e.Name())

		interval, err := domain.NewDateInterval(m[1], m[2])
		if err != nil {
			p.errorf("%s: invalid range in file name", path)
			continue
		}
		rows, err := coverage.ReadExtract(path)
		if err != nil {
			p.errorf("%s: %v", path, err)
			continue
		}
		for i, row := range rows {
			if !interval.Contains(row.Date) {
				p.errorf("%s: row %d date %s outside declared range", path, i+1, row.Date.Format("2006-01-02"))
			}
			if i > 0 && !rows[i-1].Date.Before(row.Date) {
				p.errorf("%s: row %d dates out of order or duplicated", path, i+1)
			}
			if row.TempMin > row.TempMax {
				p.errorf("%s: row %d tempmin above tempmax", path, i+1)
			}
		}
	}

	fmt.Printf("Checked %d weather extract(s)\n", checked)
	return p
}
