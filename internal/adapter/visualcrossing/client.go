// Package visualcrossing fetches daily station-model weather from the
// Visual Crossing timeline API.
package visualcrossing

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/couchcryptid/lst-ingest/internal/domain"
	"github.com/couchcryptid/lst-ingest/internal/observability"
)

// Client queries the timeline endpoint for one coordinate and date range.
// A circuit breaker shields the pipeline from a flapping weather API: once
// open, range fetches fail fast and the affected sub-ranges are reported as
// failed instead of stalling the batch.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	circuit    *gobreaker.CircuitBreaker
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a weather client.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "visualcrossing",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		circuit:    cb,
		logger:     logger,
		metrics:    metrics,
	}
}

// FetchRange returns one WeatherDay per day of the interval, endpoints
// included, sorted as the API returns them (ascending by date).
func (c *Client) FetchRange(ctx context.Context, lat, lon float64, interval domain.DateInterval) ([]domain.WeatherDay, error) {
	u := fmt.Sprintf("%s/%.5f,%.5f/%s/%s", c.baseURL, lat, lon,
		interval.Start.Format("2006-01-02"), interval.End.Format("2006-01-02"))
	params := url.Values{
		"unitGroup":   {"metric"},
		"include":     {"days"},
		"key":         {c.apiKey},
		"contentType": {"csv"},
	}

	result, err := c.circuit.Execute(func() (interface{}, error) {
		return c.fetch(ctx, u+"?"+params.Encode())
	})
	if err != nil {
		c.metrics.WeatherFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("weather fetch %s: %w", interval, err)
	}

	days := result.([]domain.WeatherDay)
	c.metrics.WeatherFetches.WithLabelValues("success").Inc()
	c.logger.Info("weather range fetched", "interval", interval.String(), "days", len(days))
	return days, nil
}

func (c *Client) fetch(ctx context.Context, fullURL string) ([]domain.WeatherDay, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("weather API error: status %d: %s", resp.StatusCode, body)
	}

	return ParseDaysCSV(resp.Body)
}

// ParseDaysCSV decodes a timeline CSV payload, locating columns by header
// name so column order and extra columns do not matter.
func ParseDaysCSV(r io.Reader) ([]domain.WeatherDay, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"datetime", "tempmin", "tempmax"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("CSV missing %q column", required)
		}
	}

	var days []domain.WeatherDay
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row: %w", err)
		}

		date, err := time.ParseInLocation("2006-01-02", field(row, col, "datetime"), time.UTC)
		if err != nil {
			return nil, fmt.Errorf("bad datetime in CSV row: %w", err)
		}
		tempMin, err := strconv.ParseFloat(field(row, col, "tempmin"), 64)
		if err != nil {
			return nil, fmt.Errorf("bad tempmin in CSV row: %w", err)
		}
		tempMax, err := strconv.ParseFloat(field(row, col, "tempmax"), 64)
		if err != nil {
			return nil, fmt.Errorf("bad tempmax in CSV row: %w", err)
		}

		days = append(days, domain.WeatherDay{
			Date:        date,
			TempMin:     tempMin,
			TempMax:     tempMax,
			Precip:      optionalFloat(row, col, "precip"),
			PrecipProb:  optionalFloat(row, col, "precipprob"),
			PrecipCover: optionalFloat(row, col, "precipcover"),
		})
	}
	return days, nil
}

func field(row []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func optionalFloat(row []string, col map[string]int, name string) float64 {
	v, err := strconv.ParseFloat(field(row, col, name), 64)
	if err != nil {
		return 0
	}
	return v
}
