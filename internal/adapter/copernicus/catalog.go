package copernicus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/couchcryptid/lst-ingest/internal/domain"
)

// Catalog queries the CDSE resto API for products intersecting an AOI and a
// date interval.
type Catalog struct {
	catalogURL  string
	productType string
	maxRecords  int
	session     *Session
	logger      *slog.Logger
}

// NewCatalog creates a catalog client sharing an authenticated session.
func NewCatalog(catalogURL, productType string, maxRecords int, session *Session, logger *slog.Logger) *Catalog {
	return &Catalog{
		catalogURL:  catalogURL,
		productType: productType,
		maxRecords:  maxRecords,
		session:     session,
		logger:      logger,
	}
}

// resto API response types.

type searchResponse struct {
	Features []searchFeature `json:"features"`
}

type searchFeature struct {
	ID         string `json:"id"`
	Properties struct {
		Title string `json:"title"`
	} `json:"properties"`
}

// Search returns the scene descriptors for one interval. An empty result is
// not an error; a non-200 response is a CatalogQueryError, which fails this
// window only.
func (c *Catalog) Search(ctx context.Context, aoi domain.AreaOfInterest, interval domain.DateInterval) ([]domain.SceneDescriptor, error) {
	params := url.Values{
		"startDate":      {interval.Start.Format("2006-01-02")},
		"completionDate": {interval.End.Format("2006-01-02")},
		"productType":    {c.productType},
		"geometry":       {aoi.WKT()},
		"maxRecords":     {strconv.Itoa(c.maxRecords)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.catalogURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}

	resp, err := c.session.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog search %s: %w", interval, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &domain.CatalogQueryError{Status: resp.StatusCode, Body: string(body)}
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	scenes := make([]domain.SceneDescriptor, 0, len(sr.Features))
	for _, f := range sr.Features {
		scenes = append(scenes, domain.SceneDescriptor{ID: f.ID, Title: f.Properties.Title})
	}
	c.logger.Info("catalog search complete", "interval", interval.String(), "scenes", len(scenes))
	return scenes, nil
}
