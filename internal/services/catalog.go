package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// CatalogPart is one entry returned by the external catalog search.
type CatalogPart struct {
	Number string `json:"number"`
	Name   string `json:"name"`
}

// CatalogClient is the external parts catalog collaborator: VIN decoding
// and part search by VIN plus description.
type CatalogClient interface {
	// VehicleLookup decodes a VIN into vehicle details. A nil result with a
	// nil error means the catalog has no data for the VIN.
	VehicleLookup(ctx context.Context, vin string) (*VehicleInfo, error)
	SearchParts(ctx context.Context, vin, description string) ([]CatalogPart, error)
}

// ScraperCatalogClient calls the catalog scraper sidecar over HTTP. The
// sidecar owns the HTML parsing; this client only speaks its JSON API.
type ScraperCatalogClient struct {
	client  *http.Client
	baseURL string
}

// NewScraperCatalogClient creates a catalog client from CATALOG_SERVICE_URL.
func NewScraperCatalogClient() (*ScraperCatalogClient, error) {
	baseURL := os.Getenv("CATALOG_SERVICE_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("missing CATALOG_SERVICE_URL in environment variables")
	}

	return &ScraperCatalogClient{
		client:  &http.Client{Timeout: 20 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (c *ScraperCatalogClient) VehicleLookup(ctx context.Context, vin string) (*VehicleInfo, error) {
	endpoint := fmt.Sprintf("%s/vehicle/%s", c.baseURL, url.PathEscape(vin))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, NewTerminalFault("vehicle_lookup", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, NewTransientFault("vehicle_lookup", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, NewTransientFault("vehicle_lookup", fmt.Errorf("status %d", resp.StatusCode))
	}

	var payload struct {
		Brand string `json:"brand"`
		Name  string `json:"name"`
		Date  string `json:"date"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, NewTransientFault("vehicle_lookup", err)
	}

	return &VehicleInfo{
		VIN:   vin,
		Brand: payload.Brand,
		Model: payload.Name,
		Year:  payload.Date,
	}, nil
}

func (c *ScraperCatalogClient) SearchParts(ctx context.Context, vin, description string) ([]CatalogPart, error) {
	query := url.Values{}
	query.Set("vin", vin)
	query.Set("q", description)
	endpoint := fmt.Sprintf("%s/search?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, NewTerminalFault("catalog_search", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, NewTransientFault("catalog_search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewTransientFault("catalog_search", fmt.Errorf("status %d", resp.StatusCode))
	}

	var payload struct {
		Parts []CatalogPart `json:"parts"`
		Error string        `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, NewTransientFault("catalog_search", err)
	}
	if payload.Error != "" {
		return nil, NewTransientFault("catalog_search", fmt.Errorf("catalog error: %s", payload.Error))
	}
	return payload.Parts, nil
}
