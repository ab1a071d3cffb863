package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/vehiclesync-backend/pkg/config"
)

// Listing is one vehicle row as the external listing reports it.
type Listing struct {
	VehicleID  string         `json:"vehicle_id"`
	Status     string         `json:"status"`
	Powertrain string         `json:"powertrain"`
	PhotoCount int            `json:"photo_count"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Source yields the complete current listing. Every call is a full replace.
type Source interface {
	Fetch(ctx context.Context) ([]Listing, error)
}

// StaticSource serves a fixed listing. Used by tests and the seed tooling.
type StaticSource []Listing

func (s StaticSource) Fetch(context.Context) ([]Listing, error) {
	out := make([]Listing, len(s))
	copy(out, s)
	return out, nil
}

// HTTPSource pulls the listing as JSON over HTTP.
type HTTPSource struct {
	url       string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
}

func NewHTTPSource(cfg config.IngestionConfig) (*HTTPSource, error) {
	url := strings.TrimSpace(cfg.SourceURL)
	if url == "" {
		return nil, errors.New("ingestion source url is empty")
	}
	header := strings.TrimSpace(cfg.APIKeyHeader)
	if header == "" {
		header = "X-API-Key"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPSource{
		url:       url,
		apiKey:    cfg.APIKey,
		apiKeyHdr: header,
		http:      &http.Client{Timeout: timeout},
	}, nil
}

type listingEnvelope struct {
	Data     []Listing `json:"data"`
	Items    []Listing `json:"items"`
	Vehicles []Listing `json:"vehicles"`
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]Listing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	if s.apiKey != "" {
		req.Header.Set(s.apiKeyHdr, s.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read listing: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("listing source error %d: %s", resp.StatusCode, truncate(strings.TrimSpace(string(body)), 256))
	}
	return decodeListing(body)
}

// decodeListing accepts a bare array or an object wrapping it under data,
// items or vehicles.
func decodeListing(body []byte) ([]Listing, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("listing body is empty")
	}
	if trimmed[0] == '[' {
		var listings []Listing
		if err := json.Unmarshal(trimmed, &listings); err != nil {
			return nil, fmt.Errorf("decode listing: %w", err)
		}
		return listings, nil
	}
	var envelope listingEnvelope
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	switch {
	case envelope.Data != nil:
		return envelope.Data, nil
	case envelope.Items != nil:
		return envelope.Items, nil
	case envelope.Vehicles != nil:
		return envelope.Vehicles, nil
	}
	return nil, errors.New("listing body has no vehicle array")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
