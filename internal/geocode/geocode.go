// Package geocode resolves street addresses to coordinates through the
// Google Geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/diagnosis/reservou/internal/apperror"
	"github.com/google/go-querystring/query"
)

type Result struct {
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
	FormattedAddress string  `json:"formatted_address"`
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (*Result, error)
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type params struct {
	Address string `url:"address"`
	Key     string `url:"key"`
}

type apiResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode returns the first match for address. Transport failures and non
// 2xx answers are Internal; an address the API cannot place is NotFound.
func (c *Client) Geocode(ctx context.Context, address string) (*Result, error) {
	if c.apiKey == "" {
		return nil, apperror.Internal(fmt.Errorf("GMAPS_API_KEY is not set"), "geocoding not configured")
	}

	v, err := query.Values(params{Address: address, Key: c.apiKey})
	if err != nil {
		return nil, apperror.Internal(err, "encode geocode query")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/maps/api/geocode/json?"+v.Encode(), nil)
	if err != nil {
		return nil, apperror.Internal(err, "build geocode request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperror.Internal(err, "geocode request failed").
			WithDetails(map[string]any{"address": address})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperror.Internal(fmt.Errorf("geocode api returned %d", resp.StatusCode), "geocode request failed").
			WithDetails(map[string]any{"address": address})
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperror.Internal(err, "decode geocode response")
	}

	if body.Status != "OK" || len(body.Results) == 0 {
		return nil, apperror.NotFound(fmt.Sprintf("address not found: %s", address)).
			WithDetails(map[string]any{"status": body.Status, "api_error": body.ErrorMessage})
	}

	first := body.Results[0]
	return &Result{
		Lat:              first.Geometry.Location.Lat,
		Lng:              first.Geometry.Location.Lng,
		FormattedAddress: first.FormattedAddress,
	}, nil
}
