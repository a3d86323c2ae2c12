// Package climatiq adapts the Climatiq estimate API to the emissions
// RateProvider port. The upstream is treated as unreliable: every failure
// mode is classified and returned as an error so the estimator can fall
// back to the local factor table.
// API documentation: https://www.climatiq.io/docs
package climatiq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"example.com/carbon/internal/emissions"
	"example.com/carbon/internal/observability"
)

// DefaultBaseURL is the production Climatiq endpoint. TLS is mandatory.
const DefaultBaseURL = "https://api.climatiq.io"

// dataVersion pins the Climatiq data release the mappings were written for.
const dataVersion = "^21"

// defaultSource labels provider estimates whose emission factor carries
// no source attribution.
const defaultSource = "Climatiq"

const (
	connectTimeout = 5 * time.Second
	readTimeout    = 10 * time.Second
)

// batchLimit is the maximum number of items Climatiq accepts per batch call.
const batchLimit = 100

var (
	// ErrNotConfigured is returned when no API key is present.
	ErrNotConfigured = errors.New("climatiq: api key not configured")
	// ErrNoMapping is returned for activity types without a Climatiq activity id.
	ErrNoMapping = errors.New("climatiq: no activity mapping")
	// ErrMalformedResponse is returned when the response body is not valid JSON.
	ErrMalformedResponse = errors.New("climatiq: malformed response")
)

// APIError is a non-2xx answer from Climatiq.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("climatiq: api error (status %d): %s", e.Status, e.Message)
}

// mapping ties a local activity type to the Climatiq activity id and the
// parameter the quantity is sent under.
type mapping struct {
	ActivityID    string
	ParameterKey  string
	ParameterUnit string
}

var activityMappings = map[string]mapping{
	"driving": {
		ActivityID:    "passenger_vehicle-vehicle_type_car-fuel_source_na-engine_size_na-vehicle_age_na-vehicle_weight_na",
		ParameterKey:  "distance",
		ParameterUnit: "km",
	},
	"flight": {
		ActivityID:    "passenger_flight-route_type_na-aircraft_type_na-distance_na-class_na-rf_included",
		ParameterKey:  "passengers_distance",
		ParameterUnit: "passenger-km",
	},
	"electricity": {
		ActivityID:    "electricity-supply_grid-source_residual_mix",
		ParameterKey:  "energy",
		ParameterUnit: "kWh",
	},
	"natural_gas": {
		ActivityID:    "fuel_type_natural_gas-fuel_use_stationary_combustion",
		ParameterKey:  "energy",
		ParameterUnit: "therm",
	},
	"food_beef": {
		ActivityID:    "consumer_goods-type_meat_products_beef",
		ParameterKey:  "money",
		ParameterUnit: "usd",
	},
	"food_chicken": {
		ActivityID:    "consumer_goods-type_meat_products_poultry",
		ParameterKey:  "money",
		ParameterUnit: "usd",
	},
	"purchase": {
		ActivityID:    "consumer_goods-type_consumer_goods",
		ParameterKey:  "money",
		ParameterUnit: "usd",
	},
}

// Client calls the Climatiq estimate endpoints. A Client with an empty
// API key refuses every call without network I/O.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option customises Client construction.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, used by tests and self-hosted proxies.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient constructs a Client. apiKey may be empty, producing an
// unconfigured client that always reports unavailable.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: readTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// estimateRequest is the wire shape for POST /data/v1/estimate.
type estimateRequest struct {
	EmissionFactor emissionFactorSelector `json:"emission_factor"`
	Parameters     map[string]interface{} `json:"parameters"`
}

type emissionFactorSelector struct {
	ActivityID  string `json:"activity_id"`
	DataVersion string `json:"data_version"`
	Region      string `json:"region"`
}

// estimateResponse is the subset of the Climatiq response we consume.
type estimateResponse struct {
	CO2e           float64          `json:"co2e"`
	CO2eUnit       string           `json:"co2e_unit"`
	EmissionFactor *responseFactor  `json:"emission_factor"`
	Gases          *json.RawMessage `json:"constituent_gases"`
	ErrorCode      string           `json:"error"`
	Message        string           `json:"message"`
}

type responseFactor struct {
	Source string `json:"source"`
	Year   int    `json:"year"`
}

// Estimate fetches a single regionally adjusted CO2e estimate.
// Implements emissions.RateProvider.
func (c *Client) Estimate(ctx context.Context, activityType string, quantity float64, region string) (*emissions.ProviderEstimate, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	m, ok := activityMappings[activityType]
	if !ok {
		return nil, ErrNoMapping
	}

	var resp estimateResponse
	if err := c.post(ctx, "/data/v1/estimate", buildRequestBody(m, quantity, region), &resp); err != nil {
		observability.RecordProviderFailure(failureReason(err))
		return nil, err
	}

	return toProviderEstimate(resp), nil
}

// BatchItem is one entry in a batch estimate request.
type BatchItem struct {
	ActivityType string
	Quantity     float64
	Region       string
}

// BatchEstimate issues one POST /data/v1/estimate/batch for up to 100
// items. Items without a mapping are skipped and per-item provider errors
// are dropped, so the result may be shorter than the request. Any
// top-level failure yields an empty slice and the classified error.
func (c *Client) BatchEstimate(ctx context.Context, items []BatchItem) ([]emissions.ProviderEstimate, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if len(items) == 0 {
		return nil, nil
	}
	if len(items) > batchLimit {
		items = items[:batchLimit]
	}

	requests := make([]estimateRequest, 0, len(items))
	for _, item := range items {
		m, ok := activityMappings[item.ActivityType]
		if !ok {
			continue
		}
		region := item.Region
		if region == "" {
			region = emissions.DefaultRegion
		}
		requests = append(requests, buildRequestBody(m, item.Quantity, region))
	}
	if len(requests) == 0 {
		return nil, nil
	}

	// The batch endpoint answers with either a bare list or a wrapper
	// object holding one under "results".
	var raw json.RawMessage
	if err := c.post(ctx, "/data/v1/estimate/batch", requests, &raw); err != nil {
		observability.RecordProviderFailure(failureReason(err))
		return nil, err
	}

	var results []estimateResponse
	if err := json.Unmarshal(raw, &results); err != nil {
		var wrapper struct {
			Results []estimateResponse `json:"results"`
		}
		if err := json.Unmarshal(raw, &wrapper); err != nil || wrapper.Results == nil {
			observability.RecordProviderFailure("malformed_response")
			return nil, ErrMalformedResponse
		}
		results = wrapper.Results
	}

	estimates := make([]emissions.ProviderEstimate, 0, len(results))
	for _, result := range results {
		if result.ErrorCode != "" {
			continue
		}
		estimates = append(estimates, *toProviderEstimate(result))
	}
	return estimates, nil
}

func buildRequestBody(m mapping, quantity float64, region string) estimateRequest {
	return estimateRequest{
		EmissionFactor: emissionFactorSelector{
			ActivityID:  m.ActivityID,
			DataVersion: dataVersion,
			Region:      region,
		},
		Parameters: map[string]interface{}{
			m.ParameterKey:           quantity,
			m.ParameterKey + "_unit": m.ParameterUnit,
		},
	}
}

func toProviderEstimate(resp estimateResponse) *emissions.ProviderEstimate {
	est := &emissions.ProviderEstimate{
		CO2eKg:   resp.CO2e,
		CO2eUnit: resp.CO2eUnit,
		Source:   defaultSource,
	}
	if resp.EmissionFactor != nil {
		if resp.EmissionFactor.Source != "" {
			est.Source = resp.EmissionFactor.Source
		}
		est.SourceYear = resp.EmissionFactor.Year
	}
	return est
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("climatiq: request failed: %w", err)
	}
	defer resp.Body.Close()

	var envelope json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return ErrMalformedResponse
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := json.Unmarshal(envelope, out); err != nil {
			return ErrMalformedResponse
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return &APIError{Status: resp.StatusCode, Message: "invalid Climatiq API key"}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &APIError{Status: resp.StatusCode, Message: "Climatiq rate limit exceeded"}
	default:
		return &APIError{Status: resp.StatusCode, Message: errorMessage(envelope)}
	}
}

func errorMessage(body json.RawMessage) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return "Climatiq API error"
}

// failureReason buckets errors for the provider-failure metric.
func failureReason(err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		switch apiErr.Status {
		case http.StatusUnauthorized:
			return "unauthorized"
		case http.StatusTooManyRequests:
			return "rate_limited"
		default:
			return "http_error"
		}
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "timeout"
		}
		return "network"
	}
}
