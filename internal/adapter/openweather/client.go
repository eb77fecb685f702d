package openweather

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/weather-s3-etl/internal/domain"
	"github.com/sony/gobreaker"
)

// weatherPath is the current-weather endpoint relative to the API host.
const weatherPath = "/data/2.5/weather"

// maxErrorBody caps how much of a failed response is echoed into errors.
const maxErrorBody = 512

// Client calls the OpenWeatherMap current-weather endpoint for one city.
// It implements pipeline.WeatherAPI.
type Client struct {
	baseURL    string
	city       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates a client for city. A zero timeout leaves the request
// bounded only by the caller's context.
func NewClient(baseURL, city string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		city:       city,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    newBreaker(logger),
		logger:     logger,
	}
}

func newBreaker(logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 1,
		Timeout:     2 * time.Minute,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// CheckAvailability issues one read-only request and reports whether the API
// answered with a 2xx status. The body is discarded.
func (c *Client) CheckAvailability(ctx context.Context, apiKey string) error {
	if _, err := c.get(ctx, apiKey); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrAvailabilityCheckFailed, err)
	}
	return nil
}

// Fetch requests the current observation and decodes it. Transport and status
// failures wrap domain.ErrRequestFailed; an undecodable body wraps
// domain.ErrMalformedResponse.
func (c *Client) Fetch(ctx context.Context, apiKey string) (domain.RawObservation, error) {
	body, err := c.get(ctx, apiKey)
	if err != nil {
		return domain.RawObservation{}, fmt.Errorf("%w: %w", domain.ErrRequestFailed, err)
	}

	obs, err := decodeObservation(body)
	if err != nil {
		return domain.RawObservation{}, fmt.Errorf("%w: %w", domain.ErrMalformedResponse, err)
	}
	return obs, nil
}

// get performs the GET through the circuit breaker and returns the body of a
// 2xx response.
func (c *Client) get(ctx context.Context, apiKey string) ([]byte, error) {
	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, apiKey)
	})
	if err != nil {
		c.logger.Debug("weather api request failed", "city", c.city, "duration", time.Since(start), "error", err)
		return nil, err
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, errors.New("unexpected result type from circuit breaker")
	}
	c.logger.Debug("weather api response", "city", c.city, "bytes", len(body), "duration", time.Since(start))
	return body, nil
}

func (c *Client) do(ctx context.Context, apiKey string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(apiKey), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request: %w", redactKey(err, apiKey))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("openweather API error: status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// endpoint builds <base>/data/2.5/weather?q=<city>&APPID=<key>.
func (c *Client) endpoint(apiKey string) string {
	params := url.Values{
		"q":     {c.city},
		"APPID": {apiKey},
	}
	return c.baseURL + weatherPath + "?" + params.Encode()
}

// decodeObservation requires the body to be a JSON object.
func decodeObservation(body []byte) (domain.RawObservation, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return domain.RawObservation{}, errors.New("body is not a JSON object")
	}

	var obs domain.RawObservation
	if err := json.Unmarshal(trimmed, &obs); err != nil {
		return domain.RawObservation{}, fmt.Errorf("decode response: %w", err)
	}
	return obs, nil
}

// redactKey strips the API key from transport errors, which embed the URL.
func redactKey(err error, apiKey string) error {
	if apiKey == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, apiKey) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, apiKey, "REDACTED"))
}
