package dmi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/dmi-forecast-ingester/internal/domain"
)

const (
	basePath    = "v1/forecastedr/collections"
	requestKind = "cube"

	// maxErrorBody bounds how much of a failed response is kept in the error.
	maxErrorBody = 512
)

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dmi API error: status %d: %s", e.StatusCode, e.Body)
}

// Client fetches forecast cubes from the DMI Forecast EDR API. It never retries.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a DMI API client for host (e.g. "dmigw.govcloud.dk").
// A host with an explicit scheme, such as a local stub, is used as given.
func NewClient(apiKey, host string, timeout time.Duration, logger *slog.Logger) *Client {
	baseURL := strings.TrimRight(host, "/")
	if !strings.Contains(baseURL, "://") {
		baseURL = "https://" + baseURL
	}
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// URL builds the cube query for req.
func (c *Client) URL(req domain.ForecastRequest) string {
	format := req.Format
	if format == "" {
		format = domain.FormatNetCDF
	}
	params := url.Values{
		"api-key":        {c.apiKey},
		"crs":            {req.CRS},
		"parameter-name": {req.Parameter},
		"bbox":           {req.BBox.String()},
		"f":              {format},
	}
	u := fmt.Sprintf("%s/%s/%s/%s", c.baseURL, basePath, url.PathEscape(req.Collection), requestKind)
	return u + "?" + params.Encode()
}

// Fetch performs exactly one GET for req and returns the raw payload.
func (c *Client) Fetch(ctx context.Context, req domain.ForecastRequest) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(req), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.logger.Info("requesting forecast from DMI API",
		"collection", req.Collection, "parameter", req.Parameter, "crs", req.CRS, "bbox", req.BBox.String())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("forecast request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read forecast response: %w", err)
	}
	c.logger.Debug("forecast received", "parameter", req.Parameter, "bytes", len(payload))
	return payload, nil
}
