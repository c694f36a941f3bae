package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/similie/hyphen-rtsp-tunnel/internal/httputil"
)

// HTTPClient implements Lookup against a JSON HTTP registry service,
// retrying requests with jittered exponential backoff.
type HTTPClient struct {
	baseURL    string
	authHeader string
	client     *http.Client
	retry      httputil.RetryConfig
}

// NewHTTPClient creates a registry client against baseURL, sending
// authToken as a bearer credential if non-empty.
func NewHTTPClient(baseURL, authToken string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authHeader: authToken,
		client:     &http.Client{Timeout: 10 * time.Second},
		retry:      httputil.DefaultRetryConfig(),
	}
}

func (c *HTTPClient) headers() http.Header {
	h := http.Header{}
	if c.authHeader != "" {
		h.Set("Authorization", "Bearer "+c.authHeader)
	}
	return h
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	reqURL := c.baseURL + path
	resp, err := httputil.Do(ctx, c.client, http.MethodGet, reqURL, nil, c.headers(), c.retry)
	if err != nil {
		return fmt.Errorf("registry request to %s: %w", reqURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("registry: %s not found", path)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("registry: unexpected status %d for %s: %s", resp.StatusCode, path, string(body))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type deviceResponse struct {
	ID            string `json:"id"`
	TZOffsetHours *int   `json:"tzOffsetHours"`
}

// LookupDevice implements Lookup.
func (c *HTTPClient) LookupDevice(ctx context.Context, deviceID string) (Device, error) {
	var resp deviceResponse
	if err := c.get(ctx, "/devices/"+url.PathEscape(deviceID), &resp); err != nil {
		return Device{}, err
	}
	return Device{ID: resp.ID, TZOffsetHours: resp.TZOffsetHours}, nil
}

// LookupSensorMeta implements Lookup.
func (c *HTTPClient) LookupSensorMeta(ctx context.Context, deviceID string) (SensorMeta, error) {
	var resp SensorMeta
	if err := c.get(ctx, "/devices/"+url.PathEscape(deviceID)+"/sensors", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

type certificateResponse struct {
	CertificatePEM string `json:"certificatePem"`
}

// LookupCertificate implements Lookup.
func (c *HTTPClient) LookupCertificate(ctx context.Context, deviceID string) (string, error) {
	var resp certificateResponse
	if err := c.get(ctx, "/devices/"+url.PathEscape(deviceID)+"/certificate", &resp); err != nil {
		return "", err
	}
	return resp.CertificatePEM, nil
}
