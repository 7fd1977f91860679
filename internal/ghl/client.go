// Package ghl is a small client for the GoHighLevel (LeadConnector) REST API,
// limited to the contacts and calendars endpoints the booking sync needs.
package ghl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/velvetbrow/studio/internal/metrics"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL = "https://services.leadconnectorhq.com"
	APIVersion     = "2021-07-28"

	// DefaultAppointmentDuration is applied to every appointment created by the sync.
	DefaultAppointmentDuration = 3 * time.Hour

	maxErrorBody = 4096
)

// Client issues one HTTP call per operation. Every call carries the bearer
// token, the API version header and the location id where the endpoint takes one.
type Client struct {
	BaseURL    string
	LocationID string
	HTTP       *http.Client
	Logger     *log.Logger
}

// NewClient returns a client authenticated with a private integration token.
func NewClient(apiKey, locationID string) *Client {
	base := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey, TokenType: "Bearer"})

	return &Client{
		BaseURL:    DefaultBaseURL,
		LocationID: locationID,
		HTTP: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &oauth2.Transport{Source: src, Base: base},
		},
	}
}

// APIError is returned for transport failures and non-2xx responses.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ghl %s %s: %v", e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("ghl %s %s: status=%d body=%s", e.Method, e.Path, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a CRM "no such resource" response. Lookups
// under a deleted contact come back as 404, or as 400 with a "not found"
// message.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.StatusCode {
	case http.StatusNotFound:
		return true
	case http.StatusBadRequest:
		return strings.Contains(strings.ToLower(apiErr.Body), "not found")
	}
	return false
}

func (c *Client) lg() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

// do sends one request and decodes a 2xx JSON response into out (when non-nil).
// endpoint is the metrics label for the call.
func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, body, out any) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", endpoint, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return &APIError{Method: method, Path: path, Err: err}
	}
	req.Header.Set("Version", APIVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		metrics.ObserveCRMRequest(endpoint, 0, start)
		c.lg().Printf("[WARN] ghl %s %s failed: %v", method, path, err)
		return &APIError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()
	metrics.ObserveCRMRequest(endpoint, resp.StatusCode, start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.lg().Printf("[WARN] ghl %s %s status=%d body=%s", method, path, resp.StatusCode, string(b))
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(b)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
