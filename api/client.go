package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rescp17/sneakvlc/pkg/descriptor"
	"github.com/rescp17/sneakvlc/pkg/failure"
	"github.com/rescp17/sneakvlc/pkg/rendezvous"
	"github.com/rescp17/sneakvlc/pkg/transfer"
)

const serviceIDHeader = "X-Service-ID"

// serviceIDInjector is a custom http.RoundTripper that injects a service ID into each request.
type serviceIDInjector struct {
	serviceID string
	next      http.RoundTripper
}

// RoundTrip intercepts the request, adds the service ID header, and passes it to the next transport.
func (t *serviceIDInjector) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set(serviceIDHeader, t.serviceID)
	return t.next.RoundTrip(req)
}

// APIError is a non-2xx reply from the rendezvous server. It unwraps to the
// sentinel error matching its kind so callers can use errors.Is.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server responded with status %d", e.StatusCode)
	}
	return fmt.Sprintf("server responded with status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Kind {
	case failure.TableFull.String():
		return rendezvous.ErrTableFull
	case failure.NotFound.String():
		return rendezvous.ErrNotFound
	case failure.MalformedDescriptor.String():
		return descriptor.ErrMalformedDescriptor
	case failure.Invalid.String():
		return rendezvous.ErrInvalidEntry
	case failure.TransportFailure.String():
		return transfer.ErrTransportFailure
	}
	switch e.StatusCode {
	case http.StatusServiceUnavailable:
		return rendezvous.ErrTableFull
	case http.StatusNotFound:
		return rendezvous.ErrNotFound
	}
	return nil
}

// Client is a stateless HTTP client for the rendezvous server's API.
type Client struct {
	HttpClient *http.Client
	serverURL  string
}

// NewClient creates a new API client for serverURL, configured to
// automatically inject the provided serviceID.
func NewClient(serverURL, serviceID string) *Client {
	transport := &serviceIDInjector{
		serviceID: serviceID,
		next:      http.DefaultTransport,
	}

	return &Client{
		HttpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		serverURL: strings.TrimRight(serverURL, "/"),
	}
}

// ServerURL returns the base URL requests go to.
func (c *Client) ServerURL() string {
	return c.serverURL
}

// Punch registers a sender and returns the new entry id and its descriptor.
func (c *Client) Punch(ctx context.Context, hash, ip string, port int) (PunchResponse, error) {
	var resp PunchResponse
	err := c.do(ctx, http.MethodPost, "/api/punch", PunchRequest{Hash: hash, IP: ip, Port: port}, http.StatusOK, &resp)
	return resp, err
}

// Refresh keeps the entry alive.
func (c *Client) Refresh(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/entries/"+url.PathEscape(id)+"/refresh", nil, http.StatusNoContent, nil)
}

// Withdraw removes the entry.
func (c *Client) Withdraw(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/entries/"+url.PathEscape(id), nil, http.StatusNoContent, nil)
}

// Entries returns the live table.
func (c *Client) Entries(ctx context.Context) ([]rendezvous.Entry, error) {
	entries := []rendezvous.Entry{}
	err := c.do(ctx, http.MethodGet, "/api/entries", nil, http.StatusOK, &entries)
	return entries, err
}

// Lookup finds the most recently seen entry offering hash.
func (c *Client) Lookup(ctx context.Context, hash string) (rendezvous.Entry, error) {
	var entry rendezvous.Entry
	err := c.do(ctx, http.MethodGet, "/api/lookup/"+url.PathEscape(hash), nil, http.StatusOK, &entry)
	return entry, err
}

// Health returns the server's health report.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var health HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, http.StatusOK, &health)
	return health, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, want int, out any) error {
	if c.serverURL == "" {
		return errors.New("server URL cannot be empty")
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request payload: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody ErrorResponse
		if json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&errBody) == nil {
			apiErr.Kind = errBody.Kind
			apiErr.Message = errBody.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
