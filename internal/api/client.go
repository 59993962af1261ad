// Package api provides the typed REST gateway to the event platform backend.
//
// The gateway is the only component that speaks HTTP to the backend. It
// attaches the session token to every request, normalizes loosely-shaped
// payloads into the canonical models at the boundary, and converts non-2xx
// responses into typed errors. A 401/403 from any endpoint clears the
// session store before the error is returned.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gatherly/client/internal/session"
)

// Client is a typed client for the backend REST API.
type Client struct {
	baseURL    string
	sessions   session.Store
	httpClient *http.Client
}

// NewClient creates a gateway against the given base URL. The session store
// is consulted on every request, never cached.
func NewClient(baseURL string, sessions session.Store, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		sessions: sessions,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// newRequest creates an HTTP request with authentication and tracing headers.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if token, ok := c.sessions.Token(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	return req, nil
}

// do executes the request and decodes a JSON response body into out (which
// may be nil when no body is expected). Non-2xx responses become *APIError;
// 401/403 additionally clear the session store.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.asAPIError(resp)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

// asAPIError converts a non-2xx response into a typed error.
func (c *Client) asAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	text := string(bytes.TrimSpace(body))
	if text == "" {
		text = resp.Status
	}

	code := ErrCodeServer
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		code = ErrCodeUnauthorized
		// The session is dead; only the auth handler and this path may
		// write the shared token store.
		if err := c.sessions.Clear(); err != nil {
			return fmt.Errorf("clearing session after %d: %w", resp.StatusCode, err)
		}
	case resp.StatusCode == http.StatusNotFound:
		code = ErrCodeNotFound
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		code = ErrCodeValidation
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       code,
		Body:       text,
	}
}

// get performs a GET request and decodes the response into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// post performs a POST request with a JSON body, decoding into out when
// out is non-nil.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	return c.send(ctx, http.MethodPost, path, payload, out)
}

// put performs a PUT request with a JSON body.
func (c *Client) put(ctx context.Context, path string, payload, out any) error {
	return c.send(ctx, http.MethodPut, path, payload, out)
}

func (c *Client) send(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	return c.do(req, out)
}
