// internal/provider/client.go
//
// Hosting/DNS/certificate provider API client.
//
// Context
// -------
// Custom domains are registered with an external hosting provider that
// terminates TLS and issues certificates.  The edge never manages
// certificates itself; it registers, deregisters, and polls status.
//
// Surface
// -------
//
//	POST   {endpoint}/domains            {"domain": "..."}
//	DELETE {endpoint}/domains/{domain}
//	GET    {endpoint}/domains/{domain}   → {"registered": bool,
//	                                        "certificate_state": "pending|provisioning|issued|failed"}
//
// All calls carry a bearer token and are bounded by the caller's context
// plus the configured client timeout.  Failures and timeouts surface as
// ErrProvider; the lifecycle manager treats them as "not yet verified".
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrProvider wraps every transport or API-level failure from the provider.
var ErrProvider = errors.New("hosting provider error")

// Status is the provider's view of one domain.
type Status struct {
	Registered       bool   `json:"registered"`
	CertificateState string `json:"certificate_state"`
}

// Client talks to the provider API.  Safe for concurrent use.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

// New constructs a Client.  endpoint is the API base URL without a trailing
// slash; token may be empty for unauthenticated test servers.
func New(endpoint, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		token:    token,
		http:     &http.Client{Timeout: timeout},
	}
}

// Register submits a domain claim.  Idempotent on the provider side.
func (c *Client) Register(ctx context.Context, domain string) error {
	body, err := json.Marshal(map[string]string{"domain": domain})
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint+"/domains", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doDiscard(req)
}

// Deregister releases a domain claim.
func (c *Client) Deregister(ctx context.Context, domain string) error {
	req, err := c.newRequest(ctx, http.MethodDelete,
		c.endpoint+"/domains/"+url.PathEscape(domain), nil)
	if err != nil {
		return err
	}
	return c.doDiscard(req)
}

// GetStatus polls registration and certificate state for a domain.
func (c *Client) GetStatus(ctx context.Context, domain string) (*Status, error) {
	req, err := c.newRequest(ctx, http.MethodGet,
		c.endpoint+"/domains/"+url.PathEscape(domain), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: status %s: %v", ErrProvider, domain, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %s: http %d", ErrProvider, domain, resp.StatusCode)
	}

	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("%w: decode status %s: %v", ErrProvider, domain, err)
	}
	return &st, nil
}

//
// Helpers
//

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) doDiscard(req *http.Request) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrProvider, req.Method, req.URL.Path, err)
	}
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for keep-alive
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s: http %d", ErrProvider, req.Method, req.URL.Path, resp.StatusCode)
	}
	return nil
}
