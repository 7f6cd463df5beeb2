// Package checkout hands a finished formula to the storefront and gets back
// the URL the customer should be sent to.
package checkout

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
	"sync"
	"time"

	"formula-agent/internal/domain"
)

// Getter reads the checkout token parameter.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// StatusError is a non-2xx answer from the checkout endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("checkout: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type createResponse struct {
	URL string `json:"url"`
}

// Client posts orders to a checkout endpoint. The bearer token is read from
// Parameter Store on first use; an empty token parameter name disables auth.
type Client struct {
	endpoint   string
	httpClient *http.Client
	getter     Getter
	tokenParam string

	tokenMu sync.Mutex
	token   string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithToken reads the bearer token from the named parameter.
func WithToken(g Getter, name string) Option {
	return func(cl *Client) {
		cl.getter = g
		cl.tokenParam = strings.TrimSpace(name)
	}
}

func NewClient(endpoint string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("checkout: invalid endpoint %q", endpoint)
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokenParam != "" && c.getter == nil {
		return nil, errors.New("checkout: token parameter set without a getter")
	}
	return c, nil
}

// Create submits order and returns the checkout URL.
func (c *Client) Create(ctx context.Context, order domain.Order) (string, error) {
	if len(order.Ingredients) == 0 {
		return "", errors.New("checkout: order has no ingredients")
	}
	body, err := json.Marshal(order)
	if err != nil {
		return "", fmt.Errorf("checkout: marshal order: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("checkout: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	token, err := c.resolveToken(ctx)
	if err != nil {
		return "", err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("checkout: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", &StatusError{StatusCode: res.StatusCode, Body: string(buf)}
	}
	var out createResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<16)).Decode(&out); err != nil {
		return "", fmt.Errorf("checkout: decode response: %w", err)
	}
	if strings.TrimSpace(out.URL) == "" {
		return "", errors.New("checkout: response missing url")
	}
	return out.URL, nil
}

func (c *Client) resolveToken(ctx context.Context) (string, error) {
	if c.tokenParam == "" {
		return "", nil
	}
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.token != "" {
		return c.token, nil
	}
	raw, err := c.getter.GetParameter(ctx, c.tokenParam)
	if err != nil {
		return "", fmt.Errorf("checkout: fetch token: %w", err)
	}
	c.token = strings.TrimSpace(raw)
	return c.token, nil
}
