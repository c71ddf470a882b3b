// Package client is a Go client for the hashledger HTTP API.
//
// Audit fetches every record from a server and verifies the chain locally,
// so a client does not have to trust the server's own /verify answer.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jmerrifield20/hashledger/internal/ledger"
)

var (
	// ErrNotFound is returned by Get when the server has no record at the position.
	ErrNotFound = errors.New("record not found")

	// errHTTPNotFound is any 404. Only Get turns it into ErrNotFound; elsewhere
	// it usually means the base URL is wrong.
	errHTTPNotFound = errors.New("404 not found")
)

// maxResponseBytes bounds a response body. Records lists can be large.
const maxResponseBytes = 64 << 20

// Overview is the response of GET /api/v1/ledger.
type Overview struct {
	Records int    `json:"records"`
	Root    string `json:"root"`
	Valid   bool   `json:"valid"`
}

// VerifyResult is the response of GET /api/v1/ledger/verify.
type VerifyResult struct {
	Valid    bool   `json:"valid"`
	Position uint64 `json:"position,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Client talks to one hashledger server.
type Client struct {
	base        string
	httpClient  *http.Client
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches a writer token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// New creates a Client for the server at base, e.g. "http://localhost:8080".
func New(base string, opts ...Option) (*Client, error) {
	if base == "" {
		return nil, errors.New("server URL is required")
	}
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Overview returns the server's chain length, root digest and validity.
func (c *Client) Overview(ctx context.Context) (*Overview, error) {
	var out Overview
	if err := c.getJSON(ctx, "/api/v1/ledger", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify asks the server to verify its own chain.
func (c *Client) Verify(ctx context.Context) (*VerifyResult, error) {
	var out VerifyResult
	if err := c.getJSON(ctx, "/api/v1/ledger/verify", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Records returns every record in chain order.
func (c *Client) Records(ctx context.Context) ([]ledger.Record, error) {
	var out []ledger.Record
	if err := c.getJSON(ctx, "/api/v1/ledger/records", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns the record at position.
func (c *Client) Get(ctx context.Context, position uint64) (*ledger.Record, error) {
	var out ledger.Record
	if err := c.getJSON(ctx, fmt.Sprintf("/api/v1/ledger/records/%d", position), &out); err != nil {
		if errors.Is(err, errHTTPNotFound) {
			return nil, fmt.Errorf("position %d: %w", position, ErrNotFound)
		}
		return nil, err
	}
	return &out, nil
}

// Append posts payload and returns the record the server created.
func (c *Client) Append(ctx context.Context, payload string) (*ledger.Record, error) {
	body, err := json.Marshal(map[string]string{"payload": payload})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v1/ledger/records", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var out ledger.Record
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &out, nil
}

// Audit downloads every record and verifies the chain locally. It returns the
// records and the first integrity failure, if any.
func (c *Client) Audit(ctx context.Context) ([]ledger.Record, error) {
	records, err := c.Records(ctx)
	if err != nil {
		return nil, err
	}
	return records, ledger.AuditRecords(records)
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	body, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, errHTTPNotFound)
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("unauthorized: %s", string(body))
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
