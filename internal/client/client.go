// Package client talks to the inventory server over HTTP. *Client
// satisfies grid.Backend, so a grid session can run against a remote
// server exactly as it runs in-process.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JonMunkholm/factoryinv/internal/inventory"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// DefaultTimeout is the HTTP timeout of a client made by New.
const DefaultTimeout = 60 * time.Second

// Client is an HTTP client for the inventory API.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: DefaultTimeout},
	}
}

// APIError is a non-batch error reported by the server.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

func (e *APIError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s (%s). %s", e.Message, e.Code, e.Action)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

type listResponse struct {
	Data    []inventory.Row `json:"data"`
	Success bool            `json:"success"`
	Total   int             `json:"total"`
}

// ImportResult is the server's summary of an import.
type ImportResult struct {
	Inserted int      `json:"inserted"`
	Skipped  int      `json:"skipped"`
	Unmapped []string `json:"unmapped,omitempty"`
}

// Health checks that the server and its database are reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// Load fetches the rows matching q.
func (c *Client) Load(ctx context.Context, q inventory.Query) ([]inventory.Row, error) {
	path := "/api/inventory"
	if v := q.Values(); len(v) > 0 {
		path += "?" + v.Encode()
	}
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		resp.Data = []inventory.Row{}
	}
	return resp.Data, nil
}

// Update saves rows as one batch. A rejected batch returns
// *inventory.BatchError.
func (c *Client) Update(ctx context.Context, rows []inventory.Row) error {
	return c.do(ctx, http.MethodPut, "/api/inventory/batch", rows, nil)
}

// Create inserts rows as one batch.
func (c *Client) Create(ctx context.Context, rows []inventory.Row) error {
	return c.do(ctx, http.MethodPost, "/api/inventory/batch", rows, nil)
}

// UpdateRow applies patch to a single row.
func (c *Client) UpdateRow(ctx context.Context, id string, patch inventory.Row) error {
	return c.do(ctx, http.MethodPut, "/api/inventory/"+url.PathEscape(id), patch, nil)
}

// Import uploads a spreadsheet. The filename extension selects the format.
func (c *Client) Import(ctx context.Context, filename string, r io.Reader) (*ImportResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("copy file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/inventory/import", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var res ImportResult
	if err := c.send(req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Export downloads the rows matching q into w and returns the number of
// bytes written. format is "xlsx" or "csv"; empty means xlsx.
func (c *Client) Export(ctx context.Context, q inventory.Query, format string, w io.Writer) (int64, error) {
	path := "/api/inventory/export"
	v := q.Values()
	if format != "" {
		v.Set("format", format)
	}
	if len(v) > 0 {
		path += "?" + v.Encode()
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return 0, decodeError(resp.StatusCode, body)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("read export: %w", err)
	}
	return n, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, result)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	return req, nil
}

func (c *Client) send(req *http.Request, result any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// decodeError turns an error response into a BatchError, a sentinel or an
// APIError.
func decodeError(status int, body []byte) error {
	if status == http.StatusUnprocessableEntity {
		var batch inventory.BatchError
		if json.Unmarshal(body, &batch) == nil && len(batch.Errors) > 0 {
			return &batch
		}
	}

	var apiErr APIError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != "" {
		apiErr.Status = status
		switch status {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrForbidden, apiErr.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
		default:
			return &apiErr
		}
	}
	return fmt.Errorf("HTTP %d: %s", status, strings.TrimSpace(string(body)))
}
