package sbapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/flo-mic/osbctl/internal/api"
)

var (
	// ErrNotFound is returned for HTTP 404 responses.
	ErrNotFound = api.ErrNotFound
	// ErrUnauthorized is returned for HTTP 401 and 403 responses.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is any other non-2xx answer from the management runtime.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Client is an HTTP client for the service-bus management REST API.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	taskPoll   time.Duration
	log        *slog.Logger
}

// Options tune a Client.
type Options struct {
	Insecure bool
	Timeout  time.Duration
	TaskPoll time.Duration
	Logger   *slog.Logger
}

// NewClient creates a client for the runtime at endpoint (scheme://host:port).
func NewClient(endpoint, username, password string, opts Options) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: opts.Insecure}
	if opts.TaskPoll <= 0 {
		opts.TaskPoll = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(endpoint, "/") + "/management",
		username:   username,
		password:   password,
		httpClient: &http.Client{Transport: transport, Timeout: opts.Timeout},
		taskPoll:   opts.TaskPoll,
		log:        opts.Logger,
	}
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// do sends one request and decodes the "data" field of the response into result.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debug("request", "method", method, "path", path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: reading body: %w", method, path, err)
	}
	if resp.StatusCode >= 400 {
		return statusError(method, path, resp.StatusCode, raw)
	}
	return decodeData(raw, result)
}

func statusError(method, path string, code int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var errBody struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &errBody) == nil && errBody.Message != "" {
		msg = errBody.Message
	}
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	case http.StatusNotFound:
		return fmt.Errorf("%s %s: %s: %w", method, path, msg, ErrNotFound)
	}
	return &APIError{Method: method, Path: path, StatusCode: code, Message: msg}
}

func decodeData(body []byte, result any) error {
	if result == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	// Every answer is wrapped in {"data": ...}
	var raw struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return fmt.Errorf("parsing envelope: %w", err)
	}
	if len(raw.Data) == 0 {
		return nil
	}
	return json.Unmarshal(raw.Data, result)
}
