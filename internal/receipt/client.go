package receipt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BasicAuth holds basic authentication credentials sent with every request
type BasicAuth struct {
	Username string
	Password string
}

func (a BasicAuth) enabled() bool {
	return a.Username != "" || a.Password != ""
}

// BreakerConfig tunes the circuit breaker in front of the backend
type BreakerConfig struct {
	MinRequests  uint32
	FailureRatio float64
	OpenTimeout  time.Duration
}

// DefaultBreakerConfig returns the breaker settings used by NewClient
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MinRequests:  5,
		FailureRatio: 0.6,
		OpenTimeout:  30 * time.Second,
	}
}

// Client talks to the receipt backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       BasicAuth
	breakerCfg BreakerConfig
	breaker    *gobreaker.CircuitBreaker[*http.Response]
}

// ClientOption customizes a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

// WithBasicAuth sends credentials with every request
func WithBasicAuth(auth BasicAuth) ClientOption {
	return func(c *Client) {
		c.auth = auth
	}
}

// WithBreaker overrides the circuit breaker settings
func WithBreaker(cfg BreakerConfig) ClientOption {
	return func(c *Client) {
		c.breakerCfg = cfg
	}
}

// NewClient creates a Client for the backend at baseURL
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Scanning runs the AI model synchronously, so requests can take a while
		httpClient: &http.Client{Timeout: 120 * time.Second},
		breakerCfg: DefaultBreakerConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    "receipt-backend",
		Timeout: c.breakerCfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < c.breakerCfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= c.breakerCfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var statusErr *HTTPStatusError
			if errors.As(err, &statusErr) {
				return !statusErr.serverSide()
			}
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Backend circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// do sends req through the circuit breaker. Any status >= 300 is turned into
// an *HTTPStatusError and the body is closed; otherwise the caller owns the body.
func (c *Client) do(req *http.Request, operation string) (*http.Response, error) {
	if c.auth.enabled() {
		req.SetBasicAuth(c.auth.Username, c.auth.Password)
	}
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &TransportError{Operation: operation, Err: err}
		}
		if resp.StatusCode >= 300 {
			defer resp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return nil, &HTTPStatusError{
				Operation:  operation,
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Body:       string(body),
			}
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s: backend unavailable: %w", operation, err)
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) sendJSON(ctx context.Context, method, path string, payload any, out any, operation string) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshaling %s request: %w", operation, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", operation, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req, operation)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", operation, err)
	}
	return nil
}

// ListReceipts returns every stored receipt
func (c *Client) ListReceipts(ctx context.Context) ([]Receipt, error) {
	var receipts []Receipt
	if err := c.sendJSON(ctx, http.MethodGet, "/api/receipts", nil, &receipts, "list receipts"); err != nil {
		return nil, err
	}
	if receipts == nil {
		receipts = []Receipt{}
	}
	return receipts, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// ScanReceipts uploads files in one multipart request. Each file is sent as a
// "files" part; its token follows as a "tokens" field in the same order.
func (c *Client) ScanReceipts(ctx context.Context, files []UploadFile) ([]ScanResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, quoteEscaper.Replace(f.Filename)))
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("creating form part for %s: %w", f.Filename, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, fmt.Errorf("writing form part for %s: %w", f.Filename, err)
		}
	}
	for _, f := range files {
		if err := writer.WriteField("tokens", f.Token); err != nil {
			return nil, fmt.Errorf("writing token field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/scan-receipt", body)
	if err != nil {
		return nil, fmt.Errorf("creating scan request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req, "scan receipts")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var results []ScanResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decoding scan response: %w", err)
	}
	return results, nil
}

// CreateReceipt stores a manually entered receipt
func (c *Client) CreateReceipt(ctx context.Context, draft Draft) error {
	return c.sendJSON(ctx, http.MethodPost, "/api/receipts/manual", draft, nil, "create receipt")
}

// UpdateReceipt replaces an existing receipt
func (c *Client) UpdateReceipt(ctx context.Context, id int, draft Draft) error {
	return c.sendJSON(ctx, http.MethodPut, "/api/receipts/"+strconv.Itoa(id), draft, nil, "update receipt")
}

// DeleteReceipt removes one receipt
func (c *Client) DeleteReceipt(ctx context.Context, id int) error {
	return c.sendJSON(ctx, http.MethodDelete, "/api/receipts/"+strconv.Itoa(id), nil, nil, "delete receipt")
}

// BatchDelete removes many receipts in one request
func (c *Client) BatchDelete(ctx context.Context, ids []int) error {
	payload := struct {
		IDs []int `json:"ids"`
	}{IDs: ids}
	return c.sendJSON(ctx, http.MethodPost, "/api/receipts/batch-delete", payload, nil, "batch delete")
}

// Chat sends a message with recent history and returns the assistant's reply
func (c *Client) Chat(ctx context.Context, message string, history []ChatMessage) (string, error) {
	if history == nil {
		history = []ChatMessage{}
	}
	payload := struct {
		Message string        `json:"message"`
		History []ChatMessage `json:"history"`
	}{Message: message, History: history}

	var out struct {
		Reply string `json:"reply"`
	}
	if err := c.sendJSON(ctx, http.MethodPost, "/api/chat", payload, &out, "chat"); err != nil {
		return "", err
	}
	return out.Reply, nil
}
