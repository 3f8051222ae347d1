// Package backend is a client for the analytics REST API served by
// `socialhub serve`.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/socialhub-cli/internal/analysis"
	"github.com/KaramelBytes/socialhub-cli/internal/chat"
	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
)

// ErrNoBackend is returned when no backend URL is configured.
var ErrNoBackend = errors.New("backend_url is not configured")

// APIError is a non-2xx reply. Message carries the server's "error" field.
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error: status=%d message=%s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend error: status=%d", e.StatusCode)
}

// Options tunes HTTP timeouts and retries.
type Options struct {
	HTTPTimeout time.Duration
	RetryMax    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Logger      *zap.Logger
}

// Client calls the analytics API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retryMax   int
	baseDelay  time.Duration
	maxDelay   time.Duration
	log        *zap.Logger
}

func New(baseURL string, opts Options) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrNoBackend
	}
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 60 * time.Second
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 4 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: opts.HTTPTimeout},
		retryMax:   opts.RetryMax,
		baseDelay:  opts.BaseDelay,
		maxDelay:   opts.MaxDelay,
		log:        log.Named("backend"),
	}, nil
}

// DatasetInfo mirrors the server's dataset view.
type DatasetInfo struct {
	ID          string    `json:"id"`
	File        string    `json:"file"`
	CleanedFile *string   `json:"cleaned_file"`
	UploadedAt  time.Time `json:"uploaded_at"`
	IsCleaned   bool      `json:"is_cleaned"`
	Rows        int       `json:"rows"`
	Headers     []string  `json:"headers"`
}

// ModelInfo mirrors a trained model record.
type ModelInfo struct {
	ID        string         `json:"id"`
	DatasetID string         `json:"dataset"`
	Kind      string         `json:"model_type"`
	Target    string         `json:"target_column"`
	Metrics   map[string]any `json:"metrics"`
	CreatedAt time.Time      `json:"created_at"`
}

// Health checks /health.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, "", nil)
}

// Upload sends a CSV or XLSX file.
func (c *Client) Upload(ctx context.Context, name string, data []byte) (*DatasetInfo, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	var out struct {
		Dataset DatasetInfo `json:"dataset"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/upload/", body.Bytes(), mw.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	return &out.Dataset, nil
}

// Preprocess cleans a stored dataset server-side.
func (c *Client) Preprocess(ctx context.Context, datasetID string) (*analysis.CleanSummary, error) {
	var out struct {
		Summary analysis.CleanSummary `json:"summary"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/preprocess/"+datasetID+"/", nil, "", &out); err != nil {
		return nil, err
	}
	return &out.Summary, nil
}

// EDA fetches the exploratory summary.
func (c *Client) EDA(ctx context.Context, datasetID string) (*analysis.EDA, error) {
	var out struct {
		EDA analysis.EDA `json:"eda"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/eda/"+datasetID+"/", nil, "", &out); err != nil {
		return nil, err
	}
	return &out.EDA, nil
}

// Train fits a model on a stored dataset.
func (c *Client) Train(ctx context.Context, datasetID, target string, kind dataset.ModelType) (*ModelInfo, error) {
	payload, err := json.Marshal(map[string]string{
		"dataset_id":    datasetID,
		"target_column": target,
		"problem_type":  string(kind),
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Model ModelInfo `json:"model"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/train/", payload, "application/json", &out); err != nil {
		return nil, err
	}
	return &out.Model, nil
}

// Predict scores one or more feature rows.
func (c *Client) Predict(ctx context.Context, modelID string, rows ...map[string]any) ([]any, error) {
	payload, err := json.Marshal(map[string]any{"model_id": modelID, "features": rows})
	if err != nil {
		return nil, err
	}
	var out struct {
		Predictions []any `json:"predictions"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/predict/", payload, "application/json", &out); err != nil {
		return nil, err
	}
	return out.Predictions, nil
}

// Chat relays a conversation through the server's completion runtime.
func (c *Client) Chat(ctx context.Context, messages []dataset.Message, dc *chat.DataContext) (string, error) {
	payload, err := json.Marshal(map[string]any{"messages": messages, "data_context": dc})
	if err != nil {
		return "", err
	}
	var out struct {
		Reply string `json:"reply"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/chat/", payload, "application/json", &out); err != nil {
		return "", err
	}
	return out.Reply, nil
}

// do sends one call, retrying 429, 5xx and transient network errors with
// jittered exponential backoff. A Retry-After header wins over backoff.
func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string, out any) error {
	backoff := c.baseDelay
	var lastErr error
	for attempt := 1; attempt <= c.retryMax; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		last := attempt == c.retryMax
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if retryableNetErr(err) && !last {
				lastErr = err
				c.log.Debug("retrying after network error", zap.String("path", path), zap.Error(err))
				if err := sleep(ctx, jitter(backoff, c.maxDelay)); err != nil {
					return err
				}
				backoff *= 2
				continue
			}
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		apiErr := readReply(resp, out)
		if apiErr == nil {
			return nil
		}
		var ae *APIError
		if !errors.As(apiErr, &ae) || last || !(ae.StatusCode == http.StatusTooManyRequests || ae.StatusCode >= 500) {
			return apiErr
		}
		lastErr = apiErr
		wait := jitter(backoff, c.maxDelay)
		if ae.RetryAfter > 0 {
			wait = ae.RetryAfter
		}
		c.log.Debug("retrying", zap.String("path", path), zap.Int("status", ae.StatusCode), zap.Duration("wait", wait))
		if err := sleep(ctx, wait); err != nil {
			return err
		}
		backoff *= 2
	}
	return lastErr
}

func readReply(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var raw struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &raw) == nil {
			apiErr.Message = raw.Error
		}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				apiErr.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func retryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF)
}

func jitter(d, ceiling time.Duration) time.Duration {
	out := time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
	if ceiling > 0 && out > ceiling {
		out = ceiling
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
