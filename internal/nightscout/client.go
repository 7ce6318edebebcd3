// Package nightscout is a minimal client for the Nightscout treatments API.
package nightscout

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jwulff/mylife-sync/internal/treatment"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

const treatmentsPath = "/api/v1/treatments"

// maxRetries applies to GET requests only. Uploads are not idempotent.
const maxRetries = 3

var sha1Hex = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)

// Client is an HTTP client for a Nightscout site.
type Client struct {
	BaseURL    string
	APISecret  string
	UserAgent  string
	HTTPClient *http.Client
	backoff    time.Duration
}

// NewClient creates a new Nightscout client.
func NewClient(baseURL, apiSecret, userAgent string) *Client {
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		APISecret: apiSecret,
		UserAgent: userAgent,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		backoff: time.Second,
	}
}

// APIError represents a non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("nightscout returned status %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// secretHeader returns the api-secret header value. Nightscout compares it
// against the SHA-1 of API_SECRET, so an already hashed secret is sent as is.
func (c *Client) secretHeader() string {
	if sha1Hex.MatchString(c.APISecret) {
		return strings.ToLower(c.APISecret)
	}
	sum := sha1.Sum([]byte(c.APISecret))
	return hex.EncodeToString(sum[:])
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("api-secret", c.secretHeader())
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(data)
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: snippet}
	}
	return data, nil
}

// get retries 429 and 5xx responses with exponential backoff.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(c.backoff << (attempt - 1))
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}

		data, err := c.do(ctx, http.MethodGet, url, nil)
		if err == nil {
			return data, nil
		}
		lastErr = err
		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.retryable() {
			return nil, err
		}
	}
	return nil, lastErr
}

// remoteTreatment is the subset of a stored treatment needed for the cutoff.
type remoteTreatment struct {
	Mills     json.Number `json:"mills"`
	CreatedAt string      `json:"created_at"`
}

func (r remoteTreatment) at() (time.Time, error) {
	if r.Mills != "" {
		ms, err := strconv.ParseInt(r.Mills.String(), 10, 64)
		if err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		f, ferr := r.Mills.Float64()
		if ferr != nil {
			return time.Time{}, fmt.Errorf("failed to parse mills %q: %w", r.Mills, ferr)
		}
		return time.UnixMilli(int64(f)).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse created_at %q: %w", r.CreatedAt, err)
	}
	return t.UTC(), nil
}

// LastTreatmentTime returns the time of the newest treatment on the site.
// ok is false when the site has no treatments yet.
func (c *Client) LastTreatmentTime(ctx context.Context) (last time.Time, ok bool, err error) {
	data, err := c.get(ctx, c.BaseURL+treatmentsPath+"?count=1")
	if err != nil {
		return time.Time{}, false, fmt.Errorf("fetch last treatment: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return time.Time{}, false, nil
	}

	var treatments []remoteTreatment
	if err := json.Unmarshal(data, &treatments); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse treatments: %w", err)
	}
	if len(treatments) == 0 {
		return time.Time{}, false, nil
	}

	last, err = treatments[0].at()
	if err != nil {
		return time.Time{}, false, err
	}
	return last, true, nil
}

// UploadTreatments posts treatments in a single request. An empty slice is a no-op.
func (c *Client) UploadTreatments(ctx context.Context, treatments []treatment.Treatment) error {
	if len(treatments) == 0 {
		return nil
	}
	data, err := json.Marshal(treatments)
	if err != nil {
		return fmt.Errorf("failed to marshal treatments: %w", err)
	}
	if _, err := c.do(ctx, http.MethodPost, c.BaseURL+treatmentsPath, data); err != nil {
		return fmt.Errorf("upload %d treatments: %w", len(treatments), err)
	}
	return nil
}
