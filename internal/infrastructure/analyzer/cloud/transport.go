package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/abalcerek/docuscan/internal/core/domain"
)

// HTTPStatusError is a non-2xx response from the analysis backend, with
// enough context to classify it into the extraction-error taxonomy.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
	RateLimit  *domain.RateLimitInfo
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "cloud status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("cloud %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("cloud %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// decodeError marks a syntactically broken success response.
type decodeError struct {
	operation string
	cause     error
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("decode %s response: %v", e.operation, e.cause)
}

func (e *decodeError) Unwrap() error { return e.cause }

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cloud %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return newHTTPStatusError(operation, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &decodeError{operation: operation, cause: err}
	}
	return nil
}

func newHTTPStatusError(operation string, resp *http.Response) *HTTPStatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	statusErr := &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		statusErr.RateLimit = parseRateLimitHeaders(resp.Header)
	}
	return statusErr
}

func parseRateLimitHeaders(header http.Header) *domain.RateLimitInfo {
	info := &domain.RateLimitInfo{}
	if used, err := strconv.Atoi(header.Get("X-RateLimit-Used")); err == nil {
		info.Used = used
	}
	if limit, err := strconv.Atoi(header.Get("X-RateLimit-Limit")); err == nil {
		info.Limit = limit
	}
	if reset := header.Get("X-RateLimit-Reset"); reset != "" {
		if unix, err := strconv.ParseInt(reset, 10, 64); err == nil {
			info.ResetAt = time.Unix(unix, 0).UTC()
		} else if ts, err := time.Parse(time.RFC3339, reset); err == nil {
			info.ResetAt = ts.UTC()
		}
	}
	return info
}
