package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"

	"github.com/cloo-solutions/logsage/internal/domain"
	"github.com/cloo-solutions/logsage/internal/pagination"
	"github.com/cloo-solutions/logsage/internal/service"
)

const defaultTimeout = 30 * time.Second

// APIClient talks to a logsaged HTTP API. It satisfies service.LogSource,
// so a remote store can feed the change-feed poller.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ service.LogSource = (*APIClient)(nil)

// NewAPIClientWithCmd resolves the base URL from the --api-url flag, the
// environment or the saved config.
func NewAPIClientWithCmd(cmd *cobra.Command) (*APIClient, error) {
	_ = godotenv.Load()

	var flagURL string
	if cmd != nil {
		flagURL, _ = cmd.Flags().GetString("api-url")
	}
	baseURL, _, err := ResolveAPIURL(flagURL)
	if err != nil {
		return nil, err
	}
	return NewAPIClientWithConfig(baseURL, defaultTimeout), nil
}

func NewAPIClientWithConfig(baseURL string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &APIClient{
		baseURL:    normalizeBaseURL(baseURL),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// APIResponse represents the standard API response format.
type APIResponse struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
	Code  string          `json:"code,omitempty"`
}

type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

type AppendResult struct {
	Status string   `json:"status"`
	Count  int      `json:"count"`
	IDs    []string `json:"ids"`
}

type AskResult struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type HealthResult struct {
	Status string             `json:"status"`
	Feed   *service.FeedStats `json:"feed,omitempty"`
	Index  *struct {
		Documents  int    `json:"documents"`
		Generation uint64 `json:"generation"`
	} `json:"index,omitempty"`
}

// ListLogs returns the most recent filter.Limit records, oldest first.
func (c *APIClient) ListLogs(ctx context.Context, filter domain.LogFilter) ([]domain.LogRecord, error) {
	query := url.Values{}
	if filter.Level != "" {
		query.Set("level", filter.Level)
	}
	if filter.App != "" {
		query.Set("app", filter.App)
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}

	var records []domain.LogRecord
	if err := c.do(ctx, http.MethodGet, withQuery("/logs", query), nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *APIClient) GetLog(ctx context.Context, id string) (*domain.LogRecord, error) {
	var rec domain.LogRecord
	if err := c.do(ctx, http.MethodGet, "/logs/"+url.PathEscape(id), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// AppendRaw posts an already-encoded ingest payload, optionally zstd
// compressed.
func (c *APIClient) AppendRaw(ctx context.Context, payload []byte, compress bool) (*AppendResult, error) {
	body := payload
	headers := map[string]string{"Content-Type": "application/json"}
	if compress {
		var buf bytes.Buffer
		enc, err := zstd.NewWriter(&buf)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		if _, err := enc.Write(payload); err != nil {
			enc.Close()
			return nil, fmt.Errorf("failed to compress payload: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to compress payload: %w", err)
		}
		body = buf.Bytes()
		headers["Content-Encoding"] = "zstd"
	}

	var result AppendResult
	if err := c.send(ctx, http.MethodPost, "/logs", bytes.NewReader(body), headers, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) Append(ctx context.Context, records []domain.LogRecord) (*AppendResult, error) {
	payload, err := json.Marshal(map[string][]domain.LogRecord{"batch": records})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return c.AppendRaw(ctx, payload, false)
}

func (c *APIClient) DeleteLog(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/logs/"+url.PathEscape(id), nil, nil)
}

// DeleteLogs removes every record of level, or all records when level is
// empty, and returns how many were removed.
func (c *APIClient) DeleteLogs(ctx context.Context, level string) (int, error) {
	query := url.Values{}
	if level != "" {
		query.Set("level", level)
	}
	var resp struct {
		Deleted int `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodDelete, withQuery("/logs", query), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

func (c *APIClient) Ask(ctx context.Context, question string) (*AskResult, error) {
	var result AskResult
	if err := c.do(ctx, http.MethodPost, "/ask", map[string]string{"question": question}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) Analyze(ctx context.Context, message, app string) (*domain.AnalysisResult, error) {
	var result domain.AnalysisResult
	if err := c.do(ctx, http.MethodPost, "/analyze", map[string]string{"message": message, "app": app}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type AnalysisQuery struct {
	RiskLevel string
	Status    string
	Cursor    string
	Limit     int
}

func (c *APIClient) ListAnalyses(ctx context.Context, q AnalysisQuery) (*pagination.PageResult[*domain.AnalysisResult], error) {
	query := url.Values{}
	if q.RiskLevel != "" {
		query.Set("risk_level", q.RiskLevel)
	}
	if q.Status != "" {
		query.Set("status", q.Status)
	}
	if q.Cursor != "" {
		query.Set("cursor", q.Cursor)
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}

	var page pagination.PageResult[*domain.AnalysisResult]
	if err := c.do(ctx, http.MethodGet, withQuery("/analyses", query), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *APIClient) GetAnalysis(ctx context.Context, logID string) (*domain.AnalysisResult, error) {
	var result domain.AnalysisResult
	if err := c.do(ctx, http.MethodGet, "/analyses/"+url.PathEscape(logID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Health reports the daemon status. A degraded pipeline answers 503 with a
// body, which is returned alongside the APIError.
func (c *APIClient) Health(ctx context.Context) (*HealthResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var result HealthResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return &result, &APIError{StatusCode: resp.StatusCode, Message: result.Status}
	}
	return &result, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	headers := map[string]string{}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
		headers["Content-Type"] = "application/json"
	}
	return c.send(ctx, method, path, reader, headers, out)
}

func (c *APIClient) send(ctx context.Context, method, path string, body io.Reader, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		}
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Code: apiResp.Code, Message: apiResp.Error}
	}

	if out == nil || len(apiResp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(apiResp.Data, out); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}

func withQuery(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}
