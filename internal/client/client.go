// Package client talks to the media-search HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/media-search/internal/core/domain"
	"github.com/kirillkom/media-search/internal/infrastructure/resilience"
)

const maxErrorBody = 2048

type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type UploadRequest struct {
	Path        string
	Category    string
	Subcategory string
	Metadata    json.RawMessage
}

type UploadResult struct {
	ID          string           `json:"id"`
	URL         string           `json:"url"`
	Kind        domain.AssetKind `json:"kind"`
	Category    string           `json:"category"`
	Subcategory string           `json:"subcategory"`
}

// ExtractResult is the body of a successful synchronous extraction.
type ExtractResult struct {
	Success bool            `json:"success"`
	Rows    json.RawMessage `json:"rows"`
}

func (c *Client) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	return resilience.ExecuteValue(ctx, c.executor, "api.upload", func(ctx context.Context) (*UploadResult, error) {
		body, contentType, err := uploadBody(req)
		if err != nil {
			return nil, err
		}
		var out UploadResult
		if err := c.do(ctx, http.MethodPost, "/assets", contentType, body, "upload", &out); err != nil {
			return nil, err
		}
		return &out, nil
	}, resilience.ClassifyTransport)
}

func (c *Client) List(ctx context.Context, only string) ([]domain.MediaAsset, error) {
	path := "/assets"
	if only != "" {
		path += "?only=" + url.QueryEscape(only)
	}
	var out struct {
		Items []domain.MediaAsset `json:"items"`
	}
	if err := c.get(ctx, path, "list", &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) Get(ctx context.Context, id string) (*domain.MediaAsset, error) {
	var out domain.MediaAsset
	if err := c.get(ctx, "/assets/"+url.PathEscape(id), "get asset", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Captions implements watcher.Fetcher.
func (c *Client) Captions(ctx context.Context, id string) ([]domain.CaptionSegment, error) {
	out := []domain.CaptionSegment{}
	if err := c.get(ctx, "/assets/"+url.PathEscape(id)+"/captions", "captions", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Status(ctx context.Context, id string) (*domain.AssetStatus, error) {
	var out domain.AssetStatus
	if err := c.get(ctx, "/assets/"+url.PathEscape(id)+"/status", "status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Search(ctx context.Context, query string) ([]domain.SearchHit, error) {
	var out struct {
		Results []domain.SearchHit `json:"results"`
	}
	if err := c.get(ctx, "/search?q="+url.QueryEscape(query), "search", &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Extract runs extraction synchronously. A worker that exited non-zero is
// returned as *domain.WorkerFailure.
func (c *Client) Extract(ctx context.Context, id string) (*ExtractResult, error) {
	return resilience.ExecuteValue(ctx, c.executor, "api.extract", func(ctx context.Context) (*ExtractResult, error) {
		var out ExtractResult
		err := c.do(ctx, http.MethodPost, "/assets/"+url.PathEscape(id)+"/extract", "", nil, "extract", &out)
		if err != nil {
			return nil, err
		}
		return &out, nil
	}, resilience.ClassifyTransport)
}

func (c *Client) BulkDelete(ctx context.Context, ids []string) (int64, error) {
	return resilience.ExecuteValue(ctx, c.executor, "api.bulk_delete", func(ctx context.Context) (int64, error) {
		payload, err := json.Marshal(map[string][]string{"ids": ids})
		if err != nil {
			return 0, fmt.Errorf("marshal bulk delete request: %w", err)
		}
		var out struct {
			Count int64 `json:"count"`
		}
		if err := c.do(ctx, http.MethodPost, "/assets/bulk-delete", "application/json", bytes.NewReader(payload), "bulk delete", &out); err != nil {
			return 0, err
		}
		return out.Count, nil
	}, resilience.ClassifyTransport)
}

func (c *Client) get(ctx context.Context, path, operation string, out any) error {
	_, err := resilience.ExecuteValue(ctx, c.executor, "api."+strings.ReplaceAll(operation, " ", "_"), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.do(ctx, http.MethodGet, path, "", nil, operation, out)
	}, resilience.ClassifyTransport)
	return err
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, operation string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(operation, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func statusError(operation string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	if operation == "extract" && resp.StatusCode == http.StatusInternalServerError {
		var failure struct {
			Success  *bool  `json:"success"`
			ExitCode int    `json:"exitCode"`
			Stdout   string `json:"stdout"`
			Stderr   string `json:"stderr"`
		}
		if json.Unmarshal(raw, &failure) == nil && failure.Success != nil && !*failure.Success {
			return &domain.WorkerFailure{ExitCode: failure.ExitCode, Stdout: failure.Stdout, Stderr: failure.Stderr}
		}
	}

	statusErr := &resilience.StatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       errorMessage(raw),
		RetryAfter: resilience.ParseRetryAfter(resp.Header.Get("Retry-After")),
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return domain.WrapError(domain.ErrAssetNotFound, operation, statusErr)
	case http.StatusBadRequest:
		return domain.WrapError(domain.ErrInvalidInput, operation, statusErr)
	case http.StatusRequestEntityTooLarge:
		return domain.WrapError(domain.ErrPayloadTooLarge, operation, statusErr)
	default:
		return statusErr
	}
}

func errorMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}

func uploadBody(req UploadRequest) (io.Reader, string, error) {
	f, err := os.Open(req.Path)
	if err != nil {
		return nil, "", fmt.Errorf("open upload file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(req.Path))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy upload file: %w", err)
	}
	fields := map[string]string{
		"category":    req.Category,
		"subcategory": req.Subcategory,
		"metadata":    string(req.Metadata),
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
