// Package rest talks to the fee backend over HTTP.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"feeledger/internal/core"
	"feeledger/internal/feeapi"
)

const (
	pathFees          = "/studentfee"
	pathFeeUpdate     = "/studentfee/update"
	pathPayments      = "/student-fee-payments"
	pathFeeStructures = "/fee-structures"
	pathCourses       = "/courses/index"
	pathStudents      = "/students/show"
	pathBranches      = "/branches"

	maxErrorBody = 64 << 10
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token() (string, error)
}

type Client struct {
	baseURL *url.URL
	tokens  TokenSource
	http    *http.Client
	logger  *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default client (15s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the backend rooted at baseURL.
func New(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https, got %q", baseURL)
	}
	if tokens == nil {
		return nil, errors.New("token source is required")
	}
	c := &Client{
		baseURL: u,
		tokens:  tokens,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) ListFeeRecords(ctx context.Context) ([]core.FeeRecord, error) {
	var out []core.FeeRecord
	if err := c.do(ctx, http.MethodGet, pathFees, nil, &out); err != nil {
		return nil, fmt.Errorf("list fee records: %w", err)
	}
	return out, nil
}

func (c *Client) GetFeeRecord(ctx context.Context, id core.ID) (core.FeeRecord, error) {
	var out core.FeeRecord
	if err := c.do(ctx, http.MethodGet, pathFees+"/"+url.PathEscape(id.String()), nil, &out); err != nil {
		return core.FeeRecord{}, fmt.Errorf("get fee record %s: %w", id, err)
	}
	return out, nil
}

func (c *Client) CreateFeeRecord(ctx context.Context, in core.NewFeeRecord) (core.FeeRecord, error) {
	var out core.FeeRecord
	if err := c.do(ctx, http.MethodPost, pathFees, in, &out); err != nil {
		return core.FeeRecord{}, fmt.Errorf("create fee record: %w", err)
	}
	return out, nil
}

func (c *Client) UpdatePaidAmount(ctx context.Context, id core.ID, paid core.Money) (core.FeeRecord, error) {
	body := struct {
		PaidAmount core.Money `json:"paid_amount"`
	}{paid}
	var out core.FeeRecord
	if err := c.do(ctx, http.MethodPut, pathFeeUpdate+"/"+url.PathEscape(id.String()), body, &out); err != nil {
		return core.FeeRecord{}, fmt.Errorf("update paid amount %s: %w", id, err)
	}
	return out, nil
}

func (c *Client) DeleteFeeRecord(ctx context.Context, id core.ID) error {
	if err := c.do(ctx, http.MethodDelete, pathFees+"/"+url.PathEscape(id.String()), nil, nil); err != nil {
		return fmt.Errorf("delete fee record %s: %w", id, err)
	}
	return nil
}

func (c *Client) RecordPayment(ctx context.Context, in core.NewPayment) (core.Payment, error) {
	var out core.Payment
	if err := c.do(ctx, http.MethodPost, pathPayments, in, &out); err != nil {
		return core.Payment{}, fmt.Errorf("record payment: %w", err)
	}
	return out, nil
}

func (c *Client) DeletePayment(ctx context.Context, id core.ID) error {
	if err := c.do(ctx, http.MethodDelete, pathPayments+"/"+url.PathEscape(id.String()), nil, nil); err != nil {
		return fmt.Errorf("delete payment %s: %w", id, err)
	}
	return nil
}

func (c *Client) ListFeeStructures(ctx context.Context) ([]core.FeeStructure, error) {
	var out []core.FeeStructure
	if err := c.do(ctx, http.MethodGet, pathFeeStructures, nil, &out); err != nil {
		return nil, fmt.Errorf("list fee structures: %w", err)
	}
	return out, nil
}

func (c *Client) ListCourses(ctx context.Context) ([]core.Course, error) {
	var out []core.Course
	if err := c.do(ctx, http.MethodGet, pathCourses, nil, &out); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return out, nil
}

func (c *Client) ListStudents(ctx context.Context) ([]core.Student, error) {
	var out []core.Student
	if err := c.do(ctx, http.MethodGet, pathStudents, nil, &out); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return out, nil
}

func (c *Client) ListBranches(ctx context.Context) ([]core.Branch, error) {
	var out []core.Branch
	if err := c.do(ctx, http.MethodGet, pathBranches, nil, &out); err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	token, err := c.tokens.Token()
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Request-ID", reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "Backend call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", reqID,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(unwrapData(raw), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// unwrapData strips a {"data": ...} envelope. Bare payloads pass through.
func unwrapData(raw []byte) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return trimmed
	}
	if data, ok := env["data"]; ok {
		return data
	}
	return trimmed
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	be := &feeapi.Error{StatusCode: resp.StatusCode}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		be.Code = payload.Code
		be.Message = payload.Message
		if be.Message == "" {
			be.Message = payload.Error
		}
	}
	if be.Message == "" {
		be.Message = strings.TrimSpace(string(raw))
	}
	if be.Message == "" {
		be.Message = http.StatusText(resp.StatusCode)
	}
	return be
}
