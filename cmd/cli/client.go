package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/iho/leaveledger/internal/adapter/http/dto"
	"github.com/iho/leaveledger/internal/adapter/http/handler"
	"github.com/iho/leaveledger/internal/adapter/http/middleware"
)

var errDatabaseURL = errors.New("--database-url or DATABASE_URL is required")

type apiClient struct {
	baseURL    string
	employeeID string
	http       *http.Client
}

func newClient(opts *options) *apiClient {
	return &apiClient{
		baseURL:    strings.TrimRight(opts.baseURL, "/"),
		employeeID: opts.employeeID,
		http:       &http.Client{Timeout: opts.timeout},
	}
}

// apiError is a non-2xx response from the API.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("request failed (status %d): %s", e.Status, e.Message)
}

// do sends a JSON request and decodes the response into out. The body is decoded even
// for error statuses so callers can read structured failure reports.
func (c *apiClient) do(ctx context.Context, method, path string, body any, idempotencyKey string, out any) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.employeeID != "" {
		req.Header.Set(handler.EmployeeIDHeader, c.employeeID)
	}
	if idempotencyKey != "" {
		req.Header.Set(middleware.IdempotencyKeyHeader, idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}

	if out != nil && len(raw) > 0 {
		_ = json.Unmarshal(raw, out)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp dto.ErrorResponse
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
			if errResp.Message != "" {
				msg += ": " + errResp.Message
			}
		}
		return resp.StatusCode, &apiError{Status: resp.StatusCode, Message: msg}
	}

	return resp.StatusCode, nil
}
