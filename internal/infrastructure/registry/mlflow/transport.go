package mlflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPStatusError is a non-2xx answer from the tracking server or a scoring server.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	ErrorCode  string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "mlflow status error"
	}
	if e.ErrorCode != "" {
		return fmt.Sprintf("mlflow %s status: %s: %s", e.Operation, e.Status, e.ErrorCode)
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("mlflow %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("mlflow %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func doJSON(ctx context.Context, httpClient *http.Client, method, endpoint string, payload any, out any, operation string) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mlflow %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(operation, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func statusError(operation string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	out := &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(raw),
	}
	var apiErr struct {
		ErrorCode string `json:"error_code"`
	}
	if json.Unmarshal(raw, &apiErr) == nil {
		out.ErrorCode = apiErr.ErrorCode
	}
	return out
}
