package kite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
)

type kiteResponse[T any] struct {
	Status    string `json:"status"`
	Data      T      `json:"data"`
	Message   string `json:"message"`
	ErrorType string `json:"error_type"`
}

// APIError is an error envelope returned by Kite.
type APIError struct {
	HTTPStatus int
	ErrorType  string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kite %s (http %d): %s", e.ErrorType, e.HTTPStatus, e.Message)
}

// Transient lets broker-agnostic callers classify the error.
func (e *APIError) Transient() bool { return IsTransient(e) }

// IsTransient reports whether err is worth retrying on a later cycle:
// network failures, rate limits and broker-side outages.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorType {
		case "NetworkException", "DataException":
			return true
		}
		return apiErr.HTTPStatus == http.StatusTooManyRequests || apiErr.HTTPStatus >= 500
	}
	return false
}

// IsTokenError reports whether the session is no longer valid.
func IsTokenError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.ErrorType == "TokenException"
}

func (c *Client) newRequest(ctx context.Context, method, path string, params url.Values) (*http.Request, error) {
	urlStr := c.baseURL + path
	var body io.Reader
	if len(params) > 0 {
		if method == http.MethodPost || method == http.MethodPut {
			body = strings.NewReader(params.Encode())
		} else {
			urlStr += "?" + params.Encode()
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Kite-Version", apiVersion)
	req.Header.Set("Authorization", "token "+c.apiKey+":"+c.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req, nil
}

func (c *Client) doRaw(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	req, err := c.newRequest(ctx, method, path, params)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var env kiteResponse[json.RawMessage]
		if jsonErr := json.Unmarshal(data, &env); jsonErr == nil && env.Message != "" {
			return nil, &APIError{HTTPStatus: resp.StatusCode, ErrorType: env.ErrorType, Message: env.Message}
		}
		return nil, &APIError{HTTPStatus: resp.StatusCode, ErrorType: "HTTPException", Message: resp.Status}
	}
	return data, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, out any) error {
	data, err := c.doRaw(ctx, method, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
