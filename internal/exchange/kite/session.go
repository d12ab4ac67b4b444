package kite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
)

var ErrNoAccessToken = errors.New("kite: no access token available")

type tokenFile struct {
	AccessToken string `json:"access_token"`
}

// LoadAccessToken returns the configured token, falling back to the JSON
// token file written by the login helper.
func LoadAccessToken(configured, path string) (string, error) {
	if tok := strings.TrimSpace(configured); tok != "" {
		return tok, nil
	}
	if path == "" {
		return "", ErrNoAccessToken
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoAccessToken
		}
		return "", fmt.Errorf("read token file: %w", err)
	}
	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return "", fmt.Errorf("parse token file: %w", err)
	}
	if strings.TrimSpace(tf.AccessToken) == "" {
		return "", ErrNoAccessToken
	}
	return strings.TrimSpace(tf.AccessToken), nil
}

// Logout invalidates the access token on the broker side.
func (c *Client) Logout(ctx context.Context) error {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("access_token", c.accessToken)

	var resp kiteResponse[bool]
	return c.doRequest(ctx, http.MethodDelete, "/session/token", params, &resp)
}
