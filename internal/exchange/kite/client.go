// Package kite adapts the Kite Connect v3 REST API to exchange.Client.
package kite

import (
	"net/http"
	"time"

	"slguard/internal/logger"
)

const (
	apiVersion = "3"
	variety    = "regular"
)

type Client struct {
	baseURL     string
	apiKey      string
	accessToken string

	httpClient *http.Client
	log        *logger.Logger
	loc        *time.Location
}

func New(baseURL, apiKey, accessToken string, log *logger.Logger) *Client {
	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
		loc: time.FixedZone("IST", 5*60*60+30*60),
	}
}
