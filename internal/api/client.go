// Package api implements the HTTP half of the messenger protocol: token
// exchange, token validation and history fetches.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrAuthRejected means the server refused the submitted credentials.
	ErrAuthRejected = errors.New("api: credentials rejected")
	// ErrTokenInvalid means the server refused a previously issued token.
	ErrTokenInvalid = errors.New("api: token invalid")
)

// RejectionError carries the server's detail text for a refused login. It
// matches ErrAuthRejected under errors.Is.
type RejectionError struct {
	Detail string
}

func (e *RejectionError) Error() string {
	return ErrAuthRejected.Error() + ": " + e.Detail
}

func (e *RejectionError) Unwrap() error { return ErrAuthRejected }

const requestTimeout = 10 * time.Second

// Client talks to one messenger server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the server at baseURL, e.g. "http://localhost:8000".
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// Login exchanges credentials for an access token via POST /token. A non-2xx
// response surfaces as ErrAuthRejected carrying the server's detail text.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("api: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("api: token request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var body struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(res.Body).Decode(&body); err != nil || body.Detail == "" {
			body.Detail = res.Status
		}
		return "", &RejectionError{Detail: body.Detail}
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("api: decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", &RejectionError{Detail: "empty access token"}
	}

	return body.AccessToken, nil
}

// ValidateToken asks the server whether a stored token is still accepted.
func (c *Client) ValidateToken(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/validate-token", nil)
	if err != nil {
		return fmt.Errorf("api: build validate request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: validate request failed: %w", err)
	}
	defer res.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return ErrTokenInvalid
	}

	return nil
}
