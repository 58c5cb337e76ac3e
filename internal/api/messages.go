package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/KlementevYP/messager/internal/model"
)

// Messages fetches the full message history for a room, oldest first.
func (c *Client) Messages(ctx context.Context, token, room string) ([]model.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/messages/"+url.PathEscape(room), nil)
	if err != nil {
		return nil, fmt.Errorf("api: build messages request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: messages request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		if res.StatusCode == http.StatusUnauthorized {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("api: messages request returned %s", res.Status)
	}

	var messages []model.Message
	if err := json.NewDecoder(res.Body).Decode(&messages); err != nil {
		return nil, fmt.Errorf("api: decode messages response: %w", err)
	}

	return messages, nil
}

// ChannelURL builds the websocket URL for a (room, token) pair, translating
// the client's base URL to the ws scheme.
func (c *Client) ChannelURL(room, token string) string {
	base := c.baseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	return base + "/ws/" + url.PathEscape(room) + "?token=" + url.QueryEscape(token)
}
