package service

import (
	"context"
	"fmt"
	"net/http"
)

// CreateListenKey opens a user-data stream session. The key expires server
// side unless kept alive.
func (c *Client) CreateListenKey(ctx context.Context) (string, error) {
	data, err := c.do(ctx, http.MethodPost, "/fapi/v1/listenKey", nil, true)
	if err != nil {
		return "", fmt.Errorf("CreateListenKey: %w", err)
	}

	var parsed struct {
		ListenKey string `json:"listenKey"`
	}
	if err := decodeInto(data, &parsed, "CreateListenKey"); err != nil {
		return "", err
	}
	if parsed.ListenKey == "" {
		return "", fmt.Errorf("CreateListenKey: empty listenKey; body=%s", string(data))
	}
	return parsed.ListenKey, nil
}

// KeepAliveListenKey extends the session; must run on a fixed interval
// shorter than the server-side expiry.
func (c *Client) KeepAliveListenKey(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodPut, "/fapi/v1/listenKey", nil, true); err != nil {
		return fmt.Errorf("KeepAliveListenKey: %w", err)
	}
	return nil
}
