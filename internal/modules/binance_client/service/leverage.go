package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// SetLeverage adjusts the symbol's leverage before an entry is placed.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if leverage < 1 || leverage > 125 {
		return fmt.Errorf("SetLeverage %s: leverage %d out of range", symbol, leverage)
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))

	if _, err := c.do(ctx, http.MethodPost, "/fapi/v1/leverage", params, true); err != nil {
		return fmt.Errorf("SetLeverage %s x%d: %w", symbol, leverage, err)
	}
	return nil
}
