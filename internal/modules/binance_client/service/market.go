package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// MarkPrice is the exchange's reference price for trigger evaluation,
// distinct from the last traded price.
func (c *Client) MarkPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	data, err := c.get(ctx, "/fapi/v1/premiumIndex", params, false)
	if err != nil {
		return 0, fmt.Errorf("MarkPrice %s: %w", symbol, err)
	}

	var parsed struct {
		MarkPrice string `json:"markPrice"`
	}
	if err := decodeInto(data, &parsed, "MarkPrice"); err != nil {
		return 0, err
	}

	px, err := strconv.ParseFloat(parsed.MarkPrice, 64)
	if err != nil || px <= 0 {
		return 0, fmt.Errorf("MarkPrice %s: bad price %q", symbol, parsed.MarkPrice)
	}
	return px, nil
}

// LastPrice is the last traded price from the ticker.
func (c *Client) LastPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	data, err := c.get(ctx, "/fapi/v1/ticker/price", params, false)
	if err != nil {
		return 0, fmt.Errorf("LastPrice %s: %w", symbol, err)
	}

	var parsed struct {
		Price string `json:"price"`
	}
	if err := decodeInto(data, &parsed, "LastPrice"); err != nil {
		return 0, err
	}

	px, err := strconv.ParseFloat(parsed.Price, 64)
	if err != nil || px <= 0 {
		return 0, fmt.Errorf("LastPrice %s: bad price %q", symbol, parsed.Price)
	}
	return px, nil
}

// HedgeMode reports whether the account runs dual position side ("hedge")
// mode, where direction is an explicit tag instead of sign-of-quantity.
func (c *Client) HedgeMode(ctx context.Context) (bool, error) {
	data, err := c.get(ctx, "/fapi/v1/positionSide/dual", nil, true)
	if err != nil {
		return false, fmt.Errorf("HedgeMode: %w", err)
	}

	var parsed struct {
		DualSidePosition bool `json:"dualSidePosition"`
	}
	if err := decodeInto(data, &parsed, "HedgeMode"); err != nil {
		return false, err
	}
	return parsed.DualSidePosition, nil
}
