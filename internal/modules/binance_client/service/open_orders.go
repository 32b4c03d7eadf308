package service

import (
	"context"
	"fmt"
	"net/url"

	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/models"
)

// OpenOrders returns resting orders for one symbol, or for the whole
// account when symbol is empty.
func (c *Client) OpenOrders(ctx context.Context, symbol string) ([]models.Order, error) {
	var params url.Values
	if symbol != "" {
		params = url.Values{}
		params.Set("symbol", symbol)
	}

	data, err := c.get(ctx, "/fapi/v1/openOrders", params, true)
	if err != nil {
		return nil, fmt.Errorf("OpenOrders %q: %w", symbol, err)
	}

	var items []orderItem
	if err := decodeInto(data, &items, "OpenOrders"); err != nil {
		return nil, err
	}

	res := make([]models.Order, 0, len(items))
	for _, it := range items {
		res = append(res, it.toOrder())
	}
	return res, nil
}
