package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/helper"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/models"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/pkg/metrics"

	"github.com/bytedance/sonic"
)

// PlaceOrder sends one order through the sanitizing gate. The request may be
// rewritten per the exchange parameter rules; RAW_PASSTHROUGH skips the gate
// for trusted call sites.
func (c *Client) PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	if !c.cfg.RawPassthrough {
		if err := c.sanitizeOrder(ctx, &req); err != nil {
			metrics.OrdersRejected.Inc()
			return nil, err
		}
	}

	if req.ClientOrderID == "" {
		req.ClientOrderID = ClientOrderID(req)
	}

	params := orderParams(req)

	data, err := c.do(ctx, http.MethodPost, "/fapi/v1/order", params, true)
	if err != nil {
		metrics.OrdersRejected.Inc()
		return nil, fmt.Errorf("PlaceOrder %s: %w", req.Symbol, err)
	}

	var item orderItem
	if err := decodeInto(data, &item, "PlaceOrder"); err != nil {
		return nil, err
	}

	c.cache.Invalidate("/fapi/v1/openOrders")
	c.cache.Invalidate("/fapi/v2/positionRisk")
	metrics.OrdersPlaced.WithLabelValues(string(req.Type)).Inc()

	order := item.toOrder()
	return &order, nil
}

// PlaceBatchOrders submits up to five orders in one call. Per-order failures
// come back inline, so the result carries an order or an error per slot.
func (c *Client) PlaceBatchOrders(ctx context.Context, reqs []models.OrderRequest) ([]*models.Order, []error, error) {
	if len(reqs) == 0 || len(reqs) > 5 {
		return nil, nil, fmt.Errorf("PlaceBatchOrders: batch size %d out of range 1..5", len(reqs))
	}

	batch := make([]map[string]string, 0, len(reqs))
	for i := range reqs {
		if !c.cfg.RawPassthrough {
			if err := c.sanitizeOrder(ctx, &reqs[i]); err != nil {
				return nil, nil, err
			}
		}
		if reqs[i].ClientOrderID == "" {
			reqs[i].ClientOrderID = ClientOrderID(reqs[i])
		}
		flat := map[string]string{}
		for k, vs := range orderParams(reqs[i]) {
			flat[k] = vs[0]
		}
		batch = append(batch, flat)
	}

	encoded, err := sonic.Marshal(batch)
	if err != nil {
		return nil, nil, fmt.Errorf("PlaceBatchOrders marshal: %w", err)
	}

	params := url.Values{}
	params.Set("batchOrders", string(encoded))

	data, err := c.do(ctx, http.MethodPost, "/fapi/v1/batchOrders", params, true)
	if err != nil {
		return nil, nil, fmt.Errorf("PlaceBatchOrders: %w", err)
	}

	var rows []json.RawMessage
	if err := decodeInto(data, &rows, "PlaceBatchOrders"); err != nil {
		return nil, nil, err
	}

	orders := make([]*models.Order, len(rows))
	errs := make([]error, len(rows))
	for i, raw := range rows {
		var item orderItem
		if err := sonic.Unmarshal(raw, &item); err == nil && item.OrderID != 0 {
			o := item.toOrder()
			orders[i] = &o
			metrics.OrdersPlaced.WithLabelValues(string(o.Type)).Inc()
			continue
		}
		errs[i] = parseAPIError(http.StatusOK, raw)
		metrics.OrdersRejected.Inc()
	}

	c.cache.Invalidate("/fapi/v1/openOrders")
	c.cache.Invalidate("/fapi/v2/positionRisk")
	return orders, errs, nil
}

// orderParams renders the request as wire parameters. Zero-valued optional
// fields are omitted; a closePosition order never carries quantity.
func orderParams(req models.OrderRequest) url.Values {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", string(req.Type))
	params.Set("newClientOrderId", req.ClientOrderID)

	if req.Quantity > 0 && !req.ClosePosition {
		params.Set("quantity", helper.FormatFloat(req.Quantity))
	}
	if req.Price > 0 {
		params.Set("price", helper.FormatFloat(req.Price))
	}
	if req.StopPrice > 0 {
		params.Set("stopPrice", helper.FormatFloat(req.StopPrice))
	}
	if req.TimeInForce != "" {
		params.Set("timeInForce", string(req.TimeInForce))
	}
	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}
	if req.ClosePosition {
		params.Set("closePosition", "true")
	}
	if req.PositionSide != "" {
		params.Set("positionSide", string(req.PositionSide))
	}
	if req.WorkingType != "" {
		params.Set("workingType", string(req.WorkingType))
	}
	return params
}

// CancelOrder cancels one order by exchange id.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	if _, err := c.do(ctx, http.MethodDelete, "/fapi/v1/order", params, true); err != nil {
		return fmt.Errorf("CancelOrder %s #%d: %w", symbol, orderID, err)
	}
	c.cache.Invalidate("/fapi/v1/openOrders")
	c.cache.Invalidate("/fapi/v2/positionRisk")
	return nil
}

// CancelAllOrders wipes every open order for a symbol.
func (c *Client) CancelAllOrders(ctx context.Context, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)

	if _, err := c.do(ctx, http.MethodDelete, "/fapi/v1/allOpenOrders", params, true); err != nil {
		return fmt.Errorf("CancelAllOrders %s: %w", symbol, err)
	}
	c.cache.Invalidate("/fapi/v1/openOrders")
	c.cache.Invalidate("/fapi/v2/positionRisk")
	return nil
}
