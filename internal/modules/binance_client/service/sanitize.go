package service

import (
	"context"
	"fmt"
	"math"

	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/helper"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/models"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/pkg/logger"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/pkg/metrics"
)

// sanitizeOrder rewrites/validates an order payload against exchange
// parameter rules before it leaves the process. Rules, in order:
//
//	(a) TAKE_PROFIT (limit) with closePosition=true: if a live position
//	    exists, drop the flag and size the order to the position; otherwise
//	    convert to TAKE_PROFIT_MARKET with closePosition=true and no price.
//	(b) closePosition=true is stripped from any type other than STOP_MARKET
//	    and TAKE_PROFIT_MARKET.
//	(c) reduceOnly is stripped whenever closePosition=true is present; the
//	    exchange rejects the combination. A sized stop without closePosition
//	    keeps its reduceOnly flag.
//	(d) triggered types without a strictly positive trigger price fail fast.
//
// Mutates req in place; returns *SanitizationError when a rule cannot be
// satisfied.
func (c *Client) sanitizeOrder(ctx context.Context, req *models.OrderRequest) error {
	// (d) first: nothing else is meaningful without a usable trigger
	if req.Type.IsTriggered() {
		if !helper.IsFinitePositive(req.StopPrice) {
			return &SanitizationError{
				Reason: fmt.Sprintf("%s %s %s requires a positive trigger price, got %v",
					req.Symbol, req.Side, req.Type, req.StopPrice),
			}
		}
	}

	// (a) take-profit limit asking to close the whole position
	if req.Type == models.OrderTypeTakeProfit && req.ClosePosition {
		live, err := c.livePositionSize(ctx, req.Symbol)
		if err != nil {
			return fmt.Errorf("sanitize %s lookup position: %w", req.Symbol, err)
		}
		if live > 0 {
			req.ClosePosition = false
			req.Quantity = live
			logger.Info("sanitizer: %s TAKE_PROFIT closePosition rewritten to qty=%v", req.Symbol, live)
		} else {
			req.Type = models.OrderTypeTakeProfitMarket
			req.Price = 0
			req.Quantity = 0
			req.ClosePosition = true
			logger.Info("sanitizer: %s TAKE_PROFIT converted to TAKE_PROFIT_MARKET closePosition", req.Symbol)
		}
		metrics.SanitizerRewrites.Inc()
	}

	// (b) closePosition only on the two market-triggered exit types
	if req.ClosePosition && !req.Type.AllowsClosePosition() {
		req.ClosePosition = false
		metrics.SanitizerRewrites.Inc()
		logger.Warn("sanitizer: %s stripped closePosition from %s", req.Symbol, req.Type)
	}

	// (c) reduceOnly never rides with closePosition; the exchange rejects
	// the combination. It stays on plain sized exits, where it is the only
	// guarantee the order cannot flip the position.
	if req.ReduceOnly && req.ClosePosition {
		req.ReduceOnly = false
		metrics.SanitizerRewrites.Inc()
	}

	// closePosition orders carry no quantity
	if req.ClosePosition {
		req.Quantity = 0
	}

	// a take-profit limit that somehow still wants closePosition is a bug
	if req.Type == models.OrderTypeTakeProfit && req.ClosePosition {
		return &SanitizationError{
			Reason: fmt.Sprintf("%s TAKE_PROFIT with closePosition survived the rewrite", req.Symbol),
		}
	}

	return nil
}

// livePositionSize returns the absolute current size for a symbol, zero when
// flat, straight from the REST snapshot (cached at the realtime TTL).
func (c *Client) livePositionSize(ctx context.Context, symbol string) (float64, error) {
	positions, err := c.Positions(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range positions {
		if p.Symbol == symbol && p.Open() {
			return math.Abs(p.Amount), nil
		}
	}
	return 0, nil
}
