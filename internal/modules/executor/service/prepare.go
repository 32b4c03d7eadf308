package service

import (
	"context"
	"fmt"

	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/helper"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/models"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/pkg/logger"
)

// trigger offset for stop-type entries so the trigger cannot fire the
// moment it reaches the engine
const entryTriggerBufferPct = 0.001

// TradeIntentPlan is a fully quantized intent ready for submission.
type TradeIntentPlan struct {
	Symbol   string
	Side     models.PositionSide
	Leverage int

	Quantity   float64
	Entry      float64 // adjusted and tick-aligned
	Trigger    float64 // stop entries only
	StopLoss   float64
	TakeProfit float64
	Kind       models.EntryKind

	Filters models.SymbolFilters
}

// prepare quantizes every surviving intent against its symbol filters and
// applies the bounded entry-price adjustment. Intents that cannot be sized
// go straight to the error results.
func (e *Executor) prepare(ctx context.Context, intents []models.TradeIntent, res *models.BatchResult) []*symbolState {
	var states []*symbolState
	for _, in := range intents {
		plan, err := e.planIntent(ctx, in)
		if err != nil {
			res.Results = append(res.Results, errorResult(in.Symbol, err))
			continue
		}
		states = append(states, &symbolState{
			intent: plan,
			result: models.SymbolResult{Symbol: in.Symbol, Status: models.ResultExecuted},
		})
	}
	return states
}

func (e *Executor) planIntent(ctx context.Context, in models.TradeIntent) (TradeIntentPlan, error) {
	if !helper.IsFinitePositive(in.Entry) || in.Leverage <= 0 || in.AmountUSD <= 0 {
		return TradeIntentPlan{}, fmt.Errorf("prepare %s: invalid intent", in.Symbol)
	}

	filters, err := e.ex.SymbolFilters(ctx, in.Symbol)
	if err != nil {
		return TradeIntentPlan{}, fmt.Errorf("prepare %s: filters: %w", in.Symbol, err)
	}

	// notional sizing: USD amount times leverage, at the proposed entry
	qty := helper.QuantizeDown(in.AmountUSD*float64(in.Leverage)/in.Entry, filters.StepSize)
	if qty <= 0 || qty < filters.MinQty {
		return TradeIntentPlan{}, fmt.Errorf("prepare %s: quantity %v below minimum", in.Symbol, qty)
	}

	// the adjustment multiplier moves the entry only; protective levels
	// stay where the intent put them
	entry := helper.QuantizeNearest(in.Entry*e.cfg.EntryPriceAdjustPct/100, filters.TickSize)

	plan := TradeIntentPlan{
		Symbol:     in.Symbol,
		Side:       in.Side,
		Leverage:   in.Leverage,
		Quantity:   qty,
		Entry:      entry,
		StopLoss:   helper.QuantizeNearest(in.StopLoss, filters.TickSize),
		TakeProfit: helper.QuantizeNearest(in.TakeProfit, filters.TickSize),
		Kind:       in.EntryKind,
		Filters:    filters,
	}
	if plan.Kind == "" {
		plan.Kind = models.EntryLimit
	}

	if plan.Kind == models.EntryStop {
		mark, err := e.ex.MarkPrice(ctx, in.Symbol)
		if err != nil {
			return TradeIntentPlan{}, fmt.Errorf("prepare %s: mark price: %w", in.Symbol, err)
		}
		plan.Trigger = stopEntryTrigger(plan.Side, entry, mark, filters.TickSize)
		logger.Info("prepare %s: stop entry trigger %s (mark %s)",
			in.Symbol, helper.FormatFloat(plan.Trigger), helper.FormatFloat(mark))
	}

	return plan, nil
}

// stopEntryTrigger buffers the trigger away from both the proposed entry
// and the current mark so the stop cannot fire on arrival. Shorts enter on
// a break downward, longs on a break upward.
func stopEntryTrigger(side models.PositionSide, entry, mark, tick float64) float64 {
	if side == models.PositionSideShort {
		base := entry
		if mark < base {
			base = mark
		}
		return helper.QuantizeDown(base*(1-entryTriggerBufferPct), tick)
	}
	base := entry
	if mark > base {
		base = mark
	}
	return helper.QuantizeUp(base*(1+entryTriggerBufferPct), tick)
}

// EntryRequest renders the plan as the order to submit.
func (p TradeIntentPlan) EntryRequest() models.OrderRequest {
	req := models.OrderRequest{
		Symbol:   p.Symbol,
		Side:     openingSide(p.Side),
		Quantity: p.Quantity,
	}
	switch p.Kind {
	case models.EntryStop:
		req.Type = models.OrderTypeStopMarket
		req.StopPrice = p.Trigger
		req.WorkingType = models.WorkingTypeMark
	default:
		req.Type = models.OrderTypeLimit
		req.Price = p.Entry
		req.TimeInForce = models.TifGTC
	}
	return req
}

func openingSide(side models.PositionSide) models.OrderSide {
	if side == models.PositionSideShort {
		return models.SideSell
	}
	return models.SideBuy
}
