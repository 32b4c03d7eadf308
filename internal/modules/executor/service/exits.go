package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/helper"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/models"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/pkg/logger"
)

const (
	stopRetries      = 2
	stopRetryBackoff = 500 * time.Millisecond
)

// exitPhase places the protective stop and the take-profit for every symbol
// whose entry went through. One fresh REST snapshot of positions and open
// orders is shared across the batch.
func (e *Executor) exitPhase(ctx context.Context, states []*symbolState) {
	positions, err := e.ex.Positions(ctx)
	if err != nil {
		logger.Error("exit phase: positions: %v", err)
		positions = nil
	}
	bySymbol := make(map[string]models.Position, len(positions))
	for _, p := range positions {
		if p.Open() {
			bySymbol[p.Symbol] = p
		}
	}

	for _, st := range states {
		if st.result.EntryOrder == nil {
			continue
		}
		plan := st.intent

		live, filled := bySymbol[plan.Symbol]

		if e.cfg.StopLossDisabled {
			logger.Warn("exit %s: stop-loss globally disabled, skipping protective stop", plan.Symbol)
		} else if helper.IsFinitePositive(plan.StopLoss) {
			if err := e.placeStopWithRetry(ctx, st, live, filled); err != nil {
				st.fail(fmt.Errorf("stop-loss unresolved: %w", err))
			} else if st.result.StopOrder == nil {
				logger.Info("exit %s: existing stop reused", plan.Symbol)
			}
		}

		if helper.IsFinitePositive(plan.TakeProfit) && st.result.Status == models.ResultExecuted {
			e.placeTakeProfit(ctx, st)
		}

		e.guard.Watch(plan.Symbol, plan.Side)
	}
}

// placeStopWithRetry tries the protective stop up to 1+stopRetries times
// with linear backoff.
func (e *Executor) placeStopWithRetry(ctx context.Context, st *symbolState, live models.Position, filled bool) error {
	plan := st.intent

	req, skip, err := e.stopRequest(ctx, plan, live, filled)
	if err != nil {
		return err
	}
	if skip {
		return nil
	}

	var lastErr error
	for attempt := 0; attempt <= stopRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * stopRetryBackoff):
			}
		}
		order, err := e.ex.PlaceOrder(ctx, req)
		if err == nil {
			st.result.StopOrder = order
			return nil
		}
		lastErr = err
		logger.Error("exit %s: stop attempt %d: %v", plan.Symbol, attempt+1, err)
	}
	return lastErr
}

// stopRequest decides the stop form: a reduce-only stop sized to the live
// position when one exists, otherwise the position-closing form guarded
// against immediate triggering. skip=true means an equivalent stop already
// rests on the exchange.
func (e *Executor) stopRequest(ctx context.Context, plan TradeIntentPlan, live models.Position, filled bool) (models.OrderRequest, bool, error) {
	open, err := e.ex.OpenOrders(ctx, plan.Symbol)
	if err != nil {
		logger.Error("exit %s: open orders: %v", plan.Symbol, err)
		open = nil
	}
	for _, o := range open {
		if o.IsProtectiveStop(plan.Side) && helper.SamePrice(o.StopPrice, plan.StopLoss) {
			return models.OrderRequest{}, true, nil
		}
	}

	req := models.OrderRequest{
		Symbol:      plan.Symbol,
		Side:        models.ClosingSide(plan.Side),
		Type:        models.OrderTypeStopMarket,
		StopPrice:   plan.StopLoss,
		WorkingType: models.WorkingTypeMark,
	}

	if filled {
		req.Quantity = helper.QuantizeDown(math.Abs(live.Amount), plan.Filters.StepSize)
		req.ReduceOnly = true
		return req, false, nil
	}

	mark, err := e.ex.MarkPrice(ctx, plan.Symbol)
	if err != nil {
		return models.OrderRequest{}, false, fmt.Errorf("mark price: %w", err)
	}
	if crossed(plan.Side, plan.StopLoss, mark) {
		return models.OrderRequest{}, false, fmt.Errorf("stop %v already crossed by mark %v", plan.StopLoss, mark)
	}
	req.ClosePosition = true
	return req, false, nil
}

func (e *Executor) placeTakeProfit(ctx context.Context, st *symbolState) {
	plan := st.intent

	if !e.cfg.ImmediateTP {
		if err := e.sched.Schedule(plan.Symbol, plan.TakeProfit, plan.Quantity, plan.Side, models.WorkingTypeMark); err != nil {
			st.fail(fmt.Errorf("defer take-profit: %w", err))
			return
		}
		st.result.TpDeferred = true
		return
	}

	mark, err := e.ex.MarkPrice(ctx, plan.Symbol)
	if err == nil && tpCrossed(plan.Side, plan.TakeProfit, mark) {
		// profit target already passed; a deferred entry lets the
		// scheduler close at market conditions instead of rejecting
		logger.Warn("exit %s: take-profit %v already passed by mark %v, deferring", plan.Symbol, plan.TakeProfit, mark)
		if err := e.sched.Schedule(plan.Symbol, plan.TakeProfit, plan.Quantity, plan.Side, models.WorkingTypeMark); err == nil {
			st.result.TpDeferred = true
		}
		return
	}

	req := models.OrderRequest{
		Symbol:        plan.Symbol,
		Side:          models.ClosingSide(plan.Side),
		Type:          models.OrderTypeTakeProfitMarket,
		StopPrice:     plan.TakeProfit,
		ClosePosition: true,
		WorkingType:   models.WorkingTypeMark,
	}
	order, err := e.ex.PlaceOrder(ctx, req)
	if err != nil {
		st.fail(fmt.Errorf("take-profit: %w", err))
		return
	}
	st.result.TpOrder = order
}

// postVerify re-reads the exchange and escalates any symbol holding a
// position with no stop to the same emergency path the watchdog uses.
func (e *Executor) postVerify(ctx context.Context, states []*symbolState) {
	if e.cfg.StopLossDisabled {
		return
	}
	positions, err := e.ex.Positions(ctx)
	if err != nil {
		logger.Error("post-verify: positions: %v", err)
		return
	}

	for _, st := range states {
		if st.result.EntryOrder == nil {
			continue
		}
		var live *models.Position
		for i := range positions {
			if positions[i].Symbol == st.intent.Symbol && positions[i].Open() {
				live = &positions[i]
				break
			}
		}
		if live == nil {
			continue
		}

		open, err := e.ex.OpenOrders(ctx, st.intent.Symbol)
		if err != nil {
			logger.Error("post-verify %s: open orders: %v", st.intent.Symbol, err)
			continue
		}
		protected := false
		for _, o := range open {
			if o.IsProtectiveStop(st.intent.Side) {
				protected = true
				break
			}
		}
		if protected {
			continue
		}

		logger.Error("post-verify %s: position without stop, escalating", st.intent.Symbol)
		e.n.Sendf("🚨 %s: filled without a stop, creating emergency protection", st.intent.Symbol)
		if err := e.guard.EnsureProtected(ctx, st.intent.Symbol, st.intent.Side); err != nil {
			st.fail(fmt.Errorf("post-verify: %w", err))
		}
	}
}

// crossed reports whether mark already passed the stop level for the side.
// A short's stop buys back above, so mark at or beyond it means the stop
// would trigger immediately.
func crossed(side models.PositionSide, stop, mark float64) bool {
	if side == models.PositionSideShort {
		return mark >= stop
	}
	return mark <= stop
}

// tpCrossed reports whether mark already passed the profit target.
func tpCrossed(side models.PositionSide, tp, mark float64) bool {
	if side == models.PositionSideShort {
		return mark <= tp
	}
	return mark >= tp
}
