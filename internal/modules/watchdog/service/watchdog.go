package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/helper"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/models"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/notify"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/pkg/logger"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/pkg/metrics"
)

// Exchange is the slice of the client the watchdog needs. Safety decisions
// run on fresh REST snapshots only, never on the stream mirror.
type Exchange interface {
	Positions(ctx context.Context) ([]models.Position, error)
	OpenOrders(ctx context.Context, symbol string) ([]models.Order, error)
	MarkPrice(ctx context.Context, symbol string) (float64, error)
	SymbolFilters(ctx context.Context, symbol string) (models.SymbolFilters, error)
	PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error)
	CancelAllOrders(ctx context.Context, symbol string) error
}

const (
	tickInterval = time.Second
	// emergency stop goes this fraction beyond mark so it cannot
	// immediately trigger
	emergencyBufferPct = 0.005
)

// Watchdog is the time-boxed safety net: every watched symbol must end up
// with a protective stop by its deadline, or the position is flattened.
type Watchdog struct {
	ex Exchange
	n  notify.Notifier

	deadline time.Duration

	mu    sync.Mutex
	items []models.WatchItem

	now func() time.Time
}

func NewWatchdog(ex Exchange, n notify.Notifier, deadline time.Duration) *Watchdog {
	if deadline <= 0 {
		deadline = 30 * time.Second
	}
	return &Watchdog{ex: ex, n: n, deadline: deadline, now: time.Now}
}

// Watch arms a deadline check for the symbol. Duplicate submissions reset
// the deadline rather than queueing a second item.
func (w *Watchdog) Watch(symbol string, side models.PositionSide) {
	w.mu.Lock()
	defer w.mu.Unlock()

	deadline := w.now().Add(w.deadline)
	for i := range w.items {
		if w.items[i].Symbol == symbol {
			w.items[i].Deadline = deadline
			w.items[i].Side = side
			return
		}
	}
	w.items = append(w.items, models.WatchItem{Symbol: symbol, Side: side, Deadline: deadline})
}

// Pending reports the number of armed items, for the health endpoint.
func (w *Watchdog) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.items)
}

// Run scans the queue on a fixed tick; each item is consumed by the first
// tick that observes its deadline passed.
func (w *Watchdog) Run(ctx context.Context) {
	t := time.NewTicker(tickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, item := range w.takeDue() {
				w.resolve(ctx, item)
			}
		}
	}
}

func (w *Watchdog) takeDue() []models.WatchItem {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	var due []models.WatchItem
	kept := w.items[:0]
	for _, item := range w.items {
		if !item.Deadline.After(now) {
			due = append(due, item)
		} else {
			kept = append(kept, item)
		}
	}
	w.items = kept
	return due
}

// resolve classifies one due item: protected position, naked position, or
// leftovers with no position at all.
func (w *Watchdog) resolve(ctx context.Context, item models.WatchItem) {
	pos, err := w.positionFor(ctx, item.Symbol)
	if err != nil {
		logger.Error("watchdog %s: positions: %v", item.Symbol, err)
		w.rearm(item)
		return
	}

	orders, err := w.ex.OpenOrders(ctx, item.Symbol)
	if err != nil {
		logger.Error("watchdog %s: orders: %v", item.Symbol, err)
		w.rearm(item)
		return
	}

	if pos == nil {
		// nothing filled; clear out whatever still rests so the symbol
		// cannot fill later with no one watching
		if len(orders) > 0 {
			if err := w.ex.CancelAllOrders(ctx, item.Symbol); err != nil {
				logger.Error("watchdog %s: cancel-all: %v", item.Symbol, err)
			} else {
				logger.Info("watchdog %s: no position by deadline, canceled %d open orders", item.Symbol, len(orders))
				metrics.WatchdogActions.WithLabelValues("cancel_all").Inc()
			}
		}
		return
	}

	side := pos.HeldSide()
	hasStop := false
	hasTp := false
	for _, o := range orders {
		if o.IsProtectiveStop(side) {
			hasStop = true
		}
		if o.IsTakeProfit(side) {
			hasTp = true
		}
	}

	if hasStop {
		if !hasTp {
			logger.Warn("watchdog %s: stop present but no take-profit", item.Symbol)
		}
		metrics.WatchdogActions.WithLabelValues("ok").Inc()
		return
	}

	logger.Error("watchdog %s: position without stop at deadline", item.Symbol)
	if err := w.EnsureProtected(ctx, item.Symbol, side); err != nil {
		logger.Error("watchdog %s: emergency protection failed: %v", item.Symbol, err)
	}
}

func (w *Watchdog) rearm(item models.WatchItem) {
	w.mu.Lock()
	defer w.mu.Unlock()
	item.Deadline = w.now().Add(tickInterval * 5)
	w.items = append(w.items, item)
}

func (w *Watchdog) positionFor(ctx context.Context, symbol string) (*models.Position, error) {
	positions, err := w.ex.Positions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range positions {
		if positions[i].Symbol == symbol && positions[i].Open() {
			return &positions[i], nil
		}
	}
	return nil, nil
}

// EnsureProtected creates an emergency position-closing stop a small buffer
// beyond mark price, and if that fails force-flattens with a reduce-only
// market order as last resort. Also called directly by the executor when its
// post-verification finds a naked position.
func (w *Watchdog) EnsureProtected(ctx context.Context, symbol string, side models.PositionSide) error {
	pos, err := w.positionFor(ctx, symbol)
	if err != nil {
		return err
	}
	if pos == nil {
		return nil
	}

	mark, err := w.ex.MarkPrice(ctx, symbol)
	if err != nil {
		return fmt.Errorf("EnsureProtected %s: mark price: %w", symbol, err)
	}

	filters, err := w.ex.SymbolFilters(ctx, symbol)
	if err != nil {
		return fmt.Errorf("EnsureProtected %s: filters: %w", symbol, err)
	}

	var trigger float64
	if side == models.PositionSideShort {
		trigger = helper.QuantizeUp(mark*(1+emergencyBufferPct), filters.TickSize)
	} else {
		trigger = helper.QuantizeDown(mark*(1-emergencyBufferPct), filters.TickSize)
	}

	req := models.OrderRequest{
		Symbol:        symbol,
		Side:          models.ClosingSide(side),
		Type:          models.OrderTypeStopMarket,
		StopPrice:     trigger,
		ClosePosition: true,
		WorkingType:   models.WorkingTypeMark,
	}

	if _, err = w.ex.PlaceOrder(ctx, req); err == nil {
		logger.Warn("watchdog %s: emergency stop placed at %s", symbol, helper.FormatFloat(trigger))
		metrics.WatchdogActions.WithLabelValues("emergency_stop").Inc()
		w.n.Sendf("🆘 %s: emergency stop placed at %s", symbol, helper.FormatFloat(trigger))
		return nil
	}
	logger.Error("watchdog %s: emergency stop failed: %v", symbol, err)

	// last resort: flatten
	flatten := models.OrderRequest{
		Symbol:     symbol,
		Side:       models.ClosingSide(side),
		Type:       models.OrderTypeMarket,
		Quantity:   helper.QuantizeDown(math.Abs(pos.Amount), filters.StepSize),
		ReduceOnly: true,
	}
	if _, err := w.ex.PlaceOrder(ctx, flatten); err != nil {
		w.n.Sendf("💀 %s: emergency stop AND flatten both failed: %v", symbol, err)
		return fmt.Errorf("EnsureProtected %s: flatten: %w", symbol, err)
	}

	logger.Warn("watchdog %s: force-flattened %s", symbol, helper.FormatFloat(math.Abs(pos.Amount)))
	metrics.WatchdogActions.WithLabelValues("flatten").Inc()
	w.n.Sendf("⚠️ %s: unprotected position force-flattened", symbol)
	return nil
}
