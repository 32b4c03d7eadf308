package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/models"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/config"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/notify"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/pkg/logger"
)

// Executor runs one batch of trade intents through the phased pipeline:
// pre-flight filtering, preparation, concurrent entries, a fixed settle
// delay, exits, and post-execution verification.
type Executor struct {
	ex    Exchange
	gate  CooldownGate
	sched TpScheduler
	guard Protector
	n     notify.Notifier
	cfg   *config.Config

	now func() time.Time
}

func NewExecutor(ex Exchange, gate CooldownGate, sched TpScheduler, guard Protector, n notify.Notifier, cfg *config.Config) *Executor {
	return &Executor{
		ex:    ex,
		gate:  gate,
		sched: sched,
		guard: guard,
		n:     n,
		cfg:   cfg,
		now:   time.Now,
	}
}

// symbolState carries one intent through the phases.
type symbolState struct {
	intent TradeIntentPlan
	result models.SymbolResult
}

func (e *Executor) ExecuteBatch(ctx context.Context, intents []models.TradeIntent) models.BatchResult {
	span, ctx := opentracing.StartSpanFromContext(ctx, "executor.ExecuteBatch")
	span.SetTag("batch.size", len(intents))
	defer span.Finish()

	res := models.BatchResult{StartedAt: e.now()}

	accepted, rejected := e.preflight(ctx, intents)
	res.Results = append(res.Results, rejected...)

	states := e.prepare(ctx, accepted, &res)

	e.entryPhase(ctx, states)

	if anyEntered(states) {
		e.settleDelay(ctx)
		e.exitPhase(ctx, states)
		e.postVerify(ctx, states)
	}

	for i := range states {
		res.Results = append(res.Results, states[i].result)
	}

	res.Success = true
	for _, r := range res.Results {
		if r.Status != models.ResultExecuted {
			res.Success = false
			break
		}
	}
	res.FinishedAt = e.now()

	span.SetTag("batch.success", res.Success)
	logger.Info("batch done: %d symbols, success=%v", len(res.Results), res.Success)
	if !res.Success {
		e.n.Sendf("⚠️ batch finished with errors (%d symbols)", len(res.Results))
	}
	return res
}

// preflight drops intents blocked by cooldown or conflicting exchange state.
// One shared REST snapshot is taken for the whole batch so decisions for
// different symbols cannot race each other.
func (e *Executor) preflight(ctx context.Context, intents []models.TradeIntent) ([]models.TradeIntent, []models.SymbolResult) {
	positions, err := e.ex.Positions(ctx)
	if err != nil {
		return nil, rejectAll(intents, fmt.Errorf("preflight: positions: %w", err))
	}
	orders, err := e.ex.OpenOrders(ctx, "")
	if err != nil {
		return nil, rejectAll(intents, fmt.Errorf("preflight: open orders: %w", err))
	}

	held := make(map[string]bool, len(positions))
	for _, p := range positions {
		if p.Open() {
			held[p.Symbol] = true
		}
	}
	entryOrder := make(map[string]bool)
	for _, o := range orders {
		if !o.ReduceOnly && !o.ClosePosition {
			entryOrder[o.Symbol] = true
		}
	}

	var accepted []models.TradeIntent
	var rejected []models.SymbolResult
	for _, in := range intents {
		switch {
		case e.gate.IsActive(in.Symbol):
			logger.Info("preflight: %s skipped, cooldown active", in.Symbol)
			rejected = append(rejected, errorResult(in.Symbol, fmt.Errorf("cooldown active")))
		case held[in.Symbol]:
			rejected = append(rejected, errorResult(in.Symbol, fmt.Errorf("position already open")))
		case entryOrder[in.Symbol]:
			rejected = append(rejected, errorResult(in.Symbol, fmt.Errorf("conflicting open order")))
		default:
			accepted = append(accepted, in)
		}
	}
	return accepted, rejected
}

// entryPhase submits all prepared entries concurrently. Each symbol sets
// its leverage first, then places the entry; failures stay isolated to
// their symbol and clear any stale deferred take-profit.
func (e *Executor) entryPhase(ctx context.Context, states []*symbolState) {
	var wg sync.WaitGroup
	for _, st := range states {
		wg.Add(1)
		go func(st *symbolState) {
			defer wg.Done()
			plan := st.intent

			if err := e.ex.SetLeverage(ctx, plan.Symbol, plan.Leverage); err != nil {
				st.fail(fmt.Errorf("set leverage: %w", err))
				e.sched.Remove(plan.Symbol)
				return
			}

			order, err := e.ex.PlaceOrder(ctx, plan.EntryRequest())
			if err != nil {
				st.fail(fmt.Errorf("entry: %w", err))
				e.sched.Remove(plan.Symbol)
				return
			}
			st.result.EntryOrder = order
			e.gate.MarkOpened(plan.Symbol, e.now())
			logger.Info("entry placed: %s %s %s qty=%v", plan.Symbol, order.Side, order.Type, plan.Quantity)
		}(st)
	}
	wg.Wait()
}

func (e *Executor) settleDelay(ctx context.Context) {
	t := time.NewTimer(e.cfg.EntryExitDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (st *symbolState) fail(err error) {
	st.result.Status = models.ResultError
	st.result.Error = err.Error()
	logger.Error("executor %s: %v", st.intent.Symbol, err)
}

func anyEntered(states []*symbolState) bool {
	for _, st := range states {
		if st.result.EntryOrder != nil {
			return true
		}
	}
	return false
}

func errorResult(symbol string, err error) models.SymbolResult {
	return models.SymbolResult{Symbol: symbol, Status: models.ResultError, Error: err.Error()}
}

func rejectAll(intents []models.TradeIntent, err error) []models.SymbolResult {
	logger.Error("%v", err)
	out := make([]models.SymbolResult, 0, len(intents))
	for _, in := range intents {
		out = append(out, errorResult(in.Symbol, err))
	}
	return out
}
