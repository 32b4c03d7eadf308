package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/models"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/config"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/pkg/logger"

	"go.uber.org/zap"
)

func init() {
	l := zap.NewNop()
	logger.InfoLogger = l
	logger.FatalLogger = l
}

// fakeExchange records orders. When fillOnEntry is set, the first placed
// entry order creates a matching live position for later snapshots.
type fakeExchange struct {
	mu sync.Mutex

	positions []models.Position
	orders    []models.Order
	mark      float64
	filters   models.SymbolFilters

	fillOnEntry  bool
	failEntryFor string
	stopFailures int

	placed    []models.OrderRequest
	leverages map[string]int
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		mark: 0.999,
		filters: models.SymbolFilters{
			TickSize: 0.001,
			StepSize: 0.001,
			MinQty:   0.001,
		},
		leverages: make(map[string]int),
	}
}

func (f *fakeExchange) Positions(ctx context.Context) ([]models.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Position(nil), f.positions...), nil
}

func (f *fakeExchange) OpenOrders(ctx context.Context, symbol string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if symbol == "" || o.Symbol == symbol {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeExchange) MarkPrice(ctx context.Context, symbol string) (float64, error) {
	return f.mark, nil
}

func (f *fakeExchange) SymbolFilters(ctx context.Context, symbol string) (models.SymbolFilters, error) {
	fl := f.filters
	fl.Symbol = symbol
	return fl, nil
}

func (f *fakeExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leverages[symbol] = leverage
	return nil
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	isEntry := !req.ReduceOnly && !req.ClosePosition
	if isEntry && req.Symbol == f.failEntryFor {
		return nil, errors.New("rejected")
	}
	if req.Type == models.OrderTypeStopMarket && !isEntry && f.stopFailures > 0 {
		f.stopFailures--
		return nil, errors.New("stop rejected")
	}

	f.placed = append(f.placed, req)
	order := &models.Order{
		OrderID:       int64(len(f.placed)),
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Status:        models.StatusNew,
		Price:         req.Price,
		StopPrice:     req.StopPrice,
		OrigQty:       req.Quantity,
		ReduceOnly:    req.ReduceOnly,
		ClosePosition: req.ClosePosition,
	}

	f.orders = append(f.orders, *order)

	if isEntry && f.fillOnEntry {
		amt := req.Quantity
		if req.Side == models.SideSell {
			amt = -amt
		}
		f.positions = append(f.positions, models.Position{
			Symbol: req.Symbol,
			Amount: amt,
		})
	}
	return order, nil
}

func (f *fakeExchange) placedOfType(typ models.OrderType) []models.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.OrderRequest
	for _, r := range f.placed {
		if r.Type == typ {
			out = append(out, r)
		}
	}
	return out
}

type fakeGate struct {
	mu     sync.Mutex
	active map[string]bool
	opened []string
}

func (g *fakeGate) IsActive(symbol string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active[symbol]
}

func (g *fakeGate) MarkOpened(symbol string, at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.opened = append(g.opened, symbol)
}

type fakeSched struct {
	mu        sync.Mutex
	scheduled []string
	removed   []string
}

func (s *fakeSched) Schedule(symbol string, price, plannedQty float64, side models.PositionSide, workingType models.WorkingType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, symbol)
	return nil
}

func (s *fakeSched) Remove(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, symbol)
}

type fakeGuard struct {
	mu      sync.Mutex
	watched []string
	ensured []string
}

func (g *fakeGuard) Watch(symbol string, side models.PositionSide) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.watched = append(g.watched, symbol)
}

func (g *fakeGuard) EnsureProtected(ctx context.Context, symbol string, side models.PositionSide) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ensured = append(g.ensured, symbol)
	return nil
}

type silentNotifier struct{}

func (silentNotifier) Send(string)          {}
func (silentNotifier) Sendf(string, ...any) {}

func testConfig() *config.Config {
	return &config.Config{
		EntryExitDelay:      time.Millisecond,
		EntryPriceAdjustPct: 100,
		ImmediateTP:         true,
	}
}

type testRig struct {
	ex    *fakeExchange
	gate  *fakeGate
	sched *fakeSched
	guard *fakeGuard
	cfg   *config.Config
	exec  *Executor
}

func newTestRig() *testRig {
	r := &testRig{
		ex:    newFakeExchange(),
		gate:  &fakeGate{active: make(map[string]bool)},
		sched: &fakeSched{},
		guard: &fakeGuard{},
		cfg:   testConfig(),
	}
	r.exec = NewExecutor(r.ex, r.gate, r.sched, r.guard, silentNotifier{}, r.cfg)
	return r
}

func shortIntent(symbol string) models.TradeIntent {
	return models.TradeIntent{
		Symbol:     symbol,
		Side:       models.PositionSideShort,
		AmountUSD:  20,
		Leverage:   10,
		Entry:      1.000,
		StopLoss:   1.030,
		TakeProfit: 0.950,
	}
}

func TestExecuteBatchShortEndToEnd(t *testing.T) {
	r := newTestRig()

	res := r.exec.ExecuteBatch(context.Background(), []models.TradeIntent{shortIntent("ABCUSDT")})

	if !res.Success {
		t.Fatalf("batch failed: %+v", res.Results)
	}
	if len(res.Results) != 1 || res.Results[0].Status != models.ResultExecuted {
		t.Fatalf("unexpected results: %+v", res.Results)
	}

	entries := r.ex.placedOfType(models.OrderTypeLimit)
	if len(entries) != 1 {
		t.Fatalf("want 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Side != models.SideSell || e.Price != 1.000 || e.Quantity != 200 {
		t.Errorf("entry = %+v", e)
	}
	if r.ex.leverages["ABCUSDT"] != 10 {
		t.Errorf("leverage = %d", r.ex.leverages["ABCUSDT"])
	}

	stops := r.ex.placedOfType(models.OrderTypeStopMarket)
	if len(stops) != 1 {
		t.Fatalf("want 1 stop, got %d", len(stops))
	}
	s := stops[0]
	if s.Side != models.SideBuy || s.StopPrice != 1.030 || !s.ClosePosition {
		t.Errorf("stop = %+v", s)
	}

	tps := r.ex.placedOfType(models.OrderTypeTakeProfitMarket)
	if len(tps) != 1 {
		t.Fatalf("want 1 take-profit, got %d", len(tps))
	}
	tp := tps[0]
	if tp.Side != models.SideBuy || tp.StopPrice != 0.950 || !tp.ClosePosition {
		t.Errorf("take-profit = %+v", tp)
	}

	if len(r.guard.watched) != 1 || r.guard.watched[0] != "ABCUSDT" {
		t.Errorf("watched = %v", r.guard.watched)
	}
	if len(r.gate.opened) != 1 {
		t.Errorf("opened = %v", r.gate.opened)
	}
}

func TestCooldownBlocksSymbol(t *testing.T) {
	r := newTestRig()
	r.gate.active["ABCUSDT"] = true

	res := r.exec.ExecuteBatch(context.Background(), []models.TradeIntent{shortIntent("ABCUSDT")})

	if res.Success {
		t.Fatal("batch should fail")
	}
	if len(r.ex.placed) != 0 {
		t.Errorf("no orders expected, got %v", r.ex.placed)
	}
	if !strings.Contains(res.Results[0].Error, "cooldown") {
		t.Errorf("error = %q", res.Results[0].Error)
	}
}

func TestExistingPositionBlocksSymbol(t *testing.T) {
	r := newTestRig()
	r.ex.positions = []models.Position{{Symbol: "ABCUSDT", Amount: -5}}

	res := r.exec.ExecuteBatch(context.Background(), []models.TradeIntent{shortIntent("ABCUSDT")})

	if res.Success || len(r.ex.placed) != 0 {
		t.Fatalf("symbol with open position must be rejected: %+v", res.Results)
	}
}

func TestEntryFailureIsolatedPerSymbol(t *testing.T) {
	r := newTestRig()
	r.ex.failEntryFor = "BADUSDT"

	res := r.exec.ExecuteBatch(context.Background(), []models.TradeIntent{
		shortIntent("ABCUSDT"),
		shortIntent("BADUSDT"),
	})

	if res.Success {
		t.Fatal("batch with one failed symbol must not be successful")
	}
	byStatus := make(map[string]string)
	for _, sr := range res.Results {
		byStatus[sr.Symbol] = sr.Status
	}
	if byStatus["ABCUSDT"] != models.ResultExecuted {
		t.Errorf("healthy symbol failed: %+v", res.Results)
	}
	if byStatus["BADUSDT"] != models.ResultError {
		t.Errorf("failed symbol not reported: %+v", res.Results)
	}
	if len(r.sched.removed) != 1 || r.sched.removed[0] != "BADUSDT" {
		t.Errorf("removed = %v", r.sched.removed)
	}
}

func TestFilledEntryGetsReduceOnlySizedStop(t *testing.T) {
	r := newTestRig()
	r.ex.fillOnEntry = true

	res := r.exec.ExecuteBatch(context.Background(), []models.TradeIntent{shortIntent("ABCUSDT")})
	if !res.Success {
		t.Fatalf("batch failed: %+v", res.Results)
	}

	stops := r.ex.placedOfType(models.OrderTypeStopMarket)
	if len(stops) != 1 {
		t.Fatalf("want 1 stop, got %d", len(stops))
	}
	s := stops[0]
	if !s.ReduceOnly || s.ClosePosition || s.Quantity != 200 {
		t.Errorf("stop = %+v", s)
	}
}

func TestExistingStopAtSamePriceIsReused(t *testing.T) {
	r := newTestRig()
	r.ex.orders = []models.Order{{
		Symbol:        "ABCUSDT",
		Side:          models.SideBuy,
		Type:          models.OrderTypeStopMarket,
		Status:        models.StatusNew,
		StopPrice:     1.030,
		ClosePosition: true,
	}}

	res := r.exec.ExecuteBatch(context.Background(), []models.TradeIntent{shortIntent("ABCUSDT")})
	if !res.Success {
		t.Fatalf("batch failed: %+v", res.Results)
	}
	if n := len(r.ex.placedOfType(models.OrderTypeStopMarket)); n != 0 {
		t.Errorf("want no new stop, got %d", n)
	}
}

func TestStopRetriesThenSucceeds(t *testing.T) {
	r := newTestRig()
	r.ex.stopFailures = 1

	res := r.exec.ExecuteBatch(context.Background(), []models.TradeIntent{shortIntent("ABCUSDT")})
	if !res.Success {
		t.Fatalf("batch failed: %+v", res.Results)
	}
	if n := len(r.ex.placedOfType(models.OrderTypeStopMarket)); n != 1 {
		t.Errorf("want 1 stop after retry, got %d", n)
	}
}

func TestStopExhaustsRetries(t *testing.T) {
	r := newTestRig()
	r.ex.stopFailures = 10

	res := r.exec.ExecuteBatch(context.Background(), []models.TradeIntent{shortIntent("ABCUSDT")})
	if res.Success {
		t.Fatal("unresolved stop must fail the symbol")
	}
	if !strings.Contains(res.Results[0].Error, "stop-loss unresolved") {
		t.Errorf("error = %q", res.Results[0].Error)
	}
}

func TestDeferredTakeProfit(t *testing.T) {
	r := newTestRig()
	r.cfg.ImmediateTP = false

	res := r.exec.ExecuteBatch(context.Background(), []models.TradeIntent{shortIntent("ABCUSDT")})
	if !res.Success {
		t.Fatalf("batch failed: %+v", res.Results)
	}
	if !res.Results[0].TpDeferred {
		t.Error("TpDeferred not set")
	}
	if n := len(r.ex.placedOfType(models.OrderTypeTakeProfitMarket)); n != 0 {
		t.Errorf("no immediate tp expected, got %d", n)
	}
	if len(r.sched.scheduled) != 1 || r.sched.scheduled[0] != "ABCUSDT" {
		t.Errorf("scheduled = %v", r.sched.scheduled)
	}
}

func TestStopLossKillSwitch(t *testing.T) {
	r := newTestRig()
	r.cfg.StopLossDisabled = true

	res := r.exec.ExecuteBatch(context.Background(), []models.TradeIntent{shortIntent("ABCUSDT")})
	if !res.Success {
		t.Fatalf("batch failed: %+v", res.Results)
	}
	if n := len(r.ex.placedOfType(models.OrderTypeStopMarket)); n != 0 {
		t.Errorf("stop placed despite kill switch: %d", n)
	}
}

func TestPostVerifyEscalatesNakedPosition(t *testing.T) {
	r := newTestRig()
	r.ex.fillOnEntry = true
	r.ex.stopFailures = 10 // every stop placement fails

	res := r.exec.ExecuteBatch(context.Background(), []models.TradeIntent{shortIntent("ABCUSDT")})
	if res.Success {
		t.Fatal("batch must fail")
	}
	if len(r.guard.ensured) != 1 || r.guard.ensured[0] != "ABCUSDT" {
		t.Errorf("EnsureProtected calls = %v", r.guard.ensured)
	}
}

func TestEntryAdjustmentAppliesToEntryOnly(t *testing.T) {
	r := newTestRig()
	r.cfg.EntryPriceAdjustPct = 102

	res := r.exec.ExecuteBatch(context.Background(), []models.TradeIntent{shortIntent("ABCUSDT")})
	if !res.Success {
		t.Fatalf("batch failed: %+v", res.Results)
	}

	e := r.ex.placedOfType(models.OrderTypeLimit)[0]
	if e.Price != 1.020 {
		t.Errorf("adjusted entry = %v", e.Price)
	}
	s := r.ex.placedOfType(models.OrderTypeStopMarket)[0]
	if s.StopPrice != 1.030 {
		t.Errorf("stop moved by adjustment: %v", s.StopPrice)
	}
}

func TestStopEntryUsesBufferedTrigger(t *testing.T) {
	r := newTestRig()
	in := shortIntent("ABCUSDT")
	in.EntryKind = models.EntryStop

	res := r.exec.ExecuteBatch(context.Background(), []models.TradeIntent{in})
	if !res.Success {
		t.Fatalf("batch failed: %+v", res.Results)
	}

	// mark 0.999 is below the 1.000 entry; the trigger must sit a buffer
	// below the lower of the two
	var entry *models.OrderRequest
	for i, p := range r.ex.placed {
		if !p.ReduceOnly && !p.ClosePosition && p.Type == models.OrderTypeStopMarket {
			entry = &r.ex.placed[i]
			break
		}
	}
	if entry == nil {
		t.Fatal("no stop entry placed")
	}
	if entry.StopPrice >= 0.999 {
		t.Errorf("trigger %v not buffered below mark", entry.StopPrice)
	}
	if entry.Quantity != 200 {
		t.Errorf("quantity = %v", entry.Quantity)
	}
}
