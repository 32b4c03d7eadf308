package service

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/models"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/pkg/logger"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/pkg/store"

	"go.uber.org/zap"
)

func init() {
	l := zap.NewNop()
	logger.InfoLogger = l
	logger.FatalLogger = l
}

type fakeExchange struct {
	mu        sync.Mutex
	positions []models.Position
	orders    map[string][]models.Order
	placed    []models.OrderRequest
}

func (f *fakeExchange) Positions(ctx context.Context) ([]models.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Position(nil), f.positions...), nil
}

func (f *fakeExchange) OpenOrders(ctx context.Context, symbol string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Order(nil), f.orders[symbol]...), nil
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, req)
	return &models.Order{Symbol: req.Symbol, Side: req.Side, Type: req.Type, StopPrice: req.StopPrice, Status: models.StatusNew}, nil
}

func newTestScheduler(t *testing.T, ex Exchange) *Scheduler {
	t.Helper()
	return NewScheduler(ex, store.NewFile(filepath.Join(t.TempDir(), "waiting_tp.json")))
}

func TestScheduleRejectsBadPrice(t *testing.T) {
	s := newTestScheduler(t, &fakeExchange{})

	for _, price := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if err := s.Schedule("XUSDT", price, 10, models.PositionSideShort, models.WorkingTypeMark); err == nil {
			t.Errorf("price %v must be rejected", price)
		}
	}
	if len(s.Waiting()) != 0 {
		t.Error("rejected schedules must not leave entries behind")
	}
}

func TestSchedulerConvergence(t *testing.T) {
	ex := &fakeExchange{orders: map[string][]models.Order{}}
	s := newTestScheduler(t, ex)

	if err := s.Schedule("XUSDT", 1.23, 10, models.PositionSideShort, models.WorkingTypeMark); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	// pass 1: no position yet, entry stays
	if err := s.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(ex.placed) != 0 {
		t.Fatal("no position yet; nothing must be placed")
	}
	if len(s.Waiting()) != 1 {
		t.Fatal("entry must stay while the position is missing")
	}

	// position materializes
	ex.mu.Lock()
	ex.positions = []models.Position{{Symbol: "XUSDT", Amount: -10, Side: models.PositionSideBoth}}
	ex.mu.Unlock()

	if err := s.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if len(ex.placed) != 1 {
		t.Fatalf("exactly one take-profit expected, got %d", len(ex.placed))
	}
	tp := ex.placed[0]
	if tp.Type != models.OrderTypeTakeProfitMarket || !tp.ClosePosition {
		t.Errorf("placed %+v, want closePosition TAKE_PROFIT_MARKET", tp)
	}
	if tp.Side != models.SideBuy {
		t.Errorf("short position must be closed by a BUY, got %s", tp.Side)
	}
	if tp.StopPrice != 1.23 {
		t.Errorf("trigger price %v, want 1.23", tp.StopPrice)
	}
	if len(s.Waiting()) != 0 {
		t.Error("fired entry must be removed")
	}

	// pass 3: entry gone, strict no-op
	if err := s.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(ex.placed) != 1 {
		t.Error("second pass after firing must be a no-op")
	}
}

func TestSchedulerSkipsDuplicateTp(t *testing.T) {
	ex := &fakeExchange{
		positions: []models.Position{{Symbol: "XUSDT", Amount: -10}},
		orders: map[string][]models.Order{
			"XUSDT": {{
				Symbol: "XUSDT", Side: models.SideBuy,
				Type: models.OrderTypeTakeProfitMarket, ClosePosition: true,
				Status: models.StatusNew,
			}},
		},
	}
	s := newTestScheduler(t, ex)
	_ = s.Schedule("XUSDT", 1.23, 10, models.PositionSideShort, models.WorkingTypeMark)

	if err := s.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(ex.placed) != 0 {
		t.Error("a live duplicate take-profit must suppress submission")
	}
	if len(s.Waiting()) != 0 {
		t.Error("entry must be removed once a duplicate is found")
	}
}

func TestRevalidateDropsOrphans(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "waiting_tp.json")

	// first process schedules and dies
	ex := &fakeExchange{orders: map[string][]models.Order{}}
	s := NewScheduler(ex, store.NewFile(file))
	_ = s.Schedule("GONEUSDT", 1.0, 5, models.PositionSideShort, models.WorkingTypeMark)
	_ = s.Schedule("LIVEUSDT", 2.0, 5, models.PositionSideShort, models.WorkingTypeMark)

	// second process: LIVEUSDT has a position, GONEUSDT has nothing
	ex2 := &fakeExchange{
		positions: []models.Position{{Symbol: "LIVEUSDT", Amount: -5}},
		orders:    map[string][]models.Order{},
	}
	s2 := NewScheduler(ex2, store.NewFile(file))
	if len(s2.Waiting()) != 2 {
		t.Fatalf("rehydrated %d entries, want 2", len(s2.Waiting()))
	}

	s2.Revalidate(context.Background())

	waiting := s2.Waiting()
	if len(waiting) != 1 || waiting[0].Symbol != "LIVEUSDT" {
		t.Errorf("after revalidate: %+v, want only LIVEUSDT", waiting)
	}
}

func TestRevalidateKeepsEntryOrder(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "waiting_tp.json")

	ex := &fakeExchange{orders: map[string][]models.Order{}}
	s := NewScheduler(ex, store.NewFile(file))
	_ = s.Schedule("XUSDT", 1.0, 5, models.PositionSideShort, models.WorkingTypeMark)

	// restart: no position, but the entry limit order still rests
	ex2 := &fakeExchange{
		orders: map[string][]models.Order{
			"XUSDT": {{Symbol: "XUSDT", Side: models.SideSell, Type: models.OrderTypeLimit, Status: models.StatusNew}},
		},
	}
	s2 := NewScheduler(ex2, store.NewFile(file))
	s2.Revalidate(context.Background())

	if len(s2.Waiting()) != 1 {
		t.Error("entry order still alive; the waiting TP must be kept")
	}
}

func TestRescheduleReplacesEntry(t *testing.T) {
	s := newTestScheduler(t, &fakeExchange{})
	_ = s.Schedule("XUSDT", 1.0, 5, models.PositionSideShort, models.WorkingTypeMark)
	_ = s.Schedule("XUSDT", 2.0, 7, models.PositionSideShort, models.WorkingTypeMark)

	waiting := s.Waiting()
	if len(waiting) != 1 {
		t.Fatalf("%d entries, want 1 (symbol is a unique key)", len(waiting))
	}
	if waiting[0].Price != 2.0 {
		t.Errorf("price %v, want the re-scheduled 2.0", waiting[0].Price)
	}
}

func TestRemoveMissingSymbolIsNoop(t *testing.T) {
	s := newTestScheduler(t, &fakeExchange{})
	s.Remove("NOPEUSDT")
	if len(s.Waiting()) != 0 {
		t.Error("unexpected entries")
	}
}
