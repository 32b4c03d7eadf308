package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/helper"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/models"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/pkg/logger"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/pkg/store"
)

// Exchange is the slice of the client the scheduler needs.
type Exchange interface {
	Positions(ctx context.Context) ([]models.Position, error)
	OpenOrders(ctx context.Context, symbol string) ([]models.Order, error)
	PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error)
}

// fire once the position has been seen this many consecutive passes
const requiredNonZeroStreak = 1

// Scheduler parks take-profit orders until a real position exists, then
// fires each exactly once. The waiting set survives restarts on disk.
type Scheduler struct {
	ex   Exchange
	file *store.File

	mu      sync.Mutex
	entries map[string]*models.WaitingTpEntry

	now func() time.Time
}

type persistedQueue struct {
	UpdatedAt time.Time                `json:"updatedAt"`
	Entries   []*models.WaitingTpEntry `json:"entries"` // oldest first
}

func NewScheduler(ex Exchange, file *store.File) *Scheduler {
	s := &Scheduler{
		ex:      ex,
		file:    file,
		entries: make(map[string]*models.WaitingTpEntry),
		now:     time.Now,
	}
	s.load()
	return s
}

func (s *Scheduler) load() {
	if s.file == nil {
		return
	}
	var q persistedQueue
	ok, err := s.file.Load(&q)
	if err != nil {
		logger.Warn("waiting-tp state unreadable, starting empty: %v", err)
		return
	}
	if !ok {
		return
	}
	for _, e := range q.Entries {
		if e != nil && e.Symbol != "" {
			s.entries[e.Symbol] = e
		}
	}
}

func (s *Scheduler) persistLocked() {
	if s.file == nil {
		return
	}
	q := persistedQueue{UpdatedAt: s.now()}
	for _, e := range s.entries {
		q.Entries = append(q.Entries, e)
	}
	sort.Slice(q.Entries, func(i, j int) bool { return q.Entries[i].Since.Before(q.Entries[j].Since) })
	if err := s.file.Save(q); err != nil {
		logger.Error("waiting-tp persist: %v", err)
	}
}

// Schedule (re)creates the waiting entry for a symbol. A non-finite or
// non-positive price is rejected outright.
func (s *Scheduler) Schedule(symbol string, price, plannedQty float64, side models.PositionSide, workingType models.WorkingType) error {
	if !helper.IsFinitePositive(price) {
		return fmt.Errorf("Schedule %s: invalid take-profit price %v", symbol, price)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[symbol] = &models.WaitingTpEntry{
		Symbol:      symbol,
		Price:       price,
		PlannedQty:  plannedQty,
		Side:        side,
		WorkingType: workingType,
		Since:       s.now(),
		Status:      "waiting",
	}
	s.persistLocked()

	logger.Info("waiting-tp: %s scheduled at %s", symbol, helper.FormatFloat(price))
	return nil
}

// Remove drops the waiting entry, if any. Used when an entry order fails or
// is cleaned up manually.
func (s *Scheduler) Remove(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[symbol]; ok {
		delete(s.entries, symbol)
		s.persistLocked()
	}
}

// Waiting snapshots the queue, oldest first.
func (s *Scheduler) Waiting() []models.WaitingTpEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.WaitingTpEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Since.Before(out[j].Since) })
	return out
}

// Reconcile runs one pass against a fresh position snapshot: entries whose
// position has materialized get their take-profit submitted exactly once and
// are removed; entries with a broken price are dropped proactively.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	s.mu.Lock()
	symbols := make([]string, 0, len(s.entries))
	for sym := range s.entries {
		symbols = append(symbols, sym)
	}
	s.mu.Unlock()

	if len(symbols) == 0 {
		return nil
	}

	positions, err := s.ex.Positions(ctx)
	if err != nil {
		return fmt.Errorf("Reconcile positions: %w", err)
	}
	sizeBySymbol := make(map[string]float64, len(positions))
	sideBySymbol := make(map[string]models.PositionSide, len(positions))
	for _, p := range positions {
		sizeBySymbol[p.Symbol] = math.Abs(p.Amount)
		sideBySymbol[p.Symbol] = p.HeldSide()
	}

	for _, sym := range symbols {
		s.reconcileOne(ctx, sym, sizeBySymbol[sym], sideBySymbol[sym])
	}
	return nil
}

func (s *Scheduler) reconcileOne(ctx context.Context, symbol string, liveSize float64, liveSide models.PositionSide) {
	s.mu.Lock()
	entry, ok := s.entries[symbol]
	if !ok {
		s.mu.Unlock()
		return
	}

	if !helper.IsFinitePositive(entry.Price) {
		delete(s.entries, symbol)
		s.persistLocked()
		s.mu.Unlock()
		logger.Warn("waiting-tp: %s dropped, invalid stored price %v", symbol, entry.Price)
		return
	}

	entry.LastSeenSize = liveSize
	if liveSize > 0 {
		entry.CheckCount++
	} else {
		entry.CheckCount = 0
	}
	ready := entry.CheckCount >= requiredNonZeroStreak
	price := entry.Price
	side := entry.Side
	workingType := entry.WorkingType
	s.persistLocked()
	s.mu.Unlock()

	if !ready {
		return
	}
	if liveSide != "" && liveSide != side {
		// position flipped under us; this TP no longer applies
		logger.Warn("waiting-tp: %s position side %s != scheduled %s, dropping", symbol, liveSide, side)
		s.Remove(symbol)
		return
	}

	dup, err := s.duplicateExists(ctx, symbol, side)
	if err != nil {
		s.recordError(symbol, err)
		return
	}
	if dup {
		logger.Info("waiting-tp: %s take-profit already on the exchange, removing entry", symbol)
		s.Remove(symbol)
		return
	}

	req := models.OrderRequest{
		Symbol:        symbol,
		Side:          models.ClosingSide(side),
		Type:          models.OrderTypeTakeProfitMarket,
		StopPrice:     price,
		ClosePosition: true,
		WorkingType:   workingType,
	}
	if _, err := s.ex.PlaceOrder(ctx, req); err != nil {
		s.recordError(symbol, err)
		logger.Error("waiting-tp: %s submit failed: %v", symbol, err)
		return
	}

	logger.Info("waiting-tp: %s take-profit sent at %s", symbol, helper.FormatFloat(price))
	s.Remove(symbol)
}

func (s *Scheduler) duplicateExists(ctx context.Context, symbol string, side models.PositionSide) (bool, error) {
	orders, err := s.ex.OpenOrders(ctx, symbol)
	if err != nil {
		return false, fmt.Errorf("OpenOrders %s: %w", symbol, err)
	}
	for _, o := range orders {
		if o.IsTakeProfit(side) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Scheduler) recordError(symbol string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[symbol]; ok {
		entry.LastError = err.Error()
		s.persistLocked()
	}
}

// Revalidate runs once at process start: a rehydrated entry is kept only if
// its symbol still has a live position or a qualifying entry order; stale
// leftovers are dropped. Kept entries wait for the next Reconcile pass.
func (s *Scheduler) Revalidate(ctx context.Context) {
	s.mu.Lock()
	symbols := make([]string, 0, len(s.entries))
	for sym := range s.entries {
		symbols = append(symbols, sym)
	}
	s.mu.Unlock()

	if len(symbols) == 0 {
		return
	}

	positions, err := s.ex.Positions(ctx)
	if err != nil {
		logger.Error("waiting-tp revalidate: positions: %v", err)
		return
	}
	hasPosition := make(map[string]bool, len(positions))
	for _, p := range positions {
		hasPosition[p.Symbol] = p.Open()
	}

	for _, sym := range symbols {
		if hasPosition[sym] {
			logger.Info("waiting-tp: %s kept after restart (live position)", sym)
			continue
		}

		orders, err := s.ex.OpenOrders(ctx, sym)
		if err != nil {
			logger.Error("waiting-tp revalidate: orders %s: %v", sym, err)
			continue
		}
		entryAlive := false
		for _, o := range orders {
			// an entry order is anything that can still open the position
			if !o.ReduceOnly && !o.ClosePosition {
				entryAlive = true
				break
			}
		}
		if entryAlive {
			logger.Info("waiting-tp: %s kept after restart (live entry order)", sym)
			continue
		}

		logger.Warn("waiting-tp: %s dropped after restart, no position and no entry order", sym)
		s.Remove(sym)
	}
}

// Run drives periodic reconciliation until ctx is done.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	s.Revalidate(ctx)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.Reconcile(ctx); err != nil {
				logger.Error("waiting-tp reconcile: %v", err)
			}
		}
	}
}
