package service

import (
	"context"
	"sync"
	"time"

	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/models"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/modules/config"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/pkg/logger"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/pkg/store"
)

// IncomeSource reconstructs realized PnL for callers that cannot observe
// fills directly.
type IncomeSource interface {
	RealizedPnl(ctx context.Context, symbol string, from, to time.Time) (float64, error)
}

// Gate blocks new entries on a symbol after a streak of realized losses.
// The cycle is clear -> armed (losses accumulating) -> cooled-down -> clear.
type Gate struct {
	cfg    config.CooldownConfig
	income IncomeSource

	mu      sync.Mutex
	records map[string]*models.CooldownRecord
	file    *store.File

	now func() time.Time
}

type persistedState struct {
	UpdatedAt time.Time                         `json:"updatedAt"`
	Records   map[string]*models.CooldownRecord `json:"records"`
}

func NewGate(cfg config.CooldownConfig, file *store.File, income IncomeSource) *Gate {
	g := &Gate{
		cfg:     cfg,
		income:  income,
		records: make(map[string]*models.CooldownRecord),
		file:    file,
		now:     time.Now,
	}
	g.load()
	return g
}

// load is best-effort: corrupt or missing state starts empty, never fatal.
func (g *Gate) load() {
	if g.file == nil || !g.cfg.Persist {
		return
	}
	var state persistedState
	ok, err := g.file.Load(&state)
	if err != nil {
		logger.Warn("cooldown state unreadable, starting empty: %v", err)
		return
	}
	if ok && state.Records != nil {
		g.records = state.Records
	}
}

// persist swallows disk errors by design: losing a write must not block a
// live trading decision.
func (g *Gate) persistLocked() {
	if g.file == nil || !g.cfg.Persist {
		return
	}
	state := persistedState{UpdatedAt: g.now(), Records: g.records}
	if err := g.file.Save(state); err != nil {
		logger.Error("cooldown persist: %v", err)
	}
}

// OnPositionClosed feeds one realized-PnL close into the streak machine.
// A loss increments the streak; a win or flat close resets it. Hitting the
// threshold trips the cooldown and resets the counter so the next streak
// starts fresh.
func (g *Gate) OnPositionClosed(symbol string, realizedPnl float64, closedAt time.Time) {
	if !g.cfg.Enabled {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	rec := g.records[symbol]
	if rec == nil {
		rec = &models.CooldownRecord{Symbol: symbol}
		g.records[symbol] = rec
	}
	rec.LastClosedAt = &closedAt

	if realizedPnl < 0 {
		rec.LossStreak++
		logger.Info("cooldown: %s loss #%d (pnl=%.4f)", symbol, rec.LossStreak, realizedPnl)
	} else {
		rec.LossStreak = 0
	}

	if rec.LossStreak >= g.cfg.LossThreshold && g.cfg.LossThreshold > 0 {
		till := closedAt.Add(g.cfg.Duration)
		rec.CooldownTill = &till
		rec.LossStreak = 0
		logger.Warn("cooldown: %s tripped until %s", symbol, till.UTC().Format(time.RFC3339))
	}

	g.persistLocked()
}

// SettleFromIncome closes the loop for callers that only know the position
// is gone: realized PnL is summed from exchange income records between the
// recorded open time and now.
func (g *Gate) SettleFromIncome(ctx context.Context, symbol string) error {
	if !g.cfg.Enabled || g.income == nil {
		return nil
	}

	g.mu.Lock()
	rec := g.records[symbol]
	from := g.now().Add(-g.cfg.IncomeLookback)
	if rec != nil && rec.LastOpenedAt != nil && rec.LastOpenedAt.After(from) {
		from = *rec.LastOpenedAt
	}
	g.mu.Unlock()

	pnl, err := g.income.RealizedPnl(ctx, symbol, from, g.now())
	if err != nil {
		return err
	}

	g.OnPositionClosed(symbol, pnl, g.now())
	return nil
}

// MarkOpened records when an entry fills so SettleFromIncome has a window start.
func (g *Gate) MarkOpened(symbol string, at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec := g.records[symbol]
	if rec == nil {
		rec = &models.CooldownRecord{Symbol: symbol}
		g.records[symbol] = rec
	}
	rec.LastOpenedAt = &at
	g.persistLocked()
}

// IsActive reports whether the symbol is blocked right now.
func (g *Gate) IsActive(symbol string) bool {
	if !g.cfg.Enabled {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	rec := g.records[symbol]
	return rec != nil && rec.CooldownTill != nil && rec.CooldownTill.After(g.now())
}

// Clear is the admin escape hatch: wipes the streak and any active cooldown.
func (g *Gate) Clear(symbol string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if rec := g.records[symbol]; rec != nil {
		rec.LossStreak = 0
		rec.CooldownTill = nil
		g.persistLocked()
	}
}

// Snapshot returns a copy of all records, for the health endpoint.
func (g *Gate) Snapshot() map[string]models.CooldownRecord {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]models.CooldownRecord, len(g.records))
	for k, v := range g.records {
		out[k] = *v
	}
	return out
}
