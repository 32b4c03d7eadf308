package service

import (
	"sync"

	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/models"
)

// Mirror is the in-memory, eventually-consistent copy of open positions and
// open orders fed by the private stream. Callers must not read an empty
// mirror as "definitely flat" until the matching primed flag is true.
type Mirror struct {
	mu        sync.RWMutex
	positions map[string]models.Position
	orders    map[int64]models.Order

	posPrimed bool
	ordPrimed bool

	onClose func(symbol string)
}

func NewMirror() *Mirror {
	return &Mirror{
		positions: make(map[string]models.Position),
		orders:    make(map[int64]models.Order),
	}
}

// OnPositionClosed registers a callback fired whenever a symbol the mirror
// saw open goes flat. Called from the stream goroutine; keep it cheap.
func (m *Mirror) OnPositionClosed(fn func(symbol string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClose = fn
}

// ApplyAccountUpdate upserts one entry per symbol; flat symbols stay in the
// map with zero size so a later read sees the closure, not absence.
func (m *Mirror) ApplyAccountUpdate(positions []models.Position) {
	m.mu.Lock()
	var closed []string
	for _, p := range positions {
		if prev, ok := m.positions[p.Symbol]; ok && prev.Open() && !p.Open() {
			closed = append(closed, p.Symbol)
		}
		m.positions[p.Symbol] = p
	}
	m.posPrimed = true
	fn := m.onClose
	m.mu.Unlock()

	if fn != nil {
		for _, sym := range closed {
			fn(sym)
		}
	}
}

// ApplyOrderUpdate keeps the order map keyed by exchange order id; terminal
// statuses delete, live statuses upsert. Last event per id wins.
func (m *Mirror) ApplyOrderUpdate(o models.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.Status.Open() {
		m.orders[o.OrderID] = o
	} else {
		delete(m.orders, o.OrderID)
	}
	m.ordPrimed = true
}

// Positions snapshots the open (nonzero) positions.
func (m *Mirror) Positions() []models.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]models.Position, 0, len(m.positions))
	for _, p := range m.positions {
		if p.Open() {
			res = append(res, p)
		}
	}
	return res
}

// Orders snapshots the open orders.
func (m *Mirror) Orders() []models.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]models.Order, 0, len(m.orders))
	for _, o := range m.orders {
		res = append(res, o)
	}
	return res
}

func (m *Mirror) PositionsPrimed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.posPrimed
}

func (m *Mirror) OrdersPrimed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ordPrimed
}
