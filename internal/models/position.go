package models

import "time"

// Position is a mirror of exchange state, never locally authoritative.
// Amount is signed: negative = short, unless the account runs in hedge mode,
// in which case Side disambiguates.
type Position struct {
	Symbol     string
	Amount     float64
	EntryPrice float64
	Leverage   int
	Side       PositionSide
	UpdatedAt  time.Time
}

// Open reports whether the position has nonzero size.
func (p Position) Open() bool { return p.Amount != 0 }

// HeldSide resolves the direction, preferring the explicit hedge-mode tag.
func (p Position) HeldSide() PositionSide {
	if p.Side == PositionSideLong || p.Side == PositionSideShort {
		return p.Side
	}
	if p.Amount < 0 {
		return PositionSideShort
	}
	return PositionSideLong
}

// SymbolFilters are the per-symbol exchange trading rules.
type SymbolFilters struct {
	Symbol            string
	TickSize          float64
	StepSize          float64
	PricePrecision    int
	QuantityPrecision int
	MinQty            float64
}

// WatchItem is a pending safety check: by Deadline the symbol must either
// carry a protected position or no orders at all. In-memory only.
type WatchItem struct {
	Symbol   string
	Side     PositionSide
	Deadline time.Time
}
