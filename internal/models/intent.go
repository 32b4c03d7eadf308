package models

import "time"

// EntryKind is the order-type hint for the entry leg.
type EntryKind string

const (
	EntryLimit EntryKind = "LIMIT"
	EntryStop  EntryKind = "STOP" // stop-triggered entry
)

// TradeIntent is one strategy proposal. Immutable once submitted to the
// executor; sizing is USD notional multiplied by leverage.
type TradeIntent struct {
	Symbol     string       `json:"symbol"`
	Side       PositionSide `json:"side"`
	AmountUSD  float64      `json:"amount"`
	Leverage   int          `json:"leverage"`
	Entry      float64      `json:"entry"`
	StopLoss   float64      `json:"sl"`
	TakeProfit float64      `json:"tp"`
	EntryKind  EntryKind    `json:"orderType,omitempty"`
	Source     string       `json:"source,omitempty"`
}

// SymbolResult is the per-symbol outcome of one executed batch.
type SymbolResult struct {
	Symbol     string `json:"symbol"`
	Status     string `json:"status"` // executed | error
	Error      string `json:"error,omitempty"`
	EntryOrder *Order `json:"entryOrder,omitempty"`
	StopOrder  *Order `json:"stopOrder,omitempty"`
	TpOrder    *Order `json:"tpOrder,omitempty"`
	TpDeferred bool   `json:"tpDeferred,omitempty"`
}

const (
	ResultExecuted = "executed"
	ResultError    = "error"
)

// BatchResult is the overall outcome: Success is true only when every
// symbol in the batch executed cleanly.
type BatchResult struct {
	Success    bool           `json:"success"`
	Results    []SymbolResult `json:"results"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
}
