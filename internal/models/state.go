package models

import "time"

// WaitingTpEntry is a take-profit parked until a real position shows up.
// Only the waiting state is ever persisted; firing or dropping removes it.
type WaitingTpEntry struct {
	Symbol        string       `json:"symbol"`
	Price         float64      `json:"price"`
	PlannedQty    float64      `json:"plannedQty,omitempty"`
	Side          PositionSide `json:"side"`
	WorkingType   WorkingType  `json:"workingType"`
	Since         time.Time    `json:"since"`
	CheckCount    int          `json:"checkCount"`
	LastSeenSize  float64      `json:"lastSeenSize"`
	LastError     string       `json:"lastError,omitempty"`
	Status        string       `json:"status"` // always "waiting" on disk
}

// CooldownRecord tracks the loss streak for one symbol.
type CooldownRecord struct {
	Symbol       string     `json:"symbol"`
	LossStreak   int        `json:"lossStreak"`
	CooldownTill *time.Time `json:"cooldownTill,omitempty"`
	LastClosedAt *time.Time `json:"lastClosedAt,omitempty"`
	LastOpenedAt *time.Time `json:"lastOpenedAt,omitempty"`
}
