package service

import (
	"context"
	"time"

	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/models"
)

// Exchange is the client surface the orchestrator drives. Satisfied by the
// real client; tests swap in a fake.
type Exchange interface {
	Positions(ctx context.Context) ([]models.Position, error)
	OpenOrders(ctx context.Context, symbol string) ([]models.Order, error)
	MarkPrice(ctx context.Context, symbol string) (float64, error)
	SymbolFilters(ctx context.Context, symbol string) (models.SymbolFilters, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error)
}

// CooldownGate answers whether a symbol is blocked after a loss streak.
type CooldownGate interface {
	IsActive(symbol string) bool
	MarkOpened(symbol string, at time.Time)
}

// TpScheduler is the deferred take-profit queue.
type TpScheduler interface {
	Schedule(symbol string, price, plannedQty float64, side models.PositionSide, workingType models.WorkingType) error
	Remove(symbol string)
}

// Protector is the safety net armed after every batch.
type Protector interface {
	Watch(symbol string, side models.PositionSide)
	EnsureProtected(ctx context.Context, symbol string, side models.PositionSide) error
}
