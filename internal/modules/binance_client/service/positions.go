package service

import (
	"context"
	"fmt"

	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/models"
)

// Positions returns the REST snapshot of all nonzero positions. This is the
// authoritative view for safety decisions; the stream mirror is only a hint.
func (c *Client) Positions(ctx context.Context) ([]models.Position, error) {
	data, err := c.get(ctx, "/fapi/v2/positionRisk", nil, true)
	if err != nil {
		return nil, fmt.Errorf("Positions: %w", err)
	}

	var items []positionRiskItem
	if err := decodeInto(data, &items, "Positions"); err != nil {
		return nil, err
	}

	res := make([]models.Position, 0, len(items))
	for _, it := range items {
		p := it.toPosition()
		if p.Open() {
			res = append(res, p)
		}
	}
	return res, nil
}

// PositionFor returns the open position for one symbol, nil when flat.
func (c *Client) PositionFor(ctx context.Context, symbol string) (*models.Position, error) {
	positions, err := c.Positions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range positions {
		if positions[i].Symbol == symbol {
			return &positions[i], nil
		}
	}
	return nil, nil
}
