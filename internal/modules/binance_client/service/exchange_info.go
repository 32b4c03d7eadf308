package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/models"
)

// SymbolFilters extracts tick size, step size and precisions for one symbol
// from exchangeInfo. The payload is large but cached for an hour.
func (c *Client) SymbolFilters(ctx context.Context, symbol string) (models.SymbolFilters, error) {
	data, err := c.get(ctx, "/fapi/v1/exchangeInfo", nil, false)
	if err != nil {
		return models.SymbolFilters{}, fmt.Errorf("SymbolFilters %s: %w", symbol, err)
	}

	var parsed exchangeInfoResponse
	if err := decodeInto(data, &parsed, "SymbolFilters"); err != nil {
		return models.SymbolFilters{}, err
	}

	for _, s := range parsed.Symbols {
		if s.Symbol != symbol {
			continue
		}
		f := models.SymbolFilters{
			Symbol:            s.Symbol,
			PricePrecision:    s.PricePrecision,
			QuantityPrecision: s.QuantityPrecision,
		}
		for _, fl := range s.Filters {
			switch fl.FilterType {
			case "PRICE_FILTER":
				f.TickSize, _ = strconv.ParseFloat(fl.TickSize, 64)
			case "LOT_SIZE":
				f.StepSize, _ = strconv.ParseFloat(fl.StepSize, 64)
				f.MinQty, _ = strconv.ParseFloat(fl.MinQty, 64)
			}
		}
		if f.TickSize <= 0 || f.StepSize <= 0 {
			return models.SymbolFilters{}, fmt.Errorf("SymbolFilters %s: missing tick/step in exchangeInfo", symbol)
		}
		return f, nil
	}

	return models.SymbolFilters{}, fmt.Errorf("SymbolFilters: symbol %s not in exchangeInfo", symbol)
}
