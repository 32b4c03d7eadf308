package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/helper"
	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/models"
)

// Binance caps newClientOrderId at 36 chars; 32 hex chars leave headroom.
const clientOrderIDLen = 32

// ClientOrderID derives a deterministic client order id from the canonical
// order tuple. Re-submitting the same logical order after a timeout yields
// the same id, so the exchange treats the retry as a duplicate instead of
// doubling exposure.
func ClientOrderID(req models.OrderRequest) string {
	parts := []string{
		req.Symbol,
		string(req.Side),
		string(req.Type),
		helper.FormatFloat(req.Price),
		helper.FormatFloat(req.StopPrice),
		helper.FormatFloat(req.Quantity),
		string(req.TimeInForce),
		boolTag(req.ReduceOnly),
		boolTag(req.ClosePosition),
		string(req.PositionSide),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:clientOrderIDLen]
}

func boolTag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
