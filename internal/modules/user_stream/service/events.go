package service

import (
	"strconv"
	"time"

	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/models"
)

// Private stream frames. Binance tags every frame with "e"; only the two
// event types below matter to the mirror.

type streamFrame struct {
	Event string `json:"e"`
	Time  int64  `json:"E"`

	Account *accountUpdate `json:"a,omitempty"`
	Order   *orderUpdate   `json:"o,omitempty"`
}

const (
	eventAccountUpdate    = "ACCOUNT_UPDATE"
	eventOrderTradeUpdate = "ORDER_TRADE_UPDATE"
	eventListenKeyExpired = "listenKeyExpired"
)

type accountUpdate struct {
	Positions []struct {
		Symbol       string `json:"s"`
		PositionAmt  string `json:"pa"`
		EntryPrice   string `json:"ep"`
		PositionSide string `json:"ps"`
	} `json:"P"`
}

type orderUpdate struct {
	Symbol        string `json:"s"`
	ClientOrderID string `json:"c"`
	Side          string `json:"S"`
	Type          string `json:"o"`
	TimeInForce   string `json:"f"`
	OrigQty       string `json:"q"`
	Price         string `json:"p"`
	StopPrice     string `json:"sp"`
	Status        string `json:"X"`
	OrderID       int64  `json:"i"`
	ReduceOnly    bool   `json:"R"`
	ClosePosition bool   `json:"cp"`
	PositionSide  string `json:"ps"`
	WorkingType   string `json:"wt"`
}

func (u orderUpdate) toOrder(eventTime int64) models.Order {
	price, _ := strconv.ParseFloat(u.Price, 64)
	stop, _ := strconv.ParseFloat(u.StopPrice, 64)
	qty, _ := strconv.ParseFloat(u.OrigQty, 64)

	return models.Order{
		OrderID:       u.OrderID,
		ClientOrderID: u.ClientOrderID,
		Symbol:        u.Symbol,
		Side:          models.OrderSide(u.Side),
		Type:          models.OrderType(u.Type),
		Status:        models.OrderStatus(u.Status),
		Price:         price,
		StopPrice:     stop,
		OrigQty:       qty,
		TimeInForce:   models.TimeInForce(u.TimeInForce),
		ReduceOnly:    u.ReduceOnly,
		ClosePosition: u.ClosePosition,
		PositionSide:  models.PositionSide(u.PositionSide),
		WorkingType:   models.WorkingType(u.WorkingType),
		UpdateTime:    eventTime,
	}
}

func (u accountUpdate) positions(eventTime int64) []models.Position {
	res := make([]models.Position, 0, len(u.Positions))
	for _, p := range u.Positions {
		amt, _ := strconv.ParseFloat(p.PositionAmt, 64)
		entry, _ := strconv.ParseFloat(p.EntryPrice, 64)
		res = append(res, models.Position{
			Symbol:     p.Symbol,
			Amount:     amt,
			EntryPrice: entry,
			Side:       models.PositionSide(p.PositionSide),
			UpdatedAt:  time.UnixMilli(eventTime),
		})
	}
	return res
}
