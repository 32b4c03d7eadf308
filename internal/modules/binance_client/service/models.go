package service

import (
	"strconv"
	"time"

	"github.com/Petrpejsek/crypto-trading-analyzer-short-v2-sub000/internal/models"
)

// Inbound REST payloads, validated once at the client boundary. Binance
// serializes every number as a string.

type positionRiskItem struct {
	Symbol           string `json:"symbol"`
	PositionAmt      string `json:"positionAmt"`
	EntryPrice       string `json:"entryPrice"`
	MarkPrice        string `json:"markPrice"`
	UnRealizedProfit string `json:"unRealizedProfit"`
	Leverage         string `json:"leverage"`
	PositionSide     string `json:"positionSide"`
	UpdateTime       int64  `json:"updateTime"`
}

func (p positionRiskItem) toPosition() models.Position {
	amt, _ := strconv.ParseFloat(p.PositionAmt, 64)
	entry, _ := strconv.ParseFloat(p.EntryPrice, 64)
	lev, _ := strconv.Atoi(p.Leverage)

	return models.Position{
		Symbol:     p.Symbol,
		Amount:     amt,
		EntryPrice: entry,
		Leverage:   lev,
		Side:       models.PositionSide(p.PositionSide),
		UpdatedAt:  time.UnixMilli(p.UpdateTime),
	}
}

type orderItem struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Price         string `json:"price"`
	StopPrice     string `json:"stopPrice"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	TimeInForce   string `json:"timeInForce"`
	ReduceOnly    bool   `json:"reduceOnly"`
	ClosePosition bool   `json:"closePosition"`
	PositionSide  string `json:"positionSide"`
	WorkingType   string `json:"workingType"`
	UpdateTime    int64  `json:"updateTime"`
}

func (o orderItem) toOrder() models.Order {
	price, _ := strconv.ParseFloat(o.Price, 64)
	stop, _ := strconv.ParseFloat(o.StopPrice, 64)
	qty, _ := strconv.ParseFloat(o.OrigQty, 64)
	executed, _ := strconv.ParseFloat(o.ExecutedQty, 64)

	return models.Order{
		OrderID:       o.OrderID,
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Side:          models.OrderSide(o.Side),
		Type:          models.OrderType(o.Type),
		Status:        models.OrderStatus(o.Status),
		Price:         price,
		StopPrice:     stop,
		OrigQty:       qty,
		ExecutedQty:   executed,
		TimeInForce:   models.TimeInForce(o.TimeInForce),
		ReduceOnly:    o.ReduceOnly,
		ClosePosition: o.ClosePosition,
		PositionSide:  models.PositionSide(o.PositionSide),
		WorkingType:   models.WorkingType(o.WorkingType),
		UpdateTime:    o.UpdateTime,
	}
}

// IncomeRecord is one row of GET /fapi/v1/income.
type IncomeRecord struct {
	Symbol     string `json:"symbol"`
	IncomeType string `json:"incomeType"`
	Income     string `json:"income"`
	Asset      string `json:"asset"`
	Time       int64  `json:"time"`
	TranID     int64  `json:"tranId"`
}

func (r IncomeRecord) Amount() float64 {
	v, _ := strconv.ParseFloat(r.Income, 64)
	return v
}

// UserTrade is one row of GET /fapi/v1/userTrades.
type UserTrade struct {
	Symbol      string `json:"symbol"`
	ID          int64  `json:"id"`
	OrderID     int64  `json:"orderId"`
	Side        string `json:"side"`
	Price       string `json:"price"`
	Qty         string `json:"qty"`
	RealizedPnl string `json:"realizedPnl"`
	Commission  string `json:"commission"`
	Time        int64  `json:"time"`
}

type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol            string `json:"symbol"`
		PricePrecision    int    `json:"pricePrecision"`
		QuantityPrecision int    `json:"quantityPrecision"`
		Filters           []struct {
			FilterType string `json:"filterType"`
			TickSize   string `json:"tickSize"`
			StepSize   string `json:"stepSize"`
			MinQty     string `json:"minQty"`
		} `json:"filters"`
	} `json:"symbols"`
}
