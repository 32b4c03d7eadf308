package models

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

func (s OrderSide) Opposite() OrderSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type OrderType string

const (
	OrderTypeMarket           OrderType = "MARKET"
	OrderTypeLimit            OrderType = "LIMIT"
	OrderTypeStop             OrderType = "STOP"
	OrderTypeStopMarket       OrderType = "STOP_MARKET"
	OrderTypeTakeProfit       OrderType = "TAKE_PROFIT"
	OrderTypeTakeProfitMarket OrderType = "TAKE_PROFIT_MARKET"
)

// IsTriggered reports whether the type carries a trigger (stop) price.
func (t OrderType) IsTriggered() bool {
	switch t {
	case OrderTypeStop, OrderTypeStopMarket, OrderTypeTakeProfit, OrderTypeTakeProfitMarket:
		return true
	}
	return false
}

// AllowsClosePosition: Binance accepts closePosition=true only on the two
// market-triggered exit types.
func (t OrderType) AllowsClosePosition() bool {
	return t == OrderTypeStopMarket || t == OrderTypeTakeProfitMarket
}

type TimeInForce string

const (
	TifGTC TimeInForce = "GTC"
	TifIOC TimeInForce = "IOC"
	TifFOK TimeInForce = "FOK"
	TifGTX TimeInForce = "GTX"
)

type WorkingType string

const (
	WorkingTypeMark     WorkingType = "MARK_PRICE"
	WorkingTypeContract WorkingType = "CONTRACT_PRICE"
)

type PositionSide string

const (
	PositionSideBoth  PositionSide = "BOTH"
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
)

type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusExpired         OrderStatus = "EXPIRED"
	StatusRejected        OrderStatus = "REJECTED"
)

// Open reports whether the order is still resting on the book.
func (s OrderStatus) Open() bool {
	return s == StatusNew || s == StatusPartiallyFilled
}

// OrderRequest is the outbound order payload as the caller intends it.
// The client sanitizer may rewrite flags before it leaves the process.
type OrderRequest struct {
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Quantity      float64
	Price         float64
	StopPrice     float64
	TimeInForce   TimeInForce
	ReduceOnly    bool
	ClosePosition bool
	PositionSide  PositionSide
	WorkingType   WorkingType
	ClientOrderID string
}

// Order mirrors an order as the exchange reports it (REST or stream).
type Order struct {
	OrderID       int64
	ClientOrderID string
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Status        OrderStatus
	Price         float64
	StopPrice     float64
	OrigQty       float64
	ExecutedQty   float64
	TimeInForce   TimeInForce
	ReduceOnly    bool
	ClosePosition bool
	PositionSide  PositionSide
	WorkingType   WorkingType
	UpdateTime    int64
}

// IsProtectiveStop reports whether the order is a stop that would close a
// position held on the given side.
func (o Order) IsProtectiveStop(side PositionSide) bool {
	if o.Type != OrderTypeStop && o.Type != OrderTypeStopMarket {
		return false
	}
	if !o.ReduceOnly && !o.ClosePosition {
		return false
	}
	return o.Side == closingSide(side)
}

// IsTakeProfit reports whether the order is a take-profit closing the given side.
func (o Order) IsTakeProfit(side PositionSide) bool {
	if o.Type != OrderTypeTakeProfit && o.Type != OrderTypeTakeProfitMarket {
		return false
	}
	return o.Side == closingSide(side)
}

func closingSide(side PositionSide) OrderSide {
	if side == PositionSideLong {
		return SideSell
	}
	return SideBuy
}

// ClosingSide returns the order side that reduces a position on the given side.
func ClosingSide(side PositionSide) OrderSide { return closingSide(side) }
