package schema

// Side describes the direction of a signal or order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
	// SideHold is strategy advice carried on the wire. It never creates an order.
	SideHold Side = "HOLD"
)

// Tradable reports whether the side can produce an order.
func (s Side) Tradable() bool {
	return s == SideBuy || s == SideSell
}

// Sign returns +1 for buys and -1 for sells.
func (s Side) Sign() int64 {
	switch s {
	case SideBuy:
		return 1
	case SideSell:
		return -1
	default:
		return 0
	}
}

// OrderType describes how an order is priced.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// Valid reports whether the order type is known.
func (t OrderType) Valid() bool {
	return t == OrderTypeMarket || t == OrderTypeLimit
}

// OrderStatus tracks the lifecycle of an order.
type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "NEW"
	OrderStatusWorking    OrderStatus = "WORKING"
	OrderStatusPartFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled     OrderStatus = "FILLED"
	OrderStatusCanceled   OrderStatus = "CANCELED"
	OrderStatusRejected   OrderStatus = "REJECTED"
)

// Terminal reports whether the status accepts no further transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected:
		return true
	default:
		return false
	}
}

// Fillable reports whether an order in this status may still produce fills.
func (s OrderStatus) Fillable() bool {
	return s == OrderStatusWorking || s == OrderStatusPartFilled
}

// RejectReason is a coarse reason code for order rejections.
type RejectReason string

const (
	RejectReasonNone             RejectReason = ""
	RejectReasonInvalidQty       RejectReason = "INVALID_QUANTITY"
	RejectReasonMissingLimit     RejectReason = "MISSING_LIMIT_PRICE"
	RejectReasonUnknownSymbol    RejectReason = "UNKNOWN_SYMBOL"
	RejectReasonUnknownAccount   RejectReason = "UNKNOWN_ACCOUNT"
	RejectReasonInvalidSide      RejectReason = "INVALID_SIDE"
	RejectReasonInvalidType      RejectReason = "INVALID_ORDER_TYPE"
	RejectReasonInsufficientCash RejectReason = "INSUFFICIENT_CASH"
)
