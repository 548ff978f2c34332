package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketTick is a single price update for a symbol.
// Sequence is monotonic per symbol; a tick at or below the last applied
// sequence is stale and must be discarded.
type MarketTick struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Sequence  uint64          `json:"sequence"`
	Timestamp time.Time       `json:"timestamp"`
}

// Signal is a strategy instruction to trade. SignalID is the idempotency
// key supplied by the originator.
type Signal struct {
	SignalID   string          `json:"signalId"`
	AccountID  string          `json:"accountId"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Type       OrderType       `json:"orderType"`
	Quantity   decimal.Decimal `json:"quantity"`
	LimitPrice decimal.Decimal `json:"limitPrice"`
	Strategy   string          `json:"strategy,omitempty"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

// CancelRequest asks the engine to cancel a working order.
type CancelRequest struct {
	OrderID     string    `json:"orderId"`
	RequestedAt time.Time `json:"requestedAt"`
}

// Order is the engine's view of one accepted signal. Exactly one order
// exists per admitted signal.
type Order struct {
	OrderID      string          `json:"orderId"`
	SignalID     string          `json:"signalId"`
	AccountID    string          `json:"accountId"`
	Symbol       string          `json:"symbol"`
	Side         Side            `json:"side"`
	Type         OrderType       `json:"orderType"`
	Quantity     decimal.Decimal `json:"quantity"`
	LimitPrice   decimal.Decimal `json:"limitPrice"`
	FilledQty    decimal.Decimal `json:"filledQuantity"`
	AvgFillPrice decimal.Decimal `json:"averageFillPrice"`
	Status       OrderStatus     `json:"status"`
	Reason       RejectReason    `json:"reason,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQty)
}

// Fill is an immutable record of executed quantity at a price.
// TickSequence links the fill to the market event that produced it.
type Fill struct {
	FillID       string          `json:"fillId"`
	OrderID      string          `json:"orderId"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	SlippageBps  int64           `json:"slippageBps"`
	TickSequence uint64          `json:"tickSequenceUsed"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Position is the net exposure of an account in one symbol.
type Position struct {
	AccountID     string          `json:"accountId"`
	Symbol        string          `json:"symbol"`
	NetQuantity   decimal.Decimal `json:"netQuantity"`
	AvgEntryPrice decimal.Decimal `json:"averageEntryPrice"`
	RealizedPnL   decimal.Decimal `json:"realizedPnL"`
}

// Account holds the paper cash state of one account.
type Account struct {
	AccountID    string          `json:"accountId"`
	CashBalance  decimal.Decimal `json:"cashBalance"`
	ReservedCash decimal.Decimal `json:"reservedCash"`
}

// TradeEventKind describes what a trade event reports.
type TradeEventKind string

const (
	TradeEventFill     TradeEventKind = "FILL"
	TradeEventRejected TradeEventKind = "REJECTED"
	TradeEventCanceled TradeEventKind = "CANCELED"
)

// TradeEvent is the record emitted to the analytics boundary after every
// terminal rejection, cancellation, or applied fill.
type TradeEvent struct {
	EventID      string          `json:"eventId"`
	Kind         TradeEventKind  `json:"kind"`
	AccountID    string          `json:"accountId"`
	Symbol       string          `json:"symbol"`
	OrderID      string          `json:"orderId"`
	SignalID     string          `json:"signalId"`
	Side         Side            `json:"side"`
	OrderStatus  OrderStatus     `json:"orderStatus"`
	FilledQty    decimal.Decimal `json:"filledQuantity"`
	AvgFillPrice decimal.Decimal `json:"averageFillPrice"`
	Fill         *Fill           `json:"fill,omitempty"`
	Fee          decimal.Decimal `json:"fee"`
	RealizedPnL  decimal.Decimal `json:"realizedPnL"`
	Reason       RejectReason    `json:"reason,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}
