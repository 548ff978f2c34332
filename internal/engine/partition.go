package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/ledger"
	"main/internal/order"
	"main/internal/schema"
)

// message is the unit admitted into a partition mailbox. Exactly one field
// is set.
type message struct {
	signal *schema.Signal
	cancel *schema.CancelRequest
}

// partition is the single writer for one (accountId, symbol) pair. All
// order, position, and cash mutations for the pair funnel through its
// goroutine, so cancel-vs-tick races resolve by processing order.
type partition struct {
	key       string
	accountID string
	symbol    string
	eng       *Engine
	mailbox   *bus.Queue[message]
	// reeval is a one-slot wake-up: tick arrival sets it, the run loop
	// drains it. Coalescing keeps re-evaluation lossless without letting
	// tick fan-out block.
	reeval chan struct{}
	book   *order.Book
}

func newPartition(e *Engine, key, accountID, symbol string, mailboxSize int) *partition {
	return &partition{
		key:       key,
		accountID: accountID,
		symbol:    symbol,
		eng:       e,
		mailbox:   bus.NewQueue[message](mailboxSize),
		reeval:    make(chan struct{}, 1),
		book:      order.NewBook(),
	}
}

func (p *partition) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-p.mailbox.C():
			if !ok {
				return
			}
			switch {
			case m.signal != nil:
				p.handleSignal(*m.signal)
			case m.cancel != nil:
				p.handleCancel(*m.cancel)
			}
		case <-p.reeval:
			p.reevaluate()
		}
	}
}

// handleSignal creates exactly one order for the admitted signal. Invalid
// signals become orders born REJECTED, reported through the event stream;
// valid ones enter WORKING.
func (p *partition) handleSignal(sig schema.Signal) {
	now := time.Now().UTC()
	o := &schema.Order{
		OrderID:    uuid.NewString(),
		SignalID:   sig.SignalID,
		AccountID:  sig.AccountID,
		Symbol:     sig.Symbol,
		Side:       sig.Side,
		Type:       sig.Type,
		Quantity:   sig.Quantity,
		LimitPrice: sig.LimitPrice,
		Status:     schema.OrderStatusNew,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if reason := p.validate(sig); reason != schema.RejectReasonNone {
		o.Status = schema.OrderStatusRejected
		o.Reason = reason
		if err := p.book.Add(o); err != nil {
			logs.Errorf("book add rejected order failed. orderId: %s, err: %v", o.OrderID, err)
			return
		}
		p.eng.metrics.IncSignalRejected()
		p.emit(schema.TradeEventRejected, o, nil, ledger.FillEffect{})
		return
	}

	o.Status = schema.OrderStatusWorking
	if err := p.book.Add(o); err != nil {
		logs.Errorf("book add order failed. orderId: %s, err: %v", o.OrderID, err)
		return
	}
	p.eng.routeOrder(o.OrderID, p)
	// Market orders evaluate immediately; limit orders stay working until
	// a qualifying tick triggers re-evaluation.
	if o.Type == schema.OrderTypeMarket {
		p.evaluate(o)
	}
}

// validate checks in order: quantity, side, type, limit price,
// symbol, account, then cash. Limit buys reserve their full cost here so
// the account cannot overspend before the fill.
func (p *partition) validate(sig schema.Signal) schema.RejectReason {
	led := p.eng.ledger
	switch {
	case !sig.Quantity.IsPositive():
		return schema.RejectReasonInvalidQty
	case !sig.Side.Tradable():
		return schema.RejectReasonInvalidSide
	case !sig.Type.Valid():
		return schema.RejectReasonInvalidType
	case sig.Type == schema.OrderTypeLimit && !sig.LimitPrice.IsPositive():
		return schema.RejectReasonMissingLimit
	case !p.eng.registry.Has(sig.Symbol):
		return schema.RejectReasonUnknownSymbol
	case !led.HasAccount(sig.AccountID):
		return schema.RejectReasonUnknownAccount
	}

	if sig.Side == schema.SideBuy {
		switch sig.Type {
		case schema.OrderTypeLimit:
			if err := led.Reserve(sig.AccountID, led.CostOf(sig.LimitPrice, sig.Quantity)); err != nil {
				return schema.RejectReasonInsufficientCash
			}
		case schema.OrderTypeMarket:
			// With no price yet the order is accepted; the balance is
			// checked again when the first tick produces the fill.
			if entry, ok := p.eng.store.Price(sig.Symbol); ok {
				free, _ := led.FreeCash(sig.AccountID)
				if free.LessThan(led.CostOf(entry.Price, sig.Quantity)) {
					return schema.RejectReasonInsufficientCash
				}
			}
		}
	}
	return schema.RejectReasonNone
}

// reevaluate runs every working order against the latest snapshot entry.
// Orders are visited in acceptance order, so fills for one order carry
// non-decreasing tick sequences.
func (p *partition) reevaluate() {
	for _, o := range p.book.Working() {
		p.evaluate(o)
	}
}

func (p *partition) evaluate(o *schema.Order) {
	entry, ok := p.eng.store.Price(p.symbol)
	if !ok {
		// Absence of a price is not invalid input, just not-yet-fillable.
		return
	}
	fill, ok := p.eng.sim.Evaluate(o, entry, time.Now().UTC())
	if !ok {
		return
	}
	p.applyFill(o, fill)
}

// applyFill commits the fill to the ledger and the order as one unit
// inside the partition's serialization, then emits the trade event.
func (p *partition) applyFill(o *schema.Order, fill schema.Fill) {
	led := p.eng.ledger

	release := decimal.Decimal{}
	if o.Type == schema.OrderTypeLimit && o.Side == schema.SideBuy {
		release = led.CostOf(o.LimitPrice, fill.Quantity)
	}

	effect, err := led.ApplyFill(o.AccountID, o.Symbol, o.Side, fill, release)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientCash) {
			// Market buy admitted before any price existed and the first
			// tick priced it beyond the account. Terminal rejection.
			if _, rejErr := p.book.Reject(o.OrderID, schema.RejectReasonInsufficientCash, time.Now().UTC()); rejErr != nil {
				logs.Errorf("reject overdrawn order failed. orderId: %s, err: %v", o.OrderID, rejErr)
				return
			}
			p.eng.metrics.IncSignalRejected()
			p.emit(schema.TradeEventRejected, o, nil, ledger.FillEffect{})
			return
		}
		logs.Errorf("ledger apply fill failed. orderId: %s, fillId: %s, err: %v", o.OrderID, fill.FillID, err)
		return
	}

	if _, err := p.book.ApplyFill(o.OrderID, fill); err != nil {
		// The ledger and the book disagree. The fill is already an
		// immutable fact, so log loudly.
		logs.Errorf("order fill transition failed after ledger commit. orderId: %s, err: %v", o.OrderID, err)
		p.eng.metrics.IncStateConflict()
		return
	}

	p.eng.metrics.IncFill()
	if o.Status == schema.OrderStatusFilled {
		p.eng.metrics.IncOrderFilled()
	}
	p.emit(schema.TradeEventFill, o, &fill, effect)
}

// handleCancel commits a cancellation. Because the mailbox serializes the
// partition, an order canceled here can never fill on a later tick.
func (p *partition) handleCancel(req schema.CancelRequest) {
	o, ok := p.book.Get(req.OrderID)
	if !ok {
		logs.Warnf("cancel for unknown order dropped. orderId: %s", req.OrderID)
		return
	}
	if o.Status.Terminal() {
		p.eng.metrics.IncStateConflict()
		logs.Warnf("cancel on terminal order dropped. orderId: %s, status: %s", o.OrderID, o.Status)
		return
	}
	remaining := o.Remaining()
	if _, err := p.book.Cancel(o.OrderID, time.Now().UTC()); err != nil {
		logs.Errorf("cancel failed. orderId: %s, err: %v", o.OrderID, err)
		return
	}
	if o.Type == schema.OrderTypeLimit && o.Side == schema.SideBuy && remaining.IsPositive() {
		p.eng.ledger.Release(o.AccountID, p.eng.ledger.CostOf(o.LimitPrice, remaining))
	}
	p.eng.metrics.IncCancel()
	p.emit(schema.TradeEventCanceled, o, nil, ledger.FillEffect{})
}

func (p *partition) emit(kind schema.TradeEventKind, o *schema.Order, fill *schema.Fill, effect ledger.FillEffect) {
	p.eng.emitter.Emit(schema.TradeEvent{
		EventID:      uuid.NewString(),
		Kind:         kind,
		AccountID:    o.AccountID,
		Symbol:       o.Symbol,
		OrderID:      o.OrderID,
		SignalID:     o.SignalID,
		Side:         o.Side,
		OrderStatus:  o.Status,
		FilledQty:    o.FilledQty,
		AvgFillPrice: o.AvgFillPrice,
		Fill:         fill,
		Fee:          effect.Fee,
		RealizedPnL:  effect.RealizedPnL,
		Reason:       o.Reason,
		Timestamp:    time.Now().UTC(),
	})
}
