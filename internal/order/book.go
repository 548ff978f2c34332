// Package order models the lifecycle of simulated orders for one
// (account, symbol) partition. The owning partition serializes all access,
// so the book itself carries no locking.
package order

import (
	"errors"
	"time"

	"main/internal/schema"
)

var (
	ErrDuplicateOrder = errors.New("order already exists")
	ErrUnknownOrder   = errors.New("order not found")
	// ErrStateConflict marks a transition attempted on a terminal order.
	// Callers log and drop, never retry.
	ErrStateConflict = errors.New("order state conflict")
	ErrInvalidFill   = errors.New("invalid fill quantity")
)

// Book holds every order the partition has ever accepted. Orders are never
// deleted; terminal orders stay for reporting.
type Book struct {
	orders  map[string]*schema.Order
	working []string
}

// NewBook creates an empty book.
func NewBook() *Book {
	return &Book{orders: make(map[string]*schema.Order)}
}

// Add registers a new order. Orders arrive in NEW, WORKING, or REJECTED
// state; fillable ones join the working set in acceptance order.
func (b *Book) Add(o *schema.Order) error {
	if o == nil || o.OrderID == "" {
		return ErrUnknownOrder
	}
	if _, ok := b.orders[o.OrderID]; ok {
		return ErrDuplicateOrder
	}
	b.orders[o.OrderID] = o
	if o.Status.Fillable() {
		b.working = append(b.working, o.OrderID)
	}
	return nil
}

// Get returns the order by ID.
func (b *Book) Get(id string) (*schema.Order, bool) {
	o, ok := b.orders[id]
	return o, ok
}

// Working returns fillable orders in acceptance order, compacting
// terminal entries out of the working set as it goes.
func (b *Book) Working() []*schema.Order {
	out := make([]*schema.Order, 0, len(b.working))
	kept := b.working[:0]
	for _, id := range b.working {
		o, ok := b.orders[id]
		if !ok || o.Status.Terminal() {
			continue
		}
		kept = append(kept, id)
		out = append(out, o)
	}
	b.working = kept
	return out
}

// ApplyFill credits the fill against the order, recomputes the average
// fill price, and advances the status. Quantity already filled is never
// revisited; a fill larger than the remaining quantity is invalid.
func (b *Book) ApplyFill(orderID string, fill schema.Fill) (*schema.Order, error) {
	o, ok := b.orders[orderID]
	if !ok {
		return nil, ErrUnknownOrder
	}
	if o.Status.Terminal() {
		return o, ErrStateConflict
	}
	if !fill.Quantity.IsPositive() || fill.Quantity.GreaterThan(o.Remaining()) {
		return o, ErrInvalidFill
	}

	filled := o.FilledQty.Add(fill.Quantity)
	notional := o.AvgFillPrice.Mul(o.FilledQty).Add(fill.Price.Mul(fill.Quantity))
	o.AvgFillPrice = notional.Div(filled)
	o.FilledQty = filled
	if o.FilledQty.Equal(o.Quantity) {
		o.Status = schema.OrderStatusFilled
	} else {
		o.Status = schema.OrderStatusPartFilled
	}
	o.UpdatedAt = fill.Timestamp
	return o, nil
}

// Cancel moves a working order to CANCELED, preserving quantity already
// filled. Terminal orders return ErrStateConflict.
func (b *Book) Cancel(orderID string, now time.Time) (*schema.Order, error) {
	o, ok := b.orders[orderID]
	if !ok {
		return nil, ErrUnknownOrder
	}
	if o.Status.Terminal() {
		return o, ErrStateConflict
	}
	o.Status = schema.OrderStatusCanceled
	o.UpdatedAt = now
	return o, nil
}

// Reject moves a non-terminal order to REJECTED with a reason. Used both
// for validation failures at creation and for fills the ledger refuses.
func (b *Book) Reject(orderID string, reason schema.RejectReason, now time.Time) (*schema.Order, error) {
	o, ok := b.orders[orderID]
	if !ok {
		return nil, ErrUnknownOrder
	}
	if o.Status.Terminal() {
		return o, ErrStateConflict
	}
	o.Status = schema.OrderStatusRejected
	o.Reason = reason
	o.UpdatedAt = now
	return o, nil
}

// Len returns the total number of orders ever accepted.
func (b *Book) Len() int {
	return len(b.orders)
}
