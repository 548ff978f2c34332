package store

import (
	"context"

	"main/internal/schema"
)

// Name identifies the repo in delivery logs.
func (r *TradeRepo) Name() string {
	return "postgres:trades"
}

// Deliver satisfies the publisher sink contract.
func (r *TradeRepo) Deliver(ctx context.Context, event schema.TradeEvent) error {
	return r.Save(ctx, event)
}
