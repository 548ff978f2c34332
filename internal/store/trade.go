// Package store archives trade events to PostgreSQL for offline analysis.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"main/internal/schema"
)

// TradeRecord is the archived form of one trade event.
type TradeRecord struct {
	gorm.Model   `json:"-"`
	EventID      string          `gorm:"uniqueIndex" json:"eventId"`
	Kind         string          `gorm:"index" json:"kind"`
	AccountID    string          `gorm:"index" json:"accountId"`
	Symbol       string          `gorm:"index" json:"symbol"`
	OrderID      string          `gorm:"index" json:"orderId"`
	SignalID     string          `json:"signalId"`
	Side         string          `json:"side"`
	OrderStatus  string          `json:"orderStatus"`
	FilledQty    decimal.Decimal `gorm:"type:numeric" json:"filledQuantity"`
	AvgFillPrice decimal.Decimal `gorm:"type:numeric" json:"averageFillPrice"`
	FillPrice    decimal.Decimal `gorm:"type:numeric" json:"fillPrice"`
	FillQty      decimal.Decimal `gorm:"type:numeric" json:"fillQuantity"`
	Fee          decimal.Decimal `gorm:"type:numeric" json:"fee"`
	RealizedPnL  decimal.Decimal `gorm:"type:numeric" json:"realizedPnL"`
	Reason       string          `json:"reason"`
	EventTime    time.Time       `gorm:"index" json:"eventTime"`
}

// RecordOf flattens a trade event into its archive row.
func RecordOf(event schema.TradeEvent) TradeRecord {
	record := TradeRecord{
		EventID:      event.EventID,
		Kind:         string(event.Kind),
		AccountID:    event.AccountID,
		Symbol:       event.Symbol,
		OrderID:      event.OrderID,
		SignalID:     event.SignalID,
		Side:         string(event.Side),
		OrderStatus:  string(event.OrderStatus),
		FilledQty:    event.FilledQty,
		AvgFillPrice: event.AvgFillPrice,
		Fee:          event.Fee,
		RealizedPnL:  event.RealizedPnL,
		Reason:       string(event.Reason),
		EventTime:    event.Timestamp,
	}
	if event.Fill != nil {
		record.FillPrice = event.Fill.Price
		record.FillQty = event.Fill.Quantity
	}
	return record
}

// TradeRepo persists trade records.
type TradeRepo struct {
	db *gorm.DB
}

// NewTradeRepo creates a repo over the given connection.
func NewTradeRepo(db *gorm.DB) *TradeRepo {
	return &TradeRepo{db: db}
}

// Migrate creates or updates the trade record table.
func (r *TradeRepo) Migrate() error {
	return r.db.AutoMigrate(&TradeRecord{})
}

// Save archives one event. Redelivered events are ignored so the
// at-least-once pipeline stays idempotent here.
func (r *TradeRepo) Save(ctx context.Context, event schema.TradeEvent) error {
	record := RecordOf(event)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(&record).Error
}

// Recent returns the latest records for an account, newest first.
func (r *TradeRepo) Recent(ctx context.Context, accountID string, limit int) ([]TradeRecord, error) {
	var records []TradeRecord
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("event_time desc").
		Limit(limit).
		Find(&records).Error
	return records, err
}
