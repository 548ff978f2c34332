// Package codec encodes and decodes the JSON messages crossing the
// messaging boundary. Decoding validates the fields the engine cannot
// work without; business validation stays in the engine.
package codec

import (
	"encoding/json"

	"github.com/yanun0323/errors"

	"main/internal/schema"
)

var (
	ErrMissingSymbol   = errors.New("missing symbol")
	ErrMissingSignalID = errors.New("missing signal id")
	ErrMissingAccount  = errors.New("missing account id")
	ErrMissingOrderID  = errors.New("missing order id")
	ErrInvalidPrice    = errors.New("price must be positive")
)

// DecodeMarketTick parses a tick message.
func DecodeMarketTick(payload []byte) (schema.MarketTick, error) {
	var tick schema.MarketTick
	if err := json.Unmarshal(payload, &tick); err != nil {
		return schema.MarketTick{}, errors.Wrap(err, "unmarshal market tick")
	}
	if tick.Symbol == "" {
		return schema.MarketTick{}, ErrMissingSymbol
	}
	if !tick.Price.IsPositive() {
		return schema.MarketTick{}, ErrInvalidPrice
	}
	return tick, nil
}

// EncodeMarketTick serializes a tick message.
func EncodeMarketTick(tick schema.MarketTick) ([]byte, error) {
	data, err := json.Marshal(tick)
	if err != nil {
		return nil, errors.Wrap(err, "marshal market tick")
	}
	return data, nil
}

// DecodeSignal parses a signal message. Side and type are validated by
// the engine so that malformed values still produce a visible terminal
// rejection instead of a silent drop.
func DecodeSignal(payload []byte) (schema.Signal, error) {
	var sig schema.Signal
	if err := json.Unmarshal(payload, &sig); err != nil {
		return schema.Signal{}, errors.Wrap(err, "unmarshal signal")
	}
	if sig.SignalID == "" {
		return schema.Signal{}, ErrMissingSignalID
	}
	if sig.AccountID == "" {
		return schema.Signal{}, ErrMissingAccount
	}
	if sig.Symbol == "" {
		return schema.Signal{}, ErrMissingSymbol
	}
	return sig, nil
}

// EncodeSignal serializes a signal message.
func EncodeSignal(sig schema.Signal) ([]byte, error) {
	data, err := json.Marshal(sig)
	if err != nil {
		return nil, errors.Wrap(err, "marshal signal")
	}
	return data, nil
}

// DecodeCancelRequest parses a cancel message.
func DecodeCancelRequest(payload []byte) (schema.CancelRequest, error) {
	var req schema.CancelRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return schema.CancelRequest{}, errors.Wrap(err, "unmarshal cancel request")
	}
	if req.OrderID == "" {
		return schema.CancelRequest{}, ErrMissingOrderID
	}
	return req, nil
}

// EncodeTradeEvent serializes a trade event for the analytics boundary.
func EncodeTradeEvent(event schema.TradeEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, errors.Wrap(err, "marshal trade event")
	}
	return data, nil
}

// DecodeTradeEvent parses a trade event, used by journal replay.
func DecodeTradeEvent(payload []byte) (schema.TradeEvent, error) {
	var event schema.TradeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return schema.TradeEvent{}, errors.Wrap(err, "unmarshal trade event")
	}
	if event.OrderID == "" {
		return schema.TradeEvent{}, ErrMissingOrderID
	}
	return event, nil
}
