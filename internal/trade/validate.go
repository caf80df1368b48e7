package trade

import (
	"fmt"

	"kitetrader/internal/model"
)

var (
	validExchanges = map[string]bool{
		"NSE": true, "BSE": true, "NFO": true, "BFO": true, "MCX": true, "CDS": true,
	}
	validProducts = map[string]bool{
		"CNC": true, "MIS": true, "NRML": true,
	}
	validOrderTypes = map[string]bool{
		"MARKET": true, "LIMIT": true, "SL": true, "SL-M": true,
	}
	validVarieties = map[string]bool{
		"regular": true, "amo": true, "co": true, "iceberg": true,
	}
	validValidities = map[string]bool{
		"DAY": true, "IOC": true,
	}
)

// Validate checks an order request after defaults are applied. Presence
// of price/trigger_price must match the order type:
//
//	MARKET  — neither
//	LIMIT   — price only
//	SL      — price and trigger
//	SL-M    — trigger only
//
// Violations are rejected here, before any brokerage call.
func Validate(r model.OrderRequest) error {
	if r.Stock == "" {
		return &ValidationError{Msg: "stock symbol is required"}
	}
	if r.Qty <= 0 {
		return &ValidationError{Msg: fmt.Sprintf("quantity must be a positive integer, got %d", r.Qty)}
	}
	if !validExchanges[r.Exchange] {
		return &ValidationError{Msg: "unknown exchange: " + r.Exchange}
	}
	if !validProducts[r.Product] {
		return &ValidationError{Msg: "unknown product: " + r.Product}
	}
	if !validOrderTypes[r.OrderType] {
		return &ValidationError{Msg: "unknown order_type: " + r.OrderType}
	}
	if !validVarieties[r.Variety] {
		return &ValidationError{Msg: "unknown variety: " + r.Variety}
	}
	if !validValidities[r.Validity] {
		return &ValidationError{Msg: "unknown validity: " + r.Validity}
	}
	if r.Price != nil && *r.Price <= 0 {
		return &ValidationError{Msg: "price must be positive"}
	}
	if r.TriggerPrice != nil && *r.TriggerPrice <= 0 {
		return &ValidationError{Msg: "trigger_price must be positive"}
	}

	wantPrice := r.OrderType == "LIMIT" || r.OrderType == "SL"
	wantTrigger := r.OrderType == "SL" || r.OrderType == "SL-M"

	if wantPrice && r.Price == nil {
		return &ValidationError{Msg: r.OrderType + " order requires a price"}
	}
	if !wantPrice && r.Price != nil {
		return &ValidationError{Msg: r.OrderType + " order must not carry a price"}
	}
	if wantTrigger && r.TriggerPrice == nil {
		return &ValidationError{Msg: r.OrderType + " order requires a trigger_price"}
	}
	if !wantTrigger && r.TriggerPrice != nil {
		return &ValidationError{Msg: r.OrderType + " order must not carry a trigger_price"}
	}
	return nil
}
