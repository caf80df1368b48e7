package api

import (
	"kitetrader/internal/model"
	"kitetrader/pkg/kiteconnect"
)

// orderRequestDTO is the JSON body for /trade/buy and /trade/sell.
// Only stock and qty are required; the rest default server-side.
type orderRequestDTO struct {
	Stock        string   `json:"stock"`
	Qty          int64    `json:"qty"`
	Exchange     string   `json:"exchange,omitempty"`
	Product      string   `json:"product,omitempty"`
	OrderType    string   `json:"order_type,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	TriggerPrice *float64 `json:"trigger_price,omitempty"`
	Variety      string   `json:"variety,omitempty"`
	Validity     string   `json:"validity,omitempty"`
}

func (d orderRequestDTO) toModel() model.OrderRequest {
	return model.OrderRequest{
		Stock:        d.Stock,
		Qty:          d.Qty,
		Exchange:     d.Exchange,
		Product:      d.Product,
		OrderType:    d.OrderType,
		Price:        d.Price,
		TriggerPrice: d.TriggerPrice,
		Variety:      d.Variety,
		Validity:     d.Validity,
	}
}

// errorResponse is the uniform failure body.
type errorResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ErrorType string `json:"error_type,omitempty"`
}

type positionsResponse struct {
	Success   bool                   `json:"success"`
	Count     int                    `json:"count"`
	Positions []kiteconnect.Position `json:"positions"`
}

type marketStatusResponse struct {
	Open       bool   `json:"open"`
	Status     string `json:"status"`
	NextOpen   string `json:"next_open,omitempty"`
	TodayClose string `json:"today_close,omitempty"`
}
