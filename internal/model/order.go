package model

// Transaction sides.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// OrderRequest is the normalized shape of a buy/sell instruction as
// accepted over REST. Price and TriggerPrice are pointers so "absent"
// is distinguishable from zero — their presence must match OrderType.
type OrderRequest struct {
	Stock        string   `json:"stock"`
	Qty          int64    `json:"qty"`
	Exchange     string   `json:"exchange"`   // NSE, BSE, NFO, MCX, CDS
	Product      string   `json:"product"`    // CNC, MIS, NRML
	OrderType    string   `json:"order_type"` // MARKET, LIMIT, SL, SL-M
	Price        *float64 `json:"price,omitempty"`
	TriggerPrice *float64 `json:"trigger_price,omitempty"`
	Variety      string   `json:"variety"`  // regular, amo, co, iceberg
	Validity     string   `json:"validity"` // DAY, IOC
}

// ApplyDefaults fills the optional enum fields the way the REST API
// documents them: NSE / CNC / MARKET / regular / DAY.
func (r *OrderRequest) ApplyDefaults() {
	if r.Exchange == "" {
		r.Exchange = "NSE"
	}
	if r.Product == "" {
		r.Product = "CNC"
	}
	if r.OrderType == "" {
		r.OrderType = "MARKET"
	}
	if r.Variety == "" {
		r.Variety = "regular"
	}
	if r.Validity == "" {
		r.Validity = "DAY"
	}
}

// OrderResult is the outcome of a single order placement. Immutable once
// returned; it is not persisted beyond the order log.
type OrderResult struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	OrderID string       `json:"order_id,omitempty"`
	Details OrderDetails `json:"details"`
}

// OrderDetails echoes the request the result belongs to.
type OrderDetails struct {
	Stock        string   `json:"stock"`
	Qty          int64    `json:"quantity"`
	Side         string   `json:"transaction_type"`
	Exchange     string   `json:"exchange"`
	Product      string   `json:"product"`
	OrderType    string   `json:"order_type"`
	Price        *float64 `json:"price,omitempty"`
	TriggerPrice *float64 `json:"trigger_price,omitempty"`
}
