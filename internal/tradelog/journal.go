package tradelog

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Journal persists order placements to SQLite for queries and audit.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) the SQLite journal database.
func NewJournal(dbPath string) (*Journal, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id      TEXT,
		status        TEXT NOT NULL,
		side          TEXT NOT NULL,
		stock         TEXT NOT NULL,
		exchange      TEXT NOT NULL,
		product       TEXT NOT NULL,
		order_type    TEXT NOT NULL,
		qty           INTEGER NOT NULL,
		price         REAL,
		trigger_price REAL,
		error         TEXT,
		placed_at     DATETIME NOT NULL,
		created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_orders_stock ON orders(stock, exchange);
	CREATE INDEX IF NOT EXISTS idx_orders_placed_at ON orders(placed_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[journal] opened order journal at %s", dbPath)
	return &Journal{db: db}, nil
}

// Record persists one order placement outcome.
func (j *Journal) Record(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO orders (order_id, status, side, stock, exchange, product, order_type, qty, price, trigger_price, error, placed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.OrderID,
		e.Status,
		e.Side,
		e.Stock,
		e.Exchange,
		e.Product,
		e.OrderType,
		e.Qty,
		nullFloat(e.Price),
		nullFloat(e.TriggerPrice),
		e.ErrMsg,
		e.Time.Format(time.RFC3339),
	)
	return err
}

// OrderRecord is a row from the orders table.
type OrderRecord struct {
	ID           int64    `json:"id"`
	OrderID      string   `json:"order_id"`
	Status       string   `json:"status"`
	Side         string   `json:"side"`
	Stock        string   `json:"stock"`
	Exchange     string   `json:"exchange"`
	Product      string   `json:"product"`
	OrderType    string   `json:"order_type"`
	Qty          int64    `json:"qty"`
	Price        *float64 `json:"price,omitempty"`
	TriggerPrice *float64 `json:"trigger_price,omitempty"`
	Error        string   `json:"error,omitempty"`
	PlacedAt     string   `json:"placed_at"`
}

// Recent returns the last N orders, newest first.
func (j *Journal) Recent(limit int) ([]OrderRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, order_id, status, side, stock, exchange, product, order_type, qty, price, trigger_price, error, placed_at
		 FROM orders ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var r OrderRecord
		var price, trigger sql.NullFloat64
		var orderID, errMsg sql.NullString
		if err := rows.Scan(&r.ID, &orderID, &r.Status, &r.Side, &r.Stock, &r.Exchange,
			&r.Product, &r.OrderType, &r.Qty, &price, &trigger, &errMsg, &r.PlacedAt); err != nil {
			return nil, err
		}
		r.OrderID = orderID.String
		r.Error = errMsg.String
		if price.Valid {
			v := price.Float64
			r.Price = &v
		}
		if trigger.Valid {
			v := trigger.Float64
			r.TriggerPrice = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
