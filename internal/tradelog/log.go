// Package tradelog records every trading operation twice: one
// pipe-delimited line in a plain text file, and one row in a SQLite
// journal for queries.
package tradelog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Entry is one trading operation outcome.
type Entry struct {
	Time         time.Time
	Status       string // SUCCESS, FAILED
	Side         string // BUY, SELL
	Stock        string
	Qty          int64
	Exchange     string
	Product      string
	OrderType    string
	Price        *float64
	TriggerPrice *float64
	OrderID      string
	ErrMsg       string
}

// Log appends pipe-delimited lines to a single file. Writes are
// serialized; a failed write is reported to the caller, never fatal.
type Log struct {
	mu   sync.Mutex
	path string
}

// NewLog creates the order log at path, creating parent directories as
// needed.
func NewLog(path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("order log dir: %w", err)
		}
	}
	return &Log{path: path}, nil
}

// Append writes one line for the entry.
func (l *Log) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open order log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(e.Line() + "\n"); err != nil {
		return fmt.Errorf("write order log: %w", err)
	}
	return nil
}

// Line renders the entry in the fixed pipe-delimited format:
//
//	timestamp | status | side | stock | Qty: n | exchange | product | order type
//
// followed by Price/Trigger/OrderID/Error fields when present.
func (e Entry) Line() string {
	parts := []string{
		e.Time.Format(time.RFC3339),
		e.Status,
		e.Side,
		e.Stock,
		fmt.Sprintf("Qty: %d", e.Qty),
		e.Exchange,
		e.Product,
		e.OrderType,
	}
	if e.Price != nil {
		parts = append(parts, fmt.Sprintf("Price: %g", *e.Price))
	}
	if e.TriggerPrice != nil {
		parts = append(parts, fmt.Sprintf("Trigger: %g", *e.TriggerPrice))
	}
	if e.OrderID != "" {
		parts = append(parts, "OrderID: "+e.OrderID)
	}
	if e.Status == "FAILED" && e.ErrMsg != "" {
		parts = append(parts, "Error: "+e.ErrMsg)
	}
	return strings.Join(parts, " | ")
}
