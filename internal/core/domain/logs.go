package domain

import "time"

// StockChangeKind classifies an inventory log entry.
type StockChangeKind string

const (
	ChangeRefill   StockChangeKind = "refill"
	ChangeDispense StockChangeKind = "dispense"
	ChangeAdjust   StockChangeKind = "adjust"
)

// InventoryLogEntry is one immutable record of the stock audit trail.
// PreviousStock plus the signed delta always equals NewStock.
type InventoryLogEntry struct {
	ID            int64
	BeverageID    string
	Change        StockChangeKind
	Amount        float64
	PreviousStock float64
	NewStock      float64
	OrderID       string // empty unless the change came from a dispense
	Note          string
	Timestamp     time.Time
}

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// SystemLogEntry is the persisted operational audit record. It is not the
// process log; it is part of the kiosk's own data.
type SystemLogEntry struct {
	ID        int64
	Level     LogLevel
	Message   string
	Context   map[string]any
	Timestamp time.Time
}
