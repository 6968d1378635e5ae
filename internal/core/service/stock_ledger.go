package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/tapstand/kiosk/internal/core/domain"
	"github.com/tapstand/kiosk/internal/port"
)

// StockLedger owns the authoritative current-stock value per beverage and
// its append-only audit trail. Every mutation runs as a read-modify-write
// under a per-beverage lock, so concurrent changes to the same beverage
// serialize while distinct beverages proceed in parallel.
type StockLedger struct {
	db     port.DatabaseRepository
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStockLedger(db port.DatabaseRepository, logger *slog.Logger) *StockLedger {
	return &StockLedger{
		db:     db,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (l *StockLedger) lockFor(beverageID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[beverageID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[beverageID] = lock
	}
	return lock
}

// Dispense commits a stock decrement for a poured volume.
func (l *StockLedger) Dispense(ctx context.Context, beverageID string, volume float64, orderID, note string) (domain.InventoryLogEntry, error) {
	lock := l.lockFor(beverageID)
	lock.Lock()
	defer lock.Unlock()

	bev, err := l.getBeverage(ctx, beverageID)
	if err != nil {
		return domain.InventoryLogEntry{}, err
	}
	if bev.CurrentStock < volume {
		return domain.InventoryLogEntry{}, fmt.Errorf("beverage %s has %.2fL, need %.2fL: %w",
			beverageID, bev.CurrentStock, volume, ErrInsufficientStock)
	}

	return l.commit(ctx, bev, bev.CurrentStock-volume, domain.ChangeDispense, volume, orderID, note)
}

// Refill raises stock by amount, clamped to capacity.
func (l *StockLedger) Refill(ctx context.Context, beverageID string, amount float64, note string) (domain.InventoryLogEntry, error) {
	lock := l.lockFor(beverageID)
	lock.Lock()
	defer lock.Unlock()

	bev, err := l.getBeverage(ctx, beverageID)
	if err != nil {
		return domain.InventoryLogEntry{}, err
	}

	newStock := math.Min(bev.CurrentStock+amount, bev.TotalCapacity)
	return l.commit(ctx, bev, newStock, domain.ChangeRefill, amount, "", note)
}

// Set overwrites stock with an admin-supplied absolute value.
func (l *StockLedger) Set(ctx context.Context, beverageID string, newStock float64, reason string) (domain.InventoryLogEntry, error) {
	lock := l.lockFor(beverageID)
	lock.Lock()
	defer lock.Unlock()

	bev, err := l.getBeverage(ctx, beverageID)
	if err != nil {
		return domain.InventoryLogEntry{}, err
	}
	if newStock < 0 || newStock > bev.TotalCapacity {
		return domain.InventoryLogEntry{}, fmt.Errorf("stock %.2fL outside [0, %.2f]: %w",
			newStock, bev.TotalCapacity, ErrOutOfRange)
	}

	magnitude := math.Abs(newStock - bev.CurrentStock)
	return l.commit(ctx, bev, newStock, domain.ChangeAdjust, magnitude, "", reason)
}

// Logs reads the audit trail back, newest first.
func (l *StockLedger) Logs(ctx context.Context, beverageID string, limit int) ([]domain.InventoryLogEntry, error) {
	return l.db.ListInventoryLogs(ctx, beverageID, limit)
}

func (l *StockLedger) getBeverage(ctx context.Context, id string) (*domain.Beverage, error) {
	bev, err := l.db.GetBeverage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get beverage: %w", err)
	}
	if bev == nil {
		return nil, fmt.Errorf("beverage %s: %w", id, ErrNotFound)
	}
	return bev, nil
}

// commit applies the stock write and its audit entry as one unit. If the
// log append fails the stock write is reverted so callers observe neither.
func (l *StockLedger) commit(ctx context.Context, bev *domain.Beverage, newStock float64, kind domain.StockChangeKind, magnitude float64, orderID, note string) (domain.InventoryLogEntry, error) {
	if newStock < 0 || newStock > bev.TotalCapacity {
		return domain.InventoryLogEntry{}, fmt.Errorf("stock %.2fL outside [0, %.2f]: %w",
			newStock, bev.TotalCapacity, ErrOutOfRange)
	}

	if err := l.db.SetBeverageStock(ctx, bev.ID, newStock); err != nil {
		return domain.InventoryLogEntry{}, fmt.Errorf("set stock: %w", err)
	}

	entry := domain.InventoryLogEntry{
		BeverageID:    bev.ID,
		Change:        kind,
		Amount:        magnitude,
		PreviousStock: bev.CurrentStock,
		NewStock:      newStock,
		OrderID:       orderID,
		Note:          note,
		Timestamp:     time.Now(),
	}
	if err := l.db.AppendInventoryLog(ctx, entry); err != nil {
		if revertErr := l.db.SetBeverageStock(ctx, bev.ID, bev.CurrentStock); revertErr != nil {
			l.logger.Error("stock revert failed after log append failure",
				"beverage_id", bev.ID, "error", revertErr)
		}
		return domain.InventoryLogEntry{}, fmt.Errorf("append inventory log: %w", err)
	}

	l.logger.Info("stock changed",
		"beverage_id", bev.ID,
		"change", string(kind),
		"amount", magnitude,
		"previous_stock", entry.PreviousStock,
		"new_stock", entry.NewStock,
	)
	return entry, nil
}
