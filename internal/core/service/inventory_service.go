package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/tapstand/kiosk/internal/core/domain"
	"github.com/tapstand/kiosk/internal/port"
)

type AlertLevel string

const (
	AlertLow      AlertLevel = "low"
	AlertCritical AlertLevel = "critical"
	AlertEmpty    AlertLevel = "empty"
)

type StockAlert struct {
	BeverageID      string     `json:"beverageId"`
	Name            string     `json:"name"`
	CurrentStock    float64    `json:"currentStock"`
	TotalCapacity   float64    `json:"totalCapacity"`
	StockPercentage float64    `json:"stockPercentage"`
	AlertLevel      AlertLevel `json:"alertLevel"`
}

type InventoryReport struct {
	TotalBeverages     int     `json:"totalBeverages"`
	ActiveBeverages    int     `json:"activeBeverages"`
	TotalCapacity      float64 `json:"totalCapacity"`
	TotalCurrentStock  float64 `json:"totalCurrentStock"`
	UtilizationRate    float64 `json:"utilizationRate"`
	LowStockCount      int     `json:"lowStockCount"`
	CriticalStockCount int     `json:"criticalStockCount"`
	EmptyStockCount    int     `json:"emptyStockCount"`
}

// InventoryService layers alerting, replenish/adjust operations and
// aggregate reporting on top of the stock ledger.
type InventoryService struct {
	db     port.DatabaseRepository
	ledger *StockLedger
	logger *slog.Logger
}

func NewInventoryService(db port.DatabaseRepository, ledger *StockLedger, logger *slog.Logger) *InventoryService {
	return &InventoryService{db: db, ledger: ledger, logger: logger}
}

// ActiveBeverages returns the beverages the kiosk menu may offer.
func (s *InventoryService) ActiveBeverages(ctx context.Context) ([]domain.Beverage, error) {
	beverages, err := s.db.ListBeverages(ctx)
	if err != nil {
		return nil, fmt.Errorf("list beverages: %w", err)
	}
	active := make([]domain.Beverage, 0, len(beverages))
	for _, b := range beverages {
		if b.IsActive {
			active = append(active, b)
		}
	}
	return active, nil
}

// StockAlerts classifies active beverages into depletion tiers, most
// depleted first. It degrades to an empty slice when nothing qualifies.
func (s *InventoryService) StockAlerts(ctx context.Context) ([]StockAlert, error) {
	beverages, err := s.db.ListBeverages(ctx)
	if err != nil {
		return nil, fmt.Errorf("list beverages: %w", err)
	}

	alerts := make([]StockAlert, 0)
	for _, b := range beverages {
		if !b.IsActive {
			continue
		}

		level, ok := alertLevel(b)
		if !ok {
			continue
		}
		alerts = append(alerts, StockAlert{
			BeverageID:      b.ID,
			Name:            b.Name,
			CurrentStock:    b.CurrentStock,
			TotalCapacity:   b.TotalCapacity,
			StockPercentage: b.StockPercentage(),
			AlertLevel:      level,
		})
	}

	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].StockPercentage < alerts[j].StockPercentage
	})
	return alerts, nil
}

func alertLevel(b domain.Beverage) (AlertLevel, bool) {
	pct := b.StockPercentage()
	switch {
	case b.CurrentStock == 0:
		return AlertEmpty, true
	case pct < 10:
		return AlertCritical, true
	case pct < 20:
		return AlertLow, true
	default:
		return "", false
	}
}

// Replenish raises stock by amount, clamped to capacity.
func (s *InventoryService) Replenish(ctx context.Context, beverageID string, amount float64, note string) error {
	if amount <= 0 {
		return fmt.Errorf("replenish %.2fL: %w", amount, ErrInvalidAmount)
	}

	if note == "" {
		note = fmt.Sprintf("Manual refill of %.2fL", amount)
	}
	entry, err := s.ledger.Refill(ctx, beverageID, amount, note)
	if err != nil {
		return err
	}

	s.sysLog(ctx, domain.LogLevelInfo, fmt.Sprintf("Stock replenished for %s", beverageID), map[string]any{
		"beverageId":    beverageID,
		"amount":        amount,
		"previousStock": entry.PreviousStock,
		"newStock":      entry.NewStock,
		"notes":         note,
	})
	return nil
}

// AdjustStock sets stock to an admin-supplied absolute value. The reason is
// mandatory and lands on the audit entry.
func (s *InventoryService) AdjustStock(ctx context.Context, beverageID string, newStock float64, reason string) error {
	if reason == "" {
		return ErrReasonRequired
	}

	entry, err := s.ledger.Set(ctx, beverageID, newStock, reason)
	if err != nil {
		return err
	}

	s.sysLog(ctx, domain.LogLevelInfo, fmt.Sprintf("Stock adjusted for %s", beverageID), map[string]any{
		"beverageId":    beverageID,
		"previousStock": entry.PreviousStock,
		"newStock":      entry.NewStock,
		"adjustment":    entry.NewStock - entry.PreviousStock,
		"reason":        reason,
	})
	return nil
}

// Report aggregates stock across all beverages.
func (s *InventoryService) Report(ctx context.Context) (InventoryReport, error) {
	beverages, err := s.db.ListBeverages(ctx)
	if err != nil {
		return InventoryReport{}, fmt.Errorf("list beverages: %w", err)
	}

	report := InventoryReport{TotalBeverages: len(beverages)}
	for _, b := range beverages {
		if b.IsActive {
			report.ActiveBeverages++
		}
		report.TotalCapacity += b.TotalCapacity
		report.TotalCurrentStock += b.CurrentStock

		if !b.IsActive {
			continue
		}
		switch level, ok := alertLevel(b); {
		case !ok:
		case level == AlertLow:
			report.LowStockCount++
		case level == AlertCritical:
			report.CriticalStockCount++
		case level == AlertEmpty:
			report.EmptyStockCount++
		}
	}
	if report.TotalCapacity > 0 {
		report.UtilizationRate = report.TotalCurrentStock / report.TotalCapacity * 100
	}
	return report, nil
}

// InventoryLogs reads the audit trail, newest first.
func (s *InventoryService) InventoryLogs(ctx context.Context, beverageID string, limit int) ([]domain.InventoryLogEntry, error) {
	return s.ledger.Logs(ctx, beverageID, limit)
}

// SystemLogs reads the operational audit trail, newest first.
func (s *InventoryService) SystemLogs(ctx context.Context, limit int) ([]domain.SystemLogEntry, error) {
	return s.db.ListSystemLogs(ctx, limit)
}

func (s *InventoryService) sysLog(ctx context.Context, level domain.LogLevel, msg string, logCtx map[string]any) {
	entry := domain.SystemLogEntry{
		Level:     level,
		Message:   msg,
		Context:   logCtx,
		Timestamp: time.Now(),
	}
	if err := s.db.AppendSystemLog(ctx, entry); err != nil {
		s.logger.Warn("system log append failed", "message", msg, "error", err)
	}
}
