package port

import (
	"context"
	"time"

	"github.com/tapstand/kiosk/internal/core/domain"
)

type DatabaseRepository interface {
	// GetBeverage returns nil, nil when the beverage does not exist.
	GetBeverage(ctx context.Context, id string) (*domain.Beverage, error)

	// ListBeverages returns every beverage record, active or not.
	ListBeverages(ctx context.Context) ([]domain.Beverage, error)

	// SetBeverageStock overwrites the authoritative stock value.
	SetBeverageStock(ctx context.Context, id string, stock float64) error

	// AppendInventoryLog appends one immutable audit entry.
	AppendInventoryLog(ctx context.Context, entry domain.InventoryLogEntry) error

	// ListInventoryLogs returns recent entries, newest first. An empty
	// beverageID means all beverages.
	ListInventoryLogs(ctx context.Context, beverageID string, limit int) ([]domain.InventoryLogEntry, error)

	// AppendOrder persists a new order. The order number carries a unique
	// constraint; a duplicate insert fails.
	AppendOrder(ctx context.Context, order domain.Order) error

	// GetOrder returns nil, nil when the order does not exist.
	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	// SetOrderStatus updates the lifecycle status; completedAt is set only
	// for terminal transitions that carry one.
	SetOrderStatus(ctx context.Context, id string, status domain.OrderStatus, completedAt *time.Time) error

	// ListOrders returns recent orders, newest first.
	ListOrders(ctx context.Context, limit int) ([]domain.Order, error)

	// AppendSystemLog appends one operational audit entry.
	AppendSystemLog(ctx context.Context, entry domain.SystemLogEntry) error

	// ListSystemLogs returns recent entries, newest first.
	ListSystemLogs(ctx context.Context, limit int) ([]domain.SystemLogEntry, error)
}
