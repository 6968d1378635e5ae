package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tapstand/kiosk/internal/core/domain"
)

// MySQLAdapter persists beverages, orders and both audit logs.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

const beverageColumns = `id, name, price_per_liter, volume_options, valve_pin, flow_sensor_pin,
	total_capacity, current_stock, requires_age_verification, is_active, created_at, updated_at`

func (m *MySQLAdapter) GetBeverage(ctx context.Context, id string) (*domain.Beverage, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT `+beverageColumns+`
		FROM beverages WHERE id = ?`, id)

	bev, err := scanBeverage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query beverage: %w", err)
	}
	return bev, nil
}

func (m *MySQLAdapter) ListBeverages(ctx context.Context) ([]domain.Beverage, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT `+beverageColumns+`
		FROM beverages ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query beverages: %w", err)
	}
	defer rows.Close()

	var beverages []domain.Beverage
	for rows.Next() {
		bev, err := scanBeverage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan beverage: %w", err)
		}
		beverages = append(beverages, *bev)
	}
	return beverages, rows.Err()
}

func (m *MySQLAdapter) SetBeverageStock(ctx context.Context, id string, stock float64) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE beverages SET current_stock = ?, updated_at = NOW()
		WHERE id = ?`, stock, id)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Also zero when the value did not change; confirm existence.
		var exists int
		if err := m.db.QueryRowContext(ctx, `SELECT 1 FROM beverages WHERE id = ?`, id).Scan(&exists); err != nil {
			return fmt.Errorf("beverage %s not found", id)
		}
	}
	return nil
}

func (m *MySQLAdapter) AppendInventoryLog(ctx context.Context, entry domain.InventoryLogEntry) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO inventory_logs (beverage_id, change_type, amount, previous_stock, new_stock, order_id, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.BeverageID, entry.Change, entry.Amount, entry.PreviousStock, entry.NewStock,
		nullString(entry.OrderID), nullString(entry.Note), entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert inventory log: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListInventoryLogs(ctx context.Context, beverageID string, limit int) ([]domain.InventoryLogEntry, error) {
	query := `
		SELECT id, beverage_id, change_type, amount, previous_stock, new_stock, order_id, notes, created_at
		FROM inventory_logs`
	args := []any{}
	if beverageID != "" {
		query += ` WHERE beverage_id = ?`
		args = append(args, beverageID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query inventory logs: %w", err)
	}
	defer rows.Close()

	var entries []domain.InventoryLogEntry
	for rows.Next() {
		var e domain.InventoryLogEntry
		var orderID, notes sql.NullString
		if err := rows.Scan(&e.ID, &e.BeverageID, &e.Change, &e.Amount, &e.PreviousStock,
			&e.NewStock, &orderID, &notes, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan inventory log: %w", err)
		}
		e.OrderID = orderID.String
		e.Note = notes.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (m *MySQLAdapter) AppendOrder(ctx context.Context, order domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, items, total_amount, language,
			age_verification_method, payment_method, status, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		order.ID, order.OrderNumber, items, order.TotalAmount, order.Language,
		nullString(order.AgeVerificationMethod), nullString(order.PaymentMethod),
		order.Status, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT id, order_number, items, total_amount, language,
			age_verification_method, payment_method, status, created_at, completed_at
		FROM orders WHERE id = ?`, id)

	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return order, nil
}

func (m *MySQLAdapter) SetOrderStatus(ctx context.Context, id string, status domain.OrderStatus, completedAt *time.Time) error {
	var completed sql.NullTime
	if completedAt != nil {
		completed = sql.NullTime{Time: *completedAt, Valid: true}
	}

	result, err := m.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, completed_at = ? WHERE id = ?`,
		status, completed, id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		var exists int
		if err := m.db.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id = ?`, id).Scan(&exists); err != nil {
			return fmt.Errorf("order %s not found", id)
		}
	}
	return nil
}

func (m *MySQLAdapter) ListOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, order_number, items, total_amount, language,
			age_verification_method, payment_method, status, created_at, completed_at
		FROM orders ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

func (m *MySQLAdapter) AppendSystemLog(ctx context.Context, entry domain.SystemLogEntry) error {
	var logCtx any
	if entry.Context != nil {
		b, err := json.Marshal(entry.Context)
		if err != nil {
			return fmt.Errorf("marshal context: %w", err)
		}
		logCtx = b
	}

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO system_logs (level, message, context, created_at)
		VALUES (?, ?, ?, ?)`,
		entry.Level, entry.Message, logCtx, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert system log: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListSystemLogs(ctx context.Context, limit int) ([]domain.SystemLogEntry, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, level, message, context, created_at
		FROM system_logs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query system logs: %w", err)
	}
	defer rows.Close()

	var entries []domain.SystemLogEntry
	for rows.Next() {
		var e domain.SystemLogEntry
		var logCtx []byte
		if err := rows.Scan(&e.ID, &e.Level, &e.Message, &logCtx, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan system log: %w", err)
		}
		if len(logCtx) > 0 {
			if err := json.Unmarshal(logCtx, &e.Context); err != nil {
				return nil, fmt.Errorf("unmarshal context: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBeverage(row rowScanner) (*domain.Beverage, error) {
	var bev domain.Beverage
	var volumeOptions []byte
	err := row.Scan(&bev.ID, &bev.Name, &bev.PricePerLiter, &volumeOptions,
		&bev.ValvePin, &bev.FlowSensorPin, &bev.TotalCapacity, &bev.CurrentStock,
		&bev.RequiresAgeVerification, &bev.IsActive, &bev.CreatedAt, &bev.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(volumeOptions) > 0 {
		if err := json.Unmarshal(volumeOptions, &bev.VolumeOptions); err != nil {
			return nil, fmt.Errorf("unmarshal volume options: %w", err)
		}
	}
	return &bev, nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var items []byte
	var ageMethod, payMethod sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(&order.ID, &order.OrderNumber, &items, &order.TotalAmount,
		&order.Language, &ageMethod, &payMethod, &order.Status, &order.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	order.AgeVerificationMethod = ageMethod.String
	order.PaymentMethod = payMethod.String
	if completedAt.Valid {
		order.CompletedAt = &completedAt.Time
	}
	return &order, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
