package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tapstand/kiosk/internal/core/domain"
	"github.com/tapstand/kiosk/internal/metrics"
	"github.com/tapstand/kiosk/internal/port"
)

const (
	// Allowed dispense volume range in liters.
	MinVolume = 0.1
	MaxVolume = 1.0

	orderNumberAttempts = 3
)

type OrderItemRequest struct {
	BeverageID string  `json:"beverageId"`
	Volume     float64 `json:"volume"`
}

// OrderService owns the order lifecycle: create as pending, walk items
// sequentially through the dispenser, finalize as completed or failed.
type OrderService struct {
	db        port.DatabaseRepository
	cache     port.CacheRepository
	dispenser *Dispenser
	verifier  port.AgeVerifier
	payments  port.PaymentGateway
	logger    *slog.Logger
}

func NewOrderService(db port.DatabaseRepository, cache port.CacheRepository, dispenser *Dispenser, verifier port.AgeVerifier, payments port.PaymentGateway, logger *slog.Logger) *OrderService {
	return &OrderService{
		db:        db,
		cache:     cache,
		dispenser: dispenser,
		verifier:  verifier,
		payments:  payments,
		logger:    logger,
	}
}

// CreateOrder validates the requested items, snapshots names and prices,
// recomputes the total server-side and persists the order as pending.
func (s *OrderService) CreateOrder(ctx context.Context, items []OrderItemRequest, language, ageMethod, payMethod string) (string, error) {
	if len(items) == 0 {
		return "", ErrEmptyOrder
	}

	orderItems := make([]domain.OrderItem, 0, len(items))
	total := decimal.Zero
	requiresAge := false

	for _, req := range items {
		bev, err := s.db.GetBeverage(ctx, req.BeverageID)
		if err != nil {
			return "", fmt.Errorf("get beverage: %w", err)
		}
		if bev == nil || !bev.IsActive {
			return "", fmt.Errorf("beverage %s: %w", req.BeverageID, ErrNotFound)
		}
		if err := validateVolume(bev, req.Volume); err != nil {
			return "", err
		}
		if bev.RequiresAgeVerification {
			requiresAge = true
		}

		subtotal := bev.PricePerLiter.Mul(decimal.NewFromFloat(req.Volume)).Round(2)
		orderItems = append(orderItems, domain.OrderItem{
			BeverageID:    bev.ID,
			Name:          bev.Name,
			Volume:        req.Volume,
			PricePerLiter: bev.PricePerLiter,
			Subtotal:      subtotal,
		})
		total = total.Add(subtotal)
	}

	if requiresAge {
		ok, err := s.verifier.Verify(ctx, ageMethod)
		if err != nil {
			return "", fmt.Errorf("age verification: %w", err)
		}
		if !ok {
			return "", ErrAgeVerification
		}
	}

	number, err := s.reserveOrderNumber(ctx)
	if err != nil {
		return "", err
	}

	order := domain.Order{
		ID:                    uuid.New().String(),
		OrderNumber:           number,
		Items:                 orderItems,
		TotalAmount:           total,
		Language:              language,
		AgeVerificationMethod: ageMethod,
		PaymentMethod:         payMethod,
		Status:                domain.OrderStatusPending,
		CreatedAt:             time.Now(),
	}
	if err := s.db.AppendOrder(ctx, order); err != nil {
		if relErr := s.cache.ReleaseOrderNumber(ctx, number); relErr != nil {
			s.logger.Warn("order number release failed", "number", number, "error", relErr)
		}
		return "", fmt.Errorf("append order: %w", err)
	}

	s.sysLog(ctx, domain.LogLevelInfo, fmt.Sprintf("Order %s created", number), map[string]any{
		"orderId":  order.ID,
		"items":    len(orderItems),
		"total":    total.String(),
		"language": language,
	})
	metrics.OrdersCreatedTotal.Inc()
	return order.ID, nil
}

// ProcessOrder dispenses the order's items strictly in submission order.
// The first failure aborts the rest; earlier items are not rolled back, the
// audit trail keeps one entry per dispensed item for reconciliation.
func (s *OrderService) ProcessOrder(ctx context.Context, orderID string) error {
	order, err := s.db.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	if order.Status != domain.OrderStatusPending {
		return fmt.Errorf("order %s is %s: %w", orderID, order.Status, ErrInvalidState)
	}

	if err := s.db.SetOrderStatus(ctx, orderID, domain.OrderStatusProcessing, nil); err != nil {
		return fmt.Errorf("set status: %w", err)
	}

	if order.PaymentMethod != "" {
		paid, err := s.payments.Charge(ctx, orderID, order.TotalAmount, order.PaymentMethod)
		if err == nil && !paid {
			err = ErrPaymentDeclined
		}
		if err != nil {
			return s.fail(ctx, order, -1, err)
		}
	}

	for i, item := range order.Items {
		if err := s.dispenser.Dispense(ctx, item.BeverageID, item.Volume, orderID); err != nil {
			return s.fail(ctx, order, i, err)
		}
		s.logger.Info("item dispensed",
			"order_id", orderID, "beverage_id", item.BeverageID, "volume", item.Volume)
	}

	now := time.Now()
	if err := s.db.SetOrderStatus(ctx, orderID, domain.OrderStatusCompleted, &now); err != nil {
		return fmt.Errorf("set status: %w", err)
	}

	s.sysLog(ctx, domain.LogLevelInfo, fmt.Sprintf("Order %s completed", order.OrderNumber), map[string]any{
		"orderId": orderID,
		"items":   len(order.Items),
		"total":   order.TotalAmount.String(),
	})
	metrics.OrdersCompletedTotal.Inc()
	return nil
}

// OrderStatus returns the sentinel not_found status rather than an error
// for unknown ids; status polling must tolerate races with creation.
func (s *OrderService) OrderStatus(ctx context.Context, orderID string) (domain.OrderStatus, error) {
	order, err := s.db.GetOrder(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return domain.OrderStatusNotFound, nil
	}
	return order.Status, nil
}

// ListOrders returns recent orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	return s.db.ListOrders(ctx, limit)
}

func (s *OrderService) fail(ctx context.Context, order *domain.Order, itemIndex int, cause error) error {
	if err := s.db.SetOrderStatus(ctx, order.ID, domain.OrderStatusFailed, nil); err != nil {
		s.logger.Error("failed-status write failed", "order_id", order.ID, "error", err)
	}

	s.sysLog(ctx, domain.LogLevelError, fmt.Sprintf("Order %s failed", order.OrderNumber), map[string]any{
		"orderId":   order.ID,
		"itemIndex": itemIndex,
		"error":     cause.Error(),
	})
	metrics.OrdersFailedTotal.Inc()

	if itemIndex >= 0 {
		return fmt.Errorf("dispense item %d (%s): %w", itemIndex, order.Items[itemIndex].BeverageID, cause)
	}
	return fmt.Errorf("payment for order %s: %w", order.ID, cause)
}

func (s *OrderService) reserveOrderNumber(ctx context.Context) (string, error) {
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		number := generateOrderNumber()
		ok, err := s.cache.ReserveOrderNumber(ctx, number)
		if err != nil {
			return "", fmt.Errorf("reserve order number: %w", err)
		}
		if ok {
			return number, nil
		}
		s.logger.Warn("order number collision, regenerating", "number", number, "attempt", attempt+1)
	}
	return "", ErrOrderNumberConflict
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// generateOrderNumber composes a millisecond timestamp with a random
// suffix; collisions are possible but rare enough that the bounded
// reservation retry absorbs them.
func generateOrderNumber() string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatInt(time.Now().UnixMilli(), 36))
	for i := 0; i < 6; i++ {
		sb.WriteByte(base36[rand.Intn(len(base36))])
	}
	return strings.ToUpper(sb.String())
}

func validateVolume(bev *domain.Beverage, volume float64) error {
	if volume < MinVolume || volume > MaxVolume {
		return fmt.Errorf("volume %.2fL outside [%.1f, %.1f]: %w", volume, MinVolume, MaxVolume, ErrVolumeNotAllowed)
	}
	if len(bev.VolumeOptions) == 0 {
		return nil
	}
	for _, opt := range bev.VolumeOptions {
		if volumeEqual(volume, opt) {
			return nil
		}
	}
	return fmt.Errorf("volume %.2fL not offered for %s: %w", volume, bev.ID, ErrVolumeNotAllowed)
}

func volumeEqual(a, b float64) bool {
	const eps = 1e-9
	return a-b < eps && b-a < eps
}

func (s *OrderService) sysLog(ctx context.Context, level domain.LogLevel, msg string, logCtx map[string]any) {
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
