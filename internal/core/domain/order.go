package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusFailed     OrderStatus = "failed"

	// OrderStatusNotFound is the sentinel returned by status polling for
	// unknown order ids, so pollers racing with order creation never error.
	OrderStatusNotFound OrderStatus = "not_found"
)

// Terminal reports whether no further status transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

type OrderItem struct {
	BeverageID    string
	Name          string // snapshot at order time
	Volume        float64
	PricePerLiter decimal.Decimal // snapshot at order time
	Subtotal      decimal.Decimal
}

type Order struct {
	ID                    string
	OrderNumber           string
	Items                 []OrderItem
	TotalAmount           decimal.Decimal
	Language              string
	AgeVerificationMethod string
	PaymentMethod         string
	Status                OrderStatus
	CreatedAt             time.Time
	CompletedAt           *time.Time
}
