package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tapstand/kiosk/internal/core/domain"
)

type allowVerifier struct{}

func (allowVerifier) Verify(ctx context.Context, method string) (bool, error) { return true, nil }

type denyVerifier struct{}

func (denyVerifier) Verify(ctx context.Context, method string) (bool, error) { return false, nil }

type acceptPayments struct{ charges int }

func (p *acceptPayments) Charge(ctx context.Context, orderID string, amount decimal.Decimal, method string) (bool, error) {
	p.charges++
	return true, nil
}

type declinePayments struct{}

func (declinePayments) Charge(ctx context.Context, orderID string, amount decimal.Decimal, method string) (bool, error) {
	return false, nil
}

func newTestOrderService(store *memStore, cache *mockCache, valve *mockValve) *OrderService {
	ledger := NewStockLedger(store, testLogger())
	dispenser := NewDispenser(valve, ledger, store, testLogger(), time.Microsecond)
	return NewOrderService(store, cache, dispenser, allowVerifier{}, &acceptPayments{}, testLogger())
}

func TestCreateOrder_ComputesTotalServerSide(t *testing.T) {
	store := newMemStore(testBeverage("b1", 30.0, 30.0, 17))
	svc := newTestOrderService(store, newMockCache(), newMockValve())

	items := []OrderItemRequest{
		{BeverageID: "b1", Volume: 0.5},
		{BeverageID: "b1", Volume: 0.3},
	}
	orderID, err := svc.CreateOrder(context.Background(), items, "en", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order, _ := store.GetOrder(context.Background(), orderID)
	if order == nil {
		t.Fatal("order not persisted")
	}
	if order.Status != domain.OrderStatusPending {
		t.Errorf("expected pending status, got %s", order.Status)
	}
	if order.OrderNumber == "" {
		t.Error("expected non-empty order number")
	}
	// 2.50/L: 0.5L = 1.25, 0.3L = 0.75
	if !order.TotalAmount.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected total 2.00, got %s", order.TotalAmount)
	}
	if order.Items[0].Name != "b1" || !order.Items[0].PricePerLiter.Equal(decimal.NewFromFloat(2.50)) {
		t.Errorf("expected price/name snapshot, got %+v", order.Items[0])
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	store := newMemStore(testBeverage("b1", 30.0, 30.0, 17))
	svc := newTestOrderService(store, newMockCache(), newMockValve())
	ctx := context.Background()

	if _, err := svc.CreateOrder(ctx, nil, "en", "", ""); !errors.Is(err, ErrEmptyOrder) {
		t.Errorf("expected ErrEmptyOrder, got: %v", err)
	}

	_, err := svc.CreateOrder(ctx, []OrderItemRequest{{BeverageID: "ghost", Volume: 0.5}}, "en", "", "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}

	for _, v := range []float64{0.05, 1.5, 0.2} {
		_, err := svc.CreateOrder(ctx, []OrderItemRequest{{BeverageID: "b1", Volume: v}}, "en", "", "")
		if !errors.Is(err, ErrVolumeNotAllowed) {
			t.Errorf("volume %v: expected ErrVolumeNotAllowed, got: %v", v, err)
		}
	}
}

func TestCreateOrder_InactiveBeverage(t *testing.T) {
	off := testBeverage("off", 30.0, 30.0, 17)
	off.IsActive = false
	svc := newTestOrderService(newMemStore(off), newMockCache(), newMockValve())

	_, err := svc.CreateOrder(context.Background(), []OrderItemRequest{{BeverageID: "off", Volume: 0.5}}, "en", "", "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestCreateOrder_AgeVerification(t *testing.T) {
	beer := testBeverage("beer", 30.0, 30.0, 17)
	beer.RequiresAgeVerification = true
	store := newMemStore(beer)

	ledger := NewStockLedger(store, testLogger())
	dispenser := NewDispenser(newMockValve(), ledger, store, testLogger(), time.Microsecond)
	svc := NewOrderService(store, newMockCache(), dispenser, denyVerifier{}, &acceptPayments{}, testLogger())

	_, err := svc.CreateOrder(context.Background(), []OrderItemRequest{{BeverageID: "beer", Volume: 0.5}}, "en", "id_scan", "")
	if !errors.Is(err, ErrAgeVerification) {
		t.Errorf("expected ErrAgeVerification, got: %v", err)
	}
}

func TestCreateOrder_OrderNumberRetryBounded(t *testing.T) {
	store := newMemStore(testBeverage("b1", 30.0, 30.0, 17))
	items := []OrderItemRequest{{BeverageID: "b1", Volume: 0.5}}

	cache := newMockCache()
	cache.refuse = orderNumberAttempts - 1
	svc := newTestOrderService(store, cache, newMockValve())
	if _, err := svc.CreateOrder(context.Background(), items, "en", "", ""); err != nil {
		t.Errorf("expected success after regeneration, got: %v", err)
	}

	cache = newMockCache()
	cache.refuse = orderNumberAttempts
	svc = newTestOrderService(store, cache, newMockValve())
	if _, err := svc.CreateOrder(context.Background(), items, "en", "", ""); !errors.Is(err, ErrOrderNumberConflict) {
		t.Errorf("expected ErrOrderNumberConflict, got: %v", err)
	}
}

func TestProcessOrder_Completes(t *testing.T) {
	store := newMemStore(testBeverage("b1", 30.0, 30.0, 17))
	svc := newTestOrderService(store, newMockCache(), newMockValve())
	ctx := context.Background()

	orderID, err := svc.CreateOrder(ctx, []OrderItemRequest{{BeverageID: "b1", Volume: 0.5}}, "en", "", "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := svc.ProcessOrder(ctx, orderID); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	order, _ := store.GetOrder(ctx, orderID)
	if order.Status != domain.OrderStatusCompleted {
		t.Errorf("expected completed, got %s", order.Status)
	}
	if order.CompletedAt == nil {
		t.Error("expected completion timestamp")
	}
	if got := store.stock("b1"); got != 29.5 {
		t.Errorf("expected stock 29.5, got %v", got)
	}

	logs, _ := store.ListInventoryLogs(ctx, "b1", 10)
	if len(logs) != 1 || logs[0].Change != domain.ChangeDispense || logs[0].Amount != 0.5 {
		t.Errorf("expected one dispense entry of 0.5, got %+v", logs)
	}
	if logs[0].PreviousStock != 30.0 || logs[0].NewStock != 29.5 {
		t.Errorf("unexpected entry bounds: %+v", logs[0])
	}
}

func TestProcessOrder_ItemsDispenseInSubmissionOrder(t *testing.T) {
	store := newMemStore(
		testBeverage("b1", 30.0, 30.0, 17),
		testBeverage("b2", 30.0, 30.0, 18),
	)
	svc := newTestOrderService(store, newMockCache(), newMockValve())
	ctx := context.Background()

	orderID, err := svc.CreateOrder(ctx, []OrderItemRequest{
		{BeverageID: "b2", Volume: 0.3},
		{BeverageID: "b1", Volume: 0.5},
	}, "en", "", "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := svc.ProcessOrder(ctx, orderID); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	store.mu.Lock()
	first, second := store.invLogs[0].BeverageID, store.invLogs[1].BeverageID
	store.mu.Unlock()
	if first != "b2" || second != "b1" {
		t.Errorf("items dispensed out of order: %s then %s", first, second)
	}
}

func TestProcessOrder_NonPendingRejected(t *testing.T) {
	store := newMemStore(testBeverage("b1", 30.0, 30.0, 17))
	valve := newMockValve()
	svc := newTestOrderService(store, newMockCache(), valve)
	ctx := context.Background()

	orderID, _ := svc.CreateOrder(ctx, []OrderItemRequest{{BeverageID: "b1", Volume: 0.5}}, "en", "", "")
	if err := svc.ProcessOrder(ctx, orderID); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	pours := valve.pourCount()

	err := svc.ProcessOrder(ctx, orderID)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got: %v", err)
	}
	if valve.pourCount() != pours {
		t.Error("dispensing happened on a terminal order")
	}

	order, _ := store.GetOrder(ctx, orderID)
	if order.Status != domain.OrderStatusCompleted {
		t.Errorf("terminal status changed to %s", order.Status)
	}
}

func TestProcessOrder_UnknownOrder(t *testing.T) {
	svc := newTestOrderService(newMemStore(), newMockCache(), newMockValve())

	if err := svc.ProcessOrder(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestProcessOrder_InsufficientStockFailsOrder(t *testing.T) {
	store := newMemStore(testBeverage("b2", 0.05, 30.0, 17))
	svc := newTestOrderService(store, newMockCache(), newMockValve())
	ctx := context.Background()

	orderID, err := svc.CreateOrder(ctx, []OrderItemRequest{{BeverageID: "b2", Volume: 0.5}}, "en", "", "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	err = svc.ProcessOrder(ctx, orderID)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got: %v", err)
	}

	order, _ := store.GetOrder(ctx, orderID)
	if order.Status != domain.OrderStatusFailed {
		t.Errorf("expected failed, got %s", order.Status)
	}
	if got := store.stock("b2"); got != 0.05 {
		t.Errorf("stock changed: %v", got)
	}
}

func TestProcessOrder_PartialFailureKeepsEarlierItems(t *testing.T) {
	store := newMemStore(
		testBeverage("b1", 30.0, 30.0, 17),
		testBeverage("b2", 0.05, 30.0, 18),
	)
	svc := newTestOrderService(store, newMockCache(), newMockValve())
	ctx := context.Background()

	orderID, _ := svc.CreateOrder(ctx, []OrderItemRequest{
		{BeverageID: "b1", Volume: 0.5},
		{BeverageID: "b2", Volume: 0.5},
	}, "en", "", "")

	if err := svc.ProcessOrder(ctx, orderID); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got: %v", err)
	}

	order, _ := store.GetOrder(ctx, orderID)
	if order.Status != domain.OrderStatusFailed {
		t.Errorf("expected failed, got %s", order.Status)
	}
	// First item stays dispensed; no compensation.
	if got := store.stock("b1"); got != 29.5 {
		t.Errorf("expected b1 stock 29.5, got %v", got)
	}
	if got := store.stock("b2"); got != 0.05 {
		t.Errorf("expected b2 stock unchanged, got %v", got)
	}
	if n := store.inventoryLogCount("b1"); n != 1 {
		t.Errorf("expected one entry for dispensed item, got %d", n)
	}
	if n := store.inventoryLogCount("b2"); n != 0 {
		t.Errorf("expected no entry for failed item, got %d", n)
	}
}

func TestProcessOrder_PaymentDeclined(t *testing.T) {
	store := newMemStore(testBeverage("b1", 30.0, 30.0, 17))
	valve := newMockValve()
	ledger := NewStockLedger(store, testLogger())
	dispenser := NewDispenser(valve, ledger, store, testLogger(), time.Microsecond)
	svc := NewOrderService(store, newMockCache(), dispenser, allowVerifier{}, declinePayments{}, testLogger())
	ctx := context.Background()

	orderID, _ := svc.CreateOrder(ctx, []OrderItemRequest{{BeverageID: "b1", Volume: 0.5}}, "en", "", "card")

	if err := svc.ProcessOrder(ctx, orderID); !errors.Is(err, ErrPaymentDeclined) {
		t.Fatalf("expected ErrPaymentDeclined, got: %v", err)
	}
	if valve.pourCount() != 0 {
		t.Error("dispensed despite declined payment")
	}

	order, _ := store.GetOrder(ctx, orderID)
	if order.Status != domain.OrderStatusFailed {
		t.Errorf("expected failed, got %s", order.Status)
	}
}

func TestOrderStatus(t *testing.T) {
	store := newMemStore(testBeverage("b1", 30.0, 30.0, 17))
	svc := newTestOrderService(store, newMockCache(), newMockValve())
	ctx := context.Background()

	status, err := svc.OrderStatus(ctx, "unknown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != domain.OrderStatusNotFound {
		t.Errorf("expected not_found sentinel, got %s", status)
	}

	orderID, _ := svc.CreateOrder(ctx, []OrderItemRequest{{BeverageID: "b1", Volume: 0.5}}, "en", "", "")
	status, err = svc.OrderStatus(ctx, orderID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != domain.OrderStatusPending {
		t.Errorf("expected pending, got %s", status)
	}
}

func TestGenerateOrderNumber(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		n := generateOrderNumber()
		if n == "" {
			t.Fatal("empty order number")
		}
		seen[n] = true
	}
	if len(seen) < 100 {
		t.Errorf("expected 100 distinct numbers, got %d", len(seen))
	}
}
