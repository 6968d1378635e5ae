package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tapstand/kiosk/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func approx(a, b float64) bool {
	const eps = 1e-9
	return a-b < eps && b-a < eps
}

func testBeverage(id string, stock, capacity float64, valvePin int) domain.Beverage {
	return domain.Beverage{
		ID:            id,
		Name:          id,
		PricePerLiter: decimal.NewFromFloat(2.50),
		VolumeOptions: []float64{0.1, 0.3, 0.5, 1.0},
		ValvePin:      valvePin,
		FlowSensorPin: valvePin + 10,
		TotalCapacity: capacity,
		CurrentStock:  stock,
		IsActive:      true,
	}
}

// Mock DatabaseRepository
type memStore struct {
	mu        sync.Mutex
	beverages map[string]*domain.Beverage
	orders    map[string]*domain.Order
	invLogs   []domain.InventoryLogEntry
	sysLogs   []domain.SystemLogEntry

	stockErr error // returned by SetBeverageStock when set
	logErr   error // returned by AppendInventoryLog when set
}

func newMemStore(beverages ...domain.Beverage) *memStore {
	s := &memStore{
		beverages: make(map[string]*domain.Beverage),
		orders:    make(map[string]*domain.Order),
	}
	for i := range beverages {
		b := beverages[i]
		s.beverages[b.ID] = &b
	}
	return s
}

func (s *memStore) GetBeverage(ctx context.Context, id string) (*domain.Beverage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.beverages[id]
	if !ok {
		return nil, nil
	}
	copied := *b
	return &copied, nil
}

func (s *memStore) ListBeverages(ctx context.Context) ([]domain.Beverage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Beverage, 0, len(s.beverages))
	for _, b := range s.beverages {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) SetBeverageStock(ctx context.Context, id string, stock float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stockErr != nil {
		return s.stockErr
	}
	if b, ok := s.beverages[id]; ok {
		b.CurrentStock = stock
	}
	return nil
}

func (s *memStore) AppendInventoryLog(ctx context.Context, entry domain.InventoryLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.logErr != nil {
		return s.logErr
	}
	entry.ID = int64(len(s.invLogs) + 1)
	s.invLogs = append(s.invLogs, entry)
	return nil
}

func (s *memStore) ListInventoryLogs(ctx context.Context, beverageID string, limit int) ([]domain.InventoryLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.InventoryLogEntry
	for i := len(s.invLogs) - 1; i >= 0 && len(out) < limit; i-- {
		if beverageID == "" || s.invLogs[i].BeverageID == beverageID {
			out = append(out, s.invLogs[i])
		}
	}
	return out, nil
}

func (s *memStore) AppendOrder(ctx context.Context, order domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := order
	s.orders[order.ID] = &copied
	return nil
}

func (s *memStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	copied := *o
	return &copied, nil
}

func (s *memStore) SetOrderStatus(ctx context.Context, id string, status domain.OrderStatus, completedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[id]; ok {
		o.Status = status
		o.CompletedAt = completedAt
	}
	return nil
}

func (s *memStore) ListOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) AppendSystemLog(ctx context.Context, entry domain.SystemLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = int64(len(s.sysLogs) + 1)
	s.sysLogs = append(s.sysLogs, entry)
	return nil
}

func (s *memStore) ListSystemLogs(ctx context.Context, limit int) ([]domain.SystemLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SystemLogEntry
	for i := len(s.sysLogs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.sysLogs[i])
	}
	return out, nil
}

func (s *memStore) stock(id string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beverages[id].CurrentStock
}

func (s *memStore) inventoryLogCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.invLogs {
		if e.BeverageID == id {
			n++
		}
	}
	return n
}

// Mock CacheRepository
type mockCache struct {
	mu       sync.Mutex
	reserved map[string]bool
	refuse   int // refuse this many reservations before accepting
}

func newMockCache() *mockCache {
	return &mockCache{reserved: make(map[string]bool)}
}

func (c *mockCache) ReserveOrderNumber(ctx context.Context, number string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refuse > 0 {
		c.refuse--
		return false, nil
	}
	if c.reserved[number] {
		return false, nil
	}
	c.reserved[number] = true
	return true, nil
}

func (c *mockCache) ReleaseOrderNumber(ctx context.Context, number string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.reserved, number)
	return nil
}

// Mock ValveController
type mockValve struct {
	mu            sync.Mutex
	open          map[int]bool
	opens         int
	closes        int
	pours         int
	active        int
	peakActive    int
	pourDelay     time.Duration
	failOpen      error
	closeFailures int // fail this many CloseValve calls before succeeding
	stall         bool
}

func newMockValve() *mockValve {
	return &mockValve{open: make(map[int]bool)}
}

func (v *mockValve) OpenValve(ctx context.Context, pin int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.failOpen != nil {
		return v.failOpen
	}
	v.open[pin] = true
	v.opens++
	return nil
}

func (v *mockValve) CloseValve(ctx context.Context, pin int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closeFailures > 0 {
		v.closeFailures--
		return context.DeadlineExceeded
	}
	v.open[pin] = false
	v.closes++
	return nil
}

func (v *mockValve) AwaitPulses(ctx context.Context, sensorPin, target int, progress func(int)) error {
	v.mu.Lock()
	stall := v.stall
	delay := v.pourDelay
	v.pours++
	v.active++
	if v.active > v.peakActive {
		v.peakActive = v.active
	}
	v.mu.Unlock()
	defer func() {
		v.mu.Lock()
		v.active--
		v.mu.Unlock()
	}()

	if stall {
		<-ctx.Done()
		return ctx.Err()
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	for p := 1; p <= target; p++ {
		if progress != nil {
			progress(p)
		}
	}
	return nil
}

func (v *mockValve) isOpen(pin int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.open[pin]
}

func (v *mockValve) pourCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pours
}
