package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/tapstand/kiosk/internal/core/domain"
	"github.com/tapstand/kiosk/internal/metrics"
	"github.com/tapstand/kiosk/internal/port"
)

const (
	// PulsesPerLiter is the YF-S301 flow sensor calibration constant.
	PulsesPerLiter = 450

	// MaxCupVolume bounds a single pour cycle; larger item volumes are
	// split into sequential cycles with a cup swap between them.
	MaxCupVolume = 0.5

	// flowSlack scales the expected pour time into the sensor deadline.
	// A pour that takes longer than this is a stalled sensor or an empty
	// line, not a slow one.
	flowSlack = 4

	valveCloseTimeout = 2 * time.Second
)

type valveState struct {
	sensorPin     int
	open          bool
	pulses        int
	cupsRemaining int
	stuckOpen     bool
}

// ValveStatus is a monitoring snapshot of one valve. It is not
// authoritative for stock and resets on restart.
type ValveStatus struct {
	ValvePin      int  `json:"valvePin"`
	FlowSensorPin int  `json:"flowSensorPin"`
	IsOpen        bool `json:"isOpen"`
	CurrentFlow   int  `json:"currentFlow"`
	CupsRemaining int  `json:"cupsRemaining"`
	StuckOpen     bool `json:"stuckOpen"`
}

// Dispenser turns a (beverage, volume) request into timed valve actuation
// with flow feedback, then commits the decrement to the stock ledger. Each
// valve has its own lock: concurrent dispenses against one beverage queue,
// distinct beverages pour in parallel.
type Dispenser struct {
	hw          port.ValveController
	ledger      *StockLedger
	db          port.DatabaseRepository
	logger      *slog.Logger
	pulsePeriod time.Duration

	mu         sync.Mutex
	valves     map[int]*valveState
	valveLocks map[int]*sync.Mutex
}

func NewDispenser(hw port.ValveController, ledger *StockLedger, db port.DatabaseRepository, logger *slog.Logger, pulsePeriod time.Duration) *Dispenser {
	return &Dispenser{
		hw:          hw,
		ledger:      ledger,
		db:          db,
		logger:      logger,
		pulsePeriod: pulsePeriod,
		valves:      make(map[int]*valveState),
		valveLocks:  make(map[int]*sync.Mutex),
	}
}

// Register makes a valve visible in Status before its first pour.
func (d *Dispenser) Register(valvePin, sensorPin int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.valves[valvePin]; !ok {
		d.valves[valvePin] = &valveState{sensorPin: sensorPin}
	}
}

func (d *Dispenser) state(valvePin, sensorPin int) *valveState {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.valves[valvePin]
	if !ok {
		st = &valveState{sensorPin: sensorPin}
		d.valves[valvePin] = st
	}
	return st
}

func (d *Dispenser) lockFor(valvePin int) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	lock, ok := d.valveLocks[valvePin]
	if !ok {
		lock = &sync.Mutex{}
		d.valveLocks[valvePin] = lock
	}
	return lock
}

// Dispense pours the requested volume for one order item and commits the
// stock decrement. The valve is closed on every exit path.
func (d *Dispenser) Dispense(ctx context.Context, beverageID string, volume float64, orderID string) error {
	bev, err := d.db.GetBeverage(ctx, beverageID)
	if err != nil {
		return fmt.Errorf("get beverage: %w", err)
	}
	if bev == nil {
		return fmt.Errorf("beverage %s: %w", beverageID, ErrNotFound)
	}

	lock := d.lockFor(bev.ValvePin)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the valve lock so the precheck sees current stock.
	bev, err = d.db.GetBeverage(ctx, beverageID)
	if err != nil {
		return fmt.Errorf("get beverage: %w", err)
	}
	if bev == nil {
		return fmt.Errorf("beverage %s: %w", beverageID, ErrNotFound)
	}
	if bev.CurrentStock < volume {
		return fmt.Errorf("beverage %s has %.2fL, need %.2fL: %w",
			beverageID, bev.CurrentStock, volume, ErrInsufficientStock)
	}

	st := d.state(bev.ValvePin, bev.FlowSensorPin)
	cups := splitCups(volume)

	d.mu.Lock()
	st.cupsRemaining = len(cups)
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		st.cupsRemaining = 0
		d.mu.Unlock()
	}()

	start := time.Now()
	for _, cup := range cups {
		if err := d.pour(ctx, st, bev.ValvePin, bev.FlowSensorPin, cup); err != nil {
			metrics.HardwareFaultsTotal.Inc()
			return err
		}
		d.mu.Lock()
		st.cupsRemaining--
		d.mu.Unlock()
	}

	note := fmt.Sprintf("Dispensed %.2fL via hardware", volume)
	if _, err := d.ledger.Dispense(ctx, beverageID, volume, orderID, note); err != nil {
		return fmt.Errorf("commit dispense: %w", err)
	}

	metrics.LitersDispensedTotal.Add(volume)
	metrics.DispenseDurationSeconds.Observe(time.Since(start).Seconds())
	d.logger.Info("dispensed",
		"beverage_id", beverageID, "volume", volume, "order_id", orderID, "cups", len(cups))
	return nil
}

// CupsRemaining reports how many pour cycles are left for the valve, so a
// caller can prompt for container replacement between cycles.
func (d *Dispenser) CupsRemaining(valvePin int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, ok := d.valves[valvePin]; ok {
		return st.cupsRemaining
	}
	return 0
}

// Status snapshots every known valve, ordered by pin.
func (d *Dispenser) Status() []ValveStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]ValveStatus, 0, len(d.valves))
	for pin, st := range d.valves {
		out = append(out, ValveStatus{
			ValvePin:      pin,
			FlowSensorPin: st.sensorPin,
			IsOpen:        st.open,
			CurrentFlow:   st.pulses,
			CupsRemaining: st.cupsRemaining,
			StuckOpen:     st.stuckOpen,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ValvePin < out[j].ValvePin })
	return out
}

// pour runs one Closed -> Open -> Closed cycle for a bounded volume.
func (d *Dispenser) pour(ctx context.Context, st *valveState, valvePin, sensorPin int, volume float64) error {
	target := int(math.Round(volume * PulsesPerLiter))

	budget := time.Duration(target)*d.pulsePeriod*flowSlack + time.Second
	flowCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	if err := d.hw.OpenValve(ctx, valvePin); err != nil {
		return fmt.Errorf("open valve %d: %v: %w", valvePin, err, ErrHardwareFault)
	}
	d.mu.Lock()
	st.open = true
	d.mu.Unlock()
	metrics.ValvesOpen.Inc()
	metrics.DispenseCyclesTotal.Inc()
	d.sysLog(ctx, domain.LogLevelInfo, fmt.Sprintf("Valve opened on pin %d", valvePin),
		map[string]any{"pin": valvePin, "action": "open"})

	flowErr := d.hw.AwaitPulses(flowCtx, sensorPin, target, func(pulses int) {
		d.mu.Lock()
		st.pulses = pulses
		d.mu.Unlock()
	})

	closeErr := d.closeValve(st, valvePin)

	d.mu.Lock()
	st.pulses = 0
	d.mu.Unlock()
	metrics.ValvesOpen.Dec()

	if flowErr != nil {
		return fmt.Errorf("flow sensor %d stalled before %d pulses: %v: %w",
			sensorPin, target, flowErr, ErrHardwareFault)
	}
	if closeErr != nil {
		return fmt.Errorf("valve %d failed to close: %v: %w", valvePin, closeErr, ErrHardwareFault)
	}
	return nil
}

// closeValve always runs, even when the pour context is already dead. One
// retry; after that the valve is flagged stuck open for operators.
func (d *Dispenser) closeValve(st *valveState, valvePin int) error {
	ctx, cancel := context.WithTimeout(context.Background(), valveCloseTimeout)
	defer cancel()

	err := d.hw.CloseValve(ctx, valvePin)
	if err != nil {
		d.logger.Warn("valve close failed, retrying", "pin", valvePin, "error", err)
		err = d.hw.CloseValve(ctx, valvePin)
	}
	if err != nil {
		d.mu.Lock()
		st.stuckOpen = true
		d.mu.Unlock()
		d.sysLog(ctx, domain.LogLevelError, fmt.Sprintf("Valve on pin %d failed to close", valvePin),
			map[string]any{"pin": valvePin, "action": "close", "error": err.Error()})
		return err
	}

	d.mu.Lock()
	st.open = false
	st.stuckOpen = false
	d.mu.Unlock()
	d.sysLog(ctx, domain.LogLevelInfo, fmt.Sprintf("Valve closed on pin %d", valvePin),
		map[string]any{"pin": valvePin, "action": "close"})
	return nil
}

func (d *Dispenser) sysLog(ctx context.Context, level domain.LogLevel, msg string, logCtx map[string]any) {
	entry := domain.SystemLogEntry{
		Level:     level,
		Message:   msg,
		Context:   logCtx,
		Timestamp: time.Now(),
	}
	if err := d.db.AppendSystemLog(ctx, entry); err != nil {
		d.logger.Warn("system log append failed", "message", msg, "error", err)
	}
}

// splitCups breaks an item volume into pour cycles of at most MaxCupVolume.
func splitCups(volume float64) []float64 {
	var cups []float64
	remaining := volume
	for remaining > MaxCupVolume+1e-9 {
		cups = append(cups, MaxCupVolume)
		remaining -= MaxCupVolume
	}
	if remaining > 1e-9 {
		cups = append(cups, remaining)
	}
	return cups
}
