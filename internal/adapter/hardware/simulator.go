package hardware

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Simulator stands in for the GPIO valve/flow-sensor bridge. Flow is
// emulated as one sensor pulse per tick, matching the cadence the real
// bridge reports.
type Simulator struct {
	pulsePeriod time.Duration
	logger      *slog.Logger

	mu   sync.Mutex
	open map[int]bool
}

func NewSimulator(pulsePeriod time.Duration, logger *slog.Logger) *Simulator {
	return &Simulator{
		pulsePeriod: pulsePeriod,
		logger:      logger,
		open:        make(map[int]bool),
	}
}

func (s *Simulator) OpenValve(ctx context.Context, pin int) error {
	s.mu.Lock()
	s.open[pin] = true
	s.mu.Unlock()
	s.logger.Info("valve opened", "pin", pin)
	return nil
}

func (s *Simulator) CloseValve(ctx context.Context, pin int) error {
	s.mu.Lock()
	s.open[pin] = false
	s.mu.Unlock()
	s.logger.Info("valve closed", "pin", pin)
	return nil
}

// IsOpen reports the simulated valve line level.
func (s *Simulator) IsOpen(pin int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open[pin]
}

func (s *Simulator) AwaitPulses(ctx context.Context, sensorPin, target int, progress func(pulses int)) error {
	ticker := time.NewTicker(s.pulsePeriod)
	defer ticker.Stop()

	pulses := 0
	for pulses < target {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			pulses++
			if progress != nil {
				progress(pulses)
			}
		}
	}
	return nil
}
