package port

import "context"

// ValveController is the capability boundary to the dispensing hardware.
// A real GPIO driver and the shipped simulator both satisfy it.
type ValveController interface {
	// OpenValve energizes the valve on the given pin.
	OpenValve(ctx context.Context, pin int) error

	// CloseValve de-energizes the valve on the given pin.
	CloseValve(ctx context.Context, pin int) error

	// AwaitPulses blocks until the flow sensor on sensorPin has counted
	// target pulses, invoking progress after each pulse. It returns the
	// context error if cancelled or past its deadline before the target.
	AwaitPulses(ctx context.Context, sensorPin, target int, progress func(pulses int)) error
}
