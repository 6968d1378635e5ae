package port

import "context"

type CacheRepository interface {
	// ReserveOrderNumber claims an order number, returns false if some
	// other order already holds it.
	ReserveOrderNumber(ctx context.Context, number string) (bool, error)

	// ReleaseOrderNumber frees a reservation whose order was never
	// persisted.
	ReleaseOrderNumber(ctx context.Context, number string) error
}
