package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// AgeVerifier is an external collaborator (camera/ID scanner bridge).
type AgeVerifier interface {
	Verify(ctx context.Context, method string) (bool, error)
}

// PaymentGateway is an external collaborator; Charge reports success.
type PaymentGateway interface {
	Charge(ctx context.Context, orderID string, amount decimal.Decimal, method string) (bool, error)
}
