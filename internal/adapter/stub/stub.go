// Package stub holds the mocked external collaborators the kiosk consumes
// as-is: age verification answers true, payment always succeeds. Real
// integrations replace these at wiring time.
package stub

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
)

type AgeVerifier struct{}

func (AgeVerifier) Verify(ctx context.Context, method string) (bool, error) {
	return true, nil
}

type PaymentGateway struct {
	Logger *slog.Logger
}

func (g PaymentGateway) Charge(ctx context.Context, orderID string, amount decimal.Decimal, method string) (bool, error) {
	if g.Logger != nil {
		g.Logger.Info("payment charged", "order_id", orderID, "amount", amount.String(), "method", method)
	}
	return true, nil
}
