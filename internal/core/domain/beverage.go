package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Beverage struct {
	ID                      string
	Name                    string
	PricePerLiter           decimal.Decimal
	VolumeOptions           []float64
	ValvePin                int
	FlowSensorPin           int
	TotalCapacity           float64
	CurrentStock            float64
	RequiresAgeVerification bool
	IsActive                bool
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// StockPercentage returns remaining stock as a percentage of capacity.
func (b Beverage) StockPercentage() float64 {
	if b.TotalCapacity <= 0 {
		return 0
	}
	return b.CurrentStock / b.TotalCapacity * 100
}
