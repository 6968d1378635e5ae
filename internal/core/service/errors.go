package service

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrOutOfRange          = errors.New("stock out of range")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInvalidState        = errors.New("invalid order state")
	ErrHardwareFault       = errors.New("hardware fault")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrReasonRequired      = errors.New("adjustment reason required")
	ErrEmptyOrder          = errors.New("order has no items")
	ErrVolumeNotAllowed    = errors.New("volume not allowed for beverage")
	ErrAgeVerification     = errors.New("age verification failed")
	ErrPaymentDeclined     = errors.New("payment declined")
	ErrOrderNumberConflict = errors.New("could not reserve a unique order number")
)
