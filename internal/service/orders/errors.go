package orders

import "errors"

var (
	ErrReceiptNotFound = errors.New("receipt not found")
	ErrInvalidRefund   = errors.New("invalid refund request")
	ErrInvalidOrderID  = errors.New("invalid order id")
)
