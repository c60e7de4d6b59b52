package exchange

import "errors"

var (
	ErrNotConnected        = errors.New("exchange not connected")
	ErrMissingCredentials  = errors.New("api key and secret are required")
	ErrInvalidOrder        = errors.New("invalid order")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotCancellable = errors.New("order cannot be cancelled")
	ErrUnsupportedSymbol   = errors.New("unsupported symbol")
)
