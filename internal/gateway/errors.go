package gateway

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSignature = errors.New("gateway payload signature mismatch")
	ErrUnknownAttempt   = errors.New("no pending payment attempt for correlation id")
	ErrInvalidSpec      = errors.New("invalid payment spec")
	// ErrNotResolved means the gateway reported an intermediate state, such as pending.
	ErrNotResolved = errors.New("payment attempt not resolved yet")
)

// GatewayLoadError is returned by Open when the gateway client could not be
// made ready. No attempt is registered when it is returned.
type GatewayLoadError struct {
	Provider string
	Cause    error
}

func (e *GatewayLoadError) Error() string {
	return fmt.Sprintf("gateway %s unavailable: %v", e.Provider, e.Cause)
}

func (e *GatewayLoadError) Unwrap() error {
	return e.Cause
}

// GatewayPaymentError carries a gateway-reported failure after it has been recorded.
type GatewayPaymentError struct {
	Failure Failure
}

func (e *GatewayPaymentError) Error() string {
	return fmt.Sprintf("payment %s failed: %s (%s)", e.Failure.CorrelationID, e.Failure.Description, e.Failure.Code)
}
