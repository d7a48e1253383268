package service

import (
	"errors"
	"fmt"

	"github.com/firstcodebyte/artvista-canvas-commerce/internal/orders/domain"
)

var ErrSubmissionInFlight = errors.New("an order submission is already in flight for this buyer")

// ReconciliationError means the gateway took the payment but the order could
// not be marked paid. The case has been queued for manual follow-up.
type ReconciliationError struct {
	CorrelationID string
	PaymentID     string
	Cause         error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("payment %s for order %s needs reconciliation: %v", e.PaymentID, e.CorrelationID, e.Cause)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Cause
}

// DuplicateCallbackError is a gateway outcome for an order that is no longer created.
type DuplicateCallbackError struct {
	CorrelationID string
	Status        domain.Status
}

func (e *DuplicateCallbackError) Error() string {
	return fmt.Sprintf("duplicate callback for order %s in status %s", e.CorrelationID, e.Status)
}

// HistoryUnavailableError is a failed history read, as opposed to an empty one.
type HistoryUnavailableError struct {
	BuyerID string
	Cause   error
}

func (e *HistoryUnavailableError) Error() string {
	return fmt.Sprintf("order history for %s unavailable: %v", e.BuyerID, e.Cause)
}

func (e *HistoryUnavailableError) Unwrap() error {
	return e.Cause
}
