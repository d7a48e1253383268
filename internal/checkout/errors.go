package checkout

import (
	"fmt"
	"strings"
)

// EmptyCartError is returned when an order is built from a cart with no items.
type EmptyCartError struct {
	BuyerID string
}

func (e *EmptyCartError) Error() string {
	return fmt.Sprintf("cart of buyer %q is empty, nothing to check out", e.BuyerID)
}

type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ValidationErrors collects every offending field of one submission.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Error())
	}
	return "invalid order request: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Unwrap() []error {
	errs := make([]error, 0, len(v))
	for _, e := range v {
		errs = append(errs, e)
	}
	return errs
}

// Field returns the error recorded for field, if any.
func (v ValidationErrors) Field(field string) *ValidationError {
	for _, e := range v {
		if e.Field == field {
			return e
		}
	}
	return nil
}
