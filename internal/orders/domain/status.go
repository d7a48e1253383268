package domain

import (
	"errors"
	"fmt"
)

var ErrIllegalTransition = errors.New("illegal transition of order status")

type Status string

const (
	StatusCreated  Status = "created"
	StatusPaid     Status = "paid"
	StatusFailed   Status = "failed"
	StatusRefunded Status = "refunded"
)

func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusFailed || s == StatusRefunded
}

// String representation (for logging)
func (s Status) String() string {
	return string(s)
}

type Event string

const (
	EventGatewaySuccess    Event = "gateway_success"
	EventGatewayFailure    Event = "gateway_failure"
	EventConfirmOnDelivery Event = "confirm_on_delivery"
	// EventRefund is administrative only.
	EventRefund Event = "refund"
)

var transitions = map[Status]map[Event]Status{
	StatusCreated: {
		EventGatewaySuccess:    StatusPaid,
		EventGatewayFailure:    StatusFailed,
		EventConfirmOnDelivery: StatusPaid,
	},
	StatusPaid: {
		EventRefund: StatusRefunded,
	},
}

// Transition returns the status reached by applying ev to from.
func Transition(from Status, ev Event) (Status, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, ev, from)
}
