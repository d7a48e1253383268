package domain

import (
	"time"

	"github.com/google/uuid"
)

const CurrencyINR = "INR"

type PaymentMethod string

const (
	PaymentGateway    PaymentMethod = "gateway"
	PaymentOnDelivery PaymentMethod = "pay_on_delivery"
)

type OrderItem struct {
	ArtworkID string `json:"artwork_id"`
	Title     string `json:"title"`
	Creator   string `json:"creator"`
	UnitPrice int64  `json:"unit_price"`
	Image     string `json:"image"`
	Quantity  int    `json:"quantity"`
}

type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Shipping struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
}

// FailureDetails are the structured gateway error fields of a failed order.
type FailureDetails struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Source      string `json:"source"`
	Step        string `json:"step"`
	Reason      string `json:"reason"`
}

type Order struct {
	ID               uuid.UUID       `json:"id"`
	CorrelationID    string          `json:"correlation_id"`
	BuyerID          string          `json:"buyer_id"`
	Amount           int64           `json:"amount"`
	Currency         string          `json:"currency"`
	Contact          Contact         `json:"contact"`
	Shipping         Shipping        `json:"shipping"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	Items            []OrderItem     `json:"items"`
	Status           Status          `json:"status"`
	PaymentID        *string         `json:"payment_id,omitempty"`
	PaymentSignature *string         `json:"-"`
	Failure          *FailureDetails `json:"failure,omitempty"`
	StaleAt          *time.Time      `json:"stale_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
