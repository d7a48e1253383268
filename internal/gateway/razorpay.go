package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

const (
	RazorpayScriptURL = "https://checkout.razorpay.com/v1/checkout.js"

	storeName  = "ArtVista"
	themeColor = "#6c5ce7"
)

type RazorpayConfig struct {
	KeyID       string
	KeySecret   string
	ScriptURL   string
	CallbackURL string
}

// Razorpay prepares the options of the Razorpay checkout widget and verifies
// the payloads its handler posts back.
type Razorpay struct {
	cfg RazorpayConfig
}

func NewRazorpay(cfg RazorpayConfig) *Razorpay {
	if cfg.ScriptURL == "" {
		cfg.ScriptURL = RazorpayScriptURL
	}
	return &Razorpay{cfg: cfg}
}

func (r *Razorpay) Name() string {
	return "razorpay"
}

func (r *Razorpay) Prepare(_ context.Context, spec PaymentSpec) (*Checkout, error) {
	if spec.Currency == "" {
		return nil, fmt.Errorf("%w: currency is required", ErrInvalidSpec)
	}

	return &Checkout{
		Provider:    r.Name(),
		ScriptURL:   r.cfg.ScriptURL,
		Key:         r.cfg.KeyID,
		Amount:      spec.Amount,
		Currency:    spec.Currency,
		Name:        storeName,
		Description: spec.Description,
		OrderID:     spec.CorrelationID,
		Prefill:     spec.Prefill,
		Theme:       &Theme{Color: themeColor},
		CallbackURL: r.cfg.CallbackURL,
	}, nil
}

// Sign computes the signature Razorpay attaches to a successful payment.
func (r *Razorpay) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(r.cfg.KeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

type razorpayCallback struct {
	PaymentID string `json:"razorpay_payment_id"`
	OrderID   string `json:"razorpay_order_id"`
	Signature string `json:"razorpay_signature"`
	Error     *struct {
		Code        string `json:"code"`
		Description string `json:"description"`
		Source      string `json:"source"`
		Step        string `json:"step"`
		Reason      string `json:"reason"`
		Metadata    struct {
			OrderID   string `json:"order_id"`
			PaymentID string `json:"payment_id"`
		} `json:"metadata"`
	} `json:"error"`
}

// ParseCallback turns a handler or payment.failed payload into an Outcome.
func (r *Razorpay) ParseCallback(body []byte) (Outcome, error) {
	var cb razorpayCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, fmt.Errorf("decode razorpay callback: %w", err)
	}

	if cb.Error != nil {
		if cb.Error.Metadata.OrderID == "" {
			return nil, fmt.Errorf("decode razorpay callback: failure without order id")
		}
		return Failure{
			CorrelationID: cb.Error.Metadata.OrderID,
			PaymentID:     cb.Error.Metadata.PaymentID,
			Code:          cb.Error.Code,
			Description:   cb.Error.Description,
			Source:        cb.Error.Source,
			Step:          cb.Error.Step,
			Reason:        cb.Error.Reason,
		}, nil
	}

	if cb.OrderID == "" || cb.PaymentID == "" {
		return nil, fmt.Errorf("decode razorpay callback: order id and payment id are required")
	}

	expected := r.Sign(cb.OrderID, cb.PaymentID)
	if !hmac.Equal([]byte(expected), []byte(cb.Signature)) {
		return nil, ErrInvalidSignature
	}

	return Success{
		CorrelationID: cb.OrderID,
		PaymentID:     cb.PaymentID,
		Signature:     cb.Signature,
	}, nil
}
