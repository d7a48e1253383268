package gateway

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/shopspring/decimal"
)

const (
	MidtransSandboxScriptURL    = "https://app.sandbox.midtrans.com/snap/snap.js"
	MidtransProductionScriptURL = "https://app.midtrans.com/snap/snap.js"
)

type SnapClient interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

type Midtrans struct {
	snap      SnapClient
	serverKey string
	clientKey string
	scriptURL string
}

func NewMidtrans(serverKey, clientKey string, env midtrans.EnvironmentType) *Midtrans {
	var client snap.Client
	client.New(serverKey, env)

	scriptURL := MidtransSandboxScriptURL
	if env == midtrans.Production {
		scriptURL = MidtransProductionScriptURL
	}
	return NewMidtransWithClient(&client, serverKey, clientKey, scriptURL)
}

func NewMidtransWithClient(client SnapClient, serverKey, clientKey, scriptURL string) *Midtrans {
	return &Midtrans{snap: client, serverKey: serverKey, clientKey: clientKey, scriptURL: scriptURL}
}

func (m *Midtrans) Name() string {
	return "midtrans"
}

func (m *Midtrans) ScriptURL() string {
	return m.scriptURL
}

// Prepare creates a Snap transaction. Snap takes whole currency units.
func (m *Midtrans) Prepare(_ context.Context, spec PaymentSpec) (*Checkout, error) {
	gross := decimal.New(spec.Amount, -2).Ceil().IntPart()

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  spec.CorrelationID,
			GrossAmt: gross,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: spec.Prefill.Name,
			Email: spec.Prefill.Email,
			Phone: spec.Prefill.Contact,
		},
	}

	resp, snapErr := m.snap.CreateTransaction(req)
	if snapErr != nil {
		return nil, fmt.Errorf("create snap transaction: %s", snapErr.Error())
	}

	return &Checkout{
		Provider:    m.Name(),
		ScriptURL:   m.scriptURL,
		Key:         m.clientKey,
		Amount:      spec.Amount,
		Currency:    spec.Currency,
		Name:        storeName,
		Description: spec.Description,
		OrderID:     spec.CorrelationID,
		Prefill:     spec.Prefill,
		Token:       resp.Token,
		RedirectURL: resp.RedirectURL,
	}, nil
}

// Sign computes the signature_key of an HTTP notification.
func (m *Midtrans) Sign(orderID, statusCode, grossAmount string) string {
	hash := sha512.Sum512([]byte(orderID + statusCode + grossAmount + m.serverKey))
	return hex.EncodeToString(hash[:])
}

type midtransNotification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	StatusMessage     string `json:"status_message"`
	PaymentType       string `json:"payment_type"`
}

// ParseNotification verifies a notification and maps it to an Outcome.
// Intermediate states return ErrNotResolved.
func (m *Midtrans) ParseNotification(body []byte) (Outcome, error) {
	var n midtransNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("decode midtrans notification: %w", err)
	}
	if n.OrderID == "" {
		return nil, fmt.Errorf("decode midtrans notification: missing order_id")
	}
	if _, err := decimal.NewFromString(n.GrossAmount); err != nil {
		return nil, fmt.Errorf("decode midtrans notification: gross_amount: %w", err)
	}

	expected := m.Sign(n.OrderID, n.StatusCode, n.GrossAmount)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(n.SignatureKey)) != 1 {
		return nil, ErrInvalidSignature
	}

	switch n.TransactionStatus {
	case "settlement":
		return m.success(n), nil
	case "capture":
		if n.FraudStatus == "" || n.FraudStatus == "accept" {
			return m.success(n), nil
		}
		return nil, fmt.Errorf("%w: capture with fraud status %s", ErrNotResolved, n.FraudStatus)
	case "deny", "cancel", "expire", "failure":
		return Failure{
			CorrelationID: n.OrderID,
			PaymentID:     n.TransactionID,
			Code:          n.StatusCode,
			Description:   n.StatusMessage,
			Source:        "gateway",
			Step:          n.PaymentType,
			Reason:        n.TransactionStatus,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotResolved, n.TransactionStatus)
	}
}

func (m *Midtrans) success(n midtransNotification) Success {
	return Success{
		CorrelationID: n.OrderID,
		PaymentID:     n.TransactionID,
		Signature:     n.SignatureKey,
	}
}
