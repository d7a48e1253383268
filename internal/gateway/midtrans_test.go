package gateway

import (
	"context"
	"fmt"
	"testing"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMidtrans(client SnapClient) *Midtrans {
	return NewMidtransWithClient(client, "SB-server-key", "SB-client-key", MidtransSandboxScriptURL)
}

func notification(m *Midtrans, status, fraud string) []byte {
	sig := m.Sign("ORD1", "200", "22000.00")
	return []byte(fmt.Sprintf(`{
		"order_id":"ORD1",
		"status_code":"200",
		"gross_amount":"22000.00",
		"signature_key":"%s",
		"transaction_id":"trx-1",
		"transaction_status":"%s",
		"fraud_status":"%s",
		"status_message":"midtrans payment notification",
		"payment_type":"bank_transfer"}`, sig, status, fraud))
}

func TestMidtrans_PrepareCreatesSnapTransaction(t *testing.T) {
	client := &MockSnapClient{Response: &snap.Response{Token: "tok", RedirectURL: "https://app.sandbox.midtrans.com/snap/v2/vtweb/tok"}}
	m := newTestMidtrans(client)

	checkout, err := m.Prepare(context.Background(), testSpec("ORD1"))
	require.NoError(t, err)

	require.NotNil(t, client.Request)
	assert.Equal(t, "ORD1", client.Request.TransactionDetails.OrderID)
	assert.Equal(t, int64(22000), client.Request.TransactionDetails.GrossAmt)
	assert.Equal(t, "priya@example.com", client.Request.CustomerDetail.Email)

	assert.Equal(t, "tok", checkout.Token)
	assert.Equal(t, "SB-client-key", checkout.Key)
	assert.Equal(t, MidtransSandboxScriptURL, checkout.ScriptURL)
	assert.Contains(t, checkout.RedirectURL, "tok")
}

func TestMidtrans_PrepareError(t *testing.T) {
	m := newTestMidtrans(&MockSnapClient{Err: &midtrans.Error{Message: "unauthorized", StatusCode: 401}})

	_, err := m.Prepare(context.Background(), testSpec("ORD1"))
	assert.ErrorContains(t, err, "create snap transaction")
}

func TestMidtrans_ParseNotification(t *testing.T) {
	m := newTestMidtrans(&MockSnapClient{})

	tests := []struct {
		status, fraud string
		success       bool
		reason        string
	}{
		{"settlement", "", true, ""},
		{"capture", "accept", true, ""},
		{"deny", "", false, "deny"},
		{"cancel", "", false, "cancel"},
		{"expire", "", false, "expire"},
		{"failure", "", false, "failure"},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			o, err := m.ParseNotification(notification(m, tt.status, tt.fraud))
			require.NoError(t, err)
			assert.Equal(t, "ORD1", o.Correlation())

			if tt.success {
				s, ok := o.(Success)
				require.True(t, ok)
				assert.Equal(t, "trx-1", s.PaymentID)
				return
			}
			f, ok := o.(Failure)
			require.True(t, ok)
			assert.Equal(t, tt.reason, f.Reason)
			assert.Equal(t, "200", f.Code)
			assert.Equal(t, "bank_transfer", f.Step)
		})
	}
}

func TestMidtrans_ParseNotification_Unresolved(t *testing.T) {
	m := newTestMidtrans(&MockSnapClient{})

	_, err := m.ParseNotification(notification(m, "pending", ""))
	assert.ErrorIs(t, err, ErrNotResolved)

	_, err = m.ParseNotification(notification(m, "capture", "challenge"))
	assert.ErrorIs(t, err, ErrNotResolved)
}

func TestMidtrans_ParseNotification_BadSignature(t *testing.T) {
	m := newTestMidtrans(&MockSnapClient{})
	other := NewMidtransWithClient(&MockSnapClient{}, "another-key", "", "")

	_, err := m.ParseNotification(notification(other, "settlement", ""))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestMidtrans_ParseNotification_BadAmount(t *testing.T) {
	m := newTestMidtrans(&MockSnapClient{})

	_, err := m.ParseNotification([]byte(`{"order_id":"ORD1","gross_amount":"abc"}`))
	assert.ErrorContains(t, err, "gross_amount")
}
