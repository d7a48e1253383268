package checkout

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	cart "github.com/firstcodebyte/artvista-canvas-commerce/internal/cart/domain"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/orders/domain"
)

var (
	phonePattern   = regexp.MustCompile(`^[6-9]\d{9}$`)
	pincodePattern = regexp.MustCompile(`^[1-9][0-9]{5}$`)
)

// BuyerInfo is the checkout form as submitted.
type BuyerInfo struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	City          string `json:"city"`
	State         string `json:"state"`
	Pincode       string `json:"pincode"`
	PaymentMethod string `json:"payment_method"`
}

// OrderRequest is one immutable submission attempt.
type OrderRequest struct {
	buyerID  string
	contact  domain.Contact
	shipping domain.Shipping
	method   domain.PaymentMethod
	items    []domain.OrderItem
	total    int64
}

func (r *OrderRequest) BuyerID() string                     { return r.buyerID }
func (r *OrderRequest) Contact() domain.Contact             { return r.contact }
func (r *OrderRequest) Shipping() domain.Shipping           { return r.shipping }
func (r *OrderRequest) PaymentMethod() domain.PaymentMethod { return r.method }
func (r *OrderRequest) TotalAmount() int64                  { return r.total }

func (r *OrderRequest) Items() []domain.OrderItem {
	out := make([]domain.OrderItem, len(r.items))
	copy(out, r.items)
	return out
}

// Build validates info against the cart contents and snapshots them into an OrderRequest.
// An empty cart is reported before any field is looked at.
func Build(c *cart.Cart, buyerID string, info BuyerInfo) (*OrderRequest, error) {
	items := c.Items()
	if len(items) == 0 {
		return nil, &EmptyCartError{BuyerID: buyerID}
	}

	var errs ValidationErrors
	fail := func(field, reason string) {
		errs = append(errs, &ValidationError{Field: field, Reason: reason})
	}

	name := strings.TrimSpace(info.Name)
	if utf8.RuneCountInString(name) < 2 {
		fail("name", "Name must be at least 2 characters.")
	}

	email := strings.TrimSpace(info.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		fail("email", "Please enter a valid email address.")
	}

	phone := strings.TrimSpace(info.Phone)
	if !phonePattern.MatchString(phone) {
		fail("phone", "Please enter a valid 10 digit Indian mobile number.")
	}

	address := strings.TrimSpace(info.Address)
	if utf8.RuneCountInString(address) < 10 {
		fail("address", "Address must be at least 10 characters.")
	}

	city := strings.TrimSpace(info.City)
	if utf8.RuneCountInString(city) < 2 {
		fail("city", "City is required.")
	}

	state := strings.TrimSpace(info.State)
	if !validState(state) {
		fail("state", "Please select a state.")
	}

	pincode := strings.TrimSpace(info.Pincode)
	if !pincodePattern.MatchString(pincode) {
		fail("pincode", "Please enter a valid 6 digit pincode.")
	}

	method, ok := ParsePaymentMethod(info.PaymentMethod)
	if !ok {
		fail("payment_method", "Please select a payment method.")
	}

	if len(errs) > 0 {
		return nil, errs
	}

	snapshot := make([]domain.OrderItem, 0, len(items))
	var total int64
	for _, it := range items {
		snapshot = append(snapshot, domain.OrderItem{
			ArtworkID: it.ID,
			Title:     it.Title,
			Creator:   it.Creator,
			UnitPrice: it.UnitPrice,
			Image:     it.Image,
			Quantity:  it.Quantity,
		})
		total += it.Subtotal()
	}

	return &OrderRequest{
		buyerID:  buyerID,
		contact:  domain.Contact{Name: name, Email: email, Phone: phone},
		shipping: domain.Shipping{Street: address, City: city, State: state, PostalCode: pincode},
		method:   method,
		items:    snapshot,
		total:    total,
	}, nil
}

// ParsePaymentMethod accepts the canonical names and the form aliases razorpay and cod.
func ParsePaymentMethod(s string) (domain.PaymentMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(domain.PaymentGateway), "razorpay", "midtrans":
		return domain.PaymentGateway, true
	case string(domain.PaymentOnDelivery), "cod":
		return domain.PaymentOnDelivery, true
	default:
		return "", false
	}
}
