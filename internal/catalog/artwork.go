package catalog

import (
	"context"
	"errors"
)

var (
	ErrArtworkNotFound = errors.New("artwork not found")
	ErrArtworkSold     = errors.New("artwork already sold")
)

type Artwork struct {
	ID       string
	Title    string
	Artist   string
	Price    int64
	Discount *int64
	Image    string
	Sold     bool
}

// EffectivePrice is the discounted price when one is set, the list price otherwise.
func (a Artwork) EffectivePrice() int64 {
	if a.Discount != nil && *a.Discount > 0 {
		return *a.Discount
	}
	return a.Price
}

type Reader interface {
	GetArtwork(ctx context.Context, id string) (*Artwork, error)
}
