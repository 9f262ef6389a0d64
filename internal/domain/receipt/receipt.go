// Package receipt keeps a local record of purchases confirmed by the
// commerce API, mirroring the invoice (factura) the back office issues.
package receipt

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is the local record of one successful checkout.
type Receipt struct {
	ID            string          `json:"id"`
	UserID        int64           `json:"userId"`
	CreatedAt     time.Time       `json:"createdAt"`
	Address       string          `json:"address"`
	PaymentMethod string          `json:"paymentMethod"`
	Lines         []Line          `json:"lines"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
}

// Line is a purchased product at the price shown in the cart.
type Line struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Repository persists receipts.
type Repository interface {
	Save(ctx context.Context, r *Receipt) error
	// List returns the receipts of userID, newest first.
	List(ctx context.Context, userID int64) ([]Receipt, error)
}
