package product

import (
	"context"

	"github.com/shopspring/decimal"
)

// PlaceholderImage is shown for products that carry no images.
const PlaceholderImage = "/images/default-placeholder.png"

// Product is a catalog item as served by the commerce API. JSON names follow
// the remote API and must not change.
type Product struct {
	ID            int64            `json:"idProducto"`
	Name          string           `json:"prodNombre"`
	Description   string           `json:"prodDescripcion"`
	Price         decimal.Decimal  `json:"prodPrecio"`
	Stock         int              `json:"prodStock"`
	Category      string           `json:"prodCategoria"`
	Images        []string         `json:"prodImg"`
	PreviousPrice *decimal.Decimal `json:"prodPrecioAnterior,omitempty"`
	IsNew         *bool            `json:"esNuevo,omitempty"`
}

// Image returns the first image reference, or PlaceholderImage.
func (p Product) Image() string {
	if len(p.Images) > 0 && p.Images[0] != "" {
		return p.Images[0]
	}
	return PlaceholderImage
}

// Source lists the full product catalog from the remote API.
type Source interface {
	ListProducts(ctx context.Context) ([]Product, error)
}
