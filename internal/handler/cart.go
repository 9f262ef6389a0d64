package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/pawstails-storefront/internal/domain/cart"
)

// CartItem is the API view of a cart line.
type CartItem struct {
	ProductID   int64   `json:"productId"`
	Name        string  `json:"name"`
	UnitPrice   float64 `json:"unitPrice"`
	Quantity    int     `json:"quantity"`
	Image       string  `json:"image"`
	StockActual int     `json:"stockActual"`
	LineTotal   float64 `json:"lineTotal"`
}

// Cart is the cart contents with derived totals.
type Cart struct {
	Items    []CartItem `json:"items"`
	Units    int        `json:"units"`
	Subtotal float64    `json:"subtotal"`
	Tax      float64    `json:"tax"`
	Total    float64    `json:"total"`
}

func (h *Handler) cartView() Cart {
	items := h.cart.Items()
	totals := cart.ComputeTotals(items, h.cart.TaxRate())

	out := Cart{
		Items:    make([]CartItem, len(items)),
		Units:    totals.Units,
		Subtotal: totals.Subtotal.InexactFloat64(),
		Tax:      totals.Tax.InexactFloat64(),
		Total:    totals.Total.InexactFloat64(),
	}
	for i, it := range items {
		out.Items[i] = CartItem{
			ProductID:   it.ProductID,
			Name:        it.Name,
			UnitPrice:   it.UnitPrice.InexactFloat64(),
			Quantity:    it.Quantity,
			Image:       h.imageURL(it.Image),
			StockActual: it.StockActual,
			LineTotal:   it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2).InexactFloat64(),
		}
	}
	return out
}

// GetCart returns the cart with totals.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.cartView())
}

type addItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// AddCartItem adds units of a catalog product to the cart.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, cart.ErrInvalidQuantity.Error())
		return
	}
	if !h.ensureCatalog(w, r, false) {
		return
	}

	p, ok := h.catalog.Lookup(req.ProductID)
	if !ok {
		writeError(w, r, http.StatusNotFound, errors.Errorf("product %d not found", req.ProductID).Error())
		return
	}

	if err := h.cart.Add(r.Context(), p, req.Quantity); err != nil {
		var stockErr *cart.InsufficientStockError
		switch {
		case errors.Is(err, cart.ErrInvalidQuantity), errors.As(err, &stockErr):
			writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		default:
			writeInternal(w, r, err)
		}
		return
	}
	writeJSON(w, r, http.StatusCreated, h.cartView())
}

type updateItemRequest struct {
	// Quantity may be a number, a string or null.
	Quantity any `json:"quantity"`
}

// UpdateCartItem sets the quantity of a cart line.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	var req updateItemRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if _, _, err := h.cart.UpdateQuantity(r.Context(), id, req.Quantity); err != nil {
		if errors.Is(err, cart.ErrNotInCart) {
			writeError(w, r, http.StatusNotFound, err.Error())
			return
		}
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h.cartView())
}

// RemoveCartItem removes a cart line. Removing an absent product succeeds.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.cart.Remove(r.Context(), id)
	writeJSON(w, r, http.StatusOK, h.cartView())
}
