package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/pawstails-storefront/internal/domain/checkout"
	"github.com/xenking/pawstails-storefront/internal/domain/receipt"
	"github.com/xenking/pawstails-storefront/internal/domain/session"
)

type checkoutRequest struct {
	Address       string `json:"address"`
	PaymentMethod string `json:"paymentMethod"`
}

// CheckoutResult is the response of POST /api/checkout.
type CheckoutResult struct {
	Outcome    string   `json:"outcome"`
	Message    string   `json:"message"`
	StatusCode int      `json:"statusCode,omitempty"`
	Body       string   `json:"body,omitempty"`
	Receipt    *Receipt `json:"receipt,omitempty"`
}

// Receipt is the API view of a purchase receipt.
type Receipt struct {
	ID            string        `json:"id"`
	CreatedAt     string        `json:"createdAt"`
	Address       string        `json:"address"`
	PaymentMethod string        `json:"paymentMethod"`
	Lines         []ReceiptLine `json:"lines"`
	Subtotal      float64       `json:"subtotal"`
	Tax           float64       `json:"tax"`
	Total         float64       `json:"total"`
}

// ReceiptLine is one purchased product.
type ReceiptLine struct {
	ProductID int64   `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

func toReceipt(rec *receipt.Receipt) *Receipt {
	out := &Receipt{
		ID:            rec.ID,
		CreatedAt:     rec.CreatedAt.Format(time.RFC3339),
		Address:       rec.Address,
		PaymentMethod: rec.PaymentMethod,
		Lines:         make([]ReceiptLine, len(rec.Lines)),
		Subtotal:      rec.Subtotal.InexactFloat64(),
		Tax:           rec.Tax.InexactFloat64(),
		Total:         rec.Total.InexactFloat64(),
	}
	for i, l := range rec.Lines {
		out.Lines[i] = ReceiptLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.InexactFloat64(),
		}
	}
	return out
}

// checkoutStatus maps a checkout outcome to the HTTP status of the reply.
func checkoutStatus(o checkout.Outcome) int {
	switch o {
	case checkout.OutcomeSuccess, checkout.OutcomeRejected:
		return http.StatusOK
	case checkout.OutcomeEmptyCart:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// Checkout submits the cart for the signed-in account.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	acc, err := h.sessions.RequireCheckout(r.Context())
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		writeInternal(w, r, err)
		return
	}

	var req checkoutRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	req.Address = strings.TrimSpace(req.Address)
	req.PaymentMethod = strings.TrimSpace(req.PaymentMethod)
	if req.Address == "" || req.PaymentMethod == "" {
		writeError(w, r, http.StatusUnprocessableEntity, "address and payment method are required")
		return
	}

	res := h.checkout.Finalize(r.Context(), checkout.Request{
		Address:       req.Address,
		PaymentMethod: req.PaymentMethod,
		UserID:        int64(acc.UserID),
		AccountID:     int64(acc.AccountID),
	})

	out := CheckoutResult{
		Outcome:    string(res.Outcome),
		Message:    res.Message,
		StatusCode: res.StatusCode,
		Body:       res.Body,
	}
	if res.Receipt != nil {
		out.Receipt = toReceipt(res.Receipt)
	}
	writeJSON(w, r, checkoutStatus(res.Outcome), out)
}

// ListReceipts returns the receipts of the signed-in account, newest first.
func (h *Handler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	acc, err := h.sessions.Current(r.Context())
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		writeInternal(w, r, err)
		return
	}

	recs, err := h.receipts.List(r.Context(), int64(acc.UserID))
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	out := make([]*Receipt, len(recs))
	for i := range recs {
		out[i] = toReceipt(&recs[i])
	}
	writeJSON(w, r, http.StatusOK, out)
}
