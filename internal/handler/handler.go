// Package handler exposes the storefront session over a JSON HTTP API.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/pawstails-storefront/internal/domain/cart"
	"github.com/xenking/pawstails-storefront/internal/domain/catalog"
	"github.com/xenking/pawstails-storefront/internal/domain/checkout"
	"github.com/xenking/pawstails-storefront/internal/domain/receipt"
	"github.com/xenking/pawstails-storefront/internal/domain/session"
)

const maxRequestBody = 1 << 20

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image paths in responses. When
	// empty, image paths are returned as served by the commerce API.
	ImageBaseURL string
}

// Handler serves the storefront API, delegating to the session's catalog,
// cart, checkout and account components.
type Handler struct {
	catalog   *catalog.Catalog
	cart      *cart.Store
	checkout  *checkout.Submitter
	sessions  *session.Manager
	receipts  receipt.Repository
	imageBase string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	cat *catalog.Catalog,
	c *cart.Store,
	submitter *checkout.Submitter,
	sessions *session.Manager,
	receipts receipt.Repository,
) *Handler {
	return &Handler{
		catalog:   cat,
		cart:      c,
		checkout:  submitter,
		sessions:  sessions,
		receipts:  receipts,
		imageBase: strings.TrimSuffix(cfg.ImageBaseURL, "/"),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/categories", h.ListCategories)
	mux.HandleFunc("PUT /api/catalog/category", h.SelectCategory)

	mux.HandleFunc("GET /api/cart", h.GetCart)
	mux.HandleFunc("POST /api/cart/items", h.AddCartItem)
	mux.HandleFunc("PATCH /api/cart/items/{id}", h.UpdateCartItem)
	mux.HandleFunc("DELETE /api/cart/items/{id}", h.RemoveCartItem)

	mux.HandleFunc("POST /api/checkout", h.Checkout)

	mux.HandleFunc("GET /api/session", h.GetSession)
	mux.HandleFunc("POST /api/session", h.Login)
	mux.HandleFunc("DELETE /api/session", h.Logout)

	mux.HandleFunc("GET /api/receipts", h.ListReceipts)
}

// Error is the body of every non-2xx response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Warn("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, Error{Code: status, Message: msg})
}

// writeInternal logs err and answers 500 without leaking details.
func writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, "internal error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "invalid request body")
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid product id %q", r.PathValue("id"))
	}
	return id, nil
}

// imageURL prefixes relative image paths with the configured base.
func (h *Handler) imageURL(path string) string {
	if h.imageBase == "" || strings.Contains(path, "://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return h.imageBase + path
}
