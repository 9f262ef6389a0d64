package handler

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/go-faster/errors"

	"github.com/xenking/pawstails-storefront/internal/domain/catalog"
	"github.com/xenking/pawstails-storefront/internal/domain/product"
)

// Product is the API view of a catalog product.
type Product struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Price         float64  `json:"price"`
	PreviousPrice *float64 `json:"previousPrice,omitempty"`
	Stock         int      `json:"stock"`
	Category      string   `json:"category"`
	Images        []string `json:"images"`
	Image         string   `json:"image"`
	IsNew         bool     `json:"isNew"`
}

// ProductList is the response of GET /api/products.
type ProductList struct {
	Products []Product `json:"products"`
	Category string    `json:"category"`
	// Error is set when the last refresh failed and stale data is served.
	Error string `json:"error,omitempty"`
}

// CategoryList is the response of GET /api/categories.
type CategoryList struct {
	Categories []string `json:"categories"`
	Selected   string   `json:"selected"`
}

func (h *Handler) toProduct(p product.Product) Product {
	out := Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.InexactFloat64(),
		Stock:       p.Stock,
		Category:    p.Category,
		Images:      make([]string, len(p.Images)),
		Image:       h.imageURL(p.Image()),
		IsNew:       p.IsNew != nil && *p.IsNew,
	}
	for i, img := range p.Images {
		out.Images[i] = h.imageURL(img)
	}
	if p.PreviousPrice != nil {
		prev := p.PreviousPrice.InexactFloat64()
		out.PreviousPrice = &prev
	}
	return out
}

// ensureCatalog loads the catalog on first use, or refreshes it when force
// is set. It reports false after writing an error response.
func (h *Handler) ensureCatalog(w http.ResponseWriter, r *http.Request, force bool) bool {
	if !force && h.catalog.Loaded() {
		return true
	}
	if err := h.catalog.Fetch(r.Context(), force); err != nil && !h.catalog.Loaded() {
		writeError(w, r, http.StatusServiceUnavailable, catalog.ErrUnavailable.Error())
		return false
	}
	return true
}

// ListProducts returns the products of the requested category, or of the
// selected one when none is given.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	refresh := false
	if v := q.Get("refresh"); v != "" {
		var err error
		if refresh, err = strconv.ParseBool(v); err != nil {
			writeError(w, r, http.StatusUnprocessableEntity, "refresh must be a boolean")
			return
		}
	}
	if !h.ensureCatalog(w, r, refresh) {
		return
	}

	category := q.Get("category")
	var products []product.Product
	if category == "" {
		category = h.catalog.SelectedCategory()
		products = h.catalog.Filtered()
	} else {
		products = h.catalog.InCategory(category)
	}

	resp := ProductList{
		Products: make([]Product, len(products)),
		Category: category,
	}
	for i, p := range products {
		resp.Products[i] = h.toProduct(p)
	}
	if err := h.catalog.Err(); err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// ListCategories returns the distinct categories and the current selection.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	if !h.ensureCatalog(w, r, false) {
		return
	}
	writeJSON(w, r, http.StatusOK, CategoryList{
		Categories: h.catalog.Categories(),
		Selected:   h.catalog.SelectedCategory(),
	})
}

type selectCategoryRequest struct {
	Category string `json:"category"`
}

// SelectCategory changes the category used when listing products.
func (h *Handler) SelectCategory(w http.ResponseWriter, r *http.Request) {
	var req selectCategoryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if req.Category == "" {
		req.Category = catalog.CategoryAll
	}
	if !h.ensureCatalog(w, r, false) {
		return
	}
	if !slices.Contains(h.catalog.Categories(), req.Category) {
		writeError(w, r, http.StatusUnprocessableEntity, errors.Errorf("unknown category %q", req.Category).Error())
		return
	}

	h.catalog.SelectCategory(req.Category)
	writeJSON(w, r, http.StatusOK, CategoryList{
		Categories: h.catalog.Categories(),
		Selected:   h.catalog.SelectedCategory(),
	})
}
