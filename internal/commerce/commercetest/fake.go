// Package commercetest provides an in-memory commerce API for tests and
// local development.
package commercetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/xenking/pawstails-storefront/internal/domain/product"
)

// Purchase is a purchase accepted by the Fake.
type Purchase struct {
	ID        int64          `json:"idFactura"`
	Address   string         `json:"direccion"`
	Payment   string         `json:"metodoPago"`
	UserID    int64          `json:"usuarioId"`
	AccountID int64          `json:"cuentaId"`
	Lines     []PurchaseLine `json:"productos"`
}

// PurchaseLine is one product/quantity pair of a Purchase.
type PurchaseLine struct {
	ProductID int64 `json:"id"`
	Quantity  int   `json:"cantidad"`
}

type override struct {
	status int
	body   string
}

// Fake serves GET /productos and POST /compra from memory. Accepted
// purchases decrement stock. It is safe for concurrent use.
type Fake struct {
	mu        sync.Mutex
	products  []product.Product
	purchases []Purchase
	listCalls int

	productsOverride *override
	purchaseOverride *override
}

// NewFake creates a Fake serving products.
func NewFake(products []product.Product) *Fake {
	return &Fake{products: slices.Clone(products)}
}

// Handler returns the HTTP handler of the fake API.
func (f *Fake) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /productos", f.listProducts)
	mux.HandleFunc("POST /compra", f.purchase)
	return mux
}

// FailProducts makes GET /productos answer status with body. A zero status
// restores normal behaviour.
func (f *Fake) FailProducts(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == 0 {
		f.productsOverride = nil
		return
	}
	f.productsOverride = &override{status: status, body: body}
}

// ReplyPurchase makes POST /compra answer status with body without touching
// stock. A zero status restores normal behaviour.
func (f *Fake) ReplyPurchase(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == 0 {
		f.purchaseOverride = nil
		return
	}
	f.purchaseOverride = &override{status: status, body: body}
}

// SetStock changes the stock of product id.
func (f *Fake) SetStock(id int64, stock int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.index(id); i >= 0 {
		f.products[i].Stock = stock
	}
}

// Products returns the current product list.
func (f *Fake) Products() []product.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.products)
}

// Purchases returns the accepted purchases.
func (f *Fake) Purchases() []Purchase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.purchases)
}

// ListCalls returns the number of GET /productos requests served.
func (f *Fake) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *Fake) index(id int64) int {
	return slices.IndexFunc(f.products, func(p product.Product) bool { return p.ID == id })
}

func (f *Fake) listProducts(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	f.listCalls++
	if o := f.productsOverride; o != nil {
		f.mu.Unlock()
		writeRaw(w, o.status, o.body)
		return
	}
	products := slices.Clone(f.products)
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, products)
}

type reply struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	ID      int64  `json:"idFactura,omitempty"`
}

func (f *Fake) purchase(w http.ResponseWriter, r *http.Request) {
	var p Purchase
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, reply{Message: "cuerpo inválido"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if o := f.purchaseOverride; o != nil {
		writeRaw(w, o.status, o.body)
		return
	}
	if p.UserID <= 0 {
		writeJSON(w, http.StatusOK, reply{Message: "usuario requerido"})
		return
	}
	if len(p.Lines) == 0 {
		writeJSON(w, http.StatusOK, reply{Message: "sin productos"})
		return
	}
	for _, l := range p.Lines {
		i := f.index(l.ProductID)
		if i < 0 {
			writeJSON(w, http.StatusOK, reply{Message: fmt.Sprintf("producto %d no existe", l.ProductID)})
			return
		}
		if l.Quantity < 1 || l.Quantity > f.products[i].Stock {
			writeJSON(w, http.StatusOK, reply{Message: "Stock insuficiente para " + f.products[i].Name})
			return
		}
	}
	for _, l := range p.Lines {
		f.products[f.index(l.ProductID)].Stock -= l.Quantity
	}

	p.ID = int64(len(f.purchases) + 1)
	f.purchases = append(f.purchases, p)
	writeJSON(w, http.StatusOK, reply{Success: true, Message: "Compra registrada", ID: p.ID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
