package product

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduct_DecodeRemote(t *testing.T) {
	raw := `{
		"idProducto": 3,
		"prodNombre": "Collar",
		"prodDescripcion": "Talla M",
		"prodPrecio": 7.25,
		"prodStock": 5,
		"prodCategoria": "Accesorios",
		"prodImg": ["/a.jpg", "/b.jpg"],
		"prodPrecioAnterior": 9.99,
		"esNuevo": true
	}`

	var p Product
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	assert.Equal(t, int64(3), p.ID)
	assert.True(t, decimal.RequireFromString("7.25").Equal(p.Price))
	assert.Equal(t, 5, p.Stock)
	require.NotNil(t, p.PreviousPrice)
	assert.True(t, decimal.RequireFromString("9.99").Equal(*p.PreviousPrice))
	require.NotNil(t, p.IsNew)
	assert.True(t, *p.IsNew)
	assert.Equal(t, "/a.jpg", p.Image())
}

func TestProduct_ImagePlaceholder(t *testing.T) {
	assert.Equal(t, PlaceholderImage, Product{}.Image())
	assert.Equal(t, PlaceholderImage, Product{Images: []string{""}}.Image())
}
