package product

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestContainer_SetReplacesAndDedupes(t *testing.T) {
	c := NewContainer()
	changes := 0
	c.OnChange(func() { changes++ })

	first := Product{ID: uuid.New(), Name: "Mug", Price: decimal.RequireFromString("9.50")}
	second := Product{ID: uuid.New(), Name: "Tee", Price: decimal.RequireFromString("20")}
	c.Set([]Product{first, second})
	assert.Equal(t, 2, c.Len())
	assert.True(t, c.Loaded())

	renamed := first
	renamed.Name = "Big Mug"
	c.Set([]Product{renamed, renamed})
	assert.Equal(t, 1, c.Len())

	got, ok := c.Get(first.ID)
	assert.True(t, ok)
	assert.Equal(t, "Big Mug", got.Name)

	_, ok = c.Get(second.ID)
	assert.False(t, ok)

	price, ok := c.Price(first.ID)
	assert.True(t, ok)
	assert.True(t, price.Equal(decimal.RequireFromString("9.5")))

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.False(t, c.Loaded())
	assert.Equal(t, 3, changes)
}

func TestContainer_ItemsIsACopy(t *testing.T) {
	c := NewContainer()
	c.Set([]Product{{ID: uuid.New(), Name: "Mug"}})

	items := c.Items()
	items[0].Name = "changed"

	assert.Equal(t, "Mug", c.Items()[0].Name)
}

func TestProduct_InStock(t *testing.T) {
	assert.False(t, Product{}.InStock())
	assert.True(t, Product{StockQuantity: 3}.InStock())
}
