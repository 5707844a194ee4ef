package product

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Container holds the session's product list
type Container struct {
	mu       sync.RWMutex
	items    []Product
	byID     map[uuid.UUID]int
	loaded   bool
	onChange func()
}

// NewContainer creates an empty container
func NewContainer() *Container {
	return &Container{byID: make(map[uuid.UUID]int)}
}

// OnChange registers a listener invoked after every mutation
func (c *Container) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Set replaces the whole list
func (c *Container) Set(items []Product) {
	c.mu.Lock()
	c.items = make([]Product, 0, len(items))
	c.byID = make(map[uuid.UUID]int, len(items))
	for _, p := range items {
		if i, ok := c.byID[p.ID]; ok {
			c.items[i] = p
			continue
		}
		c.byID[p.ID] = len(c.items)
		c.items = append(c.items, p)
	}
	c.loaded = true
	notify := c.onChange
	c.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// Clear empties the list
func (c *Container) Clear() {
	c.mu.Lock()
	c.items = nil
	c.byID = make(map[uuid.UUID]int)
	c.loaded = false
	notify := c.onChange
	c.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// Loaded reports whether Set has been called since the last Clear
func (c *Container) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Get returns the product with id
func (c *Container) Get(id uuid.UUID) (Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.byID[id]
	if !ok {
		return Product{}, false
	}
	return c.items[i], true
}

// Price returns the price of the product with id
func (c *Container) Price(id uuid.UUID) (decimal.Decimal, bool) {
	p, ok := c.Get(id)
	return p.Price, ok
}

// Items returns a copy of the list
func (c *Container) Items() []Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Product(nil), c.items...)
}

// Len returns the number of products held
func (c *Container) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
