package cart

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Container is the session's cart. itemCount always equals the sum of the
// held quantities; both change under the same lock.
type Container struct {
	mu        sync.RWMutex
	items     []CartItem
	itemCount int
	onChange  func()
}

// Snapshot is a consistent copy of the container
type Snapshot struct {
	Items     []CartItem `json:"items"`
	ItemCount int        `json:"item_count"`
}

// NewContainer creates an empty cart
func NewContainer() *Container {
	return &Container{}
}

// OnChange registers a listener invoked after every mutation
func (c *Container) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Set replaces the collection. Later duplicates of an id win.
func (c *Container) Set(items []CartItem) {
	c.mu.Lock()
	c.items = make([]CartItem, 0, len(items))
	for _, item := range items {
		if i := c.indexOf(item.ID); i >= 0 {
			c.items[i] = item
			continue
		}
		c.items = append(c.items, item)
	}
	c.recount()
	c.unlockAndNotify()
}

// Add inserts item. An entry with the same id is replaced by the incoming
// row, so a repeated insert event is a no-op. An entry with the same
// (user_id, product_id) under another id absorbs the incoming quantity.
func (c *Container) Add(item CartItem) {
	c.mu.Lock()
	switch i, j := c.indexOf(item.ID), c.indexOfProduct(item.UserID, item.ProductID); {
	case i >= 0:
		c.itemCount += item.Quantity - c.items[i].Quantity
		c.items[i] = item
	case j >= 0:
		c.items[j].Quantity += item.Quantity
		c.itemCount += item.Quantity
	default:
		c.items = append(c.items, item)
		c.itemCount += item.Quantity
	}
	c.unlockAndNotify()
}

// Update sets the quantity of the item with id. Unknown ids and quantities
// below one are ignored; the return value reports whether anything changed.
func (c *Container) Update(id uuid.UUID, quantity int) bool {
	if quantity < 1 {
		return false
	}

	c.mu.Lock()
	i := c.indexOf(id)
	if i < 0 {
		c.mu.Unlock()
		return false
	}
	c.itemCount += quantity - c.items[i].Quantity
	c.items[i].Quantity = quantity
	c.unlockAndNotify()
	return true
}

// Adjust changes the quantity of id by delta and returns the new quantity.
// It refuses to go below one.
func (c *Container) Adjust(id uuid.UUID, delta int) (int, bool) {
	c.mu.Lock()
	i := c.indexOf(id)
	if i < 0 || c.items[i].Quantity+delta < 1 {
		c.mu.Unlock()
		return 0, false
	}
	c.items[i].Quantity += delta
	c.itemCount += delta
	quantity := c.items[i].Quantity
	c.unlockAndNotify()
	return quantity, true
}

// Remove deletes the item with id. Unknown ids are ignored.
func (c *Container) Remove(id uuid.UUID) bool {
	c.mu.Lock()
	i := c.indexOf(id)
	if i < 0 {
		c.mu.Unlock()
		return false
	}
	c.itemCount -= c.items[i].Quantity
	c.items = append(c.items[:i], c.items[i+1:]...)
	c.unlockAndNotify()
	return true
}

// Clear empties the cart
func (c *Container) Clear() {
	c.mu.Lock()
	c.items = nil
	c.itemCount = 0
	c.unlockAndNotify()
}

// Get returns the item with id
func (c *Container) Get(id uuid.UUID) (CartItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i := c.indexOf(id); i >= 0 {
		return c.items[i], true
	}
	return CartItem{}, false
}

// FindByProduct returns the item for productID
func (c *Container) FindByProduct(userID, productID uuid.UUID) (CartItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i := c.indexOfProduct(userID, productID); i >= 0 {
		return c.items[i], true
	}
	return CartItem{}, false
}

// Items returns a copy of the held items
func (c *Container) Items() []CartItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]CartItem(nil), c.items...)
}

// ItemCount returns the total quantity held
func (c *Container) ItemCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.itemCount
}

// Snapshot returns items and itemCount read under one lock
func (c *Container) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Items:     append([]CartItem(nil), c.items...),
		ItemCount: c.itemCount,
	}
}

// Totals prices the cart with the given lookup, usually the products container
func (c *Container) Totals(price func(productID uuid.UUID) (decimal.Decimal, bool)) Totals {
	snapshot := c.Snapshot()

	totals := Totals{
		ItemCount:   snapshot.ItemCount,
		LineCount:   len(snapshot.Items),
		SubTotal:    decimal.Zero,
		UnpricedIDs: []uuid.UUID{},
	}
	for _, item := range snapshot.Items {
		unit, ok := price(item.ProductID)
		if !ok {
			totals.UnpricedIDs = append(totals.UnpricedIDs, item.ID)
			continue
		}
		totals.SubTotal = totals.SubTotal.Add(unit.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return totals
}

func (c *Container) indexOf(id uuid.UUID) int {
	for i := range c.items {
		if c.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Container) indexOfProduct(userID, productID uuid.UUID) int {
	for i := range c.items {
		if c.items[i].UserID == userID && c.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Container) recount() {
	c.itemCount = 0
	for _, item := range c.items {
		c.itemCount += item.Quantity
	}
}

func (c *Container) unlockAndNotify() {
	notify := c.onChange
	c.mu.Unlock()
	if notify != nil {
		notify()
	}
}
