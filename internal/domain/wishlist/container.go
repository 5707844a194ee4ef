package wishlist

import (
	"sync"

	"github.com/google/uuid"
)

// Container is the session's wishlist keyed by (user_id, product_id)
type Container struct {
	mu       sync.RWMutex
	items    []WishlistItem
	onChange func()
}

// NewContainer creates an empty wishlist
func NewContainer() *Container {
	return &Container{}
}

// OnChange registers a listener invoked after every mutation
func (c *Container) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Set replaces the collection, keeping one entry per product
func (c *Container) Set(items []WishlistItem) {
	c.mu.Lock()
	c.items = nil
	for _, item := range items {
		c.put(item)
	}
	c.unlockAndNotify()
}

// Add inserts item, replacing any entry with the same id or the same
// (user_id, product_id)
func (c *Container) Add(item WishlistItem) {
	c.mu.Lock()
	c.put(item)
	c.unlockAndNotify()
}

// Remove deletes the entry with id. Unknown ids are ignored.
func (c *Container) Remove(id uuid.UUID) bool {
	c.mu.Lock()
	for i := range c.items {
		if c.items[i].ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			c.unlockAndNotify()
			return true
		}
	}
	c.mu.Unlock()
	return false
}

// Toggle removes the entry for item's (user_id, product_id) if present and
// adds item otherwise. It returns whether the product is now present.
func (c *Container) Toggle(item WishlistItem) bool {
	c.mu.Lock()
	if i := c.indexOfProduct(item.UserID, item.ProductID); i >= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
		c.unlockAndNotify()
		return false
	}
	c.items = append(c.items, item)
	c.unlockAndNotify()
	return true
}

// Contains reports whether the user's wishlist holds productID
func (c *Container) Contains(userID, productID uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexOfProduct(userID, productID) >= 0
}

// Clear empties the wishlist
func (c *Container) Clear() {
	c.mu.Lock()
	c.items = nil
	c.unlockAndNotify()
}

// Items returns a copy of the held entries
func (c *Container) Items() []WishlistItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]WishlistItem(nil), c.items...)
}

// Count returns the number of entries
func (c *Container) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Container) put(item WishlistItem) {
	for i := range c.items {
		if c.items[i].ID == item.ID {
			c.items[i] = item
			return
		}
	}
	if i := c.indexOfProduct(item.UserID, item.ProductID); i >= 0 {
		c.items[i] = item
		return
	}
	c.items = append(c.items, item)
}

func (c *Container) indexOfProduct(userID, productID uuid.UUID) int {
	for i := range c.items {
		if c.items[i].UserID == userID && c.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Container) unlockAndNotify() {
	notify := c.onChange
	c.mu.Unlock()
	if notify != nil {
		notify()
	}
}
