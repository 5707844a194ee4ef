package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/your-org/storefront-sync/internal/domain/cart"
	"github.com/your-org/storefront-sync/internal/feed"
	"github.com/your-org/storefront-sync/internal/store"
)

type cartRepository struct{ s *Store }

func (r *cartRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]cart.CartItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	items := make([]cart.CartItem, 0)
	for _, item := range r.s.cart {
		if item.UserID == userID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (r *cartRepository) FindByID(ctx context.Context, id uuid.UUID) (*cart.CartItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	item, ok := r.s.cart[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

// Upsert runs the lookup and the write under one lock, the in-memory
// equivalent of the unique index
func (r *cartRepository) Upsert(ctx context.Context, userID, productID uuid.UUID, quantity int) (*cart.CartItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, cart.ErrInvalidQuantity
	}

	var result cart.CartItem
	r.s.write(ctx, func() []feed.Event {
		now := r.s.now()
		if existing, ok := r.s.findCartItem(userID, productID); ok {
			existing.Quantity += quantity
			existing.UpdatedAt = now
			r.s.cart[existing.ID] = existing
			result = existing
			return r.s.events(feed.TableCartItems, feed.EventUpdate, existing, nil)
		}

		result = cart.CartItem{
			ID:        uuid.New(),
			UserID:    userID,
			ProductID: productID,
			Quantity:  quantity,
			CreatedAt: now,
			UpdatedAt: now,
		}
		r.s.cart[result.ID] = result
		return r.s.events(feed.TableCartItems, feed.EventInsert, result, nil)
	})
	return &result, nil
}

func (r *cartRepository) UpdateQuantity(ctx context.Context, id, userID uuid.UUID, quantity int) (*cart.CartItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, fmt.Errorf("cart item %s: %w", id, cart.ErrInvalidQuantity)
	}

	var (
		result cart.CartItem
		found  bool
	)
	r.s.write(ctx, func() []feed.Event {
		item, ok := r.s.cart[id]
		if !ok || item.UserID != userID {
			return nil
		}
		found = true
		item.Quantity = quantity
		item.UpdatedAt = r.s.now()
		r.s.cart[id] = item
		result = item
		return r.s.events(feed.TableCartItems, feed.EventUpdate, item, nil)
	})
	if !found {
		return nil, store.ErrNotFound
	}
	return &result, nil
}

func (r *cartRepository) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var removed bool
	r.s.write(ctx, func() []feed.Event {
		item, ok := r.s.cart[id]
		if !ok || item.UserID != userID {
			return nil
		}
		delete(r.s.cart, id)
		removed = true
		return r.s.events(feed.TableCartItems, feed.EventDelete, nil, item)
	})
	return removed, nil
}

func (s *Store) findCartItem(userID, productID uuid.UUID) (cart.CartItem, bool) {
	for _, item := range s.cart {
		if item.UserID == userID && item.ProductID == productID {
			return item, true
		}
	}
	return cart.CartItem{}, false
}
