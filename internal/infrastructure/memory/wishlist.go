package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/your-org/storefront-sync/internal/domain/wishlist"
	"github.com/your-org/storefront-sync/internal/feed"
	"github.com/your-org/storefront-sync/internal/store"
)

type wishlistRepository struct{ s *Store }

func (r *wishlistRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]wishlist.WishlistItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	items := make([]wishlist.WishlistItem, 0)
	for _, item := range r.s.wishlist {
		if item.UserID == userID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (r *wishlistRepository) FindByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*wishlist.WishlistItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if item, ok := r.s.findWishlistItem(userID, productID); ok {
		return &item, nil
	}
	return nil, store.ErrNotFound
}

func (r *wishlistRepository) Insert(ctx context.Context, userID, productID uuid.UUID) (*wishlist.WishlistItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result wishlist.WishlistItem
	r.s.write(ctx, func() []feed.Event {
		if existing, ok := r.s.findWishlistItem(userID, productID); ok {
			result = existing
			return nil
		}
		result = wishlist.WishlistItem{
			ID:        uuid.New(),
			UserID:    userID,
			ProductID: productID,
			CreatedAt: r.s.now(),
		}
		r.s.wishlist[result.ID] = result
		return r.s.events(feed.TableWishlistItems, feed.EventInsert, result, nil)
	})
	return &result, nil
}

func (r *wishlistRepository) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var removed bool
	r.s.write(ctx, func() []feed.Event {
		item, ok := r.s.wishlist[id]
		if !ok || item.UserID != userID {
			return nil
		}
		delete(r.s.wishlist, id)
		removed = true
		return r.s.events(feed.TableWishlistItems, feed.EventDelete, nil, item)
	})
	return removed, nil
}

func (s *Store) findWishlistItem(userID, productID uuid.UUID) (wishlist.WishlistItem, bool) {
	for _, item := range s.wishlist {
		if item.UserID == userID && item.ProductID == productID {
			return item, true
		}
	}
	return wishlist.WishlistItem{}, false
}
