package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/your-org/storefront-sync/internal/domain/wishlist"
	"github.com/your-org/storefront-sync/internal/feed"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WishlistRepository stores wishlist_items rows
type WishlistRepository struct {
	db     *gorm.DB
	events *eventPublisher
}

// ListByUser returns the user's wishlist, newest first
func (r *WishlistRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]wishlist.WishlistItem, error) {
	var items []wishlist.WishlistItem
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// FindByUserAndProduct returns the user's entry for productID
func (r *WishlistRepository) FindByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*wishlist.WishlistItem, error) {
	var item wishlist.WishlistItem
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&item).Error
	if err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

// Insert adds the pair, leaving an existing row untouched
func (r *WishlistRepository) Insert(ctx context.Context, userID, productID uuid.UUID) (*wishlist.WishlistItem, error) {
	item := wishlist.WishlistItem{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: productID,
		CreatedAt: time.Now().UTC(),
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}, clause.Returning{}).
		Create(&item)
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		// lost the race to another toggle; report the stored row
		return r.FindByUserAndProduct(ctx, userID, productID)
	}

	r.events.publish(ctx, feed.TableWishlistItems, feed.EventInsert, item, nil)
	return &item, nil
}

// Delete removes the row when it belongs to userID
func (r *WishlistRepository) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	var item wishlist.WishlistItem
	result := r.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&item)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	r.events.publish(ctx, feed.TableWishlistItems, feed.EventDelete, nil, item)
	return true, nil
}
