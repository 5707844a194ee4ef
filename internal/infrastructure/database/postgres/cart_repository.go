package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/your-org/storefront-sync/internal/domain/cart"
	"github.com/your-org/storefront-sync/internal/feed"
	"github.com/your-org/storefront-sync/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartRepository stores cart_items rows
type CartRepository struct {
	db     *gorm.DB
	events *eventPublisher
}

// ListByUser returns the user's cart in insertion order
func (r *CartRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]cart.CartItem, error) {
	var items []cart.CartItem
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// FindByID returns one cart item
func (r *CartRepository) FindByID(ctx context.Context, id uuid.UUID) (*cart.CartItem, error) {
	var item cart.CartItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

// Upsert inserts the (user, product) line or adds quantity to the existing
// one in a single statement guarded by idx_cart_items_user_product
func (r *CartRepository) Upsert(ctx context.Context, userID, productID uuid.UUID, quantity int) (*cart.CartItem, error) {
	if quantity < 1 {
		return nil, cart.ErrInvalidQuantity
	}

	now := time.Now().UTC()
	candidate := uuid.New()
	item := cart.CartItem{
		ID:        candidate,
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity":   gorm.Expr("cart_items.quantity + EXCLUDED.quantity"),
				"updated_at": gorm.Expr("EXCLUDED.updated_at"),
			}),
		},
		clause.Returning{},
	).Create(&item).Error
	if err != nil {
		return nil, err
	}

	// the conflict branch returns the existing row's id
	eventType := feed.EventInsert
	if item.ID != candidate {
		eventType = feed.EventUpdate
	}
	r.events.publish(ctx, feed.TableCartItems, eventType, item, nil)

	return &item, nil
}

// UpdateQuantity sets the quantity of the row when it belongs to userID
func (r *CartRepository) UpdateQuantity(ctx context.Context, id, userID uuid.UUID, quantity int) (*cart.CartItem, error) {
	if quantity < 1 {
		return nil, cart.ErrInvalidQuantity
	}

	var item cart.CartItem
	result := r.db.WithContext(ctx).
		Model(&item).
		Clauses(clause.Returning{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{
			"quantity":   quantity,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, store.ErrNotFound
	}

	r.events.publish(ctx, feed.TableCartItems, feed.EventUpdate, item, nil)
	return &item, nil
}

// Delete removes the row when it belongs to userID
func (r *CartRepository) Delete(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	var item cart.CartItem
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

	r.events.publish(ctx, feed.TableCartItems, feed.EventDelete, nil, item)
	return true, nil
}
