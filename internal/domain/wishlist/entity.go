package wishlist

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// WishlistItem marks a product as wished for by a user. Presence is the
// state; there is at most one row per (user_id, product_id).
type WishlistItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_wishlist_items_user_product" json:"user_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_wishlist_items_user_product" json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name
func (WishlistItem) TableName() string {
	return "wishlist_items"
}

// Repository is the remote store view of the wishlist_items table
type Repository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]WishlistItem, error)
	FindByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*WishlistItem, error)
	// Insert creates the row; when the pair already exists the existing row is returned.
	Insert(ctx context.Context, userID, productID uuid.UUID) (*WishlistItem, error)
	// Delete removes the row only if it belongs to userID.
	Delete(ctx context.Context, id, userID uuid.UUID) (bool, error)
}
