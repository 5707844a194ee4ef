// internal/domain/cart/entity.go
package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidQuantity is returned when a quantity below one is requested
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrItemNotFound is returned when a cart item is not held by the session
	ErrItemNotFound = errors.New("item not found in cart")
)

// CartItem is one product line of a user's cart. At most one row exists per
// (user_id, product_id).
type CartItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_items_user_product" json:"user_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cart_items_user_product" json:"product_id"`
	Quantity  int       `gorm:"not null;default:1;check:quantity > 0" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (CartItem) TableName() string {
	return "cart_items"
}

// Totals represents calculated cart totals
type Totals struct {
	ItemCount   int             `json:"item_count"`   // Sum of all quantities
	LineCount   int             `json:"line_count"`   // Number of distinct products
	SubTotal    decimal.Decimal `json:"sub_total"`    // Priced lines only
	UnpricedIDs []uuid.UUID     `json:"unpriced_ids"` // Lines whose product is not loaded
}

// Repository is the remote store view of the cart_items table
type Repository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]CartItem, error)
	FindByID(ctx context.Context, id uuid.UUID) (*CartItem, error)
	// Upsert adds quantity to the (user, product) row, inserting it when absent.
	Upsert(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartItem, error)
	// UpdateQuantity sets the quantity of the row only if it belongs to userID.
	UpdateQuantity(ctx context.Context, id, userID uuid.UUID, quantity int) (*CartItem, error)
	// Delete removes the row only if it belongs to userID.
	Delete(ctx context.Context, id, userID uuid.UUID) (bool, error)
}
