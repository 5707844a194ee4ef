// internal/domain/product/entity.go
package product

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product represents a catalog entry. The synchronization core only reads it.
type Product struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string          `gorm:"not null;size:255" json:"name"`
	Description   string          `gorm:"type:text" json:"description"`
	Price         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	StockQuantity int             `gorm:"not null;default:0;check:stock_quantity >= 0" json:"stock_quantity"`
	ImageURL      string          `gorm:"size:500" json:"image_url"`
	Review        float64         `gorm:"default:0" json:"review"` // average rating
	CreatedAt     time.Time       `json:"created_at"`
}

// TableName overrides the table name
func (Product) TableName() string {
	return "products"
}

// BeforeCreate assigns an id to new products
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// InStock reports whether at least one unit is available
func (p Product) InStock() bool {
	return p.StockQuantity > 0
}

// Repository is the remote store view of the products table
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
}
