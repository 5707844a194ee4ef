// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-sync/internal/domain/cart"
	"github.com/your-org/storefront-sync/internal/domain/product"
	"github.com/your-org/storefront-sync/internal/domain/user"
	"github.com/your-org/storefront-sync/internal/domain/wishlist"
	"gorm.io/gorm"
)

// Development accounts created by SeedInitialData
var (
	DemoAdminID   = uuid.MustParse("0b7e7c1e-5a8e-4f57-9a36-2f1c4d1e0a01")
	DemoShopperID = uuid.MustParse("0b7e7c1e-5a8e-4f57-9a36-2f1c4d1e0a02")
)

// Migration handles database migrations
type Migration struct {
	db     *gorm.DB
	logger *logrus.Entry
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB, logger *logrus.Entry) *Migration {
	return &Migration{
		db:     db,
		logger: logger,
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	m.logger.Info("🔄 Running database auto-migrations...")

	// Define all models that need migration in dependency order
	models := []interface{}{
		&user.User{},
		&product.Product{},
		&cart.CartItem{},
		&wishlist.WishlistItem{},
	}

	for _, model := range models {
		m.logger.Debugf("Migrating model: %T", model)
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	m.logger.Info("✅ Database auto-migrations completed successfully")
	return nil
}

// CreateIndexes creates additional indexes for better performance
func (m *Migration) CreateIndexes() error {
	m.logger.Info("🔄 Creating additional database indexes...")

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_cart_items_user ON cart_items(user_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_wishlist_items_user ON wishlist_items(user_id, created_at DESC)",
	}

	successCount := 0
	failCount := 0

	for _, indexSQL := range indexes {
		if err := m.db.Exec(indexSQL).Error; err != nil {
			m.logger.WithError(err).Warn("⚠️ Failed to create index")
			failCount++
		} else {
			successCount++
		}
	}

	m.logger.Infof("✅ Created %d indexes successfully (%d failed)", successCount, failCount)
	return nil
}

// SeedInitialData inserts a demo catalog and test users in development
func (m *Migration) SeedInitialData() error {
	m.logger.Info("🌱 Seeding initial data...")

	if err := m.seedUsers(); err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	if err := m.seedProducts(); err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}

	m.logger.Info("✅ Initial data seeded successfully")
	return nil
}

func (m *Migration) seedUsers() error {
	for _, u := range DemoUsers() {
		var existing user.User
		err := m.db.Where("email = ?", u.Email).First(&existing).Error
		switch {
		case err == nil:
			m.logger.Debugf("⏭️ User already exists: %s", u.Email)
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := m.db.Create(&u).Error; err != nil {
				return err
			}
			m.logger.Infof("✅ Created user: %s (id %s)", u.Email, u.ID)
		default:
			return err
		}
	}
	return nil
}

func (m *Migration) seedProducts() error {
	var productCount int64
	if err := m.db.Model(&product.Product{}).Count(&productCount).Error; err != nil {
		return err
	}
	if productCount > 0 {
		m.logger.Debug("⏭️ Products already exist")
		return nil
	}

	products := DemoProducts()
	if err := m.db.Create(&products).Error; err != nil {
		return err
	}
	m.logger.Infof("✅ Created %d products", len(products))
	return nil
}

// GetTableInfo logs the row count of every synchronized table
func (m *Migration) GetTableInfo() {
	tables := []string{"users", "products", "cart_items", "wishlist_items"}

	for _, table := range tables {
		var count int64
		if err := m.db.Table(table).Count(&count).Error; err != nil {
			m.logger.WithError(err).Warnf("Failed to count %s", table)
			continue
		}
		m.logger.WithField("rows", count).Infof("📊 Table %s", table)
	}
}

// DemoUsers returns the development accounts. Their ids are fixed so that
// scripts/generate_token.go can mint tokens for them.
func DemoUsers() []user.User {
	return []user.User{
		{ID: DemoAdminID, Email: "admin@example.com", Name: "Admin User", IsAdmin: true},
		{ID: DemoShopperID, Email: "test1@example.com", Name: "Test User"},
	}
}

// DemoProducts returns the development catalog
func DemoProducts() []product.Product {
	return []product.Product{
		{
			Name:          "Premium Gaming Laptop",
			Description:   "High-performance gaming laptop with dedicated graphics",
			Price:         decimal.RequireFromString("1999.99"),
			StockQuantity: 10,
			Review:        4.6,
		},
		{
			Name:          "Wireless Earbuds",
			Description:   "Noise cancelling earbuds with 24h battery",
			Price:         decimal.RequireFromString("129.00"),
			StockQuantity: 50,
			Review:        4.2,
		},
		{
			Name:          "Cotton T-Shirt",
			Description:   "Organic cotton crew neck",
			Price:         decimal.RequireFromString("19.90"),
			StockQuantity: 200,
			Review:        4.0,
		},
	}
}
