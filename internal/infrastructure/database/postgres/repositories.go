package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-sync/internal/domain/product"
	"github.com/your-org/storefront-sync/internal/domain/user"
	"github.com/your-org/storefront-sync/internal/feed"
	"github.com/your-org/storefront-sync/internal/store"
	"gorm.io/gorm"
)

// Repositories bundles the gorm repositories of every synchronized table.
// Writes are published to the change feed after they commit.
type Repositories struct {
	Products *ProductRepository
	Cart     *CartRepository
	Wishlist *WishlistRepository
	Users    *UserRepository
}

// NewRepositories creates the repositories. publisher may be nil.
func NewRepositories(db *gorm.DB, publisher feed.Publisher, logger *logrus.Entry) *Repositories {
	events := &eventPublisher{publisher: publisher, logger: logger}
	return &Repositories{
		Products: &ProductRepository{db: db},
		Cart:     &CartRepository{db: db, events: events},
		Wishlist: &WishlistRepository{db: db, events: events},
		Users:    &UserRepository{db: db},
	}
}

type eventPublisher struct {
	publisher feed.Publisher
	logger    *logrus.Entry
}

// publish reports a committed write. A failure is logged, not returned: the
// row is already stored.
func (p *eventPublisher) publish(ctx context.Context, table string, eventType feed.EventType, newRow, oldRow interface{}) {
	if p.publisher == nil {
		return
	}

	event, err := feed.NewEvent(table, eventType, newRow, oldRow)
	if err != nil {
		p.logger.WithError(err).WithField("table", table).Error("Failed to encode change event")
		return
	}

	if err := p.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"table": table,
			"type":  eventType,
		}).Warn("Failed to publish change event")
	}
}

// translate maps gorm's not-found onto the store vocabulary
func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}

// ProductRepository reads the products table
type ProductRepository struct {
	db *gorm.DB
}

// List returns the catalog, newest first
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	var products []product.Product
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// FindByID returns one product
func (r *ProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	var p product.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// UserRepository reads the users table
type UserRepository struct {
	db *gorm.DB
}

// FindByID returns the user projection
func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	var u user.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}
