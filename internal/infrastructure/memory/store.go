// Package memory is a process-local remote store. It backs STORE_DRIVER=memory
// and the service tests, and publishes the same change events as the
// Postgres repositories.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-sync/internal/domain/cart"
	"github.com/your-org/storefront-sync/internal/domain/product"
	"github.com/your-org/storefront-sync/internal/domain/user"
	"github.com/your-org/storefront-sync/internal/domain/wishlist"
	"github.com/your-org/storefront-sync/internal/feed"
	"github.com/your-org/storefront-sync/internal/store"
)

// Store holds every table in maps guarded by one lock
type Store struct {
	mu       sync.RWMutex
	products map[uuid.UUID]product.Product
	users    map[uuid.UUID]user.User
	cart     map[uuid.UUID]cart.CartItem
	wishlist map[uuid.UUID]wishlist.WishlistItem

	// pubMu keeps events in write order without holding mu while publishing
	pubMu     sync.Mutex
	publisher feed.Publisher
	logger    *logrus.Entry
	now       func() time.Time
}

// NewStore creates an empty store publishing to publisher. publisher may be nil.
func NewStore(publisher feed.Publisher, logger *logrus.Entry) *Store {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{
		products:  make(map[uuid.UUID]product.Product),
		users:     make(map[uuid.UUID]user.User),
		cart:      make(map[uuid.UUID]cart.CartItem),
		wishlist:  make(map[uuid.UUID]wishlist.WishlistItem),
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Products returns the products repository
func (s *Store) Products() product.Repository { return &productRepository{s} }

// Cart returns the cart_items repository
func (s *Store) Cart() cart.Repository { return &cartRepository{s} }

// Wishlist returns the wishlist_items repository
func (s *Store) Wishlist() wishlist.Repository { return &wishlistRepository{s} }

// Users returns the users repository
func (s *Store) Users() user.Repository { return &userRepository{s} }

// PutProduct inserts or replaces a product
func (s *Store) PutProduct(ctx context.Context, p product.Product) product.Product {
	s.write(ctx, func() []feed.Event {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = s.now()
		}
		eventType := feed.EventInsert
		if _, ok := s.products[p.ID]; ok {
			eventType = feed.EventUpdate
		}
		s.products[p.ID] = p
		return s.events(feed.TableProducts, eventType, p, nil)
	})
	return p
}

// DeleteProduct removes a product
func (s *Store) DeleteProduct(ctx context.Context, id uuid.UUID) bool {
	var removed bool
	s.write(ctx, func() []feed.Event {
		old, ok := s.products[id]
		if !ok {
			return nil
		}
		delete(s.products, id)
		removed = true
		return s.events(feed.TableProducts, feed.EventDelete, nil, old)
	})
	return removed
}

// PutUser inserts or replaces a user
func (s *Store) PutUser(ctx context.Context, u user.User) user.User {
	s.write(ctx, func() []feed.Event {
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		if u.CreatedAt.IsZero() {
			u.CreatedAt = s.now()
		}
		_ = u.BeforeCreate(nil)
		s.users[u.ID] = u
		return nil
	})
	return u
}

// write runs mutate under the data lock and publishes what it returns once
// the lock is released
func (s *Store) write(ctx context.Context, mutate func() []feed.Event) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	events := mutate()
	s.mu.Unlock()

	if s.publisher == nil {
		return
	}
	for _, event := range events {
		if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
			s.logger.WithError(err).WithField("table", event.Table).Warn("Failed to publish change event")
		}
	}
}

func (s *Store) events(table string, eventType feed.EventType, newRow, oldRow interface{}) []feed.Event {
	event, err := feed.NewEvent(table, eventType, newRow, oldRow)
	if err != nil {
		s.logger.WithError(err).WithField("table", table).Error("Failed to encode change event")
		return nil
	}
	return []feed.Event{event}
}

type productRepository struct{ s *Store }

func (r *productRepository) List(ctx context.Context) ([]product.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	products := make([]product.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool {
		if !products[i].CreatedAt.Equal(products[j].CreatedAt) {
			return products[i].CreatedAt.After(products[j].CreatedAt)
		}
		return products[i].Name < products[j].Name
	})
	return products, nil
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

type userRepository struct{ s *Store }

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}
