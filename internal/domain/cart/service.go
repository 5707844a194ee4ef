// internal/domain/cart/service.go
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-sync/internal/pkg/debounce"
	"github.com/your-org/storefront-sync/internal/store"
)

const (
	DefaultDebounceWindow = 400 * time.Millisecond
	DefaultWriteTimeout   = 10 * time.Second
)

// Service handles cart mutations for one session: optimistic container
// updates, debounced remote writes and correction after failed writes.
type Service struct {
	repo      Repository
	container *Container
	logger    *logrus.Entry

	window       time.Duration
	writeTimeout time.Duration
	onError      func(itemID uuid.UUID, err error)

	// quantityMu orders container adjustments with their remote writes
	quantityMu sync.Mutex
	writes     *debounce.Debouncer[uuid.UUID, queuedQuantity]
}

// queuedQuantity is a debounced quantity write for one of userID's items
type queuedQuantity struct {
	userID   uuid.UUID
	quantity int
}

var errServiceClosed = errors.New("cart service closed")

// Option configures a Service
type Option func(*Service)

// WithDebounceWindow sets the settling window for queued quantity writes
func WithDebounceWindow(window time.Duration) Option {
	return func(s *Service) { s.window = window }
}

// WithWriteTimeout bounds each background remote write
func WithWriteTimeout(timeout time.Duration) Option {
	return func(s *Service) { s.writeTimeout = timeout }
}

// WithErrorHandler receives failures of background quantity writes after the
// container has been corrected
func WithErrorHandler(fn func(itemID uuid.UUID, err error)) Option {
	return func(s *Service) { s.onError = fn }
}

// WithLogger sets the logger
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a new cart service bound to the session's container
func NewService(repo Repository, container *Container, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		container:    container,
		logger:       logrus.NewEntry(logrus.StandardLogger()),
		window:       DefaultDebounceWindow,
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.writes = debounce.New(s.window, s.flushQuantity)
	return s
}

// AddToCart adds quantity of productID to the user's cart, merging into an
// existing line. The container is not touched; the feed echo updates it.
func (s *Service) AddToCart(ctx context.Context, productID, userID uuid.UUID, quantity int) (bool, error) {
	if quantity < 1 {
		return false, ErrInvalidQuantity
	}

	item, err := s.repo.Upsert(ctx, userID, productID, quantity)
	if err != nil {
		return false, fmt.Errorf("failed to add item to cart: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"cart_item_id": item.ID,
		"product_id":   productID,
		"quantity":     item.Quantity,
	}).Debug("Cart item upserted")
	return true, nil
}

// UpdateCartQuantity applies quantity to the container immediately and
// persists it. The write is ordered after any queued write for the item that
// is already running. On failure the container is corrected from the store
// and the write error is returned.
func (s *Service) UpdateCartQuantity(ctx context.Context, cartItemID, userID uuid.UUID, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	s.quantityMu.Lock()
	if !s.holds(cartItemID, userID) {
		s.quantityMu.Unlock()
		return ErrItemNotFound
	}
	s.container.Update(cartItemID, quantity)
	// supersedes queued writes for this item
	ticket, ok := s.writes.Claim(cartItemID)
	s.quantityMu.Unlock()
	if !ok {
		return errServiceClosed
	}

	var err error
	ticket.Run(func() {
		err = s.persistQuantity(ctx, cartItemID, userID, quantity)
	})
	return err
}

// QueueQuantity applies quantity to the container immediately and schedules
// the remote write. Bursts for the same item collapse into one write that
// carries the latest quantity.
func (s *Service) QueueQuantity(cartItemID, userID uuid.UUID, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	s.quantityMu.Lock()
	defer s.quantityMu.Unlock()

	if !s.holds(cartItemID, userID) {
		return ErrItemNotFound
	}
	s.container.Update(cartItemID, quantity)
	if !s.writes.Call(cartItemID, queuedQuantity{userID: userID, quantity: quantity}) {
		return errServiceClosed
	}
	return nil
}

// Increment raises the item's quantity by one using the debounced path
func (s *Service) Increment(cartItemID, userID uuid.UUID) (int, error) {
	return s.adjust(cartItemID, userID, 1)
}

// Decrement lowers the item's quantity by one. It never removes the item.
func (s *Service) Decrement(cartItemID, userID uuid.UUID) (int, error) {
	return s.adjust(cartItemID, userID, -1)
}

// RemoveFromCart deletes the item, scoped to userID
func (s *Service) RemoveFromCart(ctx context.Context, cartItemID, userID uuid.UUID) (bool, error) {
	s.writes.Cancel(cartItemID)

	removed, err := s.repo.Delete(ctx, cartItemID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to remove item from cart: %w", err)
	}
	return removed, nil
}

// Flush sends queued quantity writes now
func (s *Service) Flush() {
	s.writes.Flush()
}

// Close flushes queued writes and rejects further queued updates
func (s *Service) Close() {
	s.writes.Flush()
	s.writes.Stop()
}

func (s *Service) adjust(cartItemID, userID uuid.UUID, delta int) (int, error) {
	s.quantityMu.Lock()
	defer s.quantityMu.Unlock()

	if !s.holds(cartItemID, userID) {
		return 0, ErrItemNotFound
	}

	quantity, ok := s.container.Adjust(cartItemID, delta)
	if !ok {
		return 0, ErrInvalidQuantity
	}
	if !s.writes.Call(cartItemID, queuedQuantity{userID: userID, quantity: quantity}) {
		return 0, errServiceClosed
	}
	return quantity, nil
}

// holds reports whether the container has cartItemID as one of userID's lines
func (s *Service) holds(cartItemID, userID uuid.UUID) bool {
	item, ok := s.container.Get(cartItemID)
	return ok && item.UserID == userID
}

func (s *Service) flushQuantity(cartItemID uuid.UUID, queued queuedQuantity) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	if err := s.persistQuantity(ctx, cartItemID, queued.userID, queued.quantity); err != nil && s.onError != nil {
		s.onError(cartItemID, err)
	}
}

func (s *Service) persistQuantity(ctx context.Context, cartItemID, userID uuid.UUID, quantity int) error {
	if _, err := s.repo.UpdateQuantity(ctx, cartItemID, userID, quantity); err != nil {
		s.logger.WithError(err).WithField("cart_item_id", cartItemID).Warn("Cart quantity write failed, re-reading")
		s.reconcile(ctx, cartItemID, userID)
		return fmt.Errorf("failed to update cart quantity: %w", err)
	}
	return nil
}

// reconcile sets the container to the store's view of one item. It runs
// even when the failed write's context is already done.
func (s *Service) reconcile(ctx context.Context, cartItemID, userID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	item, err := s.repo.FindByID(ctx, cartItemID)
	switch {
	case store.IsNotFound(err), err == nil && item.UserID != userID:
		s.container.Remove(cartItemID)
	case err != nil:
		s.logger.WithError(err).WithField("cart_item_id", cartItemID).Error("Failed to re-read cart item")
	default:
		s.container.Update(item.ID, item.Quantity)
	}
}
