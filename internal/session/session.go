// Package session owns the per-user state containers and keeps them in step
// with the remote store: initial load, change feed subscriptions and
// teardown on sign-out.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-sync/internal/domain/cart"
	"github.com/your-org/storefront-sync/internal/domain/product"
	"github.com/your-org/storefront-sync/internal/domain/user"
	"github.com/your-org/storefront-sync/internal/domain/wishlist"
	"github.com/your-org/storefront-sync/internal/feed"
)

var (
	// ErrNotAuthenticated is returned by user-scoped operations before Start
	ErrNotAuthenticated = errors.New("session is not authenticated")
	// ErrAlreadyStarted is returned when Start is called on a live session
	ErrAlreadyStarted = errors.New("session already started")
)

// State of the session lifecycle
type State int32

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Stores are the remote collaborators of a session
type Stores struct {
	Products product.Repository
	Cart     cart.Repository
	Wishlist wishlist.Repository
	Users    user.Repository
	Feed     feed.Subscriber
}

// Options tune a session
type Options struct {
	DebounceWindow time.Duration
	WriteTimeout   time.Duration
	Logger         *logrus.Entry
}

// Session is one browser session's view of the store
type Session struct {
	stores Stores
	opts   Options
	logger *logrus.Entry

	products *product.Container
	cart     *cart.Container
	wishlist *wishlist.Container
	user     *user.Container

	wishlistService *wishlist.Service

	// lifecycle serializes Start and End
	lifecycle sync.Mutex
	state     atomic.Int32

	mu          sync.RWMutex
	userID      uuid.UUID
	cartService *cart.Service
	subs        []*feed.Subscription
	cancel      context.CancelFunc
	loops       sync.WaitGroup

	watchMu  sync.Mutex
	watchers map[*Watcher]struct{}
}

// New creates an unauthenticated session
func New(stores Stores, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = cart.DefaultDebounceWindow
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = cart.DefaultWriteTimeout
	}

	s := &Session{
		stores:          stores,
		opts:            opts,
		logger:          opts.Logger,
		products:        product.NewContainer(),
		cart:            cart.NewContainer(),
		wishlist:        wishlist.NewContainer(),
		user:            user.NewContainer(),
		wishlistService: wishlist.NewService(stores.Wishlist, opts.Logger),
		watchers:        make(map[*Watcher]struct{}),
	}

	s.products.OnChange(s.changed)
	s.cart.OnChange(s.changed)
	s.wishlist.OnChange(s.changed)
	s.user.OnChange(s.changed)
	return s
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return State(s.state.Load())
}

// UserID returns the signed-in user, or uuid.Nil
func (s *Session) UserID() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Products returns the session's products container
func (s *Session) Products() *product.Container { return s.products }

// Cart returns the session's cart container
func (s *Session) Cart() *cart.Container { return s.cart }

// Wishlist returns the session's wishlist container
func (s *Session) Wishlist() *wishlist.Container { return s.wishlist }

// User returns the session's user container
func (s *Session) User() *user.Container { return s.user }

// LoadCatalog fetches the global product list if it has not been loaded yet
func (s *Session) LoadCatalog(ctx context.Context) error {
	if s.products.Loaded() {
		return nil
	}
	return s.refreshProducts(ctx)
}

// Start loads the user's cart and wishlist and then subscribes to their
// changes. On any failure every subscription already opened is closed and
// the session is left unauthenticated.
func (s *Session) Start(ctx context.Context, userID uuid.UUID) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.State() != StateUnauthenticated {
		return ErrAlreadyStarted
	}
	s.setState(StateAuthenticating)

	if err := s.start(ctx, userID); err != nil {
		s.cart.Clear()
		s.wishlist.Clear()
		s.user.Clear()
		s.setState(StateUnauthenticated)
		return err
	}

	s.setState(StateAuthenticated)
	entry := s.logger.WithField("user_id", userID)
	if u, ok := s.user.Get(); ok {
		entry = entry.WithField("user", u.GetDisplayName())
	}
	entry.Info("Session started")
	return nil
}

func (s *Session) start(ctx context.Context, userID uuid.UUID) (err error) {
	u, err := s.stores.Users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	items, err := s.stores.Cart.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load cart: %w", err)
	}

	wished, err := s.stores.Wishlist.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load wishlist: %w", err)
	}

	if err := s.LoadCatalog(ctx); err != nil {
		return err
	}

	s.user.Set(*u)
	s.cart.Set(items)
	s.wishlist.Set(wished)

	// subscriptions open only after the load has been dispatched
	feeds := []struct {
		table  string
		filter *feed.Filter
		handle func(context.Context, feed.Event)
	}{
		{feed.TableProducts, nil, s.applyProductEvent},
		{feed.TableCartItems, feed.Eq("user_id", userID), s.applyCartEvent},
		{feed.TableWishlistItems, feed.Eq("user_id", userID), s.applyWishlistEvent},
	}

	subs := make([]*feed.Subscription, 0, len(feeds))
	defer func() {
		if err != nil {
			for _, sub := range subs {
				sub.Close()
			}
		}
	}()

	for _, f := range feeds {
		sub, err := s.stores.Feed.Subscribe(ctx, f.table, f.filter)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", f.table, err)
		}
		subs = append(subs, sub)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	svc := cart.NewService(s.stores.Cart, s.cart,
		cart.WithDebounceWindow(s.opts.DebounceWindow),
		cart.WithWriteTimeout(s.opts.WriteTimeout),
		cart.WithLogger(s.logger.WithField("user_id", userID)),
		cart.WithErrorHandler(s.quantityFailed),
	)

	s.mu.Lock()
	s.userID = userID
	s.cartService = svc
	s.subs = subs
	s.cancel = cancel
	s.mu.Unlock()

	for i, sub := range subs {
		s.loops.Add(1)
		go s.consume(loopCtx, sub, feeds[i].table, feeds[i].handle)
	}
	return nil
}

// End unsubscribes every feed, waits for the event loops, sends queued
// quantity writes and clears the per-user containers. It is idempotent.
func (s *Session) End() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.State() == StateUnauthenticated {
		return
	}

	s.mu.Lock()
	subs, cancel, svc, userID := s.subs, s.cancel, s.cartService, s.userID
	s.subs, s.cancel, s.cartService, s.userID = nil, nil, nil, uuid.Nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, sub := range subs {
		sub.Close()
	}
	s.loops.Wait()

	if svc != nil {
		svc.Close()
	}

	s.cart.Clear()
	s.wishlist.Clear()
	s.user.Clear()
	s.setState(StateUnauthenticated)
	s.logger.WithField("user_id", userID).Info("Session ended")
}

func (s *Session) consume(ctx context.Context, sub *feed.Subscription, table string, handle func(context.Context, feed.Event)) {
	defer s.loops.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				if ctx.Err() == nil {
					s.logger.WithField("table", table).Warn("Change feed dropped; updates stop until the session restarts")
					s.notify(Notice{Level: NoticeWarning, Message: "Live updates for " + table + " stopped"})
				}
				return
			}
			handle(ctx, event)
		}
	}
}

// applyProductEvent re-reads the whole catalog on any product change
func (s *Session) applyProductEvent(ctx context.Context, _ feed.Event) {
	if err := s.refreshProducts(ctx); err != nil && ctx.Err() == nil {
		s.logger.WithError(err).Warn("Failed to refresh products")
	}
}

func (s *Session) applyCartEvent(_ context.Context, event feed.Event) {
	var item cart.CartItem
	if err := event.Decode(&item); err != nil {
		s.logger.WithError(err).Warn("Dropping undecodable cart event")
		return
	}

	switch event.Type {
	case feed.EventInsert:
		s.cart.Add(item)
	case feed.EventUpdate:
		// an update for a row this session never saw is treated as an insert
		if !s.cart.Update(item.ID, item.Quantity) {
			s.cart.Add(item)
		}
	case feed.EventDelete:
		s.cart.Remove(item.ID)
	}
}

func (s *Session) applyWishlistEvent(_ context.Context, event feed.Event) {
	var item wishlist.WishlistItem
	if err := event.Decode(&item); err != nil {
		s.logger.WithError(err).Warn("Dropping undecodable wishlist event")
		return
	}

	switch event.Type {
	case feed.EventInsert, feed.EventUpdate:
		s.wishlist.Add(item)
	case feed.EventDelete:
		s.wishlist.Remove(item.ID)
	}
}

func (s *Session) refreshProducts(ctx context.Context) error {
	products, err := s.stores.Products.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}
	s.products.Set(products)
	return nil
}

func (s *Session) quantityFailed(cartItemID uuid.UUID, err error) {
	s.notify(Notice{
		Level:      NoticeError,
		Message:    "Could not save the new quantity",
		CartItemID: &cartItemID,
	})
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
	s.changed()
}

// authenticated returns the user and cart service of a started session
func (s *Session) authenticated() (uuid.UUID, *cart.Service, error) {
	if s.State() != StateAuthenticated {
		return uuid.Nil, nil, ErrNotAuthenticated
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cartService == nil {
		return uuid.Nil, nil, ErrNotAuthenticated
	}
	return s.userID, s.cartService, nil
}
