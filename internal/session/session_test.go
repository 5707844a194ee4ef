package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-sync/internal/domain/cart"
	"github.com/your-org/storefront-sync/internal/domain/product"
	"github.com/your-org/storefront-sync/internal/domain/user"
	"github.com/your-org/storefront-sync/internal/feed"
	"github.com/your-org/storefront-sync/internal/infrastructure/memory"
	"github.com/your-org/storefront-sync/internal/session"
)

const waitFor = 2 * time.Second
const tick = 10 * time.Millisecond

type fixture struct {
	hub   *feed.Hub
	store *memory.Store
	user  user.User
	opts  session.Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	hub := feed.NewHub()
	st := memory.NewStore(hub, logrus.NewEntry(logger))

	f := &fixture{
		hub:   hub,
		store: st,
		user:  st.PutUser(context.Background(), user.User{Email: "ada@example.com", Name: "Ada"}),
		opts:  session.Options{DebounceWindow: 20 * time.Millisecond, Logger: logrus.NewEntry(logger)},
	}
	st.PutProduct(context.Background(), product.Product{Name: "Mug", Price: decimal.RequireFromString("9.50"), StockQuantity: 5})
	return f
}

func (f *fixture) stores(subscriber feed.Subscriber) session.Stores {
	if subscriber == nil {
		subscriber = f.hub
	}
	return session.Stores{
		Products: f.store.Products(),
		Cart:     f.store.Cart(),
		Wishlist: f.store.Wishlist(),
		Users:    f.store.Users(),
		Feed:     subscriber,
	}
}

func (f *fixture) started(t *testing.T) *session.Session {
	t.Helper()
	s := session.New(f.stores(nil), f.opts)
	require.NoError(t, s.Start(context.Background(), f.user.ID))
	t.Cleanup(s.End)
	return s
}

func (f *fixture) subscriberTotal() int {
	return f.hub.SubscriberCount(feed.TableProducts) +
		f.hub.SubscriberCount(feed.TableCartItems) +
		f.hub.SubscriberCount(feed.TableWishlistItems)
}

// recordingSubscriber records what the cart container held when each
// subscription was opened and can be told to fail
type recordingSubscriber struct {
	next     feed.Subscriber
	snapshot func() int
	failOn   string
	mu       sync.Mutex
	seen     []int
	opened   []*feed.Subscription
	attempts int
}

func (p *recordingSubscriber) Subscribe(ctx context.Context, table string, filter *feed.Filter) (*feed.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.attempts++
	if p.snapshot != nil {
		p.seen = append(p.seen, p.snapshot())
	}
	if table == p.failOn {
		return nil, errors.New("subscribe refused")
	}
	sub, err := p.next.Subscribe(ctx, table, filter)
	if err == nil {
		p.opened = append(p.opened, sub)
	}
	return sub, err
}

func firstProductID(t *testing.T, f *fixture) uuid.UUID {
	t.Helper()
	products, err := f.store.Products().List(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, products)
	return products[0].ID
}

func TestStart_LoadsBeforeSubscribing(t *testing.T) {
	f := newFixture(t)
	productID := firstProductID(t, f)
	_, err := f.store.Cart().Upsert(context.Background(), f.user.ID, productID, 2)
	require.NoError(t, err)

	var s *session.Session
	sub := &recordingSubscriber{next: f.hub, snapshot: func() int { return s.Cart().ItemCount() }}
	s = session.New(f.stores(sub), f.opts)

	require.NoError(t, s.Start(context.Background(), f.user.ID))
	defer s.End()

	assert.Equal(t, []int{2, 2, 2}, sub.seen)
	assert.Equal(t, session.StateAuthenticated, s.State())

	u, ok := s.User().Get()
	require.True(t, ok)
	assert.Equal(t, f.user.ID, u.ID)
	assert.Equal(t, 1, s.Products().Len())
}

func TestStart_Twice(t *testing.T) {
	f := newFixture(t)
	s := f.started(t)

	assert.ErrorIs(t, s.Start(context.Background(), f.user.ID), session.ErrAlreadyStarted)
}

func TestStart_UnknownUser(t *testing.T) {
	f := newFixture(t)
	s := session.New(f.stores(nil), f.opts)

	err := s.Start(context.Background(), uuid.New())
	assert.Error(t, err)
	assert.Equal(t, session.StateUnauthenticated, s.State())
	assert.Zero(t, f.subscriberTotal())
}

func TestStart_SubscribeFailureClosesOpenedSubscriptions(t *testing.T) {
	f := newFixture(t)
	sub := &recordingSubscriber{next: f.hub, failOn: feed.TableWishlistItems}
	s := session.New(f.stores(sub), f.opts)

	err := s.Start(context.Background(), f.user.ID)
	require.Error(t, err)
	assert.Equal(t, 3, sub.attempts)
	assert.Len(t, sub.opened, 2)
	assert.Zero(t, f.subscriberTotal())
	assert.Equal(t, session.StateUnauthenticated, s.State())

	_, ok := s.User().Get()
	assert.False(t, ok)

	// the session is usable again once the feed recovers
	sub.failOn = ""
	require.NoError(t, s.Start(context.Background(), f.user.ID))
	s.End()
}

func TestOperations_RequireStart(t *testing.T) {
	f := newFixture(t)
	s := session.New(f.stores(nil), f.opts)

	_, err := s.AddToCart(context.Background(), uuid.New(), 1)
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
	_, err = s.ToggleWishlist(context.Background(), uuid.New())
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
	assert.ErrorIs(t, s.QueueQuantity(uuid.New(), 2), session.ErrNotAuthenticated)
}

func TestFeed_AddToCartArrivesThroughEcho(t *testing.T) {
	f := newFixture(t)
	s := f.started(t)
	productID := firstProductID(t, f)

	ok, err := s.AddToCart(context.Background(), productID, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Eventually(t, func() bool { return s.Cart().ItemCount() == 1 }, waitFor, tick)

	ok, err = s.AddToCart(context.Background(), productID, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Eventually(t, func() bool { return s.Cart().ItemCount() == 2 }, waitFor, tick)
	assert.Len(t, s.Cart().Items(), 1)

	item := s.Cart().Items()[0]
	removed, err := s.RemoveFromCart(context.Background(), item.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Eventually(t, func() bool { return s.Cart().ItemCount() == 0 }, waitFor, tick)
}

func TestFeed_RepeatedInsertEventIsIdempotent(t *testing.T) {
	f := newFixture(t)
	s := f.started(t)

	item := cart.CartItem{ID: uuid.New(), UserID: f.user.ID, ProductID: uuid.New(), Quantity: 3}
	event, err := feed.NewEvent(feed.TableCartItems, feed.EventInsert, item, nil)
	require.NoError(t, err)

	require.NoError(t, f.hub.Publish(context.Background(), event))
	require.NoError(t, f.hub.Publish(context.Background(), event))

	assert.Eventually(t, func() bool { return s.Cart().ItemCount() == 3 }, waitFor, tick)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, s.Cart().Items(), 1)
	assert.Equal(t, 3, s.Cart().ItemCount())
}

func TestFeed_OtherUsersEventsAreFiltered(t *testing.T) {
	f := newFixture(t)
	s := f.started(t)
	other := f.store.PutUser(context.Background(), user.User{Email: "bob@example.com"})

	_, err := f.store.Cart().Upsert(context.Background(), other.ID, firstProductID(t, f), 1)
	require.NoError(t, err)
	_, err = f.store.Wishlist().Insert(context.Background(), f.user.ID, firstProductID(t, f))
	require.NoError(t, err)

	// filters run at publish time, so the other user's event is gone before this one lands
	assert.Eventually(t, func() bool { return s.Wishlist().Count() == 1 }, waitFor, tick)
	assert.Zero(t, s.Cart().ItemCount())
}

func TestFeed_ProductChangeRefetchesCatalog(t *testing.T) {
	f := newFixture(t)
	s := f.started(t)

	f.store.PutProduct(context.Background(), product.Product{Name: "Tee", Price: decimal.NewFromInt(20)})
	assert.Eventually(t, func() bool { return s.Products().Len() == 2 }, waitFor, tick)

	f.store.DeleteProduct(context.Background(), firstProductID(t, f))
	assert.Eventually(t, func() bool { return s.Products().Len() == 1 }, waitFor, tick)
}

func TestToggleWishlist_ThroughSession(t *testing.T) {
	f := newFixture(t)
	s := f.started(t)
	productID := firstProductID(t, f)

	present, err := s.ToggleWishlist(context.Background(), productID)
	require.NoError(t, err)
	assert.True(t, present)
	assert.Eventually(t, func() bool { return s.Wishlist().Contains(f.user.ID, productID) }, waitFor, tick)

	present, err = s.ToggleWishlist(context.Background(), productID)
	require.NoError(t, err)
	assert.False(t, present)
	assert.Eventually(t, func() bool { return s.Wishlist().Count() == 0 }, waitFor, tick)
}

func TestEnd_ReleasesEverything(t *testing.T) {
	f := newFixture(t)
	s := session.New(f.stores(nil), f.opts)
	require.NoError(t, s.Start(context.Background(), f.user.ID))
	assert.Equal(t, 3, f.subscriberTotal())

	s.End()
	s.End()

	assert.Zero(t, f.subscriberTotal())
	assert.Equal(t, session.StateUnauthenticated, s.State())
	_, ok := s.User().Get()
	assert.False(t, ok)
	assert.Zero(t, s.Cart().ItemCount())
	// the catalog survives sign-out
	assert.Equal(t, 1, s.Products().Len())
}

func TestEnd_FlushesQueuedQuantity(t *testing.T) {
	f := newFixture(t)
	item, err := f.store.Cart().Upsert(context.Background(), f.user.ID, firstProductID(t, f), 1)
	require.NoError(t, err)

	f.opts.DebounceWindow = time.Hour
	s := session.New(f.stores(nil), f.opts)
	require.NoError(t, s.Start(context.Background(), f.user.ID))

	require.NoError(t, s.QueueQuantity(item.ID, 6))
	s.End()

	stored, err := f.store.Cart().FindByID(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, stored.Quantity)
}

func TestQuantityWrites_OtherUsersItemIsUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.store.PutUser(ctx, user.User{Email: "grace@example.com", Name: "Grace"})
	item, err := f.store.Cart().Upsert(ctx, other.ID, firstProductID(t, f), 1)
	require.NoError(t, err)

	s := f.started(t)
	assert.ErrorIs(t, s.UpdateCartQuantity(ctx, item.ID, 42), cart.ErrItemNotFound)
	assert.ErrorIs(t, s.QueueQuantity(item.ID, 42), cart.ErrItemNotFound)
	_, err = s.Increment(item.ID)
	assert.ErrorIs(t, err, cart.ErrItemNotFound)
	s.End()

	stored, err := f.store.Cart().FindByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Quantity)
}

func TestWatch_SignalsChangesAndDroppedFeeds(t *testing.T) {
	f := newFixture(t)
	sub := &recordingSubscriber{next: f.hub}
	s := session.New(f.stores(sub), f.opts)
	w := s.Watch()
	defer w.Close()

	require.NoError(t, s.Start(context.Background(), f.user.ID))
	defer s.End()

	select {
	case <-w.Changes():
	case <-time.After(waitFor):
		t.Fatal("no change signal")
	}

	// the transport drops the cart feed
	sub.opened[1].Close()

	select {
	case notice := <-w.Notices():
		assert.Equal(t, session.NoticeWarning, notice.Level)
	case <-time.After(waitFor):
		t.Fatal("no notice for dropped feed")
	}
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Cart().Upsert(context.Background(), f.user.ID, firstProductID(t, f), 2)
	require.NoError(t, err)
	s := f.started(t)

	snapshot := s.Snapshot()
	assert.Equal(t, "authenticated", snapshot.State)
	require.NotNil(t, snapshot.User)
	assert.Equal(t, 2, snapshot.Cart.ItemCount)
	assert.True(t, snapshot.Totals.SubTotal.Equal(decimal.RequireFromString("19")))
	assert.Empty(t, snapshot.Wishlist)
}
