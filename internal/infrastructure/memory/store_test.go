package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-sync/internal/domain/cart"
	"github.com/your-org/storefront-sync/internal/domain/product"
	"github.com/your-org/storefront-sync/internal/feed"
	"github.com/your-org/storefront-sync/internal/store"
)

func nextEvent(t *testing.T, sub *feed.Subscription) feed.Event {
	t.Helper()
	select {
	case event := <-sub.Events():
		return event
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return feed.Event{}
	}
}

func TestCartUpsert_InsertThenMerge(t *testing.T) {
	ctx := context.Background()
	hub := feed.NewHub()
	s := NewStore(hub, nil)
	userID, productID := uuid.New(), uuid.New()

	sub, err := hub.Subscribe(ctx, feed.TableCartItems, feed.Eq("user_id", userID))
	require.NoError(t, err)
	defer sub.Close()

	first, err := s.Cart().Upsert(ctx, userID, productID, 1)
	require.NoError(t, err)
	second, err := s.Cart().Upsert(ctx, userID, productID, 2)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 3, second.Quantity)

	assert.Equal(t, feed.EventInsert, nextEvent(t, sub).Type)
	update := nextEvent(t, sub)
	assert.Equal(t, feed.EventUpdate, update.Type)

	var row cart.CartItem
	require.NoError(t, update.Decode(&row))
	assert.Equal(t, 3, row.Quantity)
}

func TestCartUpsert_ConcurrentCallsProduceOneRow(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil)
	userID, productID := uuid.New(), uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Cart().Upsert(ctx, userID, productID, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	items, err := s.Cart().ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 20, items[0].Quantity)
}

func TestCartDelete_ScopedToUser(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil)
	owner := uuid.New()

	item, err := s.Cart().Upsert(ctx, owner, uuid.New(), 1)
	require.NoError(t, err)

	removed, err := s.Cart().Delete(ctx, item.ID, uuid.New())
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = s.Cart().Delete(ctx, item.ID, owner)
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = s.Cart().FindByID(ctx, item.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCartUpdateQuantity_Missing(t *testing.T) {
	_, err := NewStore(nil, nil).Cart().UpdateQuantity(context.Background(), uuid.New(), uuid.New(), 2)
	assert.True(t, store.IsNotFound(err))
}

func TestCartUpdateQuantity_ScopedToOwner(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil)
	owner := uuid.New()

	item, err := s.Cart().Upsert(ctx, owner, uuid.New(), 1)
	require.NoError(t, err)

	_, err = s.Cart().UpdateQuantity(ctx, item.ID, uuid.New(), 42)
	assert.True(t, store.IsNotFound(err))

	stored, err := s.Cart().FindByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Quantity)

	updated, err := s.Cart().UpdateQuantity(ctx, item.ID, owner, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Quantity)
}

func TestWishlistInsert_OnConflictReturnsExisting(t *testing.T) {
	ctx := context.Background()
	hub := feed.NewHub()
	s := NewStore(hub, nil)
	userID, productID := uuid.New(), uuid.New()

	sub, err := hub.Subscribe(ctx, feed.TableWishlistItems, nil)
	require.NoError(t, err)
	defer sub.Close()

	first, err := s.Wishlist().Insert(ctx, userID, productID)
	require.NoError(t, err)
	second, err := s.Wishlist().Insert(ctx, userID, productID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	assert.Equal(t, feed.EventInsert, nextEvent(t, sub).Type)
	select {
	case event := <-sub.Events():
		t.Fatalf("unexpected second event %v", event.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestProducts_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	hub := feed.NewHub()
	s := NewStore(hub, nil)

	sub, err := hub.Subscribe(ctx, feed.TableProducts, nil)
	require.NoError(t, err)
	defer sub.Close()

	mug := s.PutProduct(ctx, product.Product{Name: "Mug", Price: decimal.NewFromInt(9)})
	s.PutProduct(ctx, product.Product{Name: "Tee", Price: decimal.NewFromInt(20)})

	products, err := s.Products().List(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 2)

	assert.True(t, s.DeleteProduct(ctx, mug.ID))
	assert.False(t, s.DeleteProduct(ctx, mug.ID))

	types := []feed.EventType{nextEvent(t, sub).Type, nextEvent(t, sub).Type, nextEvent(t, sub).Type}
	assert.Equal(t, []feed.EventType{feed.EventInsert, feed.EventInsert, feed.EventDelete}, types)

	_, err = s.Products().FindByID(ctx, mug.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
