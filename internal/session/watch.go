package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/your-org/storefront-sync/internal/domain/cart"
	"github.com/your-org/storefront-sync/internal/domain/product"
	"github.com/your-org/storefront-sync/internal/domain/user"
	"github.com/your-org/storefront-sync/internal/domain/wishlist"
)

// Notice levels
const (
	NoticeError   = "error"
	NoticeWarning = "warning"
)

// Notice is a transient message for the client, shown as a toast
type Notice struct {
	Level      string     `json:"level"`
	Message    string     `json:"message"`
	CartItemID *uuid.UUID `json:"cart_item_id,omitempty"`
	At         time.Time  `json:"at"`
}

// Snapshot is a consistent-per-container copy of the session state
type Snapshot struct {
	State    string                  `json:"state"`
	User     *user.User              `json:"user,omitempty"`
	Products []product.Product       `json:"products"`
	Cart     cart.Snapshot           `json:"cart"`
	Totals   cart.Totals             `json:"totals"`
	Wishlist []wishlist.WishlistItem `json:"wishlist"`
}

// Snapshot copies the session's containers
func (s *Session) Snapshot() Snapshot {
	snapshot := Snapshot{
		State:    s.State().String(),
		Products: s.products.Items(),
		Cart:     s.cart.Snapshot(),
		Totals:   s.cart.Totals(s.products.Price),
		Wishlist: s.wishlist.Items(),
	}
	if u, ok := s.user.Get(); ok {
		snapshot.User = &u
	}
	if snapshot.Cart.Items == nil {
		snapshot.Cart.Items = []cart.CartItem{}
	}
	if snapshot.Wishlist == nil {
		snapshot.Wishlist = []wishlist.WishlistItem{}
	}
	if snapshot.Products == nil {
		snapshot.Products = []product.Product{}
	}
	return snapshot
}

// Watcher receives change signals and notices from a session. Change
// signals coalesce; a slow watcher sees one pending signal, not a backlog.
type Watcher struct {
	session *Session
	changes chan struct{}
	notices chan Notice
	once    sync.Once
}

// Watch registers a watcher. Close it when done.
func (s *Session) Watch() *Watcher {
	w := &Watcher{
		session: s,
		changes: make(chan struct{}, 1),
		notices: make(chan Notice, 16),
	}

	s.watchMu.Lock()
	s.watchers[w] = struct{}{}
	s.watchMu.Unlock()
	return w
}

// Changes signals that the session state changed since the last receive
func (w *Watcher) Changes() <-chan struct{} { return w.changes }

// Notices delivers notices; they are dropped when the watcher falls behind
func (w *Watcher) Notices() <-chan Notice { return w.notices }

// Close unregisters the watcher
func (w *Watcher) Close() {
	w.once.Do(func() {
		w.session.watchMu.Lock()
		delete(w.session.watchers, w)
		w.session.watchMu.Unlock()
	})
}

func (s *Session) changed() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	for w := range s.watchers {
		select {
		case w.changes <- struct{}{}:
		default:
		}
	}
}

func (s *Session) notify(notice Notice) {
	if notice.At.IsZero() {
		notice.At = time.Now().UTC()
	}

	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	for w := range s.watchers {
		select {
		case w.notices <- notice:
		default:
			s.logger.WithField("message", notice.Message).Debug("Watcher behind, notice dropped")
		}
	}
}
