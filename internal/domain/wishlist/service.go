// internal/domain/wishlist/service.go
package wishlist

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-sync/internal/store"
)

// Service toggles wishlist membership against the remote store
type Service struct {
	repo   Repository
	logger *logrus.Entry
}

// NewService creates a new wishlist service
func NewService(repo Repository, logger *logrus.Entry) *Service {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{repo: repo, logger: logger}
}

// ToggleWishlist flips membership of productID for userID and returns
// whether the product is on the wishlist afterwards. The container follows
// through the feed echo.
func (s *Service) ToggleWishlist(ctx context.Context, productID, userID uuid.UUID) (bool, error) {
	existing, err := s.repo.FindByUserAndProduct(ctx, userID, productID)
	if err != nil && !store.IsNotFound(err) {
		return false, fmt.Errorf("failed to look up wishlist item: %w", err)
	}

	if existing != nil && err == nil {
		if _, err := s.repo.Delete(ctx, existing.ID, userID); err != nil {
			return false, fmt.Errorf("failed to remove from wishlist: %w", err)
		}
		s.logger.WithField("product_id", productID).Debug("Removed from wishlist")
		return false, nil
	}

	// a concurrent toggle may have inserted the pair already; Insert returns that row
	if _, err := s.repo.Insert(ctx, userID, productID); err != nil {
		return false, fmt.Errorf("failed to add to wishlist: %w", err)
	}
	s.logger.WithField("product_id", productID).Debug("Added to wishlist")
	return true, nil
}
