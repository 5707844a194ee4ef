package session

import (
	"context"

	"github.com/google/uuid"
)

// AddToCart adds quantity of productID to the signed-in user's cart
func (s *Session) AddToCart(ctx context.Context, productID uuid.UUID, quantity int) (bool, error) {
	userID, svc, err := s.authenticated()
	if err != nil {
		return false, err
	}
	return svc.AddToCart(ctx, productID, userID, quantity)
}

// UpdateCartQuantity sets an item's quantity and waits for the write
func (s *Session) UpdateCartQuantity(ctx context.Context, cartItemID uuid.UUID, quantity int) error {
	userID, svc, err := s.authenticated()
	if err != nil {
		return err
	}
	return svc.UpdateCartQuantity(ctx, cartItemID, userID, quantity)
}

// QueueQuantity sets an item's quantity now and writes it after the burst settles
func (s *Session) QueueQuantity(cartItemID uuid.UUID, quantity int) error {
	userID, svc, err := s.authenticated()
	if err != nil {
		return err
	}
	return svc.QueueQuantity(cartItemID, userID, quantity)
}

// Increment raises an item's quantity by one
func (s *Session) Increment(cartItemID uuid.UUID) (int, error) {
	userID, svc, err := s.authenticated()
	if err != nil {
		return 0, err
	}
	return svc.Increment(cartItemID, userID)
}

// Decrement lowers an item's quantity by one, never below one
func (s *Session) Decrement(cartItemID uuid.UUID) (int, error) {
	userID, svc, err := s.authenticated()
	if err != nil {
		return 0, err
	}
	return svc.Decrement(cartItemID, userID)
}

// RemoveFromCart deletes one of the signed-in user's items
func (s *Session) RemoveFromCart(ctx context.Context, cartItemID uuid.UUID) (bool, error) {
	userID, svc, err := s.authenticated()
	if err != nil {
		return false, err
	}
	return svc.RemoveFromCart(ctx, cartItemID, userID)
}

// ToggleWishlist flips productID on the signed-in user's wishlist
func (s *Session) ToggleWishlist(ctx context.Context, productID uuid.UUID) (bool, error) {
	userID, _, err := s.authenticated()
	if err != nil {
		return false, err
	}
	return s.wishlistService.ToggleWishlist(ctx, productID, userID)
}
