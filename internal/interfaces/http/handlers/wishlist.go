// internal/interfaces/http/handlers/wishlist.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-sync/internal/session"
)

// WishlistHandler handles wishlist endpoints
type WishlistHandler struct {
	manager *session.Manager
}

// NewWishlistHandler creates a new wishlist handler
func NewWishlistHandler(manager *session.Manager) *WishlistHandler {
	return &WishlistHandler{manager: manager}
}

// GetWishlist handles GET /wishlist
func (h *WishlistHandler) GetWishlist(c *gin.Context) {
	sess, ok := activeSession(c, h.manager)
	if !ok {
		return
	}

	items := sess.Wishlist().Items()
	c.JSON(http.StatusOK, gin.H{
		"message": "Wishlist retrieved successfully",
		"data": gin.H{
			"items": items,
			"count": len(items),
		},
	})
}

// ToggleWishlist handles POST /wishlist/:product_id/toggle
func (h *WishlistHandler) ToggleWishlist(c *gin.Context) {
	sess, ok := activeSession(c, h.manager)
	if !ok {
		return
	}

	productID, ok := parseIDParam(c, "product_id", "Invalid product ID")
	if !ok {
		return
	}

	added, err := sess.ToggleWishlist(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err, "Failed to update wishlist")
		return
	}

	message := "Product removed from wishlist"
	if added {
		message = "Product added to wishlist"
	}
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"data": gin.H{
			"product_id":  productID,
			"in_wishlist": added,
		},
	})
}
