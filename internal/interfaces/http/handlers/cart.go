// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/your-org/storefront-sync/internal/session"
)

// CartHandler handles cart endpoints
type CartHandler struct {
	manager *session.Manager
}

// NewCartHandler creates a new cart handler
func NewCartHandler(manager *session.Manager) *CartHandler {
	return &CartHandler{manager: manager}
}

// AddToCartRequest is the body of POST /cart/items
type AddToCartRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"omitempty,min=1"`
}

// UpdateCartItemRequest is the body of PUT /cart/items/:id. With Debounce set
// the write is queued and only the last value of a burst is sent.
type UpdateCartItemRequest struct {
	Quantity int  `json:"quantity" binding:"required,min=1"`
	Debounce bool `json:"debounce"`
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	sess, ok := activeSession(c, h.manager)
	if !ok {
		return
	}

	snapshot := sess.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"message": "Cart retrieved successfully",
		"data": gin.H{
			"items":      snapshot.Cart.Items,
			"item_count": snapshot.Cart.ItemCount,
			"totals":     snapshot.Totals,
		},
	})
}

// AddToCart handles POST /cart/items
func (h *CartHandler) AddToCart(c *gin.Context) {
	sess, ok := activeSession(c, h.manager)
	if !ok {
		return
	}

	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	if _, err := sess.AddToCart(c.Request.Context(), req.ProductID, req.Quantity); err != nil {
		respondError(c, err, "Failed to add item to cart")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item added to cart successfully",
		"data":    sess.Cart().Snapshot(),
	})
}

// UpdateCartItem handles PUT /cart/items/:id
func (h *CartHandler) UpdateCartItem(c *gin.Context) {
	sess, ok := activeSession(c, h.manager)
	if !ok {
		return
	}

	itemID, ok := parseIDParam(c, "id", "Invalid cart item ID")
	if !ok {
		return
	}

	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	if req.Debounce {
		if err := sess.QueueQuantity(itemID, req.Quantity); err != nil {
			respondError(c, err, "Failed to update cart item")
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"message": "Cart item update queued",
			"data":    sess.Cart().Snapshot(),
		})
		return
	}

	if err := sess.UpdateCartQuantity(c.Request.Context(), itemID, req.Quantity); err != nil {
		respondError(c, err, "Failed to update cart item")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart item updated successfully",
		"data":    sess.Cart().Snapshot(),
	})
}

// IncrementCartItem handles POST /cart/items/:id/increment
func (h *CartHandler) IncrementCartItem(c *gin.Context) {
	h.step(c, (*session.Session).Increment)
}

// DecrementCartItem handles POST /cart/items/:id/decrement
func (h *CartHandler) DecrementCartItem(c *gin.Context) {
	h.step(c, (*session.Session).Decrement)
}

func (h *CartHandler) step(c *gin.Context, op func(*session.Session, uuid.UUID) (int, error)) {
	sess, ok := activeSession(c, h.manager)
	if !ok {
		return
	}

	itemID, ok := parseIDParam(c, "id", "Invalid cart item ID")
	if !ok {
		return
	}

	quantity, err := op(sess, itemID)
	if err != nil {
		respondError(c, err, "Failed to update cart item")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Cart item update queued",
		"data": gin.H{
			"id":       itemID,
			"quantity": quantity,
		},
	})
}

// RemoveFromCart handles DELETE /cart/items/:id
func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	sess, ok := activeSession(c, h.manager)
	if !ok {
		return
	}

	itemID, ok := parseIDParam(c, "id", "Invalid cart item ID")
	if !ok {
		return
	}

	removed, err := sess.RemoveFromCart(c.Request.Context(), itemID)
	if err != nil {
		respondError(c, err, "Failed to remove item from cart")
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Cart item not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item removed from cart successfully",
		"data":    sess.Cart().Snapshot(),
	})
}

func parseIDParam(c *gin.Context, name, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": message})
		return uuid.Nil, false
	}
	return id, true
}
