// internal/interfaces/http/handlers/session.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-sync/internal/domain/cart"
	"github.com/your-org/storefront-sync/internal/interfaces/http/middleware"
	"github.com/your-org/storefront-sync/internal/session"
	"github.com/your-org/storefront-sync/internal/store"
)

// SessionHandler starts and ends the caller's sync session
type SessionHandler struct {
	manager *session.Manager
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(manager *session.Manager) *SessionHandler {
	return &SessionHandler{manager: manager}
}

// StartSession handles POST /session
func (h *SessionHandler) StartSession(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	sess, err := h.manager.Acquire(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		case errors.Is(err, session.ErrManagerClosed):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Server is shutting down"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to start session", "details": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Session started",
		"data":    sess.Snapshot(),
	})
}

// EndSession handles DELETE /session
func (h *SessionHandler) EndSession(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	if !h.manager.Release(userID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No active session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session ended"})
}

// GetSession handles GET /session
func (h *SessionHandler) GetSession(c *gin.Context) {
	sess, ok := activeSession(c, h.manager)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Session retrieved successfully",
		"data":    sess.Snapshot(),
	})
}

// activeSession looks up the caller's started session, writing the error
// response when there is none.
func activeSession(c *gin.Context, manager *session.Manager) (*session.Session, bool) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return nil, false
	}

	sess, ok := manager.Get(userID)
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "No active session, start one with POST /session"})
		return nil, false
	}
	return sess, true
}

// respondError maps session and cart errors onto HTTP statuses
func respondError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": message, "details": err.Error()})
	case errors.Is(err, cart.ErrItemNotFound), errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": message, "details": err.Error()})
	case errors.Is(err, session.ErrNotAuthenticated):
		c.JSON(http.StatusConflict, gin.H{"error": message, "details": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": message, "details": err.Error()})
	}
}
