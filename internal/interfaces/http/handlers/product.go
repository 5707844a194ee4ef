// internal/interfaces/http/handlers/product.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-sync/internal/session"
)

// ProductHandler handles product endpoints
type ProductHandler struct {
	manager *session.Manager
}

// NewProductHandler creates a new product handler
func NewProductHandler(manager *session.Manager) *ProductHandler {
	return &ProductHandler{manager: manager}
}

// GetProducts handles GET /products
func (h *ProductHandler) GetProducts(c *gin.Context) {
	catalog, err := h.manager.Catalog(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Failed to retrieve products",
		})
		return
	}

	products := catalog.Products().Items()
	c.JSON(http.StatusOK, gin.H{
		"message": "Products retrieved successfully",
		"data": gin.H{
			"products": products,
			"count":    len(products),
		},
	})
}

// GetProduct handles GET /products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	productID, ok := parseIDParam(c, "id", "Invalid product ID")
	if !ok {
		return
	}

	catalog, err := h.manager.Catalog(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Failed to retrieve product",
		})
		return
	}

	p, ok := catalog.Products().Get(productID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Product not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product retrieved successfully",
		"data":    p,
	})
}
