// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-sync/internal/config"
	"github.com/your-org/storefront-sync/internal/interfaces/http/handlers"
	"github.com/your-org/storefront-sync/internal/interfaces/http/middleware"
	"github.com/your-org/storefront-sync/internal/pkg/auth"
	"github.com/your-org/storefront-sync/internal/session"
)

// SetupRoutes registers every API route on rg
func SetupRoutes(rg *gin.RouterGroup, manager *session.Manager, jwtManager *auth.JWTManager, cfg *config.Config, logger *logrus.Entry) {
	SetupProductRoutes(rg, manager)
	SetupSessionRoutes(rg, manager, jwtManager, cfg, logger)
	SetupCartRoutes(rg, manager, jwtManager)
	SetupWishlistRoutes(rg, manager, jwtManager)
}

// SetupProductRoutes sets up product related routes
func SetupProductRoutes(rg *gin.RouterGroup, manager *session.Manager) {
	productHandler := handlers.NewProductHandler(manager)

	products := rg.Group("/products")
	{
		products.GET("", productHandler.GetProducts)
		products.GET("/:id", productHandler.GetProduct)
	}
}

// SetupSessionRoutes sets up session lifecycle and stream routes
func SetupSessionRoutes(rg *gin.RouterGroup, manager *session.Manager, jwtManager *auth.JWTManager, cfg *config.Config, logger *logrus.Entry) {
	sessionHandler := handlers.NewSessionHandler(manager)
	streamHandler := handlers.NewStreamHandler(
		manager,
		middleware.OriginChecker(cfg.Security.CORSAllowedOrigins),
		cfg.Sync.StreamPing,
		logger.WithField("component", "stream"),
	)

	sessions := rg.Group("/session")
	sessions.Use(middleware.AuthMiddleware(jwtManager))
	{
		sessions.POST("", sessionHandler.StartSession)
		sessions.GET("", sessionHandler.GetSession)
		sessions.DELETE("", sessionHandler.EndSession)
		sessions.GET("/stream", streamHandler.Stream)
	}
}

// SetupCartRoutes sets up cart related routes
func SetupCartRoutes(rg *gin.RouterGroup, manager *session.Manager, jwtManager *auth.JWTManager) {
	cartHandler := handlers.NewCartHandler(manager)

	cart := rg.Group("/cart")
	cart.Use(middleware.AuthMiddleware(jwtManager))
	{
		cart.GET("", cartHandler.GetCart)
		cart.POST("/items", cartHandler.AddToCart)
		cart.PUT("/items/:id", cartHandler.UpdateCartItem)
		cart.POST("/items/:id/increment", cartHandler.IncrementCartItem)
		cart.POST("/items/:id/decrement", cartHandler.DecrementCartItem)
		cart.DELETE("/items/:id", cartHandler.RemoveFromCart)
	}
}

// SetupWishlistRoutes sets up wishlist related routes
func SetupWishlistRoutes(rg *gin.RouterGroup, manager *session.Manager, jwtManager *auth.JWTManager) {
	wishlistHandler := handlers.NewWishlistHandler(manager)

	wishlist := rg.Group("/wishlist")
	wishlist.Use(middleware.AuthMiddleware(jwtManager))
	{
		wishlist.GET("", wishlistHandler.GetWishlist)
		wishlist.POST("/:product_id/toggle", wishlistHandler.ToggleWishlist)
	}
}
