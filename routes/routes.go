package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"slotwise/handlers"
)

// RegisterSlotRoutes registers the availability endpoints.
func RegisterSlotRoutes(r *gin.Engine, rh *handlers.ReservationHandler) {
	api := r.Group("/api/slots")
	{
		api.GET("", rh.ListAvailableSlotsHandler)
	}
}

// RegisterBookingRoutes sets up the endpoints for the reservation engine.
func RegisterBookingRoutes(r *gin.Engine, rh *handlers.ReservationHandler) {
	bookingGroup := r.Group("/api/bookings")
	{
		bookingGroup.POST("", rh.ReserveHandler)
		bookingGroup.GET("/user/:userRef", rh.ListUserBookingsHandler)
		bookingGroup.DELETE("/:id", rh.CancelBookingHandler)
	}
}

// RegisterAdminRoutes sets up endpoints for rule administration and
// operator reads.
func RegisterAdminRoutes(r *gin.Engine, rh *handlers.ReservationHandler, ah *handlers.RuleHandler) {
	adminGroup := r.Group("/api/admin")
	{
		adminGroup.GET("/rules", ah.ListRulesHandler)
		adminGroup.POST("/rules", ah.CreateRuleHandler)
		adminGroup.PUT("/rules", ah.ReplaceRulesHandler)
		adminGroup.DELETE("/rules/:id", ah.DeleteRuleHandler)
		adminGroup.GET("/bookings", rh.ListConfirmedBookingsHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Hi, I'm Slotwise"})
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, rh *handlers.ReservationHandler, ah *handlers.RuleHandler) {
	// Setup global middleware (e.g., CORS) here.
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterSlotRoutes(r, rh)
	RegisterBookingRoutes(r, rh)
	RegisterAdminRoutes(r, rh, ah)
	RegisterHealthRoute(r)
}
