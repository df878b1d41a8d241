package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/trekvista/booking/controllers/reservation_controller"
	middleware "github.com/trekvista/booking/middlewares"
	"github.com/trekvista/booking/middlewares/auth"
	"github.com/trekvista/booking/reservation"
)

func RegisterBookingRoutes(router *gin.Engine, coordinator *reservation.Coordinator) {
	reservationController := reservation_controller.NewReservationController(coordinator)

	// Protected routes
	protected := router.Group("/v1/bookings")
	protected.Use(auth.AuthMiddleware())
	{
		protected.POST("", middleware.NewRateLimiter("10-1m", "reserveSlot"), reservationController.ReserveSlot)
		protected.GET("", reservationController.GetMyBookings)
		protected.GET("/:id", reservationController.GetBooking)
		protected.POST("/:id/cancel", middleware.NewRateLimiter("10-1m", "cancelBooking"), reservationController.CancelBooking)
	}

	// Confirmation is driven by the payment collaborator; only admins may
	// trigger it manually.
	admin := router.Group("/v1/admin/bookings")
	admin.Use(auth.AuthMiddleware(), auth.RequireAdmin())
	{
		admin.POST("/:id/confirm", reservationController.ConfirmBooking)
	}
}
