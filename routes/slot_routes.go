package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/trekvista/booking/config/db"
	"github.com/trekvista/booking/controllers/slot_controller"
	"github.com/trekvista/booking/middlewares/auth"
	"github.com/trekvista/booking/reservation"
)

func RegisterSlotRoutes(router *gin.Engine, coordinator *reservation.Coordinator) {
	slotController := slot_controller.NewSlotController(db.DB, coordinator)

	// Public availability reads
	public := router.Group("/v1")
	{
		public.GET("/treks/:slug/slots", slotController.ListSlots)
		public.GET("/slots/:id/availability", slotController.GetAvailability)
	}

	admin := router.Group("/v1/admin/slots")
	admin.Use(auth.AuthMiddleware(), auth.RequireAdmin())
	{
		admin.POST("", slotController.CreateSlot)
		admin.PATCH("/:id", slotController.UpdateSlot)
		admin.POST("/:id/reconcile", slotController.ReconcileSlot)
	}
}
