package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/trekvista/booking/config/db"
	"github.com/trekvista/booking/controllers/voucher_controller"
	middleware "github.com/trekvista/booking/middlewares"
	"github.com/trekvista/booking/middlewares/auth"
	"github.com/trekvista/booking/reservation"
)

func RegisterVoucherRoutes(router *gin.Engine, coordinator *reservation.Coordinator) {
	voucherController := voucher_controller.NewVoucherController(db.DB, coordinator)

	// Preview is authenticated but open to any user. Rate limited to keep
	// code enumeration slow.
	protected := router.Group("/v1/vouchers")
	protected.Use(auth.AuthMiddleware())
	{
		protected.POST("/preview", middleware.NewRateLimiter("20-1m", "previewVoucher"), voucherController.PreviewVoucher)
	}

	admin := router.Group("/v1/admin/vouchers")
	admin.Use(auth.AuthMiddleware(), auth.RequireAdmin())
	{
		admin.POST("", voucherController.CreateVoucher)
		admin.GET("", voucherController.ListVouchers)
		admin.DELETE("/:id", voucherController.DeactivateVoucher)
	}
}
