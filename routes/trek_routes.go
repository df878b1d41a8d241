package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/trekvista/booking/config/db"
	"github.com/trekvista/booking/controllers/trek_controller"
)

func RegisterTrekRoutes(router *gin.Engine) {
	trekController := trek_controller.NewTrekController(db.DB)

	public := router.Group("/v1/treks")
	{
		public.GET("", trekController.ListTreks)
		public.GET("/:slug", trekController.GetTrek)
	}
}
