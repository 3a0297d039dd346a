package routes

import (
	"equipment_usage_tracker/app"
	"equipment_usage_tracker/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	s := controllers.GetSrv(a)
	equipmentCtl := controllers.NewEquipmentController(s)
	usageCtl := controllers.NewUsageController(s)
	maintenanceCtl := controllers.NewMaintenanceController(s)

	r.GET("/healthz", s.Health)
	r.GET("/metrics", gin.WrapH(a.Metrics.Handler()))

	api := r.Group("/api")

	eq := api.Group("/equipment")
	{
		eq.GET("", equipmentCtl.List)
		eq.POST("", equipmentCtl.Create)
		eq.GET("/:id", equipmentCtl.Get)
		eq.PUT("/:id", equipmentCtl.Update)
		eq.DELETE("/:id", equipmentCtl.Delete)
		eq.PATCH("/:id/status", equipmentCtl.UpdateStatus)
		eq.GET("/:id/state", equipmentCtl.State)
		eq.GET("/:id/qrcode", equipmentCtl.QRCode)
		eq.GET("/:id/status-log", equipmentCtl.StatusLog)
	}

	usage := api.Group("/usage")
	{
		usage.GET("", usageCtl.List)
		usage.POST("", usageCtl.Checkout)
		usage.PUT("/return/:equipmentId", usageCtl.Checkin)
		usage.GET("/all/:equipmentId", usageCtl.History)
		usage.GET("/last/:equipmentId", usageCtl.Last)
		usage.GET("/:id", usageCtl.Get)
		usage.PUT("/:id", usageCtl.Update)
		usage.DELETE("/:id", usageCtl.Delete)
	}

	mt := api.Group("/maintenance")
	{
		mt.GET("", maintenanceCtl.List)
		mt.POST("", maintenanceCtl.Create)
		mt.GET("/:id", maintenanceCtl.Get)
		mt.PUT("/:id", maintenanceCtl.Update)
		mt.DELETE("/:id", maintenanceCtl.Delete)
	}
}
