package v1

import (
	"github.com/gin-gonic/gin"

	"invclose/internal/domain/auth"
	"invclose/internal/infrastructure/http/v1/handlers"
	"invclose/internal/infrastructure/http/v1/middleware"
)

// registerProcessRoutes registers reconciliation, report and listing routes.
// Reads are open to every authenticated user; runs need the operator role.
func registerProcessRoutes(rg *gin.RouterGroup, h *handlers.ProcessHandler) {
	operator := middleware.RequireRole(auth.RoleOperator)

	rg.GET("/datasets", h.ListDatasets)
	rg.GET("/history", h.ListHistory)
	rg.POST("/unmatch/:date", operator, h.RunUnmatch)
	rg.POST("/reports/:date", operator, h.PrepareReport)
	rg.GET("/reports/:date/hash", h.ContentHash)
}

// registerCloseRoutes registers the daily close routes. Development closes
// and resets are admin only.
func registerCloseRoutes(group *gin.RouterGroup, h *handlers.CloseHandler) {
	operator := middleware.RequireRole(auth.RoleOperator)
	admin := middleware.RequireRole(auth.RoleAdmin)

	group.GET("", h.List)
	group.GET("/:date", h.Get)
	group.GET("/:date/confirm", h.Confirm)
	group.POST("/:date", operator, h.Execute)
	group.POST("/:date/dev", admin, h.ExecuteDevelopment)
	group.POST("/:date/reset", admin, h.Reset)
}
