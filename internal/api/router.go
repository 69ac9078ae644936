package api

import "github.com/gin-gonic/gin"

// NewRouter wires all routes onto a fresh engine.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	{
		api.POST("/greenhouses", h.CreateGreenhouse)
		api.GET("/greenhouses/:id", h.GetGreenhouse)
		api.PUT("/greenhouses/:id/thresholds", h.UpdateThresholds)
		api.POST("/greenhouses/:id/connect", h.Connect)
		api.POST("/greenhouses/:id/disconnect", h.Disconnect)
		api.PUT("/greenhouses/:id/override", h.SetOverride)
		api.GET("/greenhouses/:id/stats", h.ListStats)
	}

	r.GET("/ws/greenhouses/:id", h.ServeWS)
	return r
}
