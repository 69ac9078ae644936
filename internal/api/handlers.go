package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"greenhouse-monitor/internal/device"
	"greenhouse-monitor/internal/model"
	"greenhouse-monitor/internal/store"
	"greenhouse-monitor/internal/telemetry"
	"greenhouse-monitor/internal/ws"
)

type Handler struct {
	store     *store.Store
	manager   *device.Manager
	overrides *telemetry.Overrides
	hub       *ws.Hub
}

func NewHandler(st *store.Store, mgr *device.Manager, ov *telemetry.Overrides, hub *ws.Hub) *Handler {
	return &Handler{store: st, manager: mgr, overrides: ov, hub: hub}
}

type createGreenhouseRequest struct {
	Name      string `json:"name"`
	Location  string `json:"location"`
	PlantType string `json:"plantType"`
	DeviceURL string `json:"deviceUrl"`
}

// CreateGreenhouse registers a greenhouse with unset thresholds.
func (h *Handler) CreateGreenhouse(c *gin.Context) {
	var req createGreenhouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Name == "" || req.Location == "" || req.PlantType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing fields"})
		return
	}

	g := &model.Greenhouse{
		Name:      req.Name,
		Location:  req.Location,
		PlantType: req.PlantType,
		DeviceURL: req.DeviceURL,
	}
	if err := h.store.CreateGreenhouse(c.Request.Context(), g); err != nil {
		log.Error().Err(err).Msg("create greenhouse")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) GetGreenhouse(c *gin.Context) {
	g, err := h.store.GetGreenhouse(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Green house doesn't exist"})
			return
		}
		log.Error().Err(err).Msg("get greenhouse")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	c.JSON(http.StatusOK, g)
}

// UpdateThresholds replaces all eight bounds; omitted sides clear the bound.
// A live subscription picks the new values up on its next message.
func (h *Handler) UpdateThresholds(c *gin.Context) {
	var th telemetry.Thresholds
	if err := c.ShouldBindJSON(&th); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := h.store.UpdateThresholds(c.Request.Context(), c.Param("id"), th); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Green house doesn't exist"})
			return
		}
		log.Error().Err(err).Msg("update thresholds")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Thresholds updated"})
}

// Connect opens the greenhouse's device subscription.
func (h *Handler) Connect(c *gin.Context) {
	err := h.manager.Connect(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, store.ErrNoDeviceURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Green house doesn't have device url"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Green house doesn't exist"})
	case errors.Is(err, device.ErrAlreadyConnected):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Device is already connected"})
	case err != nil:
		log.Error().Err(err).Msg("connect device")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to connect to GreenHouse device"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Connected to GreenHouse device"})
	}
}

// Disconnect tears the subscription down.
func (h *Handler) Disconnect(c *gin.Context) {
	err := h.manager.Disconnect(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, store.ErrNoDeviceURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Green house doesn't have device url"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Green house doesn't exist"})
	case errors.Is(err, device.ErrNotConnected):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Device is not connected"})
	case err != nil:
		log.Error().Err(err).Msg("disconnect device")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to disconnect from GreenHouse device"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Disconnected from GreenHouse device"})
	}
}

type overrideRequest struct {
	Enabled *bool `json:"enabled"`
}

// SetOverride flips the greenhouse's actuator override flag.
func (h *Handler) SetOverride(c *gin.Context) {
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing fields"})
		return
	}
	id := c.Param("id")
	if _, err := h.store.GetGreenhouse(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Green house doesn't exist"})
			return
		}
		log.Error().Err(err).Msg("set override")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	h.overrides.Set(id, *req.Enabled)
	c.JSON(http.StatusOK, gin.H{"message": "Override updated"})
}

// ListStats returns recent persisted samples, newest first.
func (h *Handler) ListStats(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}
	id := c.Param("id")
	if _, err := h.store.GetGreenhouse(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Green house doesn't exist"})
			return
		}
		log.Error().Err(err).Msg("list stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	rows, err := h.store.ListStatSamples(c.Request.Context(), id, limit)
	if err != nil {
		log.Error().Err(err).Msg("list stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// ServeWS joins the caller to the greenhouse's viewer room.
func (h *Handler) ServeWS(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.store.GetGreenhouse(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Green house doesn't exist"})
			return
		}
		log.Error().Err(err).Msg("join room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}
	if err := ws.ServeWS(h.hub, id, c.Writer, c.Request); err != nil {
		log.Warn().Err(err).Str("greenhouse_id", id).Msg("websocket upgrade failed")
	}
}
