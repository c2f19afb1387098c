package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/univ-erp-api/internal/service"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
	"github.com/noah-isme/univ-erp-api/pkg/response"
)

// SettingsHandler exposes the global settings switches.
type SettingsHandler struct {
	settings *service.SettingsService
}

// NewSettingsHandler constructs SettingsHandler.
func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

type toggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// Get godoc
// @Summary Current global settings
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings [get]
func (h *SettingsHandler) Get(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.settings.Snapshot(c.Request.Context()), nil)
}

// SetMaintenanceMode godoc
// @Summary Toggle maintenance mode
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body toggleRequest true "Toggle payload"
// @Success 200 {object} response.Envelope
// @Router /settings/maintenance-mode [put]
func (h *SettingsHandler) SetMaintenanceMode(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "enabled is required"))
		return
	}

	settings, err := h.settings.SetMaintenanceMode(c.Request.Context(), *req.Enabled)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// SetAddDropEnabled godoc
// @Summary Toggle the add/drop window
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body toggleRequest true "Toggle payload"
// @Success 200 {object} response.Envelope
// @Router /settings/add-drop [put]
func (h *SettingsHandler) SetAddDropEnabled(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "enabled is required"))
		return
	}

	settings, err := h.settings.SetAddDropEnabled(c.Request.Context(), *req.Enabled)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}
