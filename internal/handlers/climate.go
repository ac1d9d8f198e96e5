package handlers

import (
	"errors"
	"net/http"

	"atmeex_cloud/internal/models"
	"atmeex_cloud/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	statusCommandSent = "command_sent"

	errClimateNotFound = "climate entity not found"
	errCommandFailed   = "device command failed"
	errInvalidBodyPref = "invalid body: "
)

// HVACModeRequest is the payload of the hvac_mode command.
type HVACModeRequest struct {
	// Allowed: heat, fan_only, off
	HVACMode string `json:"hvac_mode" binding:"required" example:"heat"`
}

// FanModeRequest is the payload of the fan_mode command.
type FanModeRequest struct {
	// Fan level "1".."7"
	FanMode string `json:"fan_mode" binding:"required" example:"3"`
}

// TemperatureRequest is the payload of the temperature command. A null temperature is ignored.
type TemperatureRequest struct {
	Temperature *float64 `json:"temperature" example:"22.5"`
}

// lookupClimate writes a 404 and returns nil when the entity is unknown.
func (h *Handler) lookupClimate(c *gin.Context) service.Climate {
	cl, err := h.services.Climate(c.Param("entity_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errClimateNotFound})
		return nil
	}
	return cl
}

// respondCommand maps a command result to a response carrying the fresh state.
func (h *Handler) respondCommand(c *gin.Context, cl service.Climate, command string, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": statusCommandSent, "state": cl.State()})
	case errors.Is(err, service.ErrUnrecognizedMode), errors.Is(err, service.ErrInvalidFanMode):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logAndJSONError(c, http.StatusBadGateway, errCommandFailed, "climate_command_failed", err,
			"entity_id", cl.EntityID(), "command", command)
	}
}

// @Summary      List climate entities
// @Tags         climate
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, climates"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/climate [get]
// @Security     BearerAuth
func (h *Handler) listClimates(c *gin.Context) {
	states := h.services.ClimateStates()
	c.JSON(http.StatusOK, gin.H{
		"count":    len(states),
		"climates": states,
	})
}

// @Summary      Get climate entity state
// @Tags         climate
// @Produce      json
// @Param        entity_id  path      string  true  "Entity id"  example(climate.atmeex_42)
// @Success      200        {object}  models.ClimateState
// @Failure      401        {object}  map[string]string
// @Failure      404        {object}  map[string]string
// @Router       /api/v1/climate/{entity_id} [get]
// @Security     BearerAuth
func (h *Handler) getClimate(c *gin.Context) {
	cl := h.lookupClimate(c)
	if cl == nil {
		return
	}
	c.JSON(http.StatusOK, cl.State())
}

// @Summary      Set HVAC mode
// @Tags         climate
// @Accept       json
// @Produce      json
// @Param        entity_id  path      string           true  "Entity id"
// @Param        body       body      HVACModeRequest  true  "Mode payload"
// @Success      200        {object}  map[string]interface{}  "status, state"
// @Failure      400        {object}  map[string]string
// @Failure      404        {object}  map[string]string
// @Failure      502        {object}  map[string]string
// @Router       /api/v1/climate/{entity_id}/hvac_mode [post]
// @Security     BearerAuth
func (h *Handler) setHVACMode(c *gin.Context) {
	cl := h.lookupClimate(c)
	if cl == nil {
		return
	}
	var req HVACModeRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	err := cl.SetHVACMode(c.Request.Context(), models.HVACMode(req.HVACMode))
	h.respondCommand(c, cl, "set_hvac_mode", err)
}

// @Summary      Set fan mode
// @Tags         climate
// @Accept       json
// @Produce      json
// @Param        entity_id  path      string          true  "Entity id"
// @Param        body       body      FanModeRequest  true  "Fan level"
// @Success      200        {object}  map[string]interface{}  "status, state"
// @Failure      400        {object}  map[string]string
// @Failure      404        {object}  map[string]string
// @Failure      502        {object}  map[string]string
// @Router       /api/v1/climate/{entity_id}/fan_mode [post]
// @Security     BearerAuth
func (h *Handler) setFanMode(c *gin.Context) {
	cl := h.lookupClimate(c)
	if cl == nil {
		return
	}
	var req FanModeRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	err := cl.SetFanMode(c.Request.Context(), req.FanMode)
	h.respondCommand(c, cl, "set_fan_mode", err)
}

// @Summary      Set target temperature
// @Tags         climate
// @Accept       json
// @Produce      json
// @Param        entity_id  path      string              true  "Entity id"
// @Param        body       body      TemperatureRequest  true  "Temperature payload"
// @Success      200        {object}  map[string]interface{}  "status, state"
// @Failure      400        {object}  map[string]string
// @Failure      404        {object}  map[string]string
// @Failure      502        {object}  map[string]string
// @Router       /api/v1/climate/{entity_id}/temperature [post]
// @Security     BearerAuth
func (h *Handler) setTemperature(c *gin.Context) {
	cl := h.lookupClimate(c)
	if cl == nil {
		return
	}
	var req TemperatureRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	err := cl.SetTemperature(c.Request.Context(), req.Temperature)
	h.respondCommand(c, cl, "set_temperature", err)
}

// @Summary      Turn on
// @Tags         climate
// @Produce      json
// @Param        entity_id  path      string  true  "Entity id"
// @Success      200        {object}  map[string]interface{}  "status, state"
// @Failure      404        {object}  map[string]string
// @Failure      502        {object}  map[string]string
// @Router       /api/v1/climate/{entity_id}/turn_on [post]
// @Security     BearerAuth
func (h *Handler) turnOn(c *gin.Context) {
	cl := h.lookupClimate(c)
	if cl == nil {
		return
	}
	h.respondCommand(c, cl, "turn_on", cl.TurnOn(c.Request.Context()))
}

// @Summary      Turn off
// @Tags         climate
// @Produce      json
// @Param        entity_id  path      string  true  "Entity id"
// @Success      200        {object}  map[string]interface{}  "status, state"
// @Failure      404        {object}  map[string]string
// @Failure      502        {object}  map[string]string
// @Router       /api/v1/climate/{entity_id}/turn_off [post]
// @Security     BearerAuth
func (h *Handler) turnOff(c *gin.Context) {
	cl := h.lookupClimate(c)
	if cl == nil {
		return
	}
	h.respondCommand(c, cl, "turn_off", cl.TurnOff(c.Request.Context()))
}
