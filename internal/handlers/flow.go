package handlers

import (
	"net/http"

	"atmeex_cloud/internal/service"

	"github.com/gin-gonic/gin"
)

const errFlowFailed = "failed to create config entry"

// @Summary      Show the account login form
// @Tags         flows
// @Produce      json
// @Success      200  {object}  service.FlowResult
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/flows/user [get]
// @Security     BearerAuth
func (h *Handler) showUserForm(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.ShowForm())
}

// @Summary      Submit the account login form
// @Description  Returns a form with errors, an abort, or the created entry.
// @Tags         flows
// @Accept       json
// @Produce      json
// @Param        body  body      map[string]string  true  "email and password"
// @Success      200   {object}  service.FlowResult
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/flows/user [post]
// @Security     BearerAuth
func (h *Handler) submitUserStep(c *gin.Context) {
	var input map[string]any
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}
	if input == nil {
		input = map[string]any{}
	}

	res, err := h.services.StepUser(c.Request.Context(), input)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errFlowFailed, "flow_step_user_failed", err)
		return
	}
	status := http.StatusOK
	if res.Type == service.FlowResultCreateEntry {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}
