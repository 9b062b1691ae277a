package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mvasquez-dev/photoloom-backend/internal/platform/compute"
	"github.com/mvasquez-dev/photoloom-backend/internal/services"
)

// CallbacksHandler is the webhook the compute backend pushes job completions
// to. Delivery is at-least-once; the router behind it is idempotent, so a 200
// here never lies.
type CallbacksHandler struct {
	router services.CallbackRouter
}

func NewCallbacksHandler(router services.CallbackRouter) *CallbacksHandler {
	return &CallbacksHandler{router: router}
}

// POST /internal/intelligence/callbacks
func (h *CallbacksHandler) HandleCompletion(c *gin.Context) {
	var completion compute.Completion
	if err := c.ShouldBindJSON(&completion); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_completion", err)
		return
	}
	if completion.JobID == "" || !completion.TaskType.Valid() {
		RespondError(c, http.StatusBadRequest, "invalid_completion", nil)
		return
	}

	if err := h.router.HandleCompletion(c.Request.Context(), completion); err != nil {
		RespondError(c, http.StatusInternalServerError, "completion_failed", err)
		return
	}
	RespondOK(c, gin.H{"accepted": true})
}
