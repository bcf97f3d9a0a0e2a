package notification

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medibook-api/internal/model"
	"github.com/jwalitptl/medibook-api/internal/service/notification"
	"github.com/jwalitptl/medibook-api/pkg/errors"
	"github.com/jwalitptl/medibook-api/pkg/httputil"
	"github.com/jwalitptl/medibook-api/pkg/validator"
)

const SentMessage = "Email sent successfully!!!"

type Handler struct {
	service   notification.Service
	validator validator.Validator
}

func NewHandler(service notification.Service, v validator.Validator) *Handler {
	return &Handler{service: service, validator: v}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/emails", h.SendEmail)
}

// SendEmail delivers one confirmation email synchronously.
func (h *Handler) SendEmail(c *gin.Context) {
	var req model.AppointmentNotification
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.service.Send(c.Request.Context(), &req); err != nil {
		httputil.RespondWithError(c, errors.Internal(err))
		return
	}

	c.JSON(http.StatusOK, &httputil.Response{Status: "success", Message: SentMessage})
}
