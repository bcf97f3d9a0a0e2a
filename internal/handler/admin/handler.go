package admin

import (
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/medibook-api/internal/model"
	"github.com/jwalitptl/medibook-api/internal/service/admin"
	apperrors "github.com/jwalitptl/medibook-api/pkg/errors"
	"github.com/jwalitptl/medibook-api/pkg/httputil"
)

type Handler struct {
	service *admin.Service
}

func NewHandler(service *admin.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes expects r to already carry the admin auth middleware.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.GET("", h.ListAppointments)
		appointments.GET("/summary", h.Summary)
		appointments.POST("/:id/confirm", h.Confirm)
		appointments.POST("/:id/adjust", h.Adjust)
		appointments.DELETE("/:id", h.Cancel)
	}
}

func (h *Handler) ListAppointments(c *gin.Context) {
	list, err := h.service.ListAppointments(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, list)
}

func (h *Handler) Summary(c *gin.Context) {
	counts, err := h.service.Summary(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, counts)
}

func (h *Handler) Confirm(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var req model.ConfirmRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	patient, err := h.service.Confirm(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, patient)
}

func (h *Handler) Adjust(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var req model.AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}

	patient, err := h.service.Adjust(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, patient)
}

// Cancel takes the expected version from the ?version= query parameter.
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	req := model.CancelRequest{ID: id}
	if v := c.Query("version"); v != "" {
		version, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid version", err))
			return
		}
		req.Version = &version
	}

	if err := h.service.Cancel(c.Request.Context(), &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"id": id, "deleted": true})
}

func idParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid appointment ID", err))
		return uuid.Nil, false
	}
	return id, true
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, obj interface{}) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return false
	}
	return true
}
