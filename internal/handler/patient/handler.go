package patient

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medibook-api/internal/model"
	"github.com/jwalitptl/medibook-api/internal/service/patient"
	"github.com/jwalitptl/medibook-api/pkg/errors"
	"github.com/jwalitptl/medibook-api/pkg/httputil"
)

type Handler struct {
	service *patient.Service
}

func NewHandler(service *patient.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("/intake", h.Intake)
		patients.GET("/:phone", h.GetProfile)
		patients.PUT("/:phone/registration", h.Register)
		patients.PUT("/:phone/appointment", h.Book)
		patients.GET("/:phone/appointment", h.GetAppointment)
	}
}

// RegisterCatalogRoutes mounts the static reference data the forms offer.
func (h *Handler) RegisterCatalogRoutes(r *gin.RouterGroup) {
	r.GET("/doctors", h.ListDoctors)
}

func (h *Handler) Intake(c *gin.Context) {
	var req model.IntakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	result, err := h.service.Intake(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, result)
}

func (h *Handler) GetProfile(c *gin.Context) {
	phone := phoneParam(c)

	profile, err := h.service.Profile(c.Request.Context(), phone)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, profile)
}

func (h *Handler) Register(c *gin.Context) {
	phone := phoneParam(c)

	var req model.RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	result, err := h.service.Register(c.Request.Context(), phone, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, result)
}

func (h *Handler) Book(c *gin.Context) {
	phone := phoneParam(c)

	var req model.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	result, err := h.service.Book(c.Request.Context(), phone, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, result)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	phone := phoneParam(c)

	details, err := h.service.Appointment(c.Request.Context(), phone)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, details)
}

func (h *Handler) ListDoctors(c *gin.Context) {
	httputil.RespondWithSuccess(c, model.Doctors)
}

func phoneParam(c *gin.Context) string {
	return patient.PhonePathParam(c.Param("phone"))
}
