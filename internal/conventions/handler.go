package conventions

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/pkg/response"
)

// CreateRequest is the body for POST /conventions.
type CreateRequest struct {
	Name         string                       `json:"name"`
	StartsAt     time.Time                    `json:"starts_at"`
	EndsAt       *time.Time                   `json:"ends_at"`
	ContactEmail string                       `json:"contact_email"`
	Settings     *models.RegistrationSettings `json:"settings"`
	MakeCurrent  bool                         `json:"make_current"`
}

// Validate checks the request fields.
func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.StartsAt, validation.Required),
	)
}

// SettingsRequest is the body for PUT /conventions/:id/settings.
type SettingsRequest struct {
	RegistrationOpen bool   `json:"registration_open"`
	BadgeNumberStyle string `json:"badge_number_style"`
	BadgeOffset      int64  `json:"badge_offset"`
	DealerTableLimit int    `json:"dealer_table_limit"`
}

// Validate checks the request fields.
func (r SettingsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.BadgeNumberStyle, validation.Required, validation.In(
			string(models.BadgeNumberAssignedWhenPrinted), string(models.BadgeNumberAssignedAtRegistration))),
		validation.Field(&r.BadgeOffset, validation.Min(0)),
		validation.Field(&r.DealerTableLimit, validation.Min(0)),
	)
}

// Handler handles convention HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a convention handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// Create handles POST /conventions (superuser only).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	cv := &models.Convention{
		Name:         req.Name,
		StartsAt:     req.StartsAt,
		EndsAt:       req.EndsAt,
		ContactEmail: req.ContactEmail,
		Settings:     models.DefaultRegistrationSettings(),
	}
	if req.Settings != nil {
		cv.Settings = *req.Settings
	}
	if err := h.repo.Create(c.Request.Context(), cv); err != nil {
		h.logger.Error("create convention failed", zap.Error(err))
		response.Internal(c, "failed to create convention")
		return
	}
	if req.MakeCurrent {
		if err := h.repo.SetCurrent(c.Request.Context(), cv.ID); err != nil {
			response.Internal(c, "failed to mark convention current")
			return
		}
	}
	h.logger.Info("convention created", zap.String("convention_id", cv.ID.String()), zap.Bool("current", req.MakeCurrent))
	response.Created(c, cv)
}

// Current handles GET /conventions/current.
func (h *Handler) Current(c *gin.Context) {
	cv, ok := FromContext(c)
	if !ok {
		response.ServiceUnavailable(c, "no convention is currently active")
		return
	}
	response.OK(c, cv)
}

// List handles GET /conventions.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list conventions")
		return
	}
	response.OK(c, list)
}

// UpdateSettings handles PUT /conventions/:id/settings (superuser only).
func (h *Handler) UpdateSettings(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid convention id")
		return
	}
	var req SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	settings := models.RegistrationSettings{
		RegistrationOpen: req.RegistrationOpen,
		BadgeNumberStyle: models.BadgeNumberStyle(req.BadgeNumberStyle),
		BadgeOffset:      req.BadgeOffset,
		DealerTableLimit: req.DealerTableLimit,
	}
	err = h.repo.UpdateSettings(c.Request.Context(), id, settings)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, err.Error())
		return
	}
	if err != nil {
		response.Internal(c, "failed to update settings")
		return
	}
	response.OK(c, settings)
}

// MakeCurrent handles POST /conventions/:id/current (superuser only).
func (h *Handler) MakeCurrent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid convention id")
		return
	}
	err = h.repo.SetCurrent(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, err.Error())
		return
	}
	if err != nil {
		response.Internal(c, "failed to mark convention current")
		return
	}
	h.logger.Info("current convention changed", zap.String("convention_id", id.String()))
	response.NoContent(c)
}
