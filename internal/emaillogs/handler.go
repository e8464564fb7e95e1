package emaillogs

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/conreg/backend/internal/conventions"
	"github.com/conreg/backend/internal/middleware"
	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/internal/registrations"
	"github.com/conreg/backend/pkg/response"
)

// Resender re-queues a registration's confirmation email.
type Resender interface {
	ResendConfirmation(ctx context.Context, cv *models.Convention, actor models.Actor, id int64) error
}

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo     *Repository
	resender Resender
	logger   *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(repo *Repository, resender Resender, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, resender: resender, logger: logger}
}

// ListByConvention handles GET /admin/emails. Returns email logs for the current convention.
func (h *Handler) ListByConvention(c *gin.Context) {
	cv, ok := conventions.FromContext(c)
	if !ok {
		response.ServiceUnavailable(c, "no convention is currently active")
		return
	}
	logs, err := h.repo.ListByConvention(c.Request.Context(), cv.ID)
	if err != nil {
		h.logger.Error("list email logs", zap.Error(err))
		response.Internal(c, "failed to load email logs")
		return
	}
	response.OK(c, logs)
}

// ListByRegistration handles GET /desk/registrations/:id/emails.
func (h *Handler) ListByRegistration(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	logs, err := h.repo.ListByRegistration(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("list email logs", zap.Int64("registration_id", id), zap.Error(err))
		response.Internal(c, "failed to load email logs")
		return
	}
	response.OK(c, logs)
}

// Resend handles POST /desk/registrations/:id/emails/resend.
func (h *Handler) Resend(c *gin.Context) {
	cv, ok := conventions.FromContext(c)
	if !ok {
		response.ServiceUnavailable(c, "no convention is currently active")
		return
	}
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	if err := h.resender.ResendConfirmation(c.Request.Context(), cv, actor, id); err != nil {
		if errors.Is(err, registrations.ErrNotFound) || errors.Is(err, registrations.ErrCrossConvention) {
			response.NotFound(c, "registration not found")
			return
		}
		h.logger.Error("resend confirmation", zap.Int64("registration_id", id), zap.Error(err))
		response.Internal(c, "failed to resend confirmation")
		return
	}
	response.OK(c, gin.H{"message": "resend queued"})
}
