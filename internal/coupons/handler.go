package coupons

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conreg/backend/internal/conventions"
	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/pkg/response"
)

// CreateRequest is the body for POST /coupons.
type CreateRequest struct {
	Code               string     `json:"code"`
	Percent            bool       `json:"percent"`
	Discount           int64      `json:"discount"`
	SingleUse          bool       `json:"single_use"`
	ForceLevelID       *uuid.UUID `json:"force_level_id"`
	ForceDealerLevelID *uuid.UUID `json:"force_dealer_level_id"`
	Notes              string     `json:"notes"`
}

// Validate checks the request fields.
func (r CreateRequest) Validate() error {
	limit := int64(1 << 40)
	if r.Percent {
		limit = 100
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Discount, validation.Min(int64(0)), validation.Max(limit)),
	)
}

// Handler handles coupon admin endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a coupon handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// Create handles POST /coupons.
func (h *Handler) Create(c *gin.Context) {
	cv, ok := conventions.FromContext(c)
	if !ok {
		response.ServiceUnavailable(c, "no convention is currently active")
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	coupon := &models.Coupon{
		ConventionID:       cv.ID,
		Code:               req.Code,
		Percent:            req.Percent,
		Discount:           req.Discount,
		SingleUse:          req.SingleUse,
		ForceLevelID:       req.ForceLevelID,
		ForceDealerLevelID: req.ForceDealerLevelID,
		Notes:              req.Notes,
	}
	err := h.repo.Create(c.Request.Context(), coupon)
	if errors.Is(err, ErrCodeTaken) {
		response.Conflict(c, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("create coupon failed", zap.Error(err))
		response.Internal(c, "failed to create coupon")
		return
	}
	response.Created(c, coupon)
}

// List handles GET /coupons.
func (h *Handler) List(c *gin.Context) {
	cv, ok := conventions.FromContext(c)
	if !ok {
		response.ServiceUnavailable(c, "no convention is currently active")
		return
	}
	list, err := h.repo.List(c.Request.Context(), cv.ID)
	if err != nil {
		response.Internal(c, "failed to list coupons")
		return
	}
	response.OK(c, list)
}
