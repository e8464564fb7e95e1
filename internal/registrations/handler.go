package registrations

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/conreg/backend/internal/catalog"
	"github.com/conreg/backend/internal/conventions"
	"github.com/conreg/backend/internal/middleware"
	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/internal/payments"
	"github.com/conreg/backend/pkg/response"
)

// Handler serves the signup funnel, the confirmation page and the staff desk.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a registration handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// writeError maps a service error to a response.
func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	var batch *BatchError
	switch {
	case errors.As(err, &batch):
		response.Conflict(c, batch.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, catalog.ErrNotFound), errors.Is(err, payments.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrCrossConvention), errors.Is(err, ErrPrivilegedActionRequired), errors.Is(err, ErrRegistrationClosed):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrPaymentDeclined), errors.Is(err, ErrPaymentRequired):
		response.PaymentRequired(c, err.Error())
	case errors.Is(err, ErrAlreadyProcessed), errors.Is(err, ErrCheckedIn), errors.Is(err, ErrNotPaid),
		errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrCapacityExceeded):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidCoupon), errors.Is(err, ErrDeadlinePassed),
		errors.Is(err, ErrLevelUnavailable), errors.Is(err, ErrNoActivePrice), errors.Is(err, ErrUpgradeUnavailable):
		response.BadRequest(c, err.Error())
	case errors.Is(err, payments.ErrGateway):
		h.logger.Error(fallback, zap.Error(err))
		response.ServiceUnavailable(c, "payment processor unavailable, please try again")
	default:
		h.logger.Error(fallback, zap.Error(err))
		response.Internal(c, fallback)
	}
}

func (h *Handler) convention(c *gin.Context) (*models.Convention, bool) {
	cv, ok := conventions.FromContext(c)
	if !ok {
		response.ServiceUnavailable(c, "no convention is currently active")
	}
	return cv, ok
}

func (h *Handler) staff(c *gin.Context) (*models.Convention, models.Actor, bool) {
	cv, ok := h.convention(c)
	if !ok {
		return nil, models.Actor{}, false
	}
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return nil, models.Actor{}, false
	}
	return cv, actor, true
}

func registrationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid registration id")
		return 0, false
	}
	return id, true
}

// Register handles POST /registrations.
func (h *Handler) Register(c *gin.Context) {
	cv, ok := h.convention(c)
	if !ok {
		return
	}
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	req.IP = c.ClientIP()
	actor, _ := middleware.ActorFromContext(c)
	res, err := h.svc.Register(c.Request.Context(), cv, actor, req)
	if err != nil {
		h.writeError(c, err, "failed to register")
		return
	}
	response.Created(c, res)
}

// Quote handles POST /registrations/quote.
func (h *Handler) Quote(c *gin.Context) {
	cv, ok := h.convention(c)
	if !ok {
		return
	}
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	amount, err := h.svc.Quote(c.Request.Context(), cv, req)
	if err != nil {
		h.writeError(c, err, "failed to price registration")
		return
	}
	response.OK(c, gin.H{"amount_cents": amount})
}

// Confirmation handles GET /registrations/confirm/:external_id.
func (h *Handler) Confirmation(c *gin.Context) {
	cv, ok := h.convention(c)
	if !ok {
		return
	}
	reg, options, err := h.svc.Confirmation(c.Request.Context(), cv, c.Param("external_id"), c.ClientIP())
	if err != nil {
		h.writeError(c, err, "failed to load registration")
		return
	}
	response.OK(c, gin.H{"registration": reg, "upgrades": options})
}

// ConfirmationUpgrade handles POST /registrations/confirm/:external_id/upgrade.
func (h *Handler) ConfirmationUpgrade(c *gin.Context) {
	cv, ok := h.convention(c)
	if !ok {
		return
	}
	var req UpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	reg, _, err := h.svc.Confirmation(c.Request.Context(), cv, c.Param("external_id"), c.ClientIP())
	if err != nil {
		h.writeError(c, err, "failed to load registration")
		return
	}
	actor, _ := middleware.ActorFromContext(c)
	res, err := h.svc.Upgrade(c.Request.Context(), cv, actor, reg.ID, req)
	if err != nil {
		h.writeError(c, err, "failed to upgrade registration")
		return
	}
	response.OK(c, res)
}

// ConfirmationDealer handles POST /registrations/confirm/:external_id/dealer.
func (h *Handler) ConfirmationDealer(c *gin.Context) {
	cv, ok := h.convention(c)
	if !ok {
		return
	}
	var req DealerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	reg, _, err := h.svc.Confirmation(c.Request.Context(), cv, c.Param("external_id"), c.ClientIP())
	if err != nil {
		h.writeError(c, err, "failed to load registration")
		return
	}
	actor, _ := middleware.ActorFromContext(c)
	res, err := h.svc.AddDealerTables(c.Request.Context(), cv, actor, reg.ID, req)
	if err != nil {
		h.writeError(c, err, "failed to add dealer tables")
		return
	}
	response.OK(c, res)
}

// Search handles GET /desk/registrations?q=.
func (h *Handler) Search(c *gin.Context) {
	cv, ok := h.convention(c)
	if !ok {
		return
	}
	list, err := h.svc.Search(c.Request.Context(), cv, c.Query("q"))
	if err != nil {
		h.writeError(c, err, "failed to search registrations")
		return
	}
	response.OK(c, list)
}

// SwipeSearch handles POST /desk/registrations/swipe.
func (h *Handler) SwipeSearch(c *gin.Context) {
	cv, ok := h.convention(c)
	if !ok {
		return
	}
	var sw Swipe
	if err := c.ShouldBindJSON(&sw); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	list, err := h.svc.SwipeSearch(c.Request.Context(), cv, sw)
	if err != nil {
		h.writeError(c, err, "failed to search registrations")
		return
	}
	response.OK(c, list)
}

// RegistrationView is the desk view of one registration.
type RegistrationView struct {
	*models.Registration
	PrivateNotes string                      `json:"private_notes,omitempty"`
	BadgeNumber  string                      `json:"badge_number,omitempty"`
	Verified     bool                        `json:"verified"`
	Payments     []models.Payment            `json:"payments"`
	Upgrades     []models.RegistrationUpgrade `json:"upgrades"`
}

// Get handles GET /desk/registrations/:id.
func (h *Handler) Get(c *gin.Context) {
	cv, ok := h.convention(c)
	if !ok {
		return
	}
	id, ok := registrationID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	reg, err := h.svc.Get(ctx, cv, id)
	if err != nil {
		h.writeError(c, err, "failed to load registration")
		return
	}
	view := RegistrationView{Registration: reg, PrivateNotes: reg.PrivateNotes}
	if view.BadgeNumber, _, err = h.svc.BadgeNumber(ctx, cv, id); err != nil {
		h.writeError(c, err, "failed to load registration")
		return
	}
	if view.Verified, err = h.svc.Verify(ctx, cv, id); err != nil {
		h.writeError(c, err, "failed to load registration")
		return
	}
	if view.Payments, err = h.svc.Payments(ctx, cv, id); err != nil {
		h.writeError(c, err, "failed to load registration")
		return
	}
	if view.Upgrades, err = h.svc.UpgradeOptions(ctx, cv, id); err != nil {
		h.writeError(c, err, "failed to load registration")
		return
	}
	response.OK(c, view)
}

// Edit handles PATCH /desk/registrations/:id.
func (h *Handler) Edit(c *gin.Context) {
	cv, actor, ok := h.staff(c)
	if !ok {
		return
	}
	id, ok := registrationID(c)
	if !ok {
		return
	}
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	reg, err := h.svc.Edit(c.Request.Context(), cv, actor, id, req)
	if err != nil {
		h.writeError(c, err, "failed to edit registration")
		return
	}
	response.OK(c, reg)
}

// History handles GET /desk/registrations/:id/history.
func (h *Handler) History(c *gin.Context) {
	cv, ok := h.convention(c)
	if !ok {
		return
	}
	id, ok := registrationID(c)
	if !ok {
		return
	}
	list, err := h.svc.History(c.Request.Context(), cv, id)
	if err != nil {
		h.writeError(c, err, "failed to load history")
		return
	}
	response.OK(c, list)
}

// ApplyPayment handles POST /desk/registrations/:id/payments.
func (h *Handler) ApplyPayment(c *gin.Context) {
	cv, actor, ok := h.staff(c)
	if !ok {
		return
	}
	id, ok := registrationID(c)
	if !ok {
		return
	}
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := h.svc.ApplyPayment(c.Request.Context(), cv, actor, id, req)
	if err != nil {
		h.writeError(c, err, "failed to apply payment")
		return
	}
	response.Created(c, p)
}

// OnsitePayment handles POST /desk/registrations/:id/onsite-payment.
func (h *Handler) OnsitePayment(c *gin.Context) {
	cv, actor, ok := h.staff(c)
	if !ok {
		return
	}
	id, ok := registrationID(c)
	if !ok {
		return
	}
	var req OnsitePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	reg, err := h.svc.TakeOnsitePayment(c.Request.Context(), cv, actor, id, req)
	if err != nil {
		h.writeError(c, err, "failed to take payment")
		return
	}
	response.OK(c, reg)
}

type regAction func(context.Context, *models.Convention, models.Actor, int64) (*models.Registration, error)

func (h *Handler) act(c *gin.Context, fallback string, fn regAction) {
	cv, actor, ok := h.staff(c)
	if !ok {
		return
	}
	id, ok := registrationID(c)
	if !ok {
		return
	}
	reg, err := fn(c.Request.Context(), cv, actor, id)
	if err != nil {
		h.writeError(c, err, fallback)
		return
	}
	response.OK(c, reg)
}

// Refund handles POST /desk/registrations/:id/refund.
func (h *Handler) Refund(c *gin.Context) { h.act(c, "failed to refund registration", h.svc.Refund) }

// UndoRefund handles DELETE /desk/registrations/:id/refund.
func (h *Handler) UndoRefund(c *gin.Context) { h.act(c, "failed to undo refund", h.svc.UndoRefund) }

// Reject handles POST /desk/registrations/:id/reject.
func (h *Handler) Reject(c *gin.Context) { h.act(c, "failed to reject registration", h.svc.Reject) }

// CheckIn handles POST /desk/registrations/:id/check-in.
func (h *Handler) CheckIn(c *gin.Context) { h.act(c, "failed to check in", h.svc.CheckIn) }

// UndoCheckIn handles DELETE /desk/registrations/:id/check-in.
func (h *Handler) UndoCheckIn(c *gin.Context) { h.act(c, "failed to undo check-in", h.svc.UndoCheckIn) }

// StatusRequest is the body for POST /desk/registrations/:id/status.
type StatusRequest struct {
	Status models.RegistrationStatus `json:"status" binding:"required"`
}

// ChangeStatus handles POST /desk/registrations/:id/status.
func (h *Handler) ChangeStatus(c *gin.Context) {
	cv, actor, ok := h.staff(c)
	if !ok {
		return
	}
	id, ok := registrationID(c)
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	reg, err := h.svc.ChangeStatus(c.Request.Context(), cv, actor, id, req.Status)
	if err != nil {
		h.writeError(c, err, "failed to change status")
		return
	}
	response.OK(c, reg)
}

// Upgrade handles POST /desk/registrations/:id/upgrade.
func (h *Handler) Upgrade(c *gin.Context) {
	cv, actor, ok := h.staff(c)
	if !ok {
		return
	}
	id, ok := registrationID(c)
	if !ok {
		return
	}
	var req UpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.Upgrade(c.Request.Context(), cv, actor, id, req)
	if err != nil {
		h.writeError(c, err, "failed to upgrade registration")
		return
	}
	response.OK(c, res)
}

// PrintRequest is the body for POST /desk/badges/print.
type PrintRequest struct {
	RegistrationIDs []int64 `json:"registration_ids" binding:"required"`
	Reprint         bool    `json:"reprint"`
}

// PrintBadges handles POST /desk/badges/print.
func (h *Handler) PrintBadges(c *gin.Context) {
	cv, actor, ok := h.staff(c)
	if !ok {
		return
	}
	var req PrintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	out, err := h.svc.PrintBadges(c.Request.Context(), cv, actor, req.RegistrationIDs, req.Reprint)
	if err != nil {
		h.writeError(c, err, "failed to print badges")
		return
	}
	response.OK(c, out)
}

// Holds handles GET /holds.
func (h *Handler) Holds(c *gin.Context) {
	list, err := h.svc.Holds(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "failed to list holds")
		return
	}
	response.OK(c, list)
}

// AddHold handles POST /holds.
func (h *Handler) AddHold(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}
	var hold models.RegistrationHold
	if err := c.ShouldBindJSON(&hold); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.svc.AddHold(c.Request.Context(), actor, &hold); err != nil {
		h.writeError(c, err, "failed to add hold")
		return
	}
	response.Created(c, hold)
}
