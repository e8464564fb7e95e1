package checkin

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation"
	"go.uber.org/zap"

	"github.com/conreg/backend/internal/conventions"
	"github.com/conreg/backend/internal/middleware"
	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/internal/registrations"
	"github.com/conreg/backend/pkg/response"
)

// Handler serves the line wrangler, desk and badge puller terminals.
type Handler struct {
	desk   *Desk
	queue  *Queue
	logger *zap.Logger
}

// NewHandler creates a check-in handler.
func NewHandler(desk *Desk, queue *Queue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{desk: desk, queue: queue, logger: logger}
}

// EnqueueRequest is the body for POST /desk/queues/:name.
type EnqueueRequest struct {
	RegistrationID int64  `json:"registration_id" binding:"required"`
	Preserve       bool   `json:"preserve"`
	AdditionalData string `json:"additional_data"`
	RoomNumber     *int   `json:"room_number"`
}

// Validate checks the request.
func (r EnqueueRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RegistrationID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.AdditionalData, validation.Length(0, 40)),
		validation.Field(&r.RoomNumber, validation.Min(1)),
	)
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, registrations.ErrNotFound), errors.Is(err, registrations.ErrCrossConvention):
		response.NotFound(c, "registration not found")
	case errors.Is(err, ErrInvalidQueue), errors.Is(err, registrations.ErrInvalidInput):
		response.BadRequest(c, err.Error())
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

func registrationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid registration id")
		return 0, false
	}
	return id, true
}

// List handles GET /desk/queues/:name?limit=.
func (h *Handler) List(c *gin.Context) {
	cv, ok := h.convention(c)
	if !ok {
		return
	}
	name := c.Param("name")
	n := h.desk.opts.LineSize
	if name == h.desk.opts.BadgeQueue {
		n = h.desk.opts.BadgeSize
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 50 {
			response.BadRequest(c, "limit must be between 1 and 50")
			return
		}
		n = limit
	}
	list, err := h.desk.Waiting(c.Request.Context(), cv, name, n)
	if err != nil {
		h.writeError(c, err, "failed to list queue")
		return
	}
	response.OK(c, list)
}

// Enqueue handles POST /desk/queues/:name.
func (h *Handler) Enqueue(c *gin.Context) {
	cv, ok := h.convention(c)
	if !ok {
		return
	}
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.desk.Enqueue(c.Request.Context(), cv, actor, req.RegistrationID, c.Param("name"), req.Preserve, req.AdditionalData, req.RoomNumber); err != nil {
		h.writeError(c, err, "failed to enqueue registration")
		return
	}
	response.Created(c, gin.H{"queue": c.Param("name"), "registration_id": req.RegistrationID})
}

// Dequeue handles DELETE /desk/queues/:name/:id.
func (h *Handler) Dequeue(c *gin.Context) {
	cv, ok := h.convention(c)
	if !ok {
		return
	}
	id, ok := registrationID(c)
	if !ok {
		return
	}
	if err := h.queue.Dequeue(c.Request.Context(), cv.ID, id, c.Param("name")); err != nil {
		h.writeError(c, err, "failed to dequeue registration")
		return
	}
	response.NoContent(c)
}

// Open handles POST /desk/registrations/:id/open?auto_request=.
func (h *Handler) Open(c *gin.Context) {
	cv, ok := h.convention(c)
	if !ok {
		return
	}
	id, ok := registrationID(c)
	if !ok {
		return
	}
	auto := h.desk.opts.AutoRequest
	if v := c.Query("auto_request"); v != "" {
		auto = v == "true" || v == "1"
	}
	res, err := h.desk.Open(c.Request.Context(), cv, id, auto)
	if err != nil {
		h.writeError(c, err, "failed to open registration")
		return
	}
	response.OK(c, res)
}

// Line handles GET /desk/line.
func (h *Handler) Line(c *gin.Context) {
	cv, ok := h.convention(c)
	if !ok {
		return
	}
	list, err := h.desk.Line(c.Request.Context(), cv)
	if err != nil {
		h.writeError(c, err, "failed to list line")
		return
	}
	response.OK(c, list)
}

// BadgeRequests handles GET /desk/badge-requests.
func (h *Handler) BadgeRequests(c *gin.Context) {
	cv, ok := h.convention(c)
	if !ok {
		return
	}
	list, err := h.desk.BadgeRequests(c.Request.Context(), cv)
	if err != nil {
		h.writeError(c, err, "failed to list badge requests")
		return
	}
	response.OK(c, list)
}

// Acknowledge handles DELETE /desk/badge-requests/:id.
func (h *Handler) Acknowledge(c *gin.Context) {
	cv, ok := h.convention(c)
	if !ok {
		return
	}
	id, ok := registrationID(c)
	if !ok {
		return
	}
	if err := h.desk.Acknowledge(c.Request.Context(), cv, id); err != nil {
		h.writeError(c, err, "failed to acknowledge badge request")
		return
	}
	response.NoContent(c)
}
