package audit

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conreg/backend/internal/conventions"
	"github.com/conreg/backend/pkg/response"
)

// Handler handles GET /admin/audit.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an audit handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// ParseFilter reads ?actor_id=&action=&since=&limit= from the query string.
func ParseFilter(c *gin.Context) (Filter, error) {
	var f Filter
	if v := c.Query("actor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, err
		}
		f.ActorID = &id
	}
	f.Action = c.Query("action")
	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, err
		}
		f.Since = &t
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, err
		}
		f.Limit = n
	}
	return f, nil
}

// List handles GET /admin/audit: staff actions on the current convention's registrations.
func (h *Handler) List(c *gin.Context) {
	cv, ok := conventions.FromContext(c)
	if !ok {
		response.ServiceUnavailable(c, "no convention is currently active")
		return
	}
	f, err := ParseFilter(c)
	if err != nil {
		response.BadRequest(c, "invalid filter: "+err.Error())
		return
	}
	list, err := h.repo.ListByConvention(c.Request.Context(), cv.ID, f)
	if err != nil {
		h.logger.Error("list audit log", zap.Error(err))
		response.Internal(c, "failed to list audit log")
		return
	}
	response.OK(c, gin.H{"entries": list})
}
