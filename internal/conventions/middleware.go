package conventions

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/pkg/response"
)

// ContextConvention is the gin key holding the resolved *models.Convention.
const ContextConvention = "convention"

// CurrentFinder resolves the convention requests operate on.
type CurrentFinder interface {
	GetCurrent(ctx context.Context) (*models.Convention, error)
}

// RequireCurrent loads the current convention into the request context.
func RequireCurrent(finder CurrentFinder, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		cv, err := finder.GetCurrent(c.Request.Context())
		if errors.Is(err, ErrNotFound) {
			response.ServiceUnavailable(c, "no convention is currently active")
			c.Abort()
			return
		}
		if err != nil {
			logger.Error("load current convention failed", zap.Error(err))
			response.Internal(c, "failed to load convention")
			c.Abort()
			return
		}
		c.Set(ContextConvention, cv)
		c.Next()
	}
}

// FromContext returns the convention set by RequireCurrent.
func FromContext(c *gin.Context) (*models.Convention, bool) {
	v, ok := c.Get(ContextConvention)
	if !ok {
		return nil, false
	}
	cv, ok := v.(*models.Convention)
	return cv, ok && cv != nil
}
