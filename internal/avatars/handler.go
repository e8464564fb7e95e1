package avatars

import (
	"errors"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation"
	"go.uber.org/zap"

	"github.com/conreg/backend/pkg/response"
)

// Handler serves avatar uploads for the signup form.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an avatar handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// PresignRequest is the body for POST /avatars/presign.
type PresignRequest struct {
	ContentType string `json:"content_type"`
}

// Validate checks the request.
func (r PresignRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.ContentType, validation.Required))
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUnsupportedType), errors.Is(err, ErrTooLarge):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error("avatar upload", zap.Error(err))
		response.Internal(c, "failed to prepare avatar upload")
	}
}

// Presign handles POST /avatars/presign.
func (h *Handler) Presign(c *gin.Context) {
	var req PresignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	up, err := h.svc.Presign(c.Request.Context(), req.ContentType)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, up)
}

// Upload handles POST /avatars with a multipart "file" field.
func (h *Handler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "unreadable file")
		return
	}
	defer f.Close()
	a, err := h.svc.Put(c.Request.Context(), fh.Header.Get("Content-Type"), fh.Size, f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, a)
}
