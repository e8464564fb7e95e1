package catalog

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conreg/backend/internal/conventions"
	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/pkg/response"
)

// LevelView is what the registration form shows for a level.
type LevelView struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	PriceCents  int64      `json:"price_cents"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	SoldOut     bool       `json:"sold_out"`
}

// PriceRequest is one dated price in a create request.
type PriceRequest struct {
	AmountCents int64     `json:"amount_cents"`
	ActiveDate  time.Time `json:"active_date"`
}

// Validate checks the price fields.
func (r PriceRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.AmountCents, validation.Min(0)),
		validation.Field(&r.ActiveDate, validation.Required),
	)
}

// CreateLevelRequest is the body for POST /catalog/levels.
type CreateLevelRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Limit       int            `json:"limit"`
	Opens       *time.Time     `json:"opens"`
	Deadline    *time.Time     `json:"deadline"`
	Seq         int            `json:"seq"`
	Prices      []PriceRequest `json:"prices"`
}

// Validate checks the request fields.
func (r CreateLevelRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Limit, validation.Min(0)),
		validation.Field(&r.Prices, validation.Required),
	)
}

// CreateUpgradeRequest is the body for POST /catalog/upgrades.
type CreateUpgradeRequest struct {
	FromLevelID uuid.UUID      `json:"from_level_id"`
	ToLevelID   uuid.UUID      `json:"to_level_id"`
	Description string         `json:"description"`
	Prices      []PriceRequest `json:"prices"`
}

// Validate checks the request fields.
func (r CreateUpgradeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FromLevelID, validation.NotIn(uuid.Nil).Error("is required")),
		validation.Field(&r.ToLevelID, validation.NotIn(uuid.Nil).Error("is required")),
		validation.Field(&r.Prices, validation.Required),
	)
}

// CreateDealerLevelRequest is the body for POST /catalog/dealer-levels.
type CreateDealerLevelRequest struct {
	Title          string `json:"title"`
	NumberOfTables int    `json:"number_of_tables"`
	PriceCents     int64  `json:"price_cents"`
	Seq            int    `json:"seq"`
}

// Validate checks the request fields.
func (r CreateDealerLevelRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required),
		validation.Field(&r.NumberOfTables, validation.Required, validation.Min(1)),
		validation.Field(&r.PriceCents, validation.Min(0)),
	)
}

// CreatePaymentMethodRequest is the body for POST /catalog/payment-methods.
type CreatePaymentMethodRequest struct {
	Name   string `json:"name"`
	Credit bool   `json:"credit"`
	Seq    int    `json:"seq"`
}

// Validate checks the request fields.
func (r CreatePaymentMethodRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.Name, validation.Required))
}

// Handler handles catalog HTTP endpoints.
type Handler struct {
	repo   *Repository
	now    func() time.Time
	logger *zap.Logger
}

// NewHandler creates a catalog handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, now: time.Now, logger: logger}
}

// AvailableLevels handles GET /conventions/current/levels.
func (h *Handler) AvailableLevels(c *gin.Context) {
	cv, ok := conventions.FromContext(c)
	if !ok {
		response.ServiceUnavailable(c, "no convention is currently active")
		return
	}
	ctx := c.Request.Context()
	levels, err := h.repo.ListLevels(ctx, cv.ID)
	if err != nil {
		h.logger.Error("list levels failed", zap.Error(err))
		response.Internal(c, "failed to list levels")
		return
	}
	now := h.now()
	views := make([]LevelView, 0, len(levels))
	for i := range levels {
		l := &levels[i]
		price, ok := CurrentPrice(l.Prices, now)
		if !ok || CheckLevel(l, now, 0) != nil {
			continue
		}
		v := LevelView{ID: l.ID, Title: l.Title, Description: l.Description, PriceCents: price, Deadline: l.Deadline}
		if l.Limit > 0 {
			taken, err := h.repo.CountAtLevel(ctx, l.ID)
			if err != nil {
				response.Internal(c, "failed to count registrations")
				return
			}
			v.SoldOut = CheckCapacity(l, taken) != nil
		}
		views = append(views, v)
	}
	response.OK(c, views)
}

// Levels handles GET /catalog/levels (admin view with full price history).
func (h *Handler) Levels(c *gin.Context) {
	cv, ok := conventions.FromContext(c)
	if !ok {
		response.ServiceUnavailable(c, "no convention is currently active")
		return
	}
	levels, err := h.repo.ListLevels(c.Request.Context(), cv.ID)
	if err != nil {
		response.Internal(c, "failed to list levels")
		return
	}
	response.OK(c, levels)
}

// DealerLevels handles GET /conventions/current/dealer-levels.
func (h *Handler) DealerLevels(c *gin.Context) {
	cv, ok := conventions.FromContext(c)
	if !ok {
		response.ServiceUnavailable(c, "no convention is currently active")
		return
	}
	list, err := h.repo.ListDealerLevels(c.Request.Context(), cv.ID)
	if err != nil {
		response.Internal(c, "failed to list dealer levels")
		return
	}
	response.OK(c, list)
}

// PaymentMethods handles GET /payment-methods.
func (h *Handler) PaymentMethods(c *gin.Context) {
	list, err := h.repo.ListPaymentMethods(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list payment methods")
		return
	}
	response.OK(c, list)
}

func toPrices(in []PriceRequest) []models.LevelPrice {
	out := make([]models.LevelPrice, 0, len(in))
	for _, p := range in {
		out = append(out, models.LevelPrice{AmountCents: p.AmountCents, ActiveDate: p.ActiveDate})
	}
	return out
}

// CreateLevel handles POST /catalog/levels.
func (h *Handler) CreateLevel(c *gin.Context) {
	cv, ok := conventions.FromContext(c)
	if !ok {
		response.ServiceUnavailable(c, "no convention is currently active")
		return
	}
	var req CreateLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	l := &models.RegistrationLevel{
		ConventionID: cv.ID,
		Title:        req.Title,
		Description:  req.Description,
		Limit:        req.Limit,
		Opens:        req.Opens,
		Deadline:     req.Deadline,
		Active:       true,
		Seq:          req.Seq,
		Prices:       toPrices(req.Prices),
	}
	if err := h.repo.CreateLevel(c.Request.Context(), l); err != nil {
		h.logger.Error("create level failed", zap.Error(err))
		response.Internal(c, "failed to create level")
		return
	}
	response.Created(c, l)
}

// CreateUpgrade handles POST /catalog/upgrades.
func (h *Handler) CreateUpgrade(c *gin.Context) {
	cv, ok := conventions.FromContext(c)
	if !ok {
		response.ServiceUnavailable(c, "no convention is currently active")
		return
	}
	var req CreateUpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	from, err := h.repo.GetLevel(ctx, req.FromLevelID)
	if err != nil || from.ConventionID != cv.ID {
		response.BadRequest(c, "unknown from_level_id")
		return
	}
	to, err := h.repo.GetLevel(ctx, req.ToLevelID)
	if err != nil || to.ConventionID != cv.ID || to.ID == from.ID {
		response.BadRequest(c, "unknown to_level_id")
		return
	}
	u := &models.RegistrationUpgrade{
		FromLevelID: from.ID,
		ToLevel:     *to,
		Description: req.Description,
		Active:      true,
		Prices:      toPrices(req.Prices),
	}
	if err := h.repo.CreateUpgrade(ctx, u); err != nil {
		h.logger.Error("create upgrade failed", zap.Error(err))
		response.Internal(c, "failed to create upgrade")
		return
	}
	response.Created(c, u)
}

// CreateDealerLevel handles POST /catalog/dealer-levels.
func (h *Handler) CreateDealerLevel(c *gin.Context) {
	cv, ok := conventions.FromContext(c)
	if !ok {
		response.ServiceUnavailable(c, "no convention is currently active")
		return
	}
	var req CreateDealerLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	d := &models.DealerLevel{
		ConventionID:   cv.ID,
		Title:          req.Title,
		NumberOfTables: req.NumberOfTables,
		PriceCents:     req.PriceCents,
		Active:         true,
		Seq:            req.Seq,
	}
	if err := h.repo.CreateDealerLevel(c.Request.Context(), d); err != nil {
		response.Internal(c, "failed to create dealer level")
		return
	}
	response.Created(c, d)
}

// CreatePaymentMethod handles POST /catalog/payment-methods.
func (h *Handler) CreatePaymentMethod(c *gin.Context) {
	var req CreatePaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	m := &models.PaymentMethod{Name: req.Name, Credit: req.Credit, Active: true, Seq: req.Seq}
	if err := h.repo.CreatePaymentMethod(c.Request.Context(), m); err != nil {
		response.Internal(c, "failed to create payment method")
		return
	}
	response.Created(c, m)
}
