package registrations

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/conreg/backend/internal/models"
)

// MatchCriteria selects registrations of one convention. Empty fields are
// ignored; every set field must match. Names compare case-insensitively.
type MatchCriteria struct {
	LastName     string
	FirstName    string
	FirstInitial string
	Birthday     *time.Time
	ExcludeID    int64
}

// SearchQuery is a parsed desk search.
type SearchQuery struct {
	Terms []string
	IDs   []int64
	Limit int
}

// Store is the persistence the registration service needs. WithTx runs fn
// against a Store bound to one transaction; fn's error rolls it back.
type Store interface {
	WithTx(ctx context.Context, fn func(Store) error) error

	Create(ctx context.Context, reg *models.Registration) error
	Get(ctx context.Context, id int64) (*models.Registration, error)
	GetByExternalID(ctx context.Context, conventionID uuid.UUID, externalID string) (*models.Registration, error)
	Update(ctx context.Context, reg *models.Registration) error
	Search(ctx context.Context, conventionID uuid.UUID, q SearchQuery) ([]models.Registration, error)
	Match(ctx context.Context, conventionID uuid.UUID, c MatchCriteria) ([]models.Registration, error)
	ListHolds(ctx context.Context) ([]models.RegistrationHold, error)
	CreateHold(ctx context.Context, h *models.RegistrationHold) error
	AppendAudit(ctx context.Context, e *models.AuditEntry) error
	ListAudit(ctx context.Context, registrationID int64) ([]models.AuditEntry, error)

	GetLevel(ctx context.Context, id uuid.UUID) (*models.RegistrationLevel, error)
	ListUpgrades(ctx context.Context, conventionID uuid.UUID) ([]models.RegistrationUpgrade, error)
	GetDealerLevel(ctx context.Context, id uuid.UUID) (*models.DealerLevel, error)
	GetPaymentMethod(ctx context.Context, id uuid.UUID) (*models.PaymentMethod, error)
	CountAtLevel(ctx context.Context, levelID uuid.UUID) (int, error)
	DealerTablesTaken(ctx context.Context, conventionID uuid.UUID) (int, error)

	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	UseCount(ctx context.Context, couponID uuid.UUID) (int, error)
	CouponsForRegistration(ctx context.Context, registrationID int64) ([]models.Coupon, error)
	RecordCouponUse(ctx context.Context, c *models.Coupon, registrationID int64) (*models.CouponUse, error)

	CreatePayment(ctx context.Context, p *models.Payment) error
	ListPayments(ctx context.Context, registrationID int64) ([]models.Payment, error)
	UpdatePayment(ctx context.Context, p *models.Payment) error

	LatestBadge(ctx context.Context, registrationID int64) (*models.BadgeAssignment, error)
	CreateBadge(ctx context.Context, a *models.BadgeAssignment) error
}
