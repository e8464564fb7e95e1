package registrations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/conreg/backend/internal/badges"
	"github.com/conreg/backend/internal/catalog"
	"github.com/conreg/backend/internal/coupons"
	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/internal/payments"
	"github.com/conreg/backend/pkg/database"
)

// Repository is the Postgres Store. It composes the catalog, coupon, payment
// and badge repositories over the same connection or transaction.
type Repository struct {
	pool     *pgxpool.Pool
	db       database.DBTX
	catalog  *catalog.Repository
	coupons  *coupons.Repository
	payments *payments.Repository
	badges   *badges.Repository
}

// NewRepository creates a registration repository on pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	r := bind(pool)
	r.pool = pool
	return r
}

func bind(db database.DBTX) *Repository {
	return &Repository{
		db:       db,
		catalog:  catalog.NewRepository(db),
		coupons:  coupons.NewRepository(db),
		payments: payments.NewRepository(db),
		badges:   badges.NewRepository(db),
	}
}

// WithTx runs fn against a Repository bound to one transaction. Nested calls
// reuse the outer transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(Store) error) error {
	if r.pool == nil {
		return fn(r)
	}
	return database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(bind(tx))
	})
}

const registrationColumns = `id, external_id, convention_id, user_id, first_name, last_name, badge_name, email, email_me,
	address, city, state, postal_code, country, birthday, registration_level_id, dealer_level_id,
	shirt_size, volunteer, volunteer_phone, emergency_contact, room_number, notes, private_notes,
	private_check_in, checked_in, checked_in_at, status, needs_print, ip, registered_at, updated_at`

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var reg models.Registration
	var externalID *string
	var status, needsPrint string
	err := row.Scan(&reg.ID, &externalID, &reg.ConventionID, &reg.UserID, &reg.FirstName, &reg.LastName, &reg.BadgeName,
		&reg.Email, &reg.EmailMe, &reg.Address, &reg.City, &reg.State, &reg.PostalCode, &reg.Country, &reg.Birthday,
		&reg.RegistrationLevelID, &reg.DealerLevelID, &reg.ShirtSize, &reg.Volunteer, &reg.VolunteerPhone,
		&reg.EmergencyContact, &reg.RoomNumber, &reg.Notes, &reg.PrivateNotes, &reg.PrivateCheckIn, &reg.CheckedIn,
		&reg.CheckedInAt, &status, &needsPrint, &reg.IP, &reg.RegisteredAt, &reg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if externalID != nil {
		reg.ExternalID = *externalID
	}
	reg.Status = models.RegistrationStatus(status)
	reg.NeedsPrint = models.NeedsPrint(needsPrint)
	return &reg, nil
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]models.Registration, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *reg)
	}
	return out, rows.Err()
}

// Create inserts a registration and fills its id and timestamps.
func (r *Repository) Create(ctx context.Context, reg *models.Registration) error {
	const q = `INSERT INTO registrations (convention_id, user_id, first_name, last_name, badge_name, email, email_me,
			address, city, state, postal_code, country, birthday, registration_level_id, dealer_level_id,
			shirt_size, volunteer, volunteer_phone, emergency_contact, room_number, notes, private_notes,
			private_check_in, status, needs_print, ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
		RETURNING id, registered_at, updated_at`
	err := r.db.QueryRow(ctx, q, reg.ConventionID, reg.UserID, reg.FirstName, reg.LastName, reg.BadgeName, reg.Email,
		reg.EmailMe, reg.Address, reg.City, reg.State, reg.PostalCode, reg.Country, reg.Birthday,
		reg.RegistrationLevelID, reg.DealerLevelID, reg.ShirtSize, reg.Volunteer, reg.VolunteerPhone,
		reg.EmergencyContact, reg.RoomNumber, reg.Notes, reg.PrivateNotes, reg.PrivateCheckIn,
		string(reg.Status), string(reg.NeedsPrint), reg.IP).
		Scan(&reg.ID, &reg.RegisteredAt, &reg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

// Get returns a registration by id, locking the row inside a transaction.
func (r *Repository) Get(ctx context.Context, id int64) (*models.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	if r.pool == nil {
		q += ` FOR UPDATE`
	}
	return scanRegistration(r.db.QueryRow(ctx, q, id))
}

// GetByExternalID returns a registration of a convention by its public id.
func (r *Repository) GetByExternalID(ctx context.Context, conventionID uuid.UUID, externalID string) (*models.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM registrations WHERE convention_id = $1 AND external_id = $2`
	return scanRegistration(r.db.QueryRow(ctx, q, conventionID, externalID))
}

// Update writes every mutable column of a registration.
func (r *Repository) Update(ctx context.Context, reg *models.Registration) error {
	const q = `UPDATE registrations SET external_id = NULLIF($2, ''), first_name = $3, last_name = $4, badge_name = $5,
			email = $6, email_me = $7, address = $8, city = $9, state = $10, postal_code = $11, country = $12,
			birthday = $13, registration_level_id = $14, dealer_level_id = $15, shirt_size = $16, volunteer = $17,
			volunteer_phone = $18, emergency_contact = $19, room_number = $20, notes = $21, private_notes = $22,
			private_check_in = $23, checked_in = $24, checked_in_at = $25, status = $26, needs_print = $27,
			updated_at = $28
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, q, reg.ID, reg.ExternalID, reg.FirstName, reg.LastName, reg.BadgeName, reg.Email,
		reg.EmailMe, reg.Address, reg.City, reg.State, reg.PostalCode, reg.Country, reg.Birthday,
		reg.RegistrationLevelID, reg.DealerLevelID, reg.ShirtSize, reg.Volunteer, reg.VolunteerPhone,
		reg.EmergencyContact, reg.RoomNumber, reg.Notes, reg.PrivateNotes, reg.PrivateCheckIn, reg.CheckedIn,
		reg.CheckedInAt, string(reg.Status), string(reg.NeedsPrint), reg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search narrows by every term and adds registrations whose id is listed.
func (r *Repository) Search(ctx context.Context, conventionID uuid.UUID, q SearchQuery) ([]models.Registration, error) {
	args := []any{conventionID}
	var conds []string
	for _, t := range q.Terms {
		args = append(args, likeEscaper.Replace(strings.ToLower(t)))
		n := len(args)
		conds = append(conds, fmt.Sprintf(`(lower(first_name) LIKE $%[1]d || '%%' OR lower(last_name) LIKE $%[1]d || '%%'
			OR lower(badge_name) LIKE $%[1]d || '%%' OR lower(email) LIKE '%%' || $%[1]d || '%%' OR lower(external_id) = $%[1]d)`, n))
	}
	where := "TRUE"
	if len(conds) > 0 {
		where = strings.Join(conds, " AND ")
	}
	if len(q.IDs) > 0 {
		args = append(args, q.IDs)
		where = fmt.Sprintf("(%s) OR id = ANY($%d)", where, len(args))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)
	sql := fmt.Sprintf(`SELECT %s FROM registrations WHERE convention_id = $1 AND (%s) ORDER BY id LIMIT $%d`,
		registrationColumns, where, len(args))
	out, err := r.list(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("search registrations: %w", err)
	}
	return out, nil
}

// Match returns registrations of a convention matching every set criterion.
func (r *Repository) Match(ctx context.Context, conventionID uuid.UUID, c MatchCriteria) ([]models.Registration, error) {
	args := []any{conventionID}
	conds := []string{"convention_id = $1"}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if c.LastName != "" {
		add("lower(last_name) = lower($%d)", c.LastName)
	}
	if c.FirstName != "" {
		add("lower(first_name) = lower($%d)", c.FirstName)
	}
	if c.FirstInitial != "" {
		add("lower(first_name) LIKE lower($%d) || '%%'", likeEscaper.Replace(c.FirstInitial))
	}
	if c.Birthday != nil {
		add("birthday = $%d::date", c.Birthday.Format("2006-01-02"))
	}
	if c.ExcludeID != 0 {
		add("id <> $%d", c.ExcludeID)
	}
	out, err := r.list(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE `+strings.Join(conds, " AND ")+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("match registrations: %w", err)
	}
	return out, nil
}

const holdColumns = `id, first_name, last_name, badge_name, email, address, city, state, postal_code, birthday, ip,
	notes_addition, private_notes_addition, private_check_in, notify_registration_group, notify_board_group`

// ListHolds returns the watch list.
func (r *Repository) ListHolds(ctx context.Context) ([]models.RegistrationHold, error) {
	rows, err := r.db.Query(ctx, `SELECT `+holdColumns+` FROM registration_holds ORDER BY last_name, first_name`)
	if err != nil {
		return nil, fmt.Errorf("list holds: %w", err)
	}
	defer rows.Close()
	out := []models.RegistrationHold{}
	for rows.Next() {
		var h models.RegistrationHold
		if err := rows.Scan(&h.ID, &h.FirstName, &h.LastName, &h.BadgeName, &h.Email, &h.Address, &h.City, &h.State,
			&h.PostalCode, &h.Birthday, &h.IP, &h.NotesAddition, &h.PrivateNotesAddition, &h.PrivateCheckIn,
			&h.NotifyRegistrationGroup, &h.NotifyBoardGroup); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// CreateHold adds a watch list entry.
func (r *Repository) CreateHold(ctx context.Context, h *models.RegistrationHold) error {
	const q = `INSERT INTO registration_holds (first_name, last_name, badge_name, email, address, city, state, postal_code,
			birthday, ip, notes_addition, private_notes_addition, private_check_in, notify_registration_group, notify_board_group)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15) RETURNING id`
	return r.db.QueryRow(ctx, q, h.FirstName, h.LastName, h.BadgeName, h.Email, h.Address, h.City, h.State, h.PostalCode,
		h.Birthday, h.IP, h.NotesAddition, h.PrivateNotesAddition, h.PrivateCheckIn, h.NotifyRegistrationGroup,
		h.NotifyBoardGroup).Scan(&h.ID)
}

// AppendAudit inserts an audit entry.
func (r *Repository) AppendAudit(ctx context.Context, e *models.AuditEntry) error {
	const q = `INSERT INTO registration_audit_log (registration_id, actor_id, action, message, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`
	return r.db.QueryRow(ctx, q, e.RegistrationID, e.ActorID, e.Action, e.Message, e.CreatedAt).Scan(&e.ID)
}

// ListAudit returns a registration's audit trail, newest first.
func (r *Repository) ListAudit(ctx context.Context, registrationID int64) ([]models.AuditEntry, error) {
	rows, err := r.db.Query(ctx, `SELECT id, registration_id, actor_id, action, message, created_at
		FROM registration_audit_log WHERE registration_id = $1 ORDER BY created_at DESC`, registrationID)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()
	out := []models.AuditEntry{}
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.RegistrationID, &e.ActorID, &e.Action, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) GetLevel(ctx context.Context, id uuid.UUID) (*models.RegistrationLevel, error) {
	return r.catalog.GetLevel(ctx, id)
}

func (r *Repository) ListUpgrades(ctx context.Context, conventionID uuid.UUID) ([]models.RegistrationUpgrade, error) {
	return r.catalog.ListUpgrades(ctx, conventionID)
}

func (r *Repository) GetDealerLevel(ctx context.Context, id uuid.UUID) (*models.DealerLevel, error) {
	return r.catalog.GetDealerLevel(ctx, id)
}

func (r *Repository) GetPaymentMethod(ctx context.Context, id uuid.UUID) (*models.PaymentMethod, error) {
	return r.catalog.GetPaymentMethod(ctx, id)
}

func (r *Repository) CountAtLevel(ctx context.Context, levelID uuid.UUID) (int, error) {
	return r.catalog.CountAtLevel(ctx, levelID)
}

func (r *Repository) DealerTablesTaken(ctx context.Context, conventionID uuid.UUID) (int, error) {
	return r.catalog.DealerTablesTaken(ctx, conventionID)
}

func (r *Repository) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return r.coupons.GetByCode(ctx, code)
}

func (r *Repository) UseCount(ctx context.Context, couponID uuid.UUID) (int, error) {
	return r.coupons.UseCount(ctx, couponID)
}

func (r *Repository) CouponsForRegistration(ctx context.Context, registrationID int64) ([]models.Coupon, error) {
	return r.coupons.ForRegistration(ctx, registrationID)
}

func (r *Repository) RecordCouponUse(ctx context.Context, c *models.Coupon, registrationID int64) (*models.CouponUse, error) {
	return r.coupons.RecordUse(ctx, c, registrationID)
}

func (r *Repository) CreatePayment(ctx context.Context, p *models.Payment) error {
	return r.payments.Create(ctx, p)
}

// ListPayments locks the rows inside a transaction, like Get.
func (r *Repository) ListPayments(ctx context.Context, registrationID int64) ([]models.Payment, error) {
	if r.pool == nil {
		return r.payments.LockForRegistration(ctx, registrationID)
	}
	return r.payments.ListForRegistration(ctx, registrationID)
}

func (r *Repository) UpdatePayment(ctx context.Context, p *models.Payment) error {
	return r.payments.UpdateState(ctx, p)
}

func (r *Repository) LatestBadge(ctx context.Context, registrationID int64) (*models.BadgeAssignment, error) {
	return r.badges.Latest(ctx, registrationID)
}

func (r *Repository) CreateBadge(ctx context.Context, a *models.BadgeAssignment) error {
	return r.badges.Create(ctx, a)
}
