package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/pkg/database"
)

// Repository reads and writes the price catalog. It runs on a pool or a tx.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a catalog repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

const levelSelect = `SELECT l.id, l.convention_id, l.title, l.description, l.limit_count, l.opens, l.deadline, l.active, l.seq,
		p.id, p.amount_cents, p.active_date
	FROM registration_levels l
	LEFT JOIN registration_level_prices p ON p.level_id = l.id`

// scanLevels folds level rows joined with their prices.
func scanLevels(rows pgx.Rows) ([]models.RegistrationLevel, error) {
	defer rows.Close()
	var list []models.RegistrationLevel
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var l models.RegistrationLevel
		var priceID *uuid.UUID
		var amount *int64
		var active *models.LevelPrice
		var activeDate *time.Time
		if err := rows.Scan(&l.ID, &l.ConventionID, &l.Title, &l.Description, &l.Limit, &l.Opens, &l.Deadline, &l.Active, &l.Seq,
			&priceID, &amount, &activeDate); err != nil {
			return nil, err
		}
		if priceID != nil && amount != nil && activeDate != nil {
			active = &models.LevelPrice{ID: *priceID, LevelID: l.ID, AmountCents: *amount, ActiveDate: *activeDate}
		}
		i, ok := index[l.ID]
		if !ok {
			i = len(list)
			index[l.ID] = i
			list = append(list, l)
		}
		if active != nil {
			list[i].Prices = append(list[i].Prices, *active)
		}
	}
	return list, rows.Err()
}

// ListLevels returns a convention's levels with price history, ordered by seq.
func (r *Repository) ListLevels(ctx context.Context, conventionID uuid.UUID) ([]models.RegistrationLevel, error) {
	rows, err := r.db.Query(ctx, levelSelect+` WHERE l.convention_id = $1 ORDER BY l.seq, l.id, p.active_date`, conventionID)
	if err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}
	return scanLevels(rows)
}

// GetLevel returns one level with its price history.
func (r *Repository) GetLevel(ctx context.Context, id uuid.UUID) (*models.RegistrationLevel, error) {
	rows, err := r.db.Query(ctx, levelSelect+` WHERE l.id = $1 ORDER BY p.active_date`, id)
	if err != nil {
		return nil, fmt.Errorf("get level: %w", err)
	}
	list, err := scanLevels(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return &list[0], nil
}

// ListUpgrades returns every upgrade path of a convention with prices and target level.
func (r *Repository) ListUpgrades(ctx context.Context, conventionID uuid.UUID) ([]models.RegistrationUpgrade, error) {
	levels, err := r.ListLevels(ctx, conventionID)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.RegistrationLevel, len(levels))
	for _, l := range levels {
		byID[l.ID] = l
	}

	const q = `SELECT u.id, u.from_level_id, u.to_level_id, u.description, u.active,
			p.id, p.amount_cents, p.active_date
		FROM registration_upgrades u
		JOIN registration_levels l ON l.id = u.to_level_id
		LEFT JOIN registration_upgrade_prices p ON p.upgrade_id = u.id
		WHERE l.convention_id = $1
		ORDER BY l.seq, u.id, p.active_date`
	rows, err := r.db.Query(ctx, q, conventionID)
	if err != nil {
		return nil, fmt.Errorf("list upgrades: %w", err)
	}
	defer rows.Close()

	var list []models.RegistrationUpgrade
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var u models.RegistrationUpgrade
		var toID uuid.UUID
		var priceID *uuid.UUID
		var amount *int64
		var activeDate *time.Time
		if err := rows.Scan(&u.ID, &u.FromLevelID, &toID, &u.Description, &u.Active, &priceID, &amount, &activeDate); err != nil {
			return nil, err
		}
		i, ok := index[u.ID]
		if !ok {
			u.ToLevel = byID[toID]
			i = len(list)
			index[u.ID] = i
			list = append(list, u)
		}
		if priceID != nil && amount != nil && activeDate != nil {
			list[i].Prices = append(list[i].Prices, models.LevelPrice{ID: *priceID, LevelID: toID, AmountCents: *amount, ActiveDate: *activeDate})
		}
	}
	return list, rows.Err()
}

const dealerColumns = `id, convention_id, title, number_of_tables, price_cents, active, seq`

func scanDealerLevel(row pgx.Row) (*models.DealerLevel, error) {
	var d models.DealerLevel
	err := row.Scan(&d.ID, &d.ConventionID, &d.Title, &d.NumberOfTables, &d.PriceCents, &d.Active, &d.Seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDealerLevels returns a convention's dealer table options.
func (r *Repository) ListDealerLevels(ctx context.Context, conventionID uuid.UUID) ([]models.DealerLevel, error) {
	rows, err := r.db.Query(ctx, `SELECT `+dealerColumns+` FROM dealer_levels WHERE convention_id = $1 ORDER BY seq, id`, conventionID)
	if err != nil {
		return nil, fmt.Errorf("list dealer levels: %w", err)
	}
	defer rows.Close()
	var list []models.DealerLevel
	for rows.Next() {
		d, err := scanDealerLevel(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *d)
	}
	return list, rows.Err()
}

// GetDealerLevel returns one dealer level.
func (r *Repository) GetDealerLevel(ctx context.Context, id uuid.UUID) (*models.DealerLevel, error) {
	return scanDealerLevel(r.db.QueryRow(ctx, `SELECT `+dealerColumns+` FROM dealer_levels WHERE id = $1`, id))
}

// ListPaymentMethods returns active payment methods ordered by seq.
func (r *Repository) ListPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, credit, active, seq FROM payment_methods WHERE active ORDER BY seq, name`)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	defer rows.Close()
	var list []models.PaymentMethod
	for rows.Next() {
		var m models.PaymentMethod
		if err := rows.Scan(&m.ID, &m.Name, &m.Credit, &m.Active, &m.Seq); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// GetPaymentMethod returns a payment method by ID.
func (r *Repository) GetPaymentMethod(ctx context.Context, id uuid.UUID) (*models.PaymentMethod, error) {
	var m models.PaymentMethod
	err := r.db.QueryRow(ctx, `SELECT id, name, credit, active, seq FROM payment_methods WHERE id = $1`, id).
		Scan(&m.ID, &m.Name, &m.Credit, &m.Active, &m.Seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CountAtLevel counts live registrations at a level. Rejected and refunded
// registrations do not hold a place.
func (r *Repository) CountAtLevel(ctx context.Context, levelID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM registrations
		WHERE registration_level_id = $1 AND status NOT IN ('rejected', 'refunded')`
	var n int
	err := r.db.QueryRow(ctx, q, levelID).Scan(&n)
	return n, err
}

// DealerTablesTaken sums the tables held by live registrations of a convention.
func (r *Repository) DealerTablesTaken(ctx context.Context, conventionID uuid.UUID) (int, error) {
	const q = `SELECT COALESCE(SUM(d.number_of_tables), 0) FROM registrations r
		JOIN dealer_levels d ON d.id = r.dealer_level_id
		WHERE r.convention_id = $1 AND r.status NOT IN ('rejected', 'refunded')`
	var n int
	err := r.db.QueryRow(ctx, q, conventionID).Scan(&n)
	return n, err
}

// CreateLevel inserts a level and its initial price history.
func (r *Repository) CreateLevel(ctx context.Context, l *models.RegistrationLevel) error {
	const q = `INSERT INTO registration_levels (convention_id, title, description, limit_count, opens, deadline, active, seq)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	if err := r.db.QueryRow(ctx, q, l.ConventionID, l.Title, l.Description, l.Limit, l.Opens, l.Deadline, l.Active, l.Seq).Scan(&l.ID); err != nil {
		return fmt.Errorf("insert level: %w", err)
	}
	for i := range l.Prices {
		l.Prices[i].LevelID = l.ID
		if err := r.AddLevelPrice(ctx, &l.Prices[i]); err != nil {
			return err
		}
	}
	return nil
}

// AddLevelPrice appends a dated price to a level.
func (r *Repository) AddLevelPrice(ctx context.Context, p *models.LevelPrice) error {
	const q = `INSERT INTO registration_level_prices (level_id, amount_cents, active_date) VALUES ($1, $2, $3) RETURNING id`
	if err := r.db.QueryRow(ctx, q, p.LevelID, p.AmountCents, p.ActiveDate).Scan(&p.ID); err != nil {
		return fmt.Errorf("insert level price: %w", err)
	}
	return nil
}

// CreateUpgrade inserts an upgrade path and its price history.
func (r *Repository) CreateUpgrade(ctx context.Context, u *models.RegistrationUpgrade) error {
	const q = `INSERT INTO registration_upgrades (from_level_id, to_level_id, description, active)
		VALUES ($1, $2, $3, $4) RETURNING id`
	if err := r.db.QueryRow(ctx, q, u.FromLevelID, u.ToLevel.ID, u.Description, u.Active).Scan(&u.ID); err != nil {
		return fmt.Errorf("insert upgrade: %w", err)
	}
	const pq = `INSERT INTO registration_upgrade_prices (upgrade_id, amount_cents, active_date) VALUES ($1, $2, $3) RETURNING id`
	for i := range u.Prices {
		p := &u.Prices[i]
		p.LevelID = u.ToLevel.ID
		if err := r.db.QueryRow(ctx, pq, u.ID, p.AmountCents, p.ActiveDate).Scan(&p.ID); err != nil {
			return fmt.Errorf("insert upgrade price: %w", err)
		}
	}
	return nil
}

// CreateDealerLevel inserts a dealer table option.
func (r *Repository) CreateDealerLevel(ctx context.Context, d *models.DealerLevel) error {
	const q = `INSERT INTO dealer_levels (convention_id, title, number_of_tables, price_cents, active, seq)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	return r.db.QueryRow(ctx, q, d.ConventionID, d.Title, d.NumberOfTables, d.PriceCents, d.Active, d.Seq).Scan(&d.ID)
}

// CreatePaymentMethod inserts a payment method.
func (r *Repository) CreatePaymentMethod(ctx context.Context, m *models.PaymentMethod) error {
	const q = `INSERT INTO payment_methods (name, credit, active, seq) VALUES ($1, $2, $3, $4) RETURNING id`
	return r.db.QueryRow(ctx, q, m.Name, m.Credit, m.Active, m.Seq).Scan(&m.ID)
}
