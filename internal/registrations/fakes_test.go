package registrations

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conreg/backend/internal/catalog"
	"github.com/conreg/backend/internal/coupons"
	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/internal/payments"
)

var errInjected = errors.New("injected failure")

// memStore is an in-memory Store. WithTx snapshots state and restores it when fn fails.
type memStore struct {
	regs     map[int64]models.Registration
	nextID   int64
	levels   map[uuid.UUID]models.RegistrationLevel
	upgrades []models.RegistrationUpgrade
	dealers  map[uuid.UUID]models.DealerLevel
	methods  map[uuid.UUID]models.PaymentMethod
	coupons  map[string]models.Coupon
	uses     []models.CouponUse
	payments []models.Payment
	badges   []models.BadgeAssignment
	holds    []models.RegistrationHold
	audit    []models.AuditEntry
	failOn   string
}

func newMemStore() *memStore {
	return &memStore{
		regs:    map[int64]models.Registration{},
		levels:  map[uuid.UUID]models.RegistrationLevel{},
		dealers: map[uuid.UUID]models.DealerLevel{},
		methods: map[uuid.UUID]models.PaymentMethod{},
		coupons: map[string]models.Coupon{},
	}
}

type memSnapshot struct {
	regs     map[int64]models.Registration
	nextID   int64
	uses     []models.CouponUse
	payments []models.Payment
	badges   []models.BadgeAssignment
	audit    []models.AuditEntry
}

func (m *memStore) snapshot() memSnapshot {
	regs := make(map[int64]models.Registration, len(m.regs))
	for k, v := range m.regs {
		regs[k] = v
	}
	return memSnapshot{
		regs:     regs,
		nextID:   m.nextID,
		uses:     append([]models.CouponUse(nil), m.uses...),
		payments: append([]models.Payment(nil), m.payments...),
		badges:   append([]models.BadgeAssignment(nil), m.badges...),
		audit:    append([]models.AuditEntry(nil), m.audit...),
	}
}

func (m *memStore) restore(s memSnapshot) {
	m.regs, m.nextID, m.uses, m.payments, m.badges, m.audit = s.regs, s.nextID, s.uses, s.payments, s.badges, s.audit
}

func (m *memStore) WithTx(_ context.Context, fn func(Store) error) error {
	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) fail(op string) error {
	if m.failOn == op {
		return errInjected
	}
	return nil
}

func (m *memStore) Create(_ context.Context, reg *models.Registration) error {
	if err := m.fail("Create"); err != nil {
		return err
	}
	m.nextID++
	reg.ID = m.nextID
	reg.RegisteredAt = time.Now()
	m.regs[reg.ID] = *reg
	return nil
}

func (m *memStore) Get(_ context.Context, id int64) (*models.Registration, error) {
	reg, ok := m.regs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &reg, nil
}

func (m *memStore) GetByExternalID(_ context.Context, conventionID uuid.UUID, externalID string) (*models.Registration, error) {
	for _, reg := range m.regs {
		if reg.ConventionID == conventionID && reg.ExternalID == externalID {
			r := reg
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) Update(_ context.Context, reg *models.Registration) error {
	if err := m.fail("Update"); err != nil {
		return err
	}
	if _, ok := m.regs[reg.ID]; !ok {
		return ErrNotFound
	}
	m.regs[reg.ID] = *reg
	return nil
}

func (m *memStore) sorted(conventionID uuid.UUID) []models.Registration {
	var out []models.Registration
	for _, reg := range m.regs {
		if reg.ConventionID == conventionID {
			out = append(out, reg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) Search(_ context.Context, conventionID uuid.UUID, q SearchQuery) ([]models.Registration, error) {
	out := []models.Registration{}
	for _, reg := range m.sorted(conventionID) {
		hit := true
		for _, t := range q.Terms {
			t = strings.ToLower(t)
			if !strings.HasPrefix(strings.ToLower(reg.FirstName), t) && !strings.HasPrefix(strings.ToLower(reg.LastName), t) &&
				!strings.HasPrefix(strings.ToLower(reg.BadgeName), t) && !strings.Contains(strings.ToLower(reg.Email), t) &&
				strings.ToLower(reg.ExternalID) != t {
				hit = false
				break
			}
		}
		for _, id := range q.IDs {
			if reg.ID == id {
				hit = true
			}
		}
		if hit && len(out) < q.Limit {
			out = append(out, reg)
		}
	}
	return out, nil
}

func (m *memStore) Match(_ context.Context, conventionID uuid.UUID, c MatchCriteria) ([]models.Registration, error) {
	out := []models.Registration{}
	for _, reg := range m.sorted(conventionID) {
		switch {
		case c.ExcludeID != 0 && reg.ID == c.ExcludeID:
		case c.LastName != "" && !strings.EqualFold(reg.LastName, c.LastName):
		case c.FirstName != "" && !strings.EqualFold(reg.FirstName, c.FirstName):
		case c.FirstInitial != "" && !strings.HasPrefix(strings.ToLower(reg.FirstName), strings.ToLower(c.FirstInitial)):
		case c.Birthday != nil && !sameDay(*c.Birthday, reg.Birthday):
		default:
			out = append(out, reg)
		}
	}
	return out, nil
}

func (m *memStore) ListHolds(context.Context) ([]models.RegistrationHold, error) {
	return append([]models.RegistrationHold(nil), m.holds...), nil
}

func (m *memStore) CreateHold(_ context.Context, h *models.RegistrationHold) error {
	h.ID = uuid.New()
	m.holds = append(m.holds, *h)
	return nil
}

func (m *memStore) AppendAudit(_ context.Context, e *models.AuditEntry) error {
	e.ID = uuid.New()
	m.audit = append(m.audit, *e)
	return nil
}

func (m *memStore) ListAudit(_ context.Context, registrationID int64) ([]models.AuditEntry, error) {
	var out []models.AuditEntry
	for _, e := range m.audit {
		if e.RegistrationID == registrationID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) GetLevel(_ context.Context, id uuid.UUID) (*models.RegistrationLevel, error) {
	l, ok := m.levels[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &l, nil
}

func (m *memStore) ListUpgrades(_ context.Context, conventionID uuid.UUID) ([]models.RegistrationUpgrade, error) {
	var out []models.RegistrationUpgrade
	for _, u := range m.upgrades {
		if u.ToLevel.ConventionID == conventionID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) GetDealerLevel(_ context.Context, id uuid.UUID) (*models.DealerLevel, error) {
	d, ok := m.dealers[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &d, nil
}

func (m *memStore) GetPaymentMethod(_ context.Context, id uuid.UUID) (*models.PaymentMethod, error) {
	pm, ok := m.methods[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &pm, nil
}

func live(reg models.Registration) bool {
	return reg.Status != models.StatusRejected && reg.Status != models.StatusRefunded
}

func (m *memStore) CountAtLevel(_ context.Context, levelID uuid.UUID) (int, error) {
	n := 0
	for _, reg := range m.regs {
		if reg.RegistrationLevelID == levelID && live(reg) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) DealerTablesTaken(_ context.Context, conventionID uuid.UUID) (int, error) {
	n := 0
	for _, reg := range m.regs {
		if reg.ConventionID == conventionID && reg.DealerLevelID != nil && live(reg) {
			n += m.dealers[*reg.DealerLevelID].NumberOfTables
		}
	}
	return n, nil
}

func (m *memStore) GetByCode(_ context.Context, code string) (*models.Coupon, error) {
	c, ok := m.coupons[code]
	if !ok {
		return nil, coupons.ErrInvalidCoupon
	}
	return &c, nil
}

func (m *memStore) UseCount(_ context.Context, couponID uuid.UUID) (int, error) {
	n := 0
	for _, u := range m.uses {
		if u.CouponID == couponID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CouponsForRegistration(_ context.Context, registrationID int64) ([]models.Coupon, error) {
	var out []models.Coupon
	for _, u := range m.uses {
		if u.RegistrationID != registrationID {
			continue
		}
		for _, c := range m.coupons {
			if c.ID == u.CouponID {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (m *memStore) RecordCouponUse(_ context.Context, c *models.Coupon, registrationID int64) (*models.CouponUse, error) {
	if c.SingleUse {
		for _, u := range m.uses {
			if u.CouponID == c.ID && u.SingleUse {
				return nil, coupons.ErrInvalidCoupon
			}
		}
	}
	use := models.CouponUse{ID: uuid.New(), CouponID: c.ID, RegistrationID: registrationID, SingleUse: c.SingleUse}
	m.uses = append(m.uses, use)
	return &use, nil
}

func (m *memStore) CreatePayment(_ context.Context, p *models.Payment) error {
	if err := m.fail("CreatePayment"); err != nil {
		return err
	}
	p.ID = uuid.New()
	m.payments = append(m.payments, *p)
	return nil
}

func (m *memStore) ListPayments(_ context.Context, registrationID int64) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range m.payments {
		if p.RegistrationID == registrationID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) UpdatePayment(_ context.Context, p *models.Payment) error {
	for i := range m.payments {
		if m.payments[i].ID == p.ID {
			m.payments[i] = *p
			return nil
		}
	}
	return payments.ErrNotFound
}

func (m *memStore) LatestBadge(_ context.Context, registrationID int64) (*models.BadgeAssignment, error) {
	for i := len(m.badges) - 1; i >= 0; i-- {
		if m.badges[i].RegistrationID == registrationID {
			a := m.badges[i]
			return &a, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateBadge(_ context.Context, a *models.BadgeAssignment) error {
	a.ID = int64(len(m.badges) + 1)
	m.badges = append(m.badges, *a)
	return nil
}

func (m *memStore) paymentsOf(id int64) []models.Payment {
	out, _ := m.ListPayments(context.Background(), id)
	return out
}

type fakeGateway struct {
	decline bool
	charges []payments.ChargeRequest
	refunds []string
}

func (g *fakeGateway) Charge(_ context.Context, req payments.ChargeRequest) (string, error) {
	if g.decline {
		return "", payments.ErrPaymentDeclined
	}
	g.charges = append(g.charges, req)
	return "ch_" + strings.Repeat("x", len(g.charges)), nil
}

func (g *fakeGateway) Refund(_ context.Context, ref string) error {
	g.refunds = append(g.refunds, ref)
	return nil
}

type dequeued struct {
	registrationID int64
	queue          string
}

type fakeLine struct {
	calls []dequeued
}

func (f *fakeLine) Dequeue(_ context.Context, _ uuid.UUID, registrationID int64, queueName string) error {
	f.calls = append(f.calls, dequeued{registrationID, queueName})
	return nil
}

type fakeNotifier struct {
	confirmed []int64
	upgraded  []string
	flagged   []*PostCreateResult
}

func (n *fakeNotifier) RegistrationConfirmed(_ context.Context, _ *models.Convention, reg *models.Registration, _ int64) {
	n.confirmed = append(n.confirmed, reg.ID)
}

func (n *fakeNotifier) UpgradeConfirmed(_ context.Context, _ *models.Convention, _ *models.Registration, title string, _ int64) {
	n.upgraded = append(n.upgraded, title)
}

func (n *fakeNotifier) RegistrationFlagged(_ context.Context, _ *models.Convention, _ *models.Registration, res *PostCreateResult) {
	n.flagged = append(n.flagged, res)
}

type fakeThrottle struct {
	counts map[string]int64
}

func (f *fakeThrottle) Hit(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeThrottle) Count(_ context.Context, key string) (int64, error) {
	return f.counts[key], nil
}
