// Package catalog holds registration levels, upgrades, dealer tables and
// payment methods, and answers price and availability questions about them.
package catalog

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/conreg/backend/internal/models"
)

// OfferingKind tags what an Offering sells.
type OfferingKind string

const (
	KindLevel   OfferingKind = "level"
	KindUpgrade OfferingKind = "upgrade"
)

// Offering is anything with a dated price history and an optional deadline.
type Offering interface {
	Kind() OfferingKind
	OfferingTitle() string
	PriceHistory() []models.LevelPrice
	OfferingDeadline() *time.Time
}

// LevelOffering adapts a registration level.
type LevelOffering struct{ Level *models.RegistrationLevel }

func (o LevelOffering) Kind() OfferingKind                { return KindLevel }
func (o LevelOffering) OfferingTitle() string             { return o.Level.Title }
func (o LevelOffering) PriceHistory() []models.LevelPrice { return o.Level.Prices }
func (o LevelOffering) OfferingDeadline() *time.Time      { return o.Level.Deadline }

// UpgradeOffering adapts an upgrade path; its deadline is the target level's.
type UpgradeOffering struct{ Upgrade *models.RegistrationUpgrade }

func (o UpgradeOffering) Kind() OfferingKind                { return KindUpgrade }
func (o UpgradeOffering) OfferingTitle() string             { return o.Upgrade.ToLevel.Title }
func (o UpgradeOffering) PriceHistory() []models.LevelPrice { return o.Upgrade.Prices }
func (o UpgradeOffering) OfferingDeadline() *time.Time      { return o.Upgrade.ToLevel.Deadline }

// CurrentPrice returns the latest price whose active date is strictly before now.
func CurrentPrice(prices []models.LevelPrice, now time.Time) (int64, bool) {
	var best *models.LevelPrice
	for i := range prices {
		p := &prices[i]
		if !p.ActiveDate.Before(now) {
			continue
		}
		if best == nil || p.ActiveDate.After(best.ActiveDate) {
			best = p
		}
	}
	if best == nil {
		return 0, false
	}
	return best.AmountCents, true
}

// PriceOf is CurrentPrice for an Offering, failing with ErrNoActivePrice.
func PriceOf(o Offering, now time.Time) (int64, error) {
	amount, ok := CurrentPrice(o.PriceHistory(), now)
	if !ok {
		return 0, ErrNoActivePrice
	}
	return amount, nil
}

// DeadlinePassed reports whether the offering can no longer be bought.
func DeadlinePassed(o Offering, now time.Time) bool {
	d := o.OfferingDeadline()
	return d != nil && now.After(*d)
}

// CheckLevel verifies a level can take one more registration given how many
// registrations it already holds.
func CheckLevel(level *models.RegistrationLevel, now time.Time, taken int) error {
	if !level.Active || (level.Opens != nil && level.Opens.After(now)) {
		return ErrLevelUnavailable
	}
	if DeadlinePassed(LevelOffering{level}, now) {
		return ErrDeadlinePassed
	}
	return CheckCapacity(level, taken)
}

// CheckCapacity fails when the level is full. A zero limit means unlimited.
func CheckCapacity(level *models.RegistrationLevel, taken int) error {
	if level.Limit > 0 && taken >= level.Limit {
		return ErrCapacityExceeded
	}
	return nil
}

// CheckDealerTables verifies requested tables fit under the convention limit.
// A zero limit means unlimited.
func CheckDealerTables(limit, taken, requested int) error {
	if limit > 0 && taken+requested > limit {
		return ErrCapacityExceeded
	}
	return nil
}

// UpgradeOptions lists the active upgrades leaving fromLevel whose target
// deadline has not passed, ordered by target seq.
func UpgradeOptions(upgrades []models.RegistrationUpgrade, fromLevel uuid.UUID, now time.Time) []models.RegistrationUpgrade {
	var out []models.RegistrationUpgrade
	for i := range upgrades {
		u := &upgrades[i]
		if !u.Active || u.FromLevelID != fromLevel {
			continue
		}
		if DeadlinePassed(UpgradeOffering{u}, now) {
			continue
		}
		out = append(out, *u)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ToLevel.Seq < out[j].ToLevel.Seq })
	return out
}

// FindUpgrade picks the active path from one level to another.
func FindUpgrade(upgrades []models.RegistrationUpgrade, fromLevel, toLevel uuid.UUID, now time.Time) (*models.RegistrationUpgrade, error) {
	for i := range upgrades {
		u := &upgrades[i]
		if !u.Active || u.FromLevelID != fromLevel || u.ToLevel.ID != toLevel {
			continue
		}
		if DeadlinePassed(UpgradeOffering{u}, now) {
			return nil, ErrDeadlinePassed
		}
		return u, nil
	}
	return nil, ErrUpgradeUnavailable
}
