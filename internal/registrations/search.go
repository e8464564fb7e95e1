package registrations

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/conreg/backend/internal/badges"
	"github.com/conreg/backend/internal/catalog"
	"github.com/conreg/backend/internal/models"
)

// ParseSearch splits desk input into terms. Every term narrows the result;
// numeric terms additionally pull in the registration with that badge number.
func ParseSearch(cv *models.Convention, input string, limit int) SearchQuery {
	q := SearchQuery{Limit: limit}
	for _, term := range strings.Fields(input) {
		q.Terms = append(q.Terms, term)
		if n, err := strconv.ParseInt(term, 10, 64); err == nil {
			q.IDs = append(q.IDs, badges.RegistrationID(cv, n))
		}
	}
	return q
}

// Search runs a desk search within cv.
func (s *Service) Search(ctx context.Context, cv *models.Convention, input string) ([]models.Registration, error) {
	q := ParseSearch(cv, input, s.opts.SearchLimit)
	if len(q.Terms) == 0 {
		return []models.Registration{}, nil
	}
	return s.store.Search(ctx, cv.ID, q)
}

// Swipe is identity read off a scanned ID card.
type Swipe struct {
	LastName  string    `json:"last_name" binding:"required"`
	FirstName string    `json:"first_name" binding:"required"`
	Birthday  time.Time `json:"birthday"`
}

// SwipeSearch finds the registration behind a card swipe, relaxing the match
// step by step: full name and birthday, first initial and birthday, full name,
// first initial, then first name and birthday for changed last names.
func (s *Service) SwipeSearch(ctx context.Context, cv *models.Convention, sw Swipe) ([]models.Registration, error) {
	last, first := strings.TrimSpace(sw.LastName), strings.TrimSpace(sw.FirstName)
	if last == "" || first == "" {
		return nil, fmt.Errorf("%w: swipe needs first and last name", ErrInvalidInput)
	}
	initial := string([]rune(first)[:1])
	var bday *time.Time
	if !sw.Birthday.IsZero() {
		bday = &sw.Birthday
	}

	steps := []MatchCriteria{
		{LastName: last, FirstName: first, Birthday: bday},
		{LastName: last, FirstInitial: initial, Birthday: bday},
		{LastName: last, FirstName: first},
		{LastName: last, FirstInitial: initial},
	}
	if bday != nil {
		steps = append(steps, MatchCriteria{FirstName: first, Birthday: bday})
	}
	for _, c := range steps {
		found, err := s.store.Match(ctx, cv.ID, c)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return found, nil
		}
	}
	return []models.Registration{}, nil
}

func lookupKey(clientIP string) string {
	return "page_failures_" + clientIP
}

// Confirmation looks up a registration by its public id for the attendee
// confirmation page. A client with too many misses in the window gets not
// found for every id.
func (s *Service) Confirmation(ctx context.Context, cv *models.Convention, externalID, clientIP string) (*models.Registration, []models.RegistrationUpgrade, error) {
	key := lookupKey(clientIP)
	if s.throttle != nil {
		hits, err := s.throttle.Count(ctx, key)
		if err != nil {
			s.logger.Warn("lookup throttle unavailable", zap.Error(err))
		} else if hits > int64(s.opts.LookupFailures) {
			return nil, nil, ErrNotFound
		}
	}

	reg, err := s.store.GetByExternalID(ctx, cv.ID, externalID)
	if errors.Is(err, ErrNotFound) {
		if s.throttle != nil {
			if _, err := s.throttle.Hit(ctx, key, s.opts.LookupWindow); err != nil {
				s.logger.Warn("lookup throttle unavailable", zap.Error(err))
			}
		}
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	var options []models.RegistrationUpgrade
	if reg.Status == models.StatusPaid {
		all, err := s.store.ListUpgrades(ctx, cv.ID)
		if err != nil {
			return nil, nil, err
		}
		options = catalog.UpgradeOptions(all, reg.RegistrationLevelID, s.now())
	}
	return reg, options, nil
}
