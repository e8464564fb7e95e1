package analytics

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/conreg/backend/internal/conventions"
	"github.com/conreg/backend/pkg/response"
)

// Handler handles GET /admin/stats.
type Handler struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewHandler creates a stats handler.
func NewHandler(pool *pgxpool.Pool, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{pool: pool, logger: logger}
}

// LevelCount is the number of live registrations at one level.
type LevelCount struct {
	LevelID uuid.UUID `json:"level_id"`
	Title   string    `json:"title"`
	Count   int       `json:"count"`
	Limit   int       `json:"limit"`
}

// SummaryResponse is the JSON shape for GET /admin/stats.
type SummaryResponse struct {
	ByStatus         map[string]int `json:"by_status"`
	TotalLive        int            `json:"total_live"`
	CheckedIn        int            `json:"checked_in"`
	NotCheckedIn     int            `json:"not_checked_in"`
	AwaitingPrint    int            `json:"awaiting_print"`
	BadgesPrinted    int            `json:"badges_printed"`
	RevenueCents     int64          `json:"revenue_cents"`
	PendingRefunds   int            `json:"pending_refunds"`
	Levels           []LevelCount   `json:"levels"`
	QueueLengths     map[string]int `json:"queue_lengths"`
	CheckInRate      *float64       `json:"check_in_rate,omitempty"`
	ConnectedDevices int            `json:"connected_devices"`
}

// Finish derives totals from the per-status counts. Paid registrations are the
// only ones that can be checked in, so the rate is checked-in over paid.
func (s *SummaryResponse) Finish() {
	s.TotalLive = 0
	for status, n := range s.ByStatus {
		if status != "rejected" && status != "refunded" {
			s.TotalLive += n
		}
	}
	paid := s.ByStatus["paid"]
	s.NotCheckedIn = paid - s.CheckedIn
	if s.NotCheckedIn < 0 {
		s.NotCheckedIn = 0
	}
	if paid > 0 {
		rate := float64(s.CheckedIn) / float64(paid)
		s.CheckInRate = &rate
	}
}

// TerminalCounter reports how many terminals are connected for a convention.
type TerminalCounter interface {
	TerminalCount(conventionID uuid.UUID) int
}

// Summary handles GET /admin/stats for the current convention.
func (h *Handler) Summary(terminals TerminalCounter) gin.HandlerFunc {
	return func(c *gin.Context) {
		cv, ok := conventions.FromContext(c)
		if !ok {
			response.ServiceUnavailable(c, "no convention is currently active")
			return
		}
		out, err := h.load(c.Request.Context(), cv.ID)
		if err != nil {
			h.logger.Error("load stats", zap.Error(err), zap.String("convention_id", cv.ID.String()))
			response.Internal(c, "failed to load stats")
			return
		}
		if terminals != nil {
			out.ConnectedDevices = terminals.TerminalCount(cv.ID)
		}
		out.Finish()
		response.OK(c, out)
	}
}

func (h *Handler) load(ctx context.Context, conventionID uuid.UUID) (*SummaryResponse, error) {
	out := &SummaryResponse{
		ByStatus:     map[string]int{},
		QueueLengths: map[string]int{},
		Levels:       []LevelCount{},
	}

	rows, err := h.pool.Query(ctx,
		`SELECT status, COUNT(*), COUNT(*) FILTER (WHERE checked_in),
			COUNT(*) FILTER (WHERE needs_print <> 'no')
		 FROM registrations WHERE convention_id = $1 GROUP BY status`, conventionID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var status string
		var n, checkedIn, awaiting int
		if err := rows.Scan(&status, &n, &checkedIn, &awaiting); err != nil {
			rows.Close()
			return nil, err
		}
		out.ByStatus[status] = n
		out.CheckedIn += checkedIn
		if status == "paid" {
			out.AwaitingPrint = awaiting
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const printedQ = `SELECT COUNT(*) FROM badge_assignments b
		JOIN registrations r ON r.id = b.registration_id WHERE r.convention_id = $1`
	if err := h.pool.QueryRow(ctx, printedQ, conventionID).Scan(&out.BadgesPrinted); err != nil {
		return nil, err
	}

	const moneyQ = `SELECT COALESCE(SUM(p.amount_cents) FILTER (WHERE p.state = 'paid'), 0),
			COUNT(*) FILTER (WHERE p.state IN ('refund_requested', 'refund_settling'))
		FROM payments p JOIN registrations r ON r.id = p.registration_id WHERE r.convention_id = $1`
	if err := h.pool.QueryRow(ctx, moneyQ, conventionID).Scan(&out.RevenueCents, &out.PendingRefunds); err != nil {
		return nil, err
	}

	levels, err := h.pool.Query(ctx,
		`SELECT l.id, l.title, l.limit_count,
			(SELECT COUNT(*) FROM registrations r WHERE r.registration_level_id = l.id AND r.status NOT IN ('rejected', 'refunded'))
		 FROM registration_levels l WHERE l.convention_id = $1 ORDER BY l.seq`, conventionID)
	if err != nil {
		return nil, err
	}
	for levels.Next() {
		var lc LevelCount
		if err := levels.Scan(&lc.LevelID, &lc.Title, &lc.Limit, &lc.Count); err != nil {
			levels.Close()
			return nil, err
		}
		out.Levels = append(out.Levels, lc)
	}
	levels.Close()
	if err := levels.Err(); err != nil {
		return nil, err
	}

	queues, err := h.pool.Query(ctx,
		`SELECT q.queue_name, COUNT(*) FROM registration_queue q
		 JOIN registrations r ON r.id = q.registration_id WHERE r.convention_id = $1 GROUP BY q.queue_name`, conventionID)
	if err != nil {
		return nil, err
	}
	defer queues.Close()
	for queues.Next() {
		var name string
		var n int
		if err := queues.Scan(&name, &n); err != nil {
			return nil, err
		}
		out.QueueLengths[name] = n
	}
	return out, queues.Err()
}
