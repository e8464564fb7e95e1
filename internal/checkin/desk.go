package checkin

import (
	"context"

	"go.uber.org/zap"

	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/internal/registrations"
)

// Registrations is what the desk needs from the registration service.
type Registrations interface {
	Get(ctx context.Context, cv *models.Convention, id int64) (*models.Registration, error)
	BadgeNumber(ctx context.Context, cv *models.Convention, id int64) (string, bool, error)
	Edit(ctx context.Context, cv *models.Convention, actor models.Actor, id int64, req registrations.EditRequest) (*models.Registration, error)
}

// DeskOptions names the desk's two lines and how much of each is shown.
type DeskOptions struct {
	LineQueue   string
	BadgeQueue  string
	LineSize    int
	BadgeSize   int
	AutoRequest bool
}

func (o *DeskOptions) defaults() {
	if o.LineQueue == "" {
		o.LineQueue = "regline"
	}
	if o.BadgeQueue == "" {
		o.BadgeQueue = "readybadge"
	}
	if o.LineSize <= 0 {
		o.LineSize = 5
	}
	if o.BadgeSize <= 0 {
		o.BadgeSize = 10
	}
}

// Waiting is a queue entry with the registration it stands for.
type Waiting struct {
	models.QueueEntry
	Registration *models.Registration `json:"registration"`
	BadgeNumber  string               `json:"badge_number,omitempty"`
}

// Opened is a registration pulled up at the desk.
type Opened struct {
	Registration   *models.Registration `json:"registration"`
	BadgeNumber    string               `json:"badge_number,omitempty"`
	BadgeRequested bool                 `json:"badge_requested"`
}

// Desk drives a check-in terminal.
type Desk struct {
	queue  *Queue
	regs   Registrations
	opts   DeskOptions
	logger *zap.Logger
}

// NewDesk creates a desk over queue and the registration service.
func NewDesk(queue *Queue, regs Registrations, opts DeskOptions, logger *zap.Logger) *Desk {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.defaults()
	return &Desk{queue: queue, regs: regs, opts: opts, logger: logger}
}

// Options returns the effective desk options.
func (d *Desk) Options() DeskOptions { return d.opts }

// Open pulls a registration up at the desk: it leaves the line and, with
// auto-request on, a paid attendee whose badge is already printed is sent to
// the badge puller.
func (d *Desk) Open(ctx context.Context, cv *models.Convention, id int64, autoRequest bool) (*Opened, error) {
	reg, err := d.regs.Get(ctx, cv, id)
	if err != nil {
		return nil, err
	}
	if err := d.queue.Dequeue(ctx, cv.ID, reg.ID, d.opts.LineQueue); err != nil {
		return nil, err
	}
	out := &Opened{Registration: reg}
	if out.BadgeNumber, _, err = d.regs.BadgeNumber(ctx, cv, reg.ID); err != nil {
		return nil, err
	}
	if autoRequest && reg.Paid() && !reg.CheckedIn && reg.NeedsPrint == models.NeedsPrintNo {
		if err := d.queue.Enqueue(ctx, cv, reg.ID, d.opts.BadgeQueue, false, ""); err != nil {
			return nil, err
		}
		out.BadgeRequested = true
	}
	return out, nil
}

// Enqueue puts a registration on a named queue. A room number sent along is
// recorded on the registration first, through the audited edit.
func (d *Desk) Enqueue(ctx context.Context, cv *models.Convention, actor models.Actor, id int64, name string, preserve bool, additionalData string, room *int) error {
	if err := validName(name); err != nil {
		return err
	}
	if room != nil {
		if _, err := d.regs.Edit(ctx, cv, actor, id, registrations.EditRequest{RoomNumber: room}); err != nil {
			return err
		}
	}
	return d.queue.Enqueue(ctx, cv, id, name, preserve, additionalData)
}

// Line lists the head of the line wrangler queue.
func (d *Desk) Line(ctx context.Context, cv *models.Convention) ([]Waiting, error) {
	return d.Waiting(ctx, cv, d.opts.LineQueue, d.opts.LineSize)
}

// BadgeRequests lists the badges the puller should fetch.
func (d *Desk) BadgeRequests(ctx context.Context, cv *models.Convention) ([]Waiting, error) {
	return d.Waiting(ctx, cv, d.opts.BadgeQueue, d.opts.BadgeSize)
}

// Acknowledge marks a requested badge as pulled.
func (d *Desk) Acknowledge(ctx context.Context, cv *models.Convention, id int64) error {
	return d.queue.Dequeue(ctx, cv.ID, id, d.opts.BadgeQueue)
}

// Waiting lists up to n visible entries of a queue with their registrations.
// An entry whose registration vanished meanwhile is skipped.
func (d *Desk) Waiting(ctx context.Context, cv *models.Convention, name string, n int) ([]Waiting, error) {
	entries, err := d.queue.List(ctx, cv, name, n)
	if err != nil {
		return nil, err
	}
	out := make([]Waiting, 0, len(entries))
	for _, e := range entries {
		reg, err := d.regs.Get(ctx, cv, e.RegistrationID)
		if err != nil {
			d.logger.Warn("queued registration unavailable", zap.String("queue", name),
				zap.Int64("registration_id", e.RegistrationID), zap.Error(err))
			continue
		}
		number, _, err := d.regs.BadgeNumber(ctx, cv, reg.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, Waiting{QueueEntry: e, Registration: reg, BadgeNumber: number})
	}
	return out, nil
}
