package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"p9e.in/genfuel/models"
)

// OutboxStore is the persistence the dispatcher needs.
type OutboxStore interface {
	GetNotification(ctx context.Context, id uuid.UUID) (models.Notification, error)
	ListPendingNotifications(ctx context.Context, before time.Time, maxAttempts, limit int) ([]models.Notification, error)
	UpdateNotification(ctx context.Context, n *models.Notification) error
	ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error)
}

// Options tune a Dispatcher. Zero values select defaults.
type Options struct {
	MaxAttempts   int           // default 5
	SweepInterval time.Duration // default 30s
	SweepBatch    int           // default 50
	PopTimeout    time.Duration // default 2s
}

// Dispatcher delivers outbox rows to every admin account. Rows arrive via
// Signal after the writing transaction commits; a periodic sweep retries
// failures and catches signals that never made it onto the queue.
type Dispatcher struct {
	store  OutboxStore
	queue  Queue
	mailer Mailer
	opts   Options
	now    func() time.Time

	// one delivery at a time so queue and sweep never double-send a row
	mu sync.Mutex
}

func NewDispatcher(store OutboxStore, queue Queue, mailer Mailer, opts Options) *Dispatcher {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 30 * time.Second
	}
	if opts.SweepBatch <= 0 {
		opts.SweepBatch = 50
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = 2 * time.Second
	}
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &Dispatcher{store: store, queue: queue, mailer: mailer, opts: opts, now: time.Now}
}

// Signal enqueues a committed outbox id. Failures are logged only; the
// sweep delivers the row regardless.
func (d *Dispatcher) Signal(ctx context.Context, id uuid.UUID) {
	if err := d.queue.Push(ctx, id); err != nil {
		slog.Warn("notification signal failed", "notification_id", id, "error", err)
	}
}

// Run consumes the queue and sweeps the outbox until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.consume(ctx) })
	g.Go(func() error { return d.sweepLoop(ctx) })
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (d *Dispatcher) consume(ctx context.Context) error {
	for {
		id, ok, err := d.queue.Pop(ctx, d.opts.PopTimeout)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			slog.Warn("notification queue pop failed", "error", err)
			// back off so a dead broker does not spin the loop
			select {
			case <-time.After(d.opts.PopTimeout):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		if !ok {
			continue
		}
		if err := d.Deliver(ctx, id); err != nil {
			slog.Warn("notification delivery failed", "notification_id", id, "error", err)
		}
	}
}

func (d *Dispatcher) sweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(d.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := d.Sweep(ctx); err != nil {
				slog.Warn("notification sweep failed", "error", err)
			} else if n > 0 {
				slog.Info("notification sweep", "attempted", n)
			}
		}
	}
}

// Sweep attempts every deliverable row older than the sweep interval and
// returns how many it tried.
func (d *Dispatcher) Sweep(ctx context.Context) (int, error) {
	cutoff := d.now().Add(-d.opts.SweepInterval)
	pending, err := d.store.ListPendingNotifications(ctx, cutoff, d.opts.MaxAttempts, d.opts.SweepBatch)
	if err != nil {
		return 0, err
	}
	for _, n := range pending {
		if err := d.Deliver(ctx, n.ID); err != nil {
			slog.Warn("notification delivery failed", "notification_id", n.ID, "attempt", n.Attempts+1, "error", err)
		}
	}
	return len(pending), nil
}

// Deliver sends one outbox row to every admin not yet reached and records
// the outcome on the row.
func (d *Dispatcher) Deliver(ctx context.Context, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.store.GetNotification(ctx, id)
	if err != nil {
		return fmt.Errorf("load notification: %w", err)
	}
	if !n.Deliverable(d.opts.MaxAttempts) {
		return nil
	}

	admins, err := d.store.ListUsersByRole(ctx, models.RoleAdmin)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}

	delivered := make(map[string]bool, len(n.Recipients))
	for _, r := range n.Recipients {
		delivered[r] = true
	}
	reached := append([]string(nil), n.Recipients...)
	var failures []string
	for _, admin := range admins {
		if admin.Email == "" || delivered[admin.Email] {
			continue
		}
		if err := d.mailer.Send(ctx, admin.Email, n.Subject, n.Body); err != nil {
			failures = append(failures, err.Error())
			continue
		}
		reached = append(reached, admin.Email)
	}

	n.Attempts++
	if len(failures) > 0 {
		n.Recipients = reached
		n.MarkAsFailed(strings.Join(failures, "; "))
	} else {
		n.MarkAsSent(reached, d.now())
	}
	if err := d.store.UpdateNotification(ctx, &n); err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d recipients failed: %s", len(failures), len(admins), n.LastError)
	}
	return nil
}
