// Package dispatch delivers due reminders through a notification platform.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"expiry_tracker/internal/model"
	"expiry_tracker/internal/notify"
)

// Platform is the notification primitive of the host (Telegram, console...).
type Platform interface {
	Supported() bool
	Permission(ctx context.Context) model.Permission
	// RequestPermission asks the user for permission. It may return before
	// the user answers, in which case the state stays default.
	RequestPermission(ctx context.Context) (model.Permission, error)
	Display(ctx context.Context, msg notify.Message) error
}

// Delivery failures reported in Outcome.Err.
var (
	ErrUnsupported   = errors.New("notifications unsupported")
	ErrNotPermitted  = errors.New("notification permission not granted")
	ErrDeliveryAbort = errors.New("delivery aborted")
)

// Outcome is the delivery result of one due entry.
type Outcome struct {
	Due       notify.Due
	Delivered bool
	Err       error
}

// Dispatcher sends one notification per due entry and never fails as a whole.
type Dispatcher struct {
	platform Platform
	limiter  *rate.Limiter
	log      *slog.Logger
}

// New creates a Dispatcher that delivers at most perSecond notifications per
// second. A non-positive perSecond disables limiting.
func New(platform Platform, perSecond float64, log *slog.Logger) *Dispatcher {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Dispatcher{
		platform: platform,
		limiter:  rate.NewLimiter(limit, 1),
		log:      log,
	}
}

// Permission reports the current permission state for the settings surface.
func (d *Dispatcher) Permission(ctx context.Context) model.Permission {
	if !d.platform.Supported() {
		return model.PermissionUnsupported
	}
	return d.platform.Permission(ctx)
}

// RequestPermission asks for permission if it has never been asked.
// Granted and denied states are returned as they are.
func (d *Dispatcher) RequestPermission(ctx context.Context) model.Permission {
	current := d.Permission(ctx)
	if current != model.PermissionDefault {
		return current
	}
	p, err := d.platform.RequestPermission(ctx)
	if err != nil {
		d.log.Warn("request notification permission", "error", err)
		return current
	}
	return p
}

// Dispatch attempts delivery of every entry in due and reports each result.
func (d *Dispatcher) Dispatch(ctx context.Context, due []notify.Due) []Outcome {
	outcomes := make([]Outcome, 0, len(due))
	if len(due) == 0 {
		return outcomes
	}

	var gate error
	switch d.Permission(ctx) {
	case model.PermissionUnsupported:
		gate = ErrUnsupported
	case model.PermissionGranted:
	default:
		gate = ErrNotPermitted
	}

	for _, entry := range due {
		o := Outcome{Due: entry}
		switch {
		case gate != nil:
			o.Err = gate
		case ctx.Err() != nil:
			o.Err = fmt.Errorf("%w: %w", ErrDeliveryAbort, ctx.Err())
		default:
			o.Err = d.deliver(ctx, entry)
			o.Delivered = o.Err == nil
		}

		if o.Err != nil {
			d.log.Warn("notification not delivered", "product_id", entry.ProductID, "key", entry.Key, "error", o.Err)
		} else {
			d.log.Debug("notification delivered", "product_id", entry.ProductID, "key", entry.Key)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func (d *Dispatcher) deliver(ctx context.Context, entry notify.Due) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryAbort, err)
	}
	if err := d.platform.Display(ctx, entry.Message()); err != nil {
		return fmt.Errorf("display: %w", err)
	}
	return nil
}
