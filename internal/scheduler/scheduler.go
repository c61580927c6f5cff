// Package scheduler runs evaluation passes over the product list and sends
// reminders for newly crossed thresholds.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"expiry_tracker/internal/dispatch"
	"expiry_tracker/internal/notify"
	"expiry_tracker/internal/storage"
)

// ErrPassInFlight is returned when a pass is requested while another runs.
var ErrPassInFlight = errors.New("evaluation pass already in flight")

// Dispatcher delivers due reminders.
type Dispatcher interface {
	Dispatch(ctx context.Context, due []notify.Due) []dispatch.Outcome
}

// Report summarises one evaluation pass.
type Report struct {
	Skipped   bool
	Products  int
	Due       int
	Delivered int
	Failed    int
	Pruned    int64
}

// Scheduler periodically evaluates products and dispatches reminders.
type Scheduler struct {
	store      storage.Storage
	dispatcher Dispatcher
	log        *slog.Logger
	tick       time.Duration
	now        func() time.Time

	inFlight atomic.Bool
	trigger  chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Scheduler that ticks hourly and reads the clock in loc.
func New(store storage.Storage, dispatcher Dispatcher, loc *time.Location, log *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		log:        log,
		tick:       time.Hour,
		now:        func() time.Time { return time.Now().In(loc) },
		trigger:    make(chan struct{}, 1),
	}
}

// SetTickInterval overrides the default 1-hour check interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// SetClock overrides the wall clock (useful for testing).
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Start runs the loop in the background. Calling Start while the loop is
// running does nothing. Once ctx is cancelled the scheduler can be started
// again.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done

	go func() {
		defer close(done)
		s.Run(ctx)

		// The parent ctx may end the loop without Stop; allow a later Start.
		s.mu.Lock()
		if s.done == done {
			s.cancel, s.done = nil, nil
		}
		s.mu.Unlock()
		cancel()
	}()
}

// Stop cancels the background loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Trigger requests a pass as soon as possible. Requests made while one is
// already pending are merged.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run starts the scheduler loop, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.runPass(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPass(ctx)
		case <-s.trigger:
			s.runPass(ctx)
		}
	}
}

func (s *Scheduler) runPass(ctx context.Context) {
	rep, err := s.Evaluate(ctx)
	switch {
	case errors.Is(err, ErrPassInFlight):
		s.log.Debug("evaluation pass dropped", "reason", err)
	case err != nil:
		s.log.Error("evaluation pass", "error", err)
	case rep.Due > 0:
		s.log.Info("sent notifications", "due", rep.Due, "delivered", rep.Delivered, "failed", rep.Failed)
	}
}

// Evaluate runs one evaluation pass. At most one pass runs at a time; a
// concurrent call returns ErrPassInFlight without doing anything.
func (s *Scheduler) Evaluate(ctx context.Context) (Report, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return Report{}, ErrPassInFlight
	}
	defer s.inFlight.Store(false)

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("get settings: %w", err)
	}
	if !settings.NotificationsEnabled {
		return Report{Skipped: true}, nil
	}

	var rep Report
	if rep.Pruned, err = s.store.PruneNotifiedKeys(ctx); err != nil {
		s.log.Warn("prune notified keys", "error", err)
	}

	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list products: %w", err)
	}
	keys, err := s.store.ListNotifiedKeys(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list notified keys: %w", err)
	}
	rep.Products = len(products)

	res := notify.ComputeDue(products, s.now(), notify.NewKeySet(keys...), settings.LeadTimes)
	rep.Due = len(res.Due)
	if rep.Due == 0 {
		return rep, nil
	}

	var fired []storage.NotifiedKey
	for _, o := range s.dispatcher.Dispatch(ctx, res.Due) {
		if !o.Delivered {
			rep.Failed++
			continue
		}
		rep.Delivered++
		fired = append(fired, storage.NotifiedKey{ProductID: o.Due.ProductID, DaysUntil: o.Due.DaysUntil})
	}

	// Persist even if ctx was cancelled mid-dispatch: delivered reminders
	// must not fire again.
	if err := s.store.AddNotifiedKeys(context.WithoutCancel(ctx), fired); err != nil {
		return rep, fmt.Errorf("add notified keys: %w", err)
	}
	return rep, nil
}

// Preview computes the reminders a pass would send now, without delivering
// or recording anything.
func (s *Scheduler) Preview(ctx context.Context) ([]notify.Due, error) {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	keys, err := s.store.ListNotifiedKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notified keys: %w", err)
	}
	return notify.ComputeDue(products, s.now(), notify.NewKeySet(keys...), settings.LeadTimes).Due, nil
}
