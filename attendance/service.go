package attendance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cyp0633/librecur/event"
	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/timezone"
)

// Service records attend and leave actions against a Store.
type Service struct {
	store   Store
	engine  *recurrence.Engine
	owned   bool
	calc    *Calculator
	resolve timezone.Resolver
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithEngine sets the engine used to check recurring occurrences.
func WithEngine(engine *recurrence.Engine) Option {
	return func(s *Service) {
		if engine != nil {
			s.engine = engine
		}
	}
}

// WithTimezoneResolver sets the resolver used for both occurrence checks and windows.
func WithTimezoneResolver(r timezone.Resolver) Option {
	return func(s *Service) {
		if r != nil {
			s.resolve = r
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a service writing to store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		resolve: timezone.Load,
		now:     time.Now,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = recurrence.NewEngineWithConfig(recurrence.EngineConfig{
			CacheEnabled: true,
			CacheConfig:  recurrence.DefaultCacheConfig,
			Logger:       s.logger,
		})
		s.owned = true
	}
	s.calc = NewCalculator(WithResolver(s.resolve), WithCalculatorLogger(s.logger))
	return s
}

// Close stops the engine's cache cleanup if the service created the engine.
func (s *Service) Close() {
	if s.owned {
		s.engine.Close()
	}
}

// Attend marks the participant present for the occurrence.
func (s *Service) Attend(ctx context.Context, participantID string, ev event.Event, occurrenceStart time.Time) (*Record, error) {
	return s.record(ctx, participantID, ev, occurrenceStart, Present, s.calc.AttendWindow)
}

// Leave marks the participant as an excused absence for the occurrence.
func (s *Service) Leave(ctx context.Context, participantID string, ev event.Event, occurrenceStart time.Time) (*Record, error) {
	return s.record(ctx, participantID, ev, occurrenceStart, ExcusedAbsence, s.calc.LeaveWindow)
}

// Status returns the current record for the participant and occurrence.
func (s *Service) Status(ctx context.Context, participantID string, ev event.Event, occurrenceStart time.Time) (*Record, error) {
	return s.store.Get(ctx, NewKey(participantID, ev.ID, occurrenceStart))
}

// Roster lists every record for one occurrence.
func (s *Service) Roster(ctx context.Context, ev event.Event, occurrenceStart time.Time) ([]Record, error) {
	return s.store.ListForOccurrence(ctx, ev.ID, occurrenceStart.UTC())
}

type windowFunc func(event.Event, time.Time) (Window, error)

func (s *Service) record(ctx context.Context, participantID string, ev event.Event, occurrenceStart time.Time, state State, window windowFunc) (*Record, error) {
	ok, err := s.occurs(ev, occurrenceStart)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Info("rejected attendance for unknown occurrence",
			"event", ev.ID,
			"participant", participantID,
			"occurrence", occurrenceStart)
		return nil, &Error{
			Type:    ErrNoSuchOccurrence,
			Message: fmt.Sprintf("event %s has no occurrence at %s", ev.ID, occurrenceStart.Format(time.RFC3339)),
		}
	}

	w, err := window(ev, occurrenceStart)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !w.Contains(now) {
		s.logger.Info("rejected attendance outside window",
			"event", ev.ID,
			"participant", participantID,
			"state", state,
			"opens", w.Opens,
			"closes", w.Closes,
			"now", now)
		return nil, &Error{
			Type:    ErrOutsideWindow,
			Message: fmt.Sprintf("%s is outside [%s, %s]", now.Format(time.RFC3339), w.Opens.Format(time.RFC3339), w.Closes.Format(time.RFC3339)),
		}
	}

	rec := Record{
		Key:       NewKey(participantID, ev.ID, occurrenceStart),
		State:     state,
		UpdatedAt: now.UTC(),
	}
	if err := s.store.Put(ctx, rec); err != nil {
		var aerr *Error
		if errors.As(err, &aerr) {
			return nil, err
		}
		return nil, &Error{Type: ErrStore, Message: "failed to save record", Err: err}
	}

	s.logger.Debug("attendance recorded",
		"key", rec.Key.String(),
		"state", state)
	return &rec, nil
}

func (s *Service) occurs(ev event.Event, occurrenceStart time.Time) (bool, error) {
	rec, ok := ev.Recurrence.Get()
	if !ok {
		return occurrenceStart.Equal(ev.Start), nil
	}

	loc, err := ev.Location(s.resolve)
	if err != nil {
		return false, err
	}
	return s.engine.HasOccurrence(ev.Start.In(loc), ev.AllDay, rec, occurrenceStart)
}
