// Package memory provides an in-memory attendance.Store.
package memory

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cyp0633/librecur/attendance"
)

// Store implements attendance.Store in memory
type Store struct {
	mu      sync.RWMutex
	records map[attendance.Key]attendance.Record
	logger  *slog.Logger
}

// New creates a new in-memory attendance store
func New(opts ...Option) *Store {
	s := &Store{
		records: make(map[attendance.Key]attendance.Record),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Option represents a configuration option for the Store
type Option func(*Store)

// WithLogger sets the logger for the store
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Put implements attendance.Store. The last write for a key wins.
func (s *Store) Put(ctx context.Context, rec attendance.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec.Key = attendance.NewKey(rec.Key.ParticipantID, rec.Key.EventID, rec.Key.OccurrenceStart)

	s.mu.Lock()
	prev, existed := s.records[rec.Key]
	s.records[rec.Key] = rec
	s.mu.Unlock()

	if existed {
		s.logger.Debug("attendance record replaced",
			"key", rec.Key.String(),
			"from", prev.State,
			"to", rec.State)
	} else {
		s.logger.Debug("attendance record stored",
			"key", rec.Key.String(),
			"state", rec.State)
	}
	return nil
}

// Get implements attendance.Store
func (s *Store) Get(ctx context.Context, key attendance.Key) (*attendance.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key = attendance.NewKey(key.ParticipantID, key.EventID, key.OccurrenceStart)

	s.mu.RLock()
	rec, ok := s.records[key]
	s.mu.RUnlock()

	if !ok {
		return nil, &attendance.Error{
			Type:    attendance.ErrNotFound,
			Message: "no record for " + key.String(),
		}
	}
	return &rec, nil
}

// ListForOccurrence implements attendance.Store. Records are ordered by
// participant ID.
func (s *Store) ListForOccurrence(ctx context.Context, eventID string, occurrenceStart time.Time) ([]attendance.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	var out []attendance.Record
	for k, rec := range s.records {
		if k.EventID == eventID && k.OccurrenceStart.Equal(occurrenceStart) {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.ParticipantID < out[j].Key.ParticipantID
	})
	return out, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
