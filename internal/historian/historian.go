// internal/historian/historian.go
package historian

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/blindtest/internal/models"
	"github.com/sirupsen/logrus"
)

// Source yields queued room event records.
type Source interface {
	PopRoomEvent(ctx context.Context, timeout time.Duration) (models.RoomEventRecord, bool, error)
}

// Sink persists a batch of records.
type Sink interface {
	InsertBatch(ctx context.Context, recs []models.RoomEventRecord) error
}

// Service drains the room event queue into the database in batches.
type Service struct {
	source Source
	sink   Sink
	logger *logrus.Logger

	BatchSize  int
	FlushDelay time.Duration
	PopTimeout time.Duration
	// MaxPending caps how many unflushed records are kept across failed flushes.
	MaxPending int

	batchMu sync.Mutex
	batch   []models.RoomEventRecord
}

// New returns a Service with the default batch size (20) and flush delay (500ms).
func New(source Source, sink Sink, logger *logrus.Logger) *Service {
	return &Service{
		source:     source,
		sink:       sink,
		logger:     logger,
		BatchSize:  20,
		FlushDelay: 500 * time.Millisecond,
		PopTimeout: 3 * time.Second,
		MaxPending: 1000,
	}
}

// Run pops records until ctx is cancelled, flushing whenever the batch is full or
// FlushDelay elapses. Whatever is buffered at shutdown is flushed before returning.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.FlushDelay)
	defer ticker.Stop()

	s.logger.Info("blindtest-historian started")
	defer s.logger.Info("blindtest-historian shutting down")

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.flush(flushCtx)
			cancel()
			return nil
		case <-ticker.C:
			s.flush(ctx)
		default:
			rec, ok, err := s.source.PopRoomEvent(ctx, s.PopTimeout)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				s.logger.Warnf("pop room event: %v", err)
				s.sleep(ctx, time.Second)
				continue
			}
			if !ok {
				continue
			}
			s.append(ctx, rec)
		}
	}
}

// sleep waits d or until ctx ends.
func (s *Service) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (s *Service) append(ctx context.Context, rec models.RoomEventRecord) {
	s.batchMu.Lock()
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.BatchSize
	s.batchMu.Unlock()

	if full {
		s.flush(ctx)
	}
}

// Pending is the number of buffered records.
func (s *Service) Pending() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.batch)
}

// flush writes the current batch in a single call to the sink. On failure the
// records go back to the buffer, up to MaxPending.
func (s *Service) flush(ctx context.Context) {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	batchCopy := make([]models.RoomEventRecord, len(s.batch))
	copy(batchCopy, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	err := s.sink.InsertBatch(ctx, batchCopy)
	if err == nil {
		s.logger.Debugf("flushed %d room events", len(batchCopy))
		return
	}
	if errors.Is(err, context.Canceled) {
		s.logger.Warnf("flush of %d room events cancelled", len(batchCopy))
	} else {
		s.logger.Errorf("flush room events: %v", err)
	}

	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	merged := append(batchCopy, s.batch...)
	if over := len(merged) - s.MaxPending; over > 0 {
		s.logger.Warnf("dropping %d oldest room events", over)
		merged = merged[over:]
	}
	s.batch = merged
}
