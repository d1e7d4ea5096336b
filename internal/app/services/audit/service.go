// Package audit records the exchange layer's audit event stream and fans it
// out to live subscribers.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/R3E-Network/exchange_layer/internal/app/domain/audit"
	"github.com/R3E-Network/exchange_layer/internal/app/storage"
	"github.com/R3E-Network/exchange_layer/pkg/logger"
)

// Service persists audit events and broadcasts them to subscribers. Recording
// is best-effort with respect to the enclosing operation: a failed write is
// logged but never fails the operation that produced the event.
type Service struct {
	store storage.AuditStore
	log   *logger.Logger

	mu   sync.Mutex
	subs map[chan audit.Event]struct{}
}

// New constructs an audit service.
func New(store storage.AuditStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("audit")
	}
	return &Service{
		store: store,
		log:   log,
		subs:  make(map[chan audit.Event]struct{}),
	}
}

// Record persists one audit event and broadcasts it to subscribers.
func (s *Service) Record(ctx context.Context, op audit.Op, actor, poolID string, params map[string]string) {
	evt := audit.Event{
		Op:        op,
		Actor:     actor,
		PoolID:    poolID,
		Params:    params,
		CreatedAt: time.Now().UTC(),
	}

	if s.store != nil {
		stored, err := s.store.CreateAuditEvent(ctx, evt)
		if err != nil {
			s.log.WithError(err).WithField("op", string(op)).Warn("audit event not persisted")
		} else {
			evt = stored
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Slow subscriber; drop rather than stall the operation path.
		}
	}
}

// List returns the most recent events, newest last.
func (s *Service) List(ctx context.Context, limit int) ([]audit.Event, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListAuditEvents(ctx, limit)
}

// Subscribe registers a live event channel. The returned cancel function must
// be called to release the subscription.
func (s *Service) Subscribe() (<-chan audit.Event, func()) {
	ch := make(chan audit.Event, 64)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}
