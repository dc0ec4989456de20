package evidence

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper periodically archives evidence packages whose retention period has
// elapsed. Archival is a status transition, not deletion; the audit trail
// and package payload remain.
type Sweeper struct {
	mu      sync.Mutex
	manager *Manager
	running bool
	stopCh  chan struct{}
	logger  *slog.Logger
}

// NewSweeper creates a retention sweeper over the manager.
func NewSweeper(manager *Manager) *Sweeper {
	return &Sweeper{
		manager: manager,
		stopCh:  make(chan struct{}),
		logger:  slog.Default().With("component", "retention"),
	}
}

// Start begins the periodic sweep. Starting twice is a no-op.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx, interval)
}

// Stop halts the sweep loop.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.stopCh)
	s.running = false
}

func (s *Sweeper) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.sweep()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	if n := s.manager.ArchiveExpired(); n > 0 {
		s.logger.Info("Retention sweep archived packages", "count", n)
	}
}
