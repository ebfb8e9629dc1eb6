package editor

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

const DefaultAutosaveInterval = 30 * time.Second

var ErrSchedulerRunning = errors.New("autosave scheduler already running")

// SaveFunc persists a session. The scheduler logs and drops its errors.
type SaveFunc func(ctx context.Context) error

// Scheduler calls a SaveFunc on a fixed interval while its session has
// unsaved, non-blank content and no save in flight. Ticks that find a save
// in flight are skipped, not queued.
type Scheduler struct {
	interval time.Duration
	logger   *log.Logger

	// ticks replaces the ticker in tests.
	ticks <-chan time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(interval time.Duration, logger *log.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{interval: interval, logger: logger}
}

// Start begins ticking for s. The loop ends when Stop is called or ctx is
// cancelled.
func (sc *Scheduler) Start(ctx context.Context, s *Session, save SaveFunc) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.cancel != nil {
		return ErrSchedulerRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	sc.cancel = cancel
	sc.done = done

	ticks := sc.ticks
	var ticker *time.Ticker
	if ticks == nil {
		ticker = time.NewTicker(sc.interval)
		ticks = ticker.C
	}

	go func() {
		defer close(done)
		if ticker != nil {
			defer ticker.Stop()
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticks:
				sc.tick(ctx, s, save)
			}
		}
	}()
	return nil
}

func (sc *Scheduler) tick(ctx context.Context, s *Session, save SaveFunc) {
	if !s.HasPersistableContent() || !s.Dirty() || s.Saving() {
		return
	}
	if err := save(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		id, _ := s.PostID()
		sc.logger.Printf("autosave failed (post %q): %v", id, err)
	}
}

// Stop cancels the loop and waits for any tick in progress to finish.
// Calling Stop on a stopped scheduler is a no-op.
func (sc *Scheduler) Stop() {
	sc.mu.Lock()
	cancel, done := sc.cancel, sc.done
	sc.cancel, sc.done = nil, nil
	sc.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (sc *Scheduler) Running() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.cancel != nil
}
