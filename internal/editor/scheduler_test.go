package editor

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// newTestScheduler returns a scheduler driven by the returned channel.
// An unbuffered send returns once the loop has picked the tick up, so two
// sends guarantee the first tick has been fully handled.
func newTestScheduler(t *testing.T) (*Scheduler, chan time.Time, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	sc := NewScheduler(time.Hour, log.New(&logs, "", 0))
	ticks := make(chan time.Time)
	sc.ticks = ticks
	t.Cleanup(sc.Stop)
	return sc, ticks, &logs
}

func tickTwice(ticks chan<- time.Time) {
	ticks <- time.Now()
	ticks <- time.Now()
}

func TestScheduler_SavesDirtyContent(t *testing.T) {
	repo := newFakeRepo()
	wf := NewWorkflow(repo)
	s := newTestSession(t)
	sc, ticks, _ := newTestScheduler(t)

	if err := sc.Start(context.Background(), s, wf.AutosaveFunc(s)); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	tickTwice(ticks)
	if n := repo.mutations(); n != 0 {
		t.Fatalf("empty session should not be saved, got %d mutations", n)
	}

	s.SetTitle("Draft in progress")
	tickTwice(ticks)
	if creates, updates := repo.counts(); creates != 1 || updates != 0 {
		t.Fatalf("expected a single create, got %d creates, %d updates", creates, updates)
	}

	s.SetContent("more words")
	tickTwice(ticks)
	if creates, updates := repo.counts(); creates != 1 || updates != 1 {
		t.Errorf("expected the next change to update, got %d creates, %d updates", creates, updates)
	}
}

func TestScheduler_SkipsWhileSaveInFlight(t *testing.T) {
	var calls atomic.Int32
	s := newTestSession(t)
	sc, ticks, _ := newTestScheduler(t)

	save := func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}
	if err := sc.Start(context.Background(), s, save); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	s.SetTitle("Busy")

	release := make(chan struct{})
	held := make(chan struct{})
	go s.save(context.Background(), func() error {
		close(held)
		<-release
		return nil
	})
	<-held

	tickTwice(ticks)
	if n := calls.Load(); n != 0 {
		t.Errorf("expected ticks to be skipped during a save, got %d calls", n)
	}

	close(release)
	for s.Saving() {
		time.Sleep(time.Millisecond)
	}
	ticks <- time.Now()
	sc.Stop()
	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 call once the slot was free, got %d", n)
	}
}

func TestScheduler_FailuresAreLoggedAndRetried(t *testing.T) {
	repo := newFakeRepo()
	repo.setErr(errors.New("backend down"))
	wf := NewWorkflow(repo)
	s := newTestSession(t)
	sc, ticks, logs := newTestScheduler(t)

	attempts := make(chan struct{})
	save := func(ctx context.Context) error {
		_, err := wf.Autosave(ctx, s)
		attempts <- struct{}{}
		return err
	}
	if err := sc.Start(context.Background(), s, save); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	s.SetTitle("Keep trying")
	for i := 0; i < 2; i++ {
		ticks <- time.Now()
		<-attempts
	}
	if !s.Dirty() {
		t.Error("failed autosave must leave the session dirty")
	}
	if _, ok := s.PostID(); ok {
		t.Error("failed autosave must not bind the session")
	}

	repo.setErr(nil)
	ticks <- time.Now()
	<-attempts
	sc.Stop()

	if _, ok := s.PostID(); !ok {
		t.Error("expected a later tick to save successfully")
	}
	if s.Dirty() {
		t.Error("expected session to be clean after the retry")
	}
	if got := strings.Count(logs.String(), "autosave failed"); got != 2 {
		t.Errorf("expected 2 logged failures, got %d:\n%s", got, logs.String())
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := newTestSession(t)
	sc, _, _ := newTestScheduler(t)
	noop := func(context.Context) error { return nil }

	if sc.Running() {
		t.Error("new scheduler should not be running")
	}
	if err := sc.Start(context.Background(), s, noop); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := sc.Start(context.Background(), s, noop); !errors.Is(err, ErrSchedulerRunning) {
		t.Errorf("expected ErrSchedulerRunning, got %v", err)
	}
	if !sc.Running() {
		t.Error("expected scheduler to be running")
	}

	sc.Stop()
	sc.Stop()
	if sc.Running() {
		t.Error("expected scheduler to be stopped")
	}

	if err := sc.Start(context.Background(), s, noop); err != nil {
		t.Errorf("restart after Stop() error: %v", err)
	}
}

func TestScheduler_StopsWithContext(t *testing.T) {
	s := newTestSession(t)
	sc := NewScheduler(time.Millisecond, log.New(&bytes.Buffer{}, "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	if err := sc.Start(ctx, s, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	cancel()
	done := make(chan struct{})
	go func() {
		sc.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() did not return after the context was cancelled")
	}
}

func TestScheduler_RealTicker(t *testing.T) {
	repo := newFakeRepo()
	wf := NewWorkflow(repo)
	s := newTestSession(t)
	sc := NewScheduler(5*time.Millisecond, log.New(&bytes.Buffer{}, "", 0))
	defer sc.Stop()

	s.SetTitle("Ticking")
	if err := sc.Start(context.Background(), s, wf.AutosaveFunc(s)); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := s.PostID(); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected the ticker to autosave within 2s")
}
