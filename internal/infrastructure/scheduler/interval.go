package scheduler

import (
	"context"
	"sync"
	"time"

	"PopWatcher/internal/ports"
)

// State is the scheduler lifecycle phase.
type State string

const (
	StateIdle         State = "idle"
	StateRunning      State = "running"
	StateShuttingDown State = "shutting_down"
)

// IntervalScheduler drives recurring cycles on a fixed interval. The timer
// rearms only after a cycle fully completes, so cycles never overlap. A stop
// observed while idle ends the loop immediately; a stop observed while a
// cycle runs lets that cycle return before the loop ends.
type IntervalScheduler struct {
	interval time.Duration

	mu      sync.Mutex
	state   State
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

var _ ports.Scheduler = (*IntervalScheduler)(nil)

// New builds a scheduler with the given interval between cycle completions.
func New(interval time.Duration) *IntervalScheduler {
	return &IntervalScheduler{
		interval: interval,
		state:    StateIdle,
	}
}

// State reports the current lifecycle phase.
func (s *IntervalScheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *IntervalScheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Start runs the job immediately, then on every interval tick. It returns
// right away; the loop runs until Stop is called or ctx is cancelled.
func (s *IntervalScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return nil
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stop, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer s.setState(StateShuttingDown)

		s.runOnce(job, time.Now(), stop)

		for {
			// Fresh timer per iteration: the interval counts from cycle
			// completion, not from cycle start.
			timer := time.NewTimer(s.interval)
			select {
			case t := <-timer.C:
				s.runOnce(job, t, stop)
			case <-ctx.Done():
				timer.Stop()
				return
			case <-stop:
				timer.Stop()
				return
			}
		}
	}()

	return nil
}

func (s *IntervalScheduler) runOnce(job func(time.Time), t time.Time, stop <-chan struct{}) {
	s.setState(StateRunning)
	job(t)

	select {
	case <-stop:
		// leave state to the deferred transition
	default:
		s.setState(StateIdle)
	}
}

// Stop requests shutdown and waits for an in-flight cycle to finish, bounded
// by ctx.
func (s *IntervalScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	if stop == nil {
		s.state = StateShuttingDown
		s.mu.Unlock()
		return nil
	}
	if !s.stopped {
		s.stopped = true
		close(stop)
	}
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
