// Package session implements the Sampling Coordinator (C5): a per-run
// object that owns one kernel Probe, waits for a container to be bound,
// sleeps for the sampling window, then reads the probe's map, aggregates
// across CPUs, and publishes the resulting Snapshot.
//
// Grounded on original_source/monitoring/agent.py's Monitoring (worker
// thread) + MonitoringAgent (state-machine wrapper around it), translated
// from Python queues/threads to Go channels/goroutines -- the teacher
// repo's own convention for this kind of handoff (state/container.go's
// Event latch, demux callbacks) is channel- and mutex-based rather than
// thread-and-queue-based, so that is the idiom followed here.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nestybox/beacon/beaconerr"
	"github.com/nestybox/beacon/nskey"
	"github.com/nestybox/beacon/probe"
)

// state is the Session state machine: Ready -> Running -> Bound -> Done.
type state int

const (
	stateReady state = iota
	stateRunning
	stateBound
	stateDone
)

// BoundContainer is the minimal view of a container a Session needs: its
// liveness, and how to resolve its namespace identity once bound.
type BoundContainer interface {
	Alive(ctx context.Context) (bool, error)
	Namespace(ctx context.Context) (nskey.Key, bool)
}

// ProbeLoader abstracts probe.Load for testability.
type ProbeLoader func() (ProbeReader, error)

// ProbeReader is the subset of *probe.Probe the Session depends on.
type ProbeReader interface {
	Read(key nskey.Key) ([]nskey.EventBitmap, error)
	Cleanup()
}

// DefaultProbeLoader adapts probe.Load to ProbeLoader.
func DefaultProbeLoader() (ProbeReader, error) {
	return probe.Load()
}

// Session is a single-use coordination object (spec 3 Session, spec 4.5).
// Once it has produced a Snapshot it is discarded; a new sampling run
// requires a new Session.
type Session struct {
	mu    sync.Mutex
	st    state
	dur   time.Duration
	prLoad ProbeLoader

	containerCh chan BoundContainer
	resultCh    chan *nskey.Snapshot

	pr ProbeReader
}

// New allocates mailboxes for a Session with the given sampling duration.
// The Probe is not loaded until Start.
func New(duration time.Duration) *Session {
	return NewWithLoader(duration, DefaultProbeLoader)
}

// NewWithLoader is New with an injectable probe loader, for tests.
func NewWithLoader(duration time.Duration, loader ProbeLoader) *Session {
	return &Session{
		dur:         duration,
		prLoad:      loader,
		containerCh: make(chan BoundContainer, 1),
		resultCh:    make(chan *nskey.Snapshot, 1),
	}
}

// Start loads the Probe, marks the session Running, and launches the
// sampling worker. Calling Start twice is ErrIllegalState (spec 4.5).
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.st != stateReady {
		s.mu.Unlock()
		return fmt.Errorf("%w: Start called in state %d", beaconerr.ErrIllegalState, s.st)
	}
	s.st = stateRunning
	s.mu.Unlock()

	pr, err := s.prLoad()
	if err != nil {
		return err
	}
	s.pr = pr

	go s.run(ctx)
	return nil
}

// Notify binds the session to a specific container. Calling before Start
// is ErrIllegalState (spec 4.5).
func (s *Session) Notify(container BoundContainer) error {
	s.mu.Lock()
	if s.st != stateRunning {
		s.mu.Unlock()
		return fmt.Errorf("%w: Notify called in state %d", beaconerr.ErrIllegalState, s.st)
	}
	s.st = stateBound
	s.mu.Unlock()

	s.containerCh <- container
	return nil
}

// GetResult blocks on the output mailbox and returns the Snapshot (nil if
// the container never produced data). Calling before Notify is
// ErrIllegalState. The Probe is torn down here on every exit path.
func (s *Session) GetResult() (*nskey.Snapshot, error) {
	s.mu.Lock()
	st := s.st
	s.mu.Unlock()

	if st != stateBound {
		if s.pr != nil {
			s.pr.Cleanup()
		}
		return nil, fmt.Errorf("%w: GetResult called in state %d", beaconerr.ErrIllegalState, st)
	}

	snap := <-s.resultCh

	s.mu.Lock()
	s.st = stateDone
	s.mu.Unlock()

	if s.pr != nil {
		s.pr.Cleanup()
	}

	return snap, nil
}

// run is the worker protocol (spec 4.5 steps 1-8): sleep for the window,
// dequeue the bound container, check liveness, resolve its namespace,
// read and OR-reduce the probe's per-CPU vector, expand to a Snapshot,
// and publish it.
func (s *Session) run(ctx context.Context) {
	timer := time.NewTimer(s.dur)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}

	container := <-s.containerCh

	alive, err := container.Alive(ctx)
	if err != nil {
		logrus.Warnf("[session] liveness check failed: %v", err)
	}
	if !alive {
		s.resultCh <- nil
		return
	}

	key, ok := container.Namespace(ctx)
	if !ok {
		logrus.Errorf("[session] %v", beaconerr.ErrContainerDead)
		s.resultCh <- nil
		return
	}

	perCPU, err := s.pr.Read(key)
	if err != nil {
		logrus.Warnf("[session] probe read failed for %s: %v", key, err)
		s.resultCh <- nil
		return
	}

	agg := nskey.Reduce(perCPU)
	snap := nskey.Expand(agg)
	s.resultCh <- &snap
}
