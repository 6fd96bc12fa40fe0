// Package rtevents implements the Runtime Event Demultiplexer (C4): a
// process-singleton background actor that subscribes once to the
// container runtime's event stream and fans out per-container-id
// "started" notifications to registered one-shot listeners.
//
// Grounded on original_source/core/container.py's DockerEventLoop
// (a daemon thread reading client.events(decode=True) and dispatching to
// a mutex-guarded subscriber dict), generalized to the Go docker client's
// channel-based Events API and the teacher's own convention of a
// mutex-guarded map plus a Setup()-style service constructor
// (state/containerDB.go).
package rtevents

import (
	"context"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/sirupsen/logrus"
)

// EventsSource is the subset of the docker client this package depends on.
// Satisfied structurally by *client.Client.
type EventsSource interface {
	Events(ctx context.Context, options types.EventsOptions) (<-chan events.Message, <-chan error)
}

// Demultiplexer is the C4 contract: one process-wide subscription fanned
// out to per-container-id one-shot callbacks.
type Demultiplexer struct {
	mu          sync.Mutex
	subscribers map[string]func()
	started     bool
}

// New constructs a Demultiplexer. It does not start the background loop;
// call Start once, at process init, with the client whose event stream it
// should consume.
func New() *Demultiplexer {
	return &Demultiplexer{
		subscribers: make(map[string]func()),
	}
}

// Start launches the background loop exactly once; subsequent calls are
// no-ops. The loop runs until ctx is canceled or the event stream's error
// channel closes.
func (d *Demultiplexer) Start(ctx context.Context, src EventsSource) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()

	filterArgs := filters.NewArgs(
		filters.Arg("type", string(events.ContainerEventType)),
		filters.Arg("event", "start"),
	)
	msgCh, errCh := src.Events(ctx, types.EventsOptions{Filters: filterArgs})

	go d.run(ctx, msgCh, errCh)
}

func (d *Demultiplexer) run(ctx context.Context, msgCh <-chan events.Message, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return

		case err, ok := <-errCh:
			if !ok {
				return
			}
			if err != nil {
				logrus.Warnf("[rtevents] event stream error: %v", err)
			}

		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			d.dispatch(msg)
		}
	}
}

func (d *Demultiplexer) dispatch(msg events.Message) {
	if msg.Type != events.ContainerEventType || msg.Action != "start" {
		return
	}

	cid := msg.Actor.ID
	if cid == "" {
		return
	}

	d.mu.Lock()
	cb, ok := d.subscribers[cid]
	if ok {
		delete(d.subscribers, cid)
	}
	d.mu.Unlock()

	// Callbacks are invoked outside the lock (spec 4.4, 9): a slow or
	// blocking callback must never stall delivery of the next event.
	if ok {
		cb()
	}
}

// SubscribeStarted registers a one-shot callback invoked on the first
// "start" event matching containerID. Events without a subscriber are
// dropped (spec 4.4).
func (d *Demultiplexer) SubscribeStarted(containerID string, callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers[containerID] = callback
}

// Unsubscribe removes a pending subscription, e.g. when a container is
// removed before it ever reported "start".
func (d *Demultiplexer) Unsubscribe(containerID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.subscribers, containerID)
}
