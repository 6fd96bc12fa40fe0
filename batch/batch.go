// Package batch implements the Batch Driver (C9): it walks a Catalogue,
// skips any entry the Result Store already has, and drives one Session
// per remaining entry end to end.
//
// Grounded directly on original_source/baseline.py's top-level loop:
// build `done` from the result directory, iterate container_args,
// `continue` on anything already done, then per entry create the
// container, start a 60s MonitoringAgent, notify it, block on
// get_result_monitoring(), clean up the container, and write the result
// (or print "No data: <k>" for a nil result). This package is that same
// loop, generalized from a hardcoded 60-second window to the caller-
// supplied duration and the teacher's own RuntimeClient abstraction
// instead of a bare docker CLI wrapper.
package batch

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nestybox/beacon/capname"
	"github.com/nestybox/beacon/catalogue"
	"github.com/nestybox/beacon/nskey"
	"github.com/nestybox/beacon/resultstore"
	"github.com/nestybox/beacon/rtclient"
	"github.com/nestybox/beacon/rtevents"
	"github.com/nestybox/beacon/session"
)

// Container is the subset of *rtclient.Driver the batch driver depends on.
type Container interface {
	session.BoundContainer
	Start(ctx context.Context) error
	Remove(ctx context.Context) error
}

// Driver runs one catalogue's remaining entries against a live runtime.
type Driver struct {
	Catalogue *catalogue.Catalogue
	Store     *resultstore.Store
	Client    rtclient.RuntimeClient
	Demux     *rtevents.Demultiplexer
	Duration  time.Duration

	// NewSession and NewContainer default to the real session/rtclient
	// constructors; tests override them with fakes.
	NewSession   func(duration time.Duration) batchSession
	NewContainer func(ctx context.Context, client rtclient.RuntimeClient, demux *rtevents.Demultiplexer, image string, spec rtclient.ContainerSpec) (Container, error)
}

// batchSession is the minimal Session surface the driver loop uses.
type batchSession interface {
	Start(ctx context.Context) error
	Notify(container session.BoundContainer) error
	GetResult() (*nskey.Snapshot, error)
}

func defaultNewSession(duration time.Duration) batchSession {
	return session.New(duration)
}

func defaultNewContainer(ctx context.Context, client rtclient.RuntimeClient, demux *rtevents.Demultiplexer, image string, spec rtclient.ContainerSpec) (Container, error) {
	return rtclient.New(ctx, client, demux, image, spec)
}

// New builds a Driver wired to the real session and rtclient constructors.
func New(cat *catalogue.Catalogue, store *resultstore.Store, client rtclient.RuntimeClient, demux *rtevents.Demultiplexer, duration time.Duration) *Driver {
	return &Driver{
		Catalogue:    cat,
		Store:        store,
		Client:       client,
		Demux:        demux,
		Duration:     duration,
		NewSession:   defaultNewSession,
		NewContainer: defaultNewContainer,
	}
}

// Run walks every catalogue key, skipping ones the store already has,
// and samples the rest in order (spec 4.9).
func (d *Driver) Run(ctx context.Context) error {
	for _, key := range d.Catalogue.Keys() {
		if d.Store.Has(key) {
			logrus.Infof("[batch] skipping %s: result already on disk", key)
			continue
		}

		spec, ok := d.Catalogue.Spec(key)
		if !ok {
			continue
		}

		if err := d.runOne(ctx, key, spec); err != nil {
			logrus.Errorf("[batch] %s: %v", key, err)
		}
	}
	return nil
}

func (d *Driver) runOne(ctx context.Context, key string, spec rtclient.ContainerSpec) error {
	sess := d.NewSession(d.Duration)
	if err := sess.Start(ctx); err != nil {
		return err
	}

	c, err := d.NewContainer(ctx, d.Client, d.Demux, key, spec)
	if err != nil {
		return err
	}
	defer c.Remove(ctx)

	if err := c.Start(ctx); err != nil {
		return err
	}

	if err := sess.Notify(c); err != nil {
		return err
	}

	snap, err := sess.GetResult()
	if err != nil {
		return err
	}

	if snap == nil {
		logrus.Infof("[batch] no data: %s", key)
	} else {
		logrus.Infof("[batch] %s: %d syscalls, capabilities %v", key, len(snap.Syscalls), capname.Names(snap.Capabilities))
	}
	return d.Store.Save(key, snap)
}
