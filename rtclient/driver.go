// Package rtclient implements the Container Driver (C3): a thin
// orchestrator over the local container runtime's HTTP API
// (github.com/docker/docker/client), grounded in moby/moby's own client
// package -- the teacher-adjacent example repo whose client directory
// defines exactly this surface (ContainerCreate/Start/Inspect/Remove,
// Events).
package rtclient

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/sirupsen/logrus"

	"github.com/nestybox/beacon/beaconerr"
	"github.com/nestybox/beacon/nskey"
	"github.com/nestybox/beacon/nsresolve"
	"github.com/nestybox/beacon/rtevents"
)

// RuntimeClient is the subset of *client.Client the Container Driver
// depends on. Defining it as an interface keeps rtclient mockable without
// a live daemon, matching the teacher's Setup()-with-interfaces
// convention (domain.ContainerStateServiceIface et al.).
type RuntimeClient interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options types.ContainerStartOptions) error
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerRemove(ctx context.Context, containerID string, options types.ContainerRemoveOptions) error
}

// state is the C3 state machine: Created -> Running -> Removed.
type state int32

const (
	stateCreated state = iota
	stateRunning
	stateRemoved
)

// DefaultReadyTimeout is the bounded wait for the "started" signal (spec
// 4.3 pid()/namespace()).
const DefaultReadyTimeout = 5 * time.Second

// Driver is one container's lifecycle handle (C3).
type Driver struct {
	client RuntimeClient
	demux  *rtevents.Demultiplexer

	image string
	id    string

	st state32

	ready chan struct{}

	pid      uint32
	ns       nskey.Key
	nsFailed bool
}

// state32 wraps atomic.Int32 so Driver's zero value is usable without an
// explicit constructor call for the state field alone (the rest of Driver
// still requires New, since client/demux must be set).
type state32 struct{ v atomic.Int32 }

func (s *state32) load() state    { return state(s.v.Load()) }
func (s *state32) store(st state) { s.v.Store(int32(st)) }

// New creates a container via the runtime's HTTP API (spec 4.3 create())
// and registers interest in its "started" event with the demultiplexer
// (C4). It does not start the container.
func New(ctx context.Context, client RuntimeClient, demux *rtevents.Demultiplexer, image string, spec ContainerSpec) (*Driver, error) {
	cfg := &container.Config{
		Image:      image,
		Cmd:        spec.Command,
		WorkingDir: spec.Workdir,
	}
	for k, v := range spec.Env {
		cfg.Env = append(cfg.Env, fmt.Sprintf("%s=%s", k, v))
	}

	hostCfg := &container.HostConfig{}
	for hostPath, containerPath := range spec.Volumes {
		hostCfg.Binds = append(hostCfg.Binds, fmt.Sprintf("%s:%s", hostPath, containerPath))
	}

	if len(spec.Ports) > 0 {
		cfg.ExposedPorts = make(nat.PortSet, len(spec.Ports))
		hostCfg.PortBindings = make(nat.PortMap, len(spec.Ports))
		for containerPort, hostPort := range spec.Ports {
			proto, rawPort := nat.SplitProtoPort(containerPort)
			port, err := nat.NewPort(proto, rawPort)
			if err != nil {
				return nil, fmt.Errorf("%w: port %q: %v", beaconerr.ErrInvalidContainerSpec, containerPort, err)
			}
			cfg.ExposedPorts[port] = struct{}{}
			hostCfg.PortBindings[port] = []nat.PortBinding{{HostPort: hostPort}}
		}
	}

	resp, err := client.ContainerCreate(ctx, cfg, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return nil, fmt.Errorf("%w: container create: %v", beaconerr.ErrRuntimeUnavailable, err)
	}

	d := &Driver{
		client: client,
		demux:  demux,
		image:  image,
		id:     resp.ID,
		ready:  make(chan struct{}),
	}

	logrus.Infof("[rtclient] created container image=%s id=%s", image, d.id)
	demux.SubscribeStarted(d.id, func() { d.onStarted(context.Background()) })

	return d, nil
}

// ID returns the runtime-assigned container id.
func (d *Driver) ID() string { return d.id }

// Start asks the runtime to execute the container. Readiness (PID,
// namespace) is observed asynchronously via the demultiplexer callback.
func (d *Driver) Start(ctx context.Context) error {
	if err := d.client.ContainerStart(ctx, d.id, types.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("%w: container start: %v", beaconerr.ErrRuntimeUnavailable, err)
	}
	d.st.store(stateRunning)
	logrus.Infof("[rtclient] started container id=%s", d.id)
	return nil
}

// Alive reports whether the container's current state is "running".
func (d *Driver) Alive(ctx context.Context) (bool, error) {
	info, err := d.client.ContainerInspect(ctx, d.id)
	if err != nil {
		return false, fmt.Errorf("%w: container inspect: %v", beaconerr.ErrRuntimeUnavailable, err)
	}
	return info.State != nil && info.State.Running, nil
}

// onStarted is the demultiplexer callback: it inspects the container for
// its PID, resolves the namespace key, and latches readiness.
func (d *Driver) onStarted(ctx context.Context) {
	info, err := d.client.ContainerInspect(ctx, d.id)
	if err != nil || info.State == nil || info.State.Pid == 0 {
		logrus.Warnf("[rtclient] container %s started but PID unavailable: %v", d.id, err)
		close(d.ready)
		return
	}

	pid := uint32(info.State.Pid)
	ns, err := nsresolve.Resolve(ctx, int(pid))
	if err != nil || ns == (nskey.Key{}) {
		logrus.Warnf("[rtclient] namespace resolution failed for pid=%d: %v", pid, err)
		d.nsFailed = true
	}

	d.pid = pid
	d.ns = ns
	close(d.ready)
}

// PID blocks up to DefaultReadyTimeout waiting for the "started" signal,
// then returns the reported PID. Returns 0 on timeout or if the container
// never started (spec 4.3 pid()).
func (d *Driver) PID(ctx context.Context) uint32 {
	waitCtx, cancel := context.WithTimeout(ctx, DefaultReadyTimeout)
	defer cancel()

	select {
	case <-d.ready:
		return d.pid
	case <-waitCtx.Done():
		return 0
	}
}

// Namespace applies the same readiness discipline as PID, returning the
// NamespaceKey resolved from that PID (spec 4.3 namespace()). It reports
// false both when the PID was never observed and when resolution itself
// failed (container.py:148 returns None for the same "ns is None" case) --
// the zero Key is never handed out as if it were a real resolution.
func (d *Driver) Namespace(ctx context.Context) (nskey.Key, bool) {
	waitCtx, cancel := context.WithTimeout(ctx, DefaultReadyTimeout)
	defer cancel()

	select {
	case <-d.ready:
		if d.pid == 0 || d.nsFailed {
			return nskey.Key{}, false
		}
		return d.ns, true
	case <-waitCtx.Done():
		return nskey.Key{}, false
	}
}

// Remove force-deletes the container. Idempotent: removing an
// already-removed container is a no-op.
func (d *Driver) Remove(ctx context.Context) error {
	if d.st.load() == stateRemoved {
		return nil
	}
	d.demux.Unsubscribe(d.id)

	err := d.client.ContainerRemove(ctx, d.id, types.ContainerRemoveOptions{Force: true})
	d.st.store(stateRemoved)
	if err != nil {
		return fmt.Errorf("%w: container remove: %v", beaconerr.ErrRuntimeUnavailable, err)
	}
	return nil
}
