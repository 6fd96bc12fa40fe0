// Package probe implements the Kernel Probe Program (C1): it loads a
// compiled eBPF object attaching to syscall-enter, capability-check, and
// seccomp-mode hooks, and exposes the resulting per-(namespace, CPU)
// bitmap map to user space.
//
// The original BEACON is written against BCC (Python); Go has no BCC
// binding, so this is the idiomatic Go equivalent: github.com/cilium/ebpf,
// already an indirect dependency of the teacher's own go.mod (pulled in
// transitively via its runc toolchain), promoted here to the direct,
// load-bearing dependency it deserves to be for this exact job.
//
// Grounded on original_source/core/BPF.py's RobustBPF.cleanup(), which
// enumerates every kprobe/uprobe/tracepoint/raw-tracepoint/perf-event file
// descriptor and detaches each one individually before destroying the
// module -- the same discipline this package's Cleanup implements with
// cilium/ebpf's link.Link values instead of BCC's fd tables.
package probe

import (
	"fmt"
	"os"
	"sync"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/sirupsen/logrus"

	"github.com/nestybox/beacon/beaconerr"
	"github.com/nestybox/beacon/nskey"
)

// objectPath is the default location of the compiled BPF object. It is
// produced out of band by a C toolchain (clang + libbpf), a build step
// this repository does not perform -- BEACON ships the loader, not a BPF
// compiler.
const objectPath = "bpf/beacon.bpf.o"

// eventMapName is the shared map name: NamespaceKey -> per-CPU EventBitmap.
const eventMapName = "event"

// Probe is the C1 handle: one loaded program plus its live attachments.
type Probe struct {
	coll  *ebpf.Collection
	links []link.Link

	eventMap *ebpf.Map

	cleanupOnce sync.Once
}

// Load compiles nothing (the object is pre-built); it opens objectPath,
// loads the collection, and attaches every hook the spec names. Load
// fails fast with beaconerr.ErrProbeLoadFailed on any kernel refusal.
func Load() (*Probe, error) {
	f, err := os.Open(objectPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", beaconerr.ErrProbeLoadFailed, objectPath, err)
	}
	defer f.Close()

	spec, err := ebpf.LoadCollectionSpecFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: parse collection spec: %v", beaconerr.ErrProbeLoadFailed, err)
	}

	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: load collection: %v", beaconerr.ErrProbeLoadFailed, err)
	}

	p := &Probe{coll: coll}

	eventMap, ok := coll.Maps[eventMapName]
	if !ok {
		p.Cleanup()
		return nil, fmt.Errorf("%w: missing map %q", beaconerr.ErrProbeLoadFailed, eventMapName)
	}
	p.eventMap = eventMap

	if err := p.attach(); err != nil {
		p.Cleanup()
		return nil, fmt.Errorf("%w: %v", beaconerr.ErrProbeLoadFailed, err)
	}

	return p, nil
}

// attach wires the three hooks spec 4.1 names. Each successful attachment
// is recorded in p.links individually so Cleanup can detach them one at a
// time regardless of which subset succeeded.
func (p *Probe) attach() error {
	type attachment struct {
		name string
		fn   func() (link.Link, error)
	}

	attachments := []attachment{
		{
			name: "sys_enter",
			fn: func() (link.Link, error) {
				prog, ok := p.coll.Programs["trace_sys_enter"]
				if !ok {
					return nil, fmt.Errorf("program trace_sys_enter not found")
				}
				return link.AttachRawTracepoint(link.RawTracepointOptions{
					Name:    "sys_enter",
					Program: prog,
				})
			},
		},
		{
			name: "cap_capable",
			fn: func() (link.Link, error) {
				prog, ok := p.coll.Programs["kprobe_cap_capable"]
				if !ok {
					return nil, fmt.Errorf("program kprobe_cap_capable not found")
				}
				return link.Kprobe("cap_capable", prog, nil)
			},
		},
		{
			name: "seccomp_mode",
			fn: func() (link.Link, error) {
				prog, ok := p.coll.Programs["kprobe_seccomp_mode"]
				if !ok {
					return nil, fmt.Errorf("program kprobe_seccomp_mode not found")
				}
				return link.Kprobe("__seccomp_filter", prog, nil)
			},
		},
	}

	for _, a := range attachments {
		l, err := a.fn()
		if err != nil {
			return fmt.Errorf("attach %s: %w", a.name, err)
		}
		p.links = append(p.links, l)
	}
	return nil
}

// Read returns the per-CPU vector of EventBitmap for one key. cilium/ebpf
// decodes each CPU's raw map value straight into an nskey.EventBitmap,
// whose field order mirrors the kernel-side C struct; this package does no
// decoding of its own.
func (p *Probe) Read(key nskey.Key) ([]nskey.EventBitmap, error) {
	rawKey := toRawKey(key)

	var perCPUValues []nskey.EventBitmap
	if err := p.eventMap.Lookup(&rawKey, &perCPUValues); err != nil {
		return nil, fmt.Errorf("probe: read map: %w", err)
	}
	return perCPUValues, nil
}

// Iterate yields (key, per-CPU vector) for every key currently present in
// the map. yield returning false stops iteration early.
func (p *Probe) Iterate(yield func(nskey.Key, []nskey.EventBitmap) bool) error {
	var rawKey rawNamespaceKey
	var perCPUValues []nskey.EventBitmap

	it := p.eventMap.Iterate()
	for it.Next(&rawKey, &perCPUValues) {
		if !yield(fromRawKey(rawKey), perCPUValues) {
			break
		}
	}
	return it.Err()
}

// Cleanup detaches every probe/tracepoint/kprobe and releases the loaded
// collection. Safe to call exactly once; subsequent calls are no-ops
// (testable property: idempotence of cleanup).
func (p *Probe) Cleanup() {
	p.cleanupOnce.Do(func() {
		for _, l := range p.links {
			if err := l.Close(); err != nil {
				logrus.Warnf("[probe] failed to detach link: %v", err)
			}
		}
		p.links = nil

		if p.coll != nil {
			p.coll.Close()
			p.coll = nil
		}
	})
}

// rawNamespaceKey mirrors the kernel-side C struct ns_key_t field order;
// nskey.Key itself is the stable public type, decoupled from that layout.
type rawNamespaceKey struct {
	Cgroup uint64
	User   uint64
	Uts    uint64
	Ipc    uint64
	Mnt    uint64
	Pid    uint64
	Net    uint64
}

func toRawKey(k nskey.Key) rawNamespaceKey {
	return rawNamespaceKey{
		Cgroup: k.Cgroup, User: k.User, Uts: k.Uts,
		Ipc: k.Ipc, Mnt: k.Mnt, Pid: k.Pid, Net: k.Net,
	}
}

func fromRawKey(r rawNamespaceKey) nskey.Key {
	return nskey.Key{
		Cgroup: r.Cgroup, User: r.User, Uts: r.Uts,
		Ipc: r.Ipc, Mnt: r.Mnt, Pid: r.Pid, Net: r.Net,
	}
}
