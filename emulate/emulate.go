// Package emulate defines the Workload Emulation Agent (C10): the
// producer of successive ContainerSpec variations a long-running batch
// session would feed to rtclient in order to exercise a container's
// behavior beyond its default startup arguments.
//
// Grounded on original_source/emulating/agent.py's KwargsGenerator, whose
// own _mutate_once is `pass` -- an unfinished method, not a stand-in the
// original author forgot to fill in only by accident; the surrounding
// constructor already prints a fallback warning when an image has no
// base args, and the class exists to be iterated over a still-undecided
// mutation policy. Spec 9's matching Open Question declines to invent
// that policy rather than guess at it, so this package carries forward
// exactly the shape original_source defines (the generator interface; the
// base spec is passed in by the caller rather than looked up here) and
// stops at the same unfinished edge: Mutator
// is wired to nothing, and no SPEC_FULL.md component calls it.
package emulate

import (
	"context"

	"github.com/nestybox/beacon/rtclient"
)

// Mutator produces a stream of ContainerSpec variations derived from a
// base spec. Implementations decide what "mutation" means; this package
// defines only the shape a future implementation would satisfy.
type Mutator interface {
	// Mutations streams ContainerSpec variations until ctx is done or the
	// generator has nothing further to offer. Implementations MUST close
	// the returned channel when they stop producing.
	Mutations(ctx context.Context, base rtclient.ContainerSpec) <-chan rtclient.ContainerSpec
}

// IdentityMutator is the only Mutator this package implements: it emits
// the base spec unchanged, once, and then closes. It exists so that
// callers depending on the Mutator interface have something concrete to
// run before a real mutation policy is designed.
//
// TODO(mutation policy): original_source/emulating/agent.py's
// _mutate_once is itself an empty method; no mutation policy has been
// decided upstream of this port, so none is implemented here either.
type IdentityMutator struct{}

// Mutations returns a one-item, pre-closed channel carrying base
// unchanged.
func (IdentityMutator) Mutations(ctx context.Context, base rtclient.ContainerSpec) <-chan rtclient.ContainerSpec {
	out := make(chan rtclient.ContainerSpec, 1)
	out <- base
	close(out)
	return out
}
