// Package beaconerr defines BEACON's error taxonomy as sentinel errors,
// wrapped at each call site with fmt.Errorf("...: %w", ...) and compared
// with errors.Is. This is the stdlib-native continuation of the wrapping
// idiom the teacher repo uses elsewhere in its newer code paths.
package beaconerr

import "errors"

var (
	// ErrPermissionDenied means the process is not running as EUID 0;
	// fatal at entry.
	ErrPermissionDenied = errors.New("beacon: permission denied (requires root)")

	// ErrRuntimeUnavailable means the container runtime's HTTP API could
	// not be reached; fatal per session.
	ErrRuntimeUnavailable = errors.New("beacon: container runtime unavailable")

	// ErrContainerDead means the container exited before or during
	// sampling; the session recovers by publishing a nil snapshot.
	ErrContainerDead = errors.New("beacon: container is not alive")

	// ErrProbeLoadFailed means the kernel refused to load the probe
	// program; fatal per session.
	ErrProbeLoadFailed = errors.New("beacon: kernel probe load failed")

	// ErrIllegalState means the Session API was used out of order; a
	// programmer error, unrecoverable.
	ErrIllegalState = errors.New("beacon: illegal state transition")

	// ErrTimeout means the namespace/PID was not observable within the
	// bounded readiness window; callers degrade this to ErrContainerDead.
	ErrTimeout = errors.New("beacon: timed out waiting for container readiness")

	// ErrIncompleteNamespace means the `lsns` output was missing one of
	// the seven recognized namespace types.
	ErrIncompleteNamespace = errors.New("beacon: incomplete namespace information")

	// ErrResultNotFound means no stored Snapshot exists yet for a given
	// catalogue key.
	ErrResultNotFound = errors.New("beacon: no result on disk for key")

	// ErrInvalidContainerSpec means a ContainerSpec option could not be
	// applied to a container-creation request (e.g. an unparseable port).
	ErrInvalidContainerSpec = errors.New("beacon: invalid container spec option")
)
