// Package nskey defines the value types shared across BEACON's monitoring
// pipeline: the namespace identity that keys every observation, the raw
// per-CPU kernel accumulator, and the flattened user-space snapshot.
package nskey

import (
	"fmt"
	"sort"

	"github.com/willf/bitset"
)

// SysWords is the number of uint64 words backing the 1536-bit syscall
// bitmap (24 * 64 == 1536).
const SysWords = 24

// CapWords is the number of uint64 words backing the 128-bit capability
// bitmap (2 * 64 == 128; 64 would suffice today, doubled for headroom).
const CapWords = 2

// MaxSyscall is the first syscall number that no longer fits the bitmap.
// Numbers at or above this are dropped deterministically (see EventBitmap.SetSyscall).
const MaxSyscall = SysWords * 64

// MaxCapability is the first capability number that no longer fits the
// bitmap.
const MaxCapability = CapWords * 64

// Key is the seven-tuple Linux namespace identity that uniquely names a
// container on a given host for the lifetime of that container. It is a
// plain comparable struct, so it can be used directly as a Go map key:
// equality and hashing are structural across all seven fields for free.
type Key struct {
	Cgroup uint64
	User   uint64
	Uts    uint64
	Ipc    uint64
	Mnt    uint64
	Pid    uint64
	Net    uint64
}

func (k Key) String() string {
	return fmt.Sprintf("cgroup=%d user=%d uts=%d ipc=%d mnt=%d pid=%d net=%d",
		k.Cgroup, k.User, k.Uts, k.Ipc, k.Mnt, k.Pid, k.Net)
}

// EventBitmap is the raw per-(Key, CPU) accumulator, laid out to match the
// kernel-side C struct byte-for-byte (sys_and_cap_t): sys[24] uint64 words
// forming the syscall bitmap, cap[2] uint64 words forming the capability
// bitmap, and a seccomp latch. Bits are only ever OR'd on; within a single
// sampling session the bitmap is monotonic.
type EventBitmap struct {
	Sys         [SysWords]uint64
	Cap         [CapWords]uint64
	SeccompFlag bool
}

// Reduce OR-reduces a per-CPU vector of EventBitmaps into one, tolerating
// any CPU count >= 1. OR is commutative and associative, so callers may
// split and reduce partial sub-vectors and combine the results in any
// order without changing the outcome (testable property: per-CPU
// associativity).
func Reduce(perCPU []EventBitmap) EventBitmap {
	var agg EventBitmap
	for _, cpu := range perCPU {
		for i := 0; i < SysWords; i++ {
			agg.Sys[i] |= cpu.Sys[i]
		}
		for i := 0; i < CapWords; i++ {
			agg.Cap[i] |= cpu.Cap[i]
		}
		agg.SeccompFlag = agg.SeccompFlag || cpu.SeccompFlag
	}
	return agg
}

// SetSyscall sets bit n in the syscall bitmap. Numbers >= MaxSyscall are
// dropped deterministically and reported via ok=false rather than being
// silently discarded at read time (spec open question, resolved in favor
// of an explicit, countable drop).
func (e *EventBitmap) SetSyscall(n int) (ok bool) {
	if n < 0 || n >= MaxSyscall {
		return false
	}
	e.Sys[n/64] |= 1 << uint(n%64)
	return true
}

// SetCapability sets bit n in the capability bitmap, with the same
// deterministic-drop discipline as SetSyscall.
func (e *EventBitmap) SetCapability(n int) (ok bool) {
	if n < 0 || n >= MaxCapability {
		return false
	}
	e.Cap[n/64] |= 1 << uint(n%64)
	return true
}

// Snapshot is the immutable, user-space projection of one EventBitmap:
// sorted syscall indices, sorted capability indices, and the seccomp
// latch. Produced once per Session and never mutated thereafter.
type Snapshot struct {
	Syscalls     []int `json:"syscalls"`
	Capabilities []int `json:"capabilities"`
	SeccompFlag  bool  `json:"seccomp_flag"`
}

// Expand converts an OR-reduced EventBitmap into a Snapshot, expanding set
// bits to ascending-order indices via willf/bitset (testable property:
// bit-to-index round-trip). Using a real bitset type rather than hand
// rolled shifts also gives the OR-reduction in Reduce an equivalent,
// associative implementation via InPlaceUnion, should callers prefer to
// reduce bitset.BitSet values directly (see ExpandPerCPU).
func Expand(agg EventBitmap) Snapshot {
	sysBits := bitset.From(agg.Sys[:])
	capBits := bitset.From(agg.Cap[:])

	snap := Snapshot{
		Syscalls:     indices(sysBits),
		Capabilities: indices(capBits),
		SeccompFlag:  agg.SeccompFlag,
	}
	return snap
}

// ExpandPerCPU OR-reduces a per-CPU vector via bitset.BitSet.InPlaceUnion
// and expands the result. Equivalent to Expand(Reduce(perCPU)) but routes
// the reduction itself through the bitset library end to end.
func ExpandPerCPU(perCPU []EventBitmap) Snapshot {
	sysBits := bitset.New(uint(MaxSyscall))
	capBits := bitset.New(uint(MaxCapability))
	seccomp := false

	for _, cpu := range perCPU {
		sysBits.InPlaceUnion(bitset.From(cpu.Sys[:]))
		capBits.InPlaceUnion(bitset.From(cpu.Cap[:]))
		seccomp = seccomp || cpu.SeccompFlag
	}

	return Snapshot{
		Syscalls:     indices(sysBits),
		Capabilities: indices(capBits),
		SeccompFlag:  seccomp,
	}
}

func indices(b *bitset.BitSet) []int {
	out := make([]int, 0, b.Count())
	for i, ok := b.NextSet(0); ok; i, ok = b.NextSet(i + 1) {
		out = append(out, int(i))
	}
	sort.Ints(out)
	return out
}
