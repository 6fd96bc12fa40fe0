package nskey

import (
	"reflect"
	"testing"
)

func TestSetSyscall_BoundsChecking(t *testing.T) {
	var e EventBitmap

	if ok := e.SetSyscall(0); !ok {
		t.Fatal("expected SetSyscall(0) to succeed")
	}
	if ok := e.SetSyscall(MaxSyscall - 1); !ok {
		t.Fatal("expected SetSyscall(MaxSyscall-1) to succeed")
	}
	if ok := e.SetSyscall(MaxSyscall); ok {
		t.Fatal("expected SetSyscall(MaxSyscall) to be dropped")
	}
	if ok := e.SetSyscall(-1); ok {
		t.Fatal("expected SetSyscall(-1) to be dropped")
	}
}

func TestSetCapability_BoundsChecking(t *testing.T) {
	var e EventBitmap

	if ok := e.SetCapability(0); !ok {
		t.Fatal("expected SetCapability(0) to succeed")
	}
	if ok := e.SetCapability(MaxCapability - 1); !ok {
		t.Fatal("expected SetCapability(MaxCapability-1) to succeed")
	}
	if ok := e.SetCapability(MaxCapability); ok {
		t.Fatal("expected SetCapability(MaxCapability) to be dropped")
	}
	if ok := e.SetCapability(-1); ok {
		t.Fatal("expected SetCapability(-1) to be dropped")
	}
}

func TestExpand_BitToIndexRoundTrip(t *testing.T) {
	var e EventBitmap
	want := []int{0, 1, 63, 64, 1535}
	for _, n := range want {
		if ok := e.SetSyscall(n); !ok {
			t.Fatalf("SetSyscall(%d) unexpectedly dropped", n)
		}
	}

	snap := Expand(e)
	if !reflect.DeepEqual(snap.Syscalls, want) {
		t.Fatalf("round trip mismatch: got %v, want %v", snap.Syscalls, want)
	}
}

func TestReduce_Monotonic(t *testing.T) {
	var a, b EventBitmap
	a.SetSyscall(1)
	b.SetSyscall(1)
	b.SetSyscall(2)

	agg := Reduce([]EventBitmap{a, b})
	snap := Expand(agg)
	if !reflect.DeepEqual(snap.Syscalls, []int{1, 2}) {
		t.Fatalf("expected union {1,2}, got %v", snap.Syscalls)
	}

	// Observing strictly more per-CPU bitmaps never removes a bit already
	// seen (testable property: monotonicity).
	var c EventBitmap
	c.SetSyscall(3)
	agg2 := Reduce([]EventBitmap{a, b, c})
	snap2 := Expand(agg2)
	for _, n := range snap.Syscalls {
		found := false
		for _, m := range snap2.Syscalls {
			if m == n {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("bit %d present in smaller reduction but missing after adding more CPUs", n)
		}
	}
}

func TestReduce_Associative(t *testing.T) {
	var a, b, c EventBitmap
	a.SetSyscall(10)
	b.SetCapability(5)
	c.SetSyscall(20)
	c.SeccompFlag = true

	whole := Reduce([]EventBitmap{a, b, c})

	left := Reduce([]EventBitmap{a, b})
	combined := Reduce([]EventBitmap{left, c})

	if !reflect.DeepEqual(Expand(whole), Expand(combined)) {
		t.Fatalf("reduction is not associative: whole=%+v combined=%+v", Expand(whole), Expand(combined))
	}
}

func TestReduce_EmptyVector(t *testing.T) {
	agg := Reduce(nil)
	snap := Expand(agg)
	if len(snap.Syscalls) != 0 || len(snap.Capabilities) != 0 || snap.SeccompFlag {
		t.Fatalf("expected zero-value snapshot from empty reduction, got %+v", snap)
	}
}

func TestExpandPerCPU_MatchesExpandReduce(t *testing.T) {
	var a, b EventBitmap
	a.SetSyscall(7)
	a.SetCapability(1)
	b.SetSyscall(9)
	b.SeccompFlag = true

	perCPU := []EventBitmap{a, b}

	want := Expand(Reduce(perCPU))
	got := ExpandPerCPU(perCPU)

	if !reflect.DeepEqual(want, got) {
		t.Fatalf("ExpandPerCPU diverged from Expand(Reduce(...)): got %+v, want %+v", got, want)
	}
}

func TestKey_ComparableAsMapKey(t *testing.T) {
	k1 := Key{Cgroup: 1, User: 2, Uts: 3, Ipc: 4, Mnt: 5, Pid: 6, Net: 7}
	k2 := Key{Cgroup: 1, User: 2, Uts: 3, Ipc: 4, Mnt: 5, Pid: 6, Net: 7}
	k3 := Key{Cgroup: 1, User: 2, Uts: 3, Ipc: 4, Mnt: 5, Pid: 6, Net: 8}

	m := map[Key]int{k1: 42}
	if v, ok := m[k2]; !ok || v != 42 {
		t.Fatalf("expected structurally-equal Key to hit the same map entry")
	}
	if _, ok := m[k3]; ok {
		t.Fatalf("expected differing Key to miss the map entry")
	}
}
