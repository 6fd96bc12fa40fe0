package capname

import "testing"

func TestName_KnownCapability(t *testing.T) {
	// CAP_CHOWN is bit 0 on every kernel version gocapability supports.
	if got := Name(0); got != "cap_chown" {
		t.Fatalf("Name(0) = %q, want cap_chown", got)
	}
}

func TestName_OutOfRangeFallsBackToNumeric(t *testing.T) {
	if got := Name(10000); got != "cap_10000" {
		t.Fatalf("Name(10000) = %q, want cap_10000", got)
	}
}

func TestNames_PreservesOrder(t *testing.T) {
	got := Names([]int{0, 10000})
	if len(got) != 2 || got[0] != "cap_chown" || got[1] != "cap_10000" {
		t.Fatalf("unexpected Names() result: %v", got)
	}
}
