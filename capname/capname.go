// Package capname maps the capability bit numbers nskey.Snapshot carries
// into the human-readable names batch mode's console summary prints.
//
// The teacher repo vendors its own process/capability package, itself
// forked from (and crediting, in its license header) Docker's
// syndtr/gocapability -- this package goes back to that real upstream
// directly rather than carrying the teacher's noop fork forward.
package capname

import (
	"fmt"

	"github.com/syndtr/gocapability/capability"
)

// Name returns the canonical name for Linux capability bit n (e.g. 12 ->
// "cap_net_admin"), or a synthetic "cap_<n>" placeholder if the kernel
// added a bit gocapability does not know about yet.
func Name(n int) string {
	cap := capability.Cap(n)
	if name := cap.String(); name != "unknown" {
		return "cap_" + name
	}
	return fmt.Sprintf("cap_%d", n)
}

// Names maps every bit in bits to its name, preserving order.
func Names(bits []int) []string {
	out := make([]string, len(bits))
	for i, b := range bits {
		out[i] = Name(b)
	}
	return out
}
