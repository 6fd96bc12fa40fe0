// Package compare computes the confusion matrix between BEACON's dynamic
// syscall observations and an externally supplied expected set (e.g. an
// LLM-predicted profile), one Row per catalogue entry.
//
// Grounded on original_source/data_comparison.py, which joins a fixed
// syscall name table against an LLM-predicted list and BEACON's own
// dynamic result, classifying every syscall as TP/FP/FN/TN and then
// emitting a spreadsheet with COUNTIF formulas over that row. This
// package stops at the Row itself (spec 1's Non-goals explicitly exclude
// any spreadsheet/CSV writer); building one is left to a caller.
package compare

// Row is one catalogue entry's confusion matrix against a fixed universe
// of syscall numbers.
type Row struct {
	Key string

	// TruePositives are syscalls both the expected set and the dynamic
	// observation agree are used.
	TruePositives []int

	// FalsePositives are syscalls the expected set predicted but the
	// dynamic observation never saw.
	FalsePositives []int

	// FalseNegatives are syscalls the dynamic observation saw that the
	// expected set did not predict.
	FalseNegatives []int

	// TrueNegatives are syscalls neither source flags, restricted to the
	// universe passed to Compare.
	TrueNegatives []int
}

// Compare classifies every syscall number in universe against the
// expected set (e.g. an LLM-predicted profile) and the dynamic
// observation recorded by BEACON, mirroring data_comparison.py's
// per-syscall TP/FP/FN/TN branch.
func Compare(key string, universe []int, expected, dynamic map[int]bool) Row {
	row := Row{Key: key}

	for _, n := range universe {
		inExpected := expected[n]
		inDynamic := dynamic[n]

		switch {
		case inExpected && inDynamic:
			row.TruePositives = append(row.TruePositives, n)
		case inExpected && !inDynamic:
			row.FalsePositives = append(row.FalsePositives, n)
		case !inExpected && inDynamic:
			row.FalseNegatives = append(row.FalseNegatives, n)
		default:
			row.TrueNegatives = append(row.TrueNegatives, n)
		}
	}

	return row
}

// ToSet converts a syscall-number slice (e.g. a Snapshot's Syscalls
// field) into the membership map Compare expects.
func ToSet(syscalls []int) map[int]bool {
	set := make(map[int]bool, len(syscalls))
	for _, n := range syscalls {
		set[n] = true
	}
	return set
}
