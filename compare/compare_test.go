package compare

import "testing"

func TestCompare_ClassifiesAllFourQuadrants(t *testing.T) {
	universe := []int{1, 2, 3, 4}
	expected := ToSet([]int{1, 2})
	dynamic := ToSet([]int{1, 3})

	row := Compare("nginx:latest", universe, expected, dynamic)

	if len(row.TruePositives) != 1 || row.TruePositives[0] != 1 {
		t.Fatalf("unexpected TP: %v", row.TruePositives)
	}
	if len(row.FalsePositives) != 1 || row.FalsePositives[0] != 2 {
		t.Fatalf("unexpected FP: %v", row.FalsePositives)
	}
	if len(row.FalseNegatives) != 1 || row.FalseNegatives[0] != 3 {
		t.Fatalf("unexpected FN: %v", row.FalseNegatives)
	}
	if len(row.TrueNegatives) != 1 || row.TrueNegatives[0] != 4 {
		t.Fatalf("unexpected TN: %v", row.TrueNegatives)
	}
}

func TestCompare_EmptyUniverse(t *testing.T) {
	row := Compare("redis:7", nil, ToSet(nil), ToSet(nil))
	if len(row.TruePositives)+len(row.FalsePositives)+len(row.FalseNegatives)+len(row.TrueNegatives) != 0 {
		t.Fatalf("expected empty row, got %+v", row)
	}
}

func TestToSet_Membership(t *testing.T) {
	set := ToSet([]int{5, 9})
	if !set[5] || !set[9] || set[6] {
		t.Fatalf("unexpected set contents: %v", set)
	}
}
