package internaldefs

import "testing"

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestBoundsMatchEngineBuckets(t *testing.T) {
	if len(HistogramBounds)+1 != len(HistogramBoundSuffix) {
		t.Fatalf("expected %d suffixes for %d finite bounds", len(HistogramBounds)+1, len(HistogramBounds))
	}
	seen := make(map[string]bool)
	for _, def := range CounterDefs {
		if seen[def.Name] {
			t.Fatalf("duplicate metric name %s", def.Name)
		}
		seen[def.Name] = true
	}
}
