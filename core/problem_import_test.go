package core

import "testing"

func TestResolveTestcaseOrderingNoPacking(t *testing.T) {
	keys := []string{"sample/01", "secret/01", "secret/02", "secret/03"}
	packGroupOf, scoreOf, ordered, err := resolveTestcaseOrdering(keys, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ordered) != 4 || ordered[0] != "sample/01" {
		t.Fatalf("unexpected order: %v", ordered)
	}
	total := 0
	for _, k := range []string{"secret/01", "secret/02", "secret/03"} {
		if packGroupOf[k] != "" {
			t.Fatalf("expected no pack group for %s, got %q", k, packGroupOf[k])
		}
		total += scoreOf[k]
	}
	if total != 100 {
		t.Fatalf("expected scores to sum to 100, got %d", total)
	}
}

func TestResolveTestcaseOrderingWithPacking(t *testing.T) {
	keys := []string{"secret/01", "secret/02", "secret/03", "secret/04"}
	packing := [][]string{{"01", "02"}}
	explicit := map[string]int{"03": 20, "04": 30}

	packGroupOf, scoreOf, ordered, err := resolveTestcaseOrdering(keys, packing, explicit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if packGroupOf["secret/01"] != "pack0" || packGroupOf["secret/02"] != "pack0" {
		t.Fatalf("expected secret/01 and secret/02 in pack0, got %v", packGroupOf)
	}
	if packGroupOf["secret/03"] != "" || packGroupOf["secret/04"] != "" {
		t.Fatalf("expected secret/03 and secret/04 ungrouped, got %v", packGroupOf)
	}

	// packed members must be adjacent in the returned order
	idx01, idx02 := -1, -1
	for i, k := range ordered {
		if k == "secret/01" {
			idx01 = i
		}
		if k == "secret/02" {
			idx02 = i
		}
	}
	if idx02 != idx01+1 {
		t.Fatalf("expected secret/02 to immediately follow secret/01, got order %v", ordered)
	}

	if scoreOf["secret/03"] != 20 || scoreOf["secret/04"] != 30 {
		t.Fatalf("explicit scores not honored: %v", scoreOf)
	}
	remaining := scoreOf["secret/01"] + scoreOf["secret/02"]
	if remaining != 50 {
		t.Fatalf("expected remaining 50 points split across secret/01 and secret/02, got %d", remaining)
	}
}

func TestResolveTestcaseOrderingUnknownPackingKey(t *testing.T) {
	keys := []string{"secret/01"}
	packing := [][]string{{"99"}}
	if _, _, _, err := resolveTestcaseOrdering(keys, packing, nil); err == nil {
		t.Fatal("expected error for unknown packing key")
	}
}
