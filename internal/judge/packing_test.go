package judge

import "testing"

func TestResolvePackingNoPacking(t *testing.T) {
	raw := []RawCase{{Score: 10}, {Score: 20}, {Score: 30}}
	cases, err := ResolvePacking(raw, nil)
	if err != nil {
		t.Fatalf("ResolvePacking: %v", err)
	}
	for i, c := range cases {
		if c.PackScore != raw[i].Score {
			t.Fatalf("case %d PackScore = %v, want %v", i, c.PackScore, raw[i].Score)
		}
		if len(c.Dependency) != 0 {
			t.Fatalf("case %d should have no dependency, got %v", i, c.Dependency)
		}
	}
}

func TestResolvePackingChain(t *testing.T) {
	// Cases 1,2,3 (1-indexed) form one pack; case 4 stands alone.
	raw := []RawCase{{Score: 10}, {Score: 20}, {Score: 30}, {Score: 40}}
	cases, err := ResolvePacking(raw, [][]uint64{{1, 2, 3}})
	if err != nil {
		t.Fatalf("ResolvePacking: %v", err)
	}

	// case index 0 (uid 0): first in pack, no dependency, no score of its own.
	if len(cases[0].Dependency) != 0 {
		t.Fatalf("first pack member should have no dependency, got %v", cases[0].Dependency)
	}
	if cases[0].PackScore != 0 {
		t.Fatalf("first pack member PackScore = %v, want 0", cases[0].PackScore)
	}

	// case index 1 (uid 1): depends on uid 0, no score of its own.
	if len(cases[1].Dependency) != 1 || cases[1].Dependency[0] != 0 {
		t.Fatalf("second pack member dependency = %v, want [0]", cases[1].Dependency)
	}
	if cases[1].PackScore != 0 {
		t.Fatalf("second pack member PackScore = %v, want 0", cases[1].PackScore)
	}

	// case index 2 (uid 2): last in pack, depends on uid 1, accumulates
	// the whole pack's score (10+20+30=60).
	if len(cases[2].Dependency) != 1 || cases[2].Dependency[0] != 1 {
		t.Fatalf("last pack member dependency = %v, want [1]", cases[2].Dependency)
	}
	if cases[2].PackScore != 60 {
		t.Fatalf("last pack member PackScore = %v, want 60", cases[2].PackScore)
	}

	// case index 3 (uid 3): untouched, standalone.
	if cases[3].PackScore != 40 || len(cases[3].Dependency) != 0 {
		t.Fatalf("standalone case mutated: %+v", cases[3])
	}
}

func TestResolvePackingCycleRejected(t *testing.T) {
	cases := []Case{
		{UID: 0, Dependency: []uint64{1}},
		{UID: 1, Dependency: []uint64{0}},
	}
	if err := ValidateNoCycles(cases); err == nil {
		t.Fatal("expected cycle to be rejected")
	}
}

func TestNormalizeMemoryLimit(t *testing.T) {
	if got := NormalizeMemoryLimit(0); got != 2<<30 {
		t.Fatalf("NormalizeMemoryLimit(0) = %v, want 2GiB", got)
	}
	if got := NormalizeMemoryLimit(1024); got != 1024 {
		t.Fatalf("NormalizeMemoryLimit(1024) = %v, want 1024", got)
	}
}

func TestResolveChecker(t *testing.T) {
	if cmd := ResolveChecker(ProblemTypeSPJ, []string{"./spj"}); len(cmd) != 1 || cmd[0] != "./spj" {
		t.Fatalf("spj checker = %v, want [./spj]", cmd)
	}
	if cmd := ResolveChecker(ProblemTypeStrict, nil); cmd[0] != "./checkers/strict.py" {
		t.Fatalf("strict checker = %v", cmd)
	}
	if cmd := ResolveChecker(ProblemTypeStandard, nil); cmd[0] != "python3" {
		t.Fatalf("standard checker = %v", cmd)
	}
}
