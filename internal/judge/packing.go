package judge

import "fmt"

// RawCase is the pre-packing view of a test case as it appears in problem
// config, before ResolvePacking derives Dependency/PackScore.
type RawCase struct {
	Score       float64
	TimeLimit   uint64
	MemoryLimit uint64
}

// ResolvePacking builds the dependency graph and pack_score for a set of
// cases given their packing groups. packing is a list of packs, each pack
// a list of 1-indexed case positions (matching the on-disk config format
// in original_source/src/config.rs's RawProblemMisc.packing). cases is
// indexed 0..len(cases)-1 and is returned with Dependency/PackScore filled
// in; cases outside any pack keep PackScore == Score and no dependency.
//
// This reproduces Problem::from's parse_packing algorithm exactly: for
// each pack, the LAST member (in pack order) accumulates the Score of
// every member into its PackScore, and every non-first member gets the
// previous member's UID pushed onto its Dependency — so a pack's score is
// only ever awarded once every member up the chain has resolved, and
// skipping propagates forward through the chain.
func ResolvePacking(raw []RawCase, packing [][]uint64) ([]Case, error) {
	cases := make([]Case, len(raw))
	for i, rc := range raw {
		cases[i] = Case{
			UID:         uint64(i),
			Score:       rc.Score,
			TimeLimit:   rc.TimeLimit,
			MemoryLimit: rc.MemoryLimit,
			PackScore:   rc.Score,
		}
	}

	for _, pack := range packing {
		if len(pack) == 0 {
			continue
		}
		var packTotal float64
		for _, pos := range pack {
			idx := int(pos) - 1
			if idx < 0 || idx >= len(cases) {
				return nil, fmt.Errorf("resolve packing: case position %d out of range", pos)
			}
			packTotal += cases[idx].Score
		}

		lastIdx := int(pack[len(pack)-1]) - 1

		// non-terminal pack members — including the first — never carry
		// score on their own; only the pack's last member does.
		for _, pos := range pack {
			idx := int(pos) - 1
			if idx != lastIdx {
				cases[idx].PackScore = 0
			}
		}
		cases[lastIdx].PackScore = packTotal

		for i, pos := range pack {
			if i == 0 {
				continue
			}
			idx := int(pos) - 1
			prevIdx := int(pack[i-1]) - 1
			cases[idx].Dependency = append(cases[idx].Dependency, cases[prevIdx].UID)
		}
	}

	if err := ValidateNoCycles(cases); err != nil {
		return nil, err
	}
	return cases, nil
}

// ValidateNoCycles rejects a dependency graph that is not a DAG. Packing
// only ever produces linear chains, but Case.Dependency is a general
// []uint64 (per spec.md §9's redesign note keeping it general), so this
// guards any future non-linear dependency producer too.
func ValidateNoCycles(cases []Case) error {
	byUID := make(map[uint64]Case, len(cases))
	for _, c := range cases {
		byUID[c.UID] = c
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[uint64]int, len(cases))

	var visit func(uid uint64) error
	visit = func(uid uint64) error {
		switch state[uid] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("resolve packing: dependency cycle at case %d", uid)
		}
		state[uid] = visiting
		for _, dep := range byUID[uid].Dependency {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[uid] = done
		return nil
	}

	for _, c := range cases {
		if err := visit(c.UID); err != nil {
			return err
		}
	}
	return nil
}

// ResolveChecker picks the default checker command for a problem type
// when no explicit special-judge command is configured, matching
// original_source/src/config.rs's Problem::from checker resolution.
func ResolveChecker(problemType ProblemType, specialJudge []string) []string {
	switch problemType {
	case ProblemTypeSPJ:
		return specialJudge
	case ProblemTypeStrict:
		return []string{"./checkers/strict.py"}
	default:
		return []string{"python3", "./checkers/standard.py", "%OUTPUT%", "%ANSWER%"}
	}
}

// NormalizeMemoryLimit applies the 0 => 2GiB default from
// original_source/src/config.rs's Problem::from.
func NormalizeMemoryLimit(bytes uint64) uint64 {
	if bytes == 0 {
		return 2 << 30
	}
	return bytes
}
