package sampling

import (
	"hash/fnv"
	"math/rand"
	"sort"
)

const (
	MethodRandom     = "random"
	MethodBalanced   = "balanced"
	MethodStratified = "stratified"
)

// Result is one drawn sample. Returned may be less than Requested when
// a group runs out of eligible patients; the shortfall is reported to
// the caller rather than treated as an error.
type Result struct {
	PatientIDs  []string
	Requested   int
	Returned    int
	Shortfall   int
	GroupACount int
	GroupBCount int
}

// filterEligible removes excluded and duplicate ids, preserving order.
// Exclusions are applied before any randomization so a requested count
// only ever reflects eligible patients.
func filterEligible(ids []string, excluded map[string]struct{}) []string {
	seen := make(map[string]struct{}, len(ids))
	eligible := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, skip := excluded[id]; skip {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		eligible = append(eligible, id)
	}
	return eligible
}

// Random draws a seeded random permutation of the eligible ids and
// returns the page [offset, offset+limit). The permutation is a pure
// function of the seed, so successive pages never overlap.
func Random(ids []string, excluded map[string]struct{}, seed int64, offset, limit int) Result {
	eligible := filterEligible(ids, excluded)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})

	if offset < 0 {
		offset = 0
	}
	if offset > len(eligible) {
		offset = len(eligible)
	}
	end := len(eligible)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	page := append([]string(nil), eligible[offset:end]...)
	return Result{
		PatientIDs: page,
		Requested:  limit,
		Returned:   len(page),
		Shortfall:  max(0, limit-len(page)),
	}
}

// Balanced draws ceil(total/2) from group A and floor(total/2) from
// group B, each from an independently seeded stream, then merges and
// returns the ids in ascending order for deterministic consumption.
// A group smaller than its half-quota contributes all of its members.
func Balanced(groupA, groupB []string, excluded map[string]struct{}, seed int64, total int) Result {
	quotaA := (total + 1) / 2
	quotaB := total / 2

	drawnA := draw(filterEligible(groupA, excluded), rand.New(rand.NewSource(seed)), quotaA)
	drawnB := draw(filterEligible(groupB, excluded), rand.New(rand.NewSource(seed+1)), quotaB)

	merged := append(append([]string(nil), drawnA...), drawnB...)
	sort.Strings(merged)
	return Result{
		PatientIDs:  merged,
		Requested:   total,
		Returned:    len(merged),
		Shortfall:   total - len(merged),
		GroupACount: len(drawnA),
		GroupBCount: len(drawnB),
	}
}

// TreatmentPatient is one member of the treatment cohort with its
// composite stratum key.
type TreatmentPatient struct {
	PatientID  string
	StratumKey string
}

// Stratified draws, for each treatment patient, up to controlsPerCase
// control patients whose stratum key matches, without replacement
// across the whole sample. Each stratum draws from its own seeded
// sub-stream so parallel evaluation cannot reorder draws.
func Stratified(treatment []TreatmentPatient, controlsByStratum map[string][]string, excluded map[string]struct{}, seed int64, controlsPerCase int) Result {
	if controlsPerCase <= 0 {
		controlsPerCase = 1
	}

	// Treatment patients are never eligible controls.
	reserved := make(map[string]struct{}, len(excluded)+len(treatment))
	for id := range excluded {
		reserved[id] = struct{}{}
	}
	for _, t := range treatment {
		reserved[t.PatientID] = struct{}{}
	}

	shuffled := make(map[string][]string, len(controlsByStratum))
	cursor := make(map[string]int, len(controlsByStratum))
	for key, pool := range controlsByStratum {
		eligible := filterEligible(pool, reserved)
		rng := rand.New(rand.NewSource(seed + int64(strataHash(key))))
		rng.Shuffle(len(eligible), func(i, j int) {
			eligible[i], eligible[j] = eligible[j], eligible[i]
		})
		shuffled[key] = eligible
	}

	ordered := append([]TreatmentPatient(nil), treatment...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].PatientID < ordered[j].PatientID })

	requested := len(ordered) * controlsPerCase
	var controls []string
	for _, t := range ordered {
		pool := shuffled[t.StratumKey]
		pos := cursor[t.StratumKey]
		for n := 0; n < controlsPerCase && pos < len(pool); n++ {
			controls = append(controls, pool[pos])
			pos++
		}
		cursor[t.StratumKey] = pos
	}
	sort.Strings(controls)
	return Result{
		PatientIDs: controls,
		Requested:  requested,
		Returned:   len(controls),
		Shortfall:  requested - len(controls),
	}
}

func draw(eligible []string, rng *rand.Rand, quota int) []string {
	rng.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})
	if quota > len(eligible) {
		quota = len(eligible)
	}
	return append([]string(nil), eligible[:quota]...)
}

func strataHash(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32()
}
