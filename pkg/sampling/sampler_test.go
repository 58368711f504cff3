package sampling

import (
	"fmt"
	"reflect"
	"sort"
	"testing"
)

func idRange(prefix string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s%03d", prefix, i)
	}
	return ids
}

func TestBalancedSplitsCeilFloor(t *testing.T) {
	groupA := idRange("a", 20)
	groupB := idRange("b", 20)

	result := Balanced(groupA, groupB, nil, 7, 9)
	if result.Returned != 9 || result.Shortfall != 0 {
		t.Fatalf("expected 9 returned with no shortfall, got %d/%d", result.Returned, result.Shortfall)
	}
	if result.GroupACount != 5 || result.GroupBCount != 4 {
		t.Fatalf("expected 5/4 split, got %d/%d", result.GroupACount, result.GroupBCount)
	}
	if !sort.StringsAreSorted(result.PatientIDs) {
		t.Fatal("balanced sample must be returned in patient-id order")
	}
}

func TestBalancedShortfallIsNotAnError(t *testing.T) {
	groupA := idRange("a", 3)
	groupB := idRange("b", 20)

	result := Balanced(groupA, groupB, nil, 7, 10)
	if result.GroupACount != 3 {
		t.Fatalf("expected all 3 available group A members, got %d", result.GroupACount)
	}
	if result.GroupBCount != 5 {
		t.Fatalf("expected group B half-quota 5, got %d", result.GroupBCount)
	}
	if result.Returned != 8 || result.Shortfall != 2 {
		t.Fatalf("expected returned 8 shortfall 2, got %d/%d", result.Returned, result.Shortfall)
	}
}

func TestBalancedIsReproducible(t *testing.T) {
	groupA := idRange("a", 50)
	groupB := idRange("b", 50)

	first := Balanced(groupA, groupB, nil, 99, 20)
	second := Balanced(groupA, groupB, nil, 99, 20)
	if !reflect.DeepEqual(first.PatientIDs, second.PatientIDs) {
		t.Fatal("same seed must reproduce the same sample")
	}

	different := Balanced(groupA, groupB, nil, 100, 20)
	if reflect.DeepEqual(first.PatientIDs, different.PatientIDs) {
		t.Fatal("different seed should draw a different sample")
	}
}

func TestExclusionsApplyBeforeRandomization(t *testing.T) {
	ids := idRange("p", 10)
	excluded := map[string]struct{}{"p000": {}, "p001": {}}

	result := Random(ids, excluded, 5, 0, 10)
	if result.Returned != 8 {
		t.Fatalf("expected 8 eligible after exclusions, got %d", result.Returned)
	}
	for _, id := range result.PatientIDs {
		if _, bad := excluded[id]; bad {
			t.Fatalf("excluded patient %s present in sample", id)
		}
	}
	if result.Shortfall != 2 {
		t.Fatalf("expected visible shortfall 2, got %d", result.Shortfall)
	}
}

func TestRandomPagesAreDisjoint(t *testing.T) {
	ids := idRange("p", 30)

	page1 := Random(ids, nil, 11, 0, 10)
	page2 := Random(ids, nil, 11, 10, 10)
	seen := make(map[string]struct{})
	for _, id := range page1.PatientIDs {
		seen[id] = struct{}{}
	}
	for _, id := range page2.PatientIDs {
		if _, dup := seen[id]; dup {
			t.Fatalf("patient %s appears on both pages", id)
		}
	}
	if page1.Returned != 10 || page2.Returned != 10 {
		t.Fatalf("expected full pages, got %d and %d", page1.Returned, page2.Returned)
	}
}

func TestStratifiedMatchesOnStratumKey(t *testing.T) {
	treatment := []TreatmentPatient{
		{PatientID: "t1", StratumKey: "Male|40-60|26-50|6-12"},
		{PatientID: "t2", StratumKey: "Female|60-80|11-25|3-5"},
	}
	controls := map[string][]string{
		"Male|40-60|26-50|6-12":  {"c1", "c2", "c3"},
		"Female|60-80|11-25|3-5": {"c4", "c5"},
		"Male|18-40|0-10|0-2":    {"c6"},
	}

	result := Stratified(treatment, controls, nil, 13, 1)
	if result.Returned != 2 || result.Shortfall != 0 {
		t.Fatalf("expected 2 matched controls, got %d/%d", result.Returned, result.Shortfall)
	}
	valid := map[string]struct{}{"c1": {}, "c2": {}, "c3": {}, "c4": {}, "c5": {}}
	for _, id := range result.PatientIDs {
		if _, ok := valid[id]; !ok {
			t.Fatalf("control %s drawn from a non-matching stratum", id)
		}
	}
}

func TestStratifiedNeverDrawsTreatmentPatients(t *testing.T) {
	treatment := []TreatmentPatient{{PatientID: "t1", StratumKey: "k"}}
	controls := map[string][]string{"k": {"t1", "c1"}}

	result := Stratified(treatment, controls, nil, 13, 1)
	if result.Returned != 1 || result.PatientIDs[0] != "c1" {
		t.Fatalf("expected only c1, got %v", result.PatientIDs)
	}
}

func TestStratifiedReportsShortfallPerMissingStratum(t *testing.T) {
	treatment := []TreatmentPatient{
		{PatientID: "t1", StratumKey: "k1"},
		{PatientID: "t2", StratumKey: "empty"},
	}
	controls := map[string][]string{"k1": {"c1", "c2"}}

	result := Stratified(treatment, controls, nil, 13, 2)
	if result.Requested != 4 {
		t.Fatalf("expected requested 4, got %d", result.Requested)
	}
	if result.Returned != 2 || result.Shortfall != 2 {
		t.Fatalf("expected 2 controls with shortfall 2, got %d/%d", result.Returned, result.Shortfall)
	}
}

func TestRequestSeedHonoredIncludingZero(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, 42)

	if got := svc.seed(nil); got != 42 {
		t.Fatalf("omitted seed must use server default, got %d", got)
	}
	zero := int64(0)
	if got := svc.seed(&zero); got != 0 {
		t.Fatalf("explicit seed 0 must be honored, got %d", got)
	}
	seven := int64(7)
	if got := svc.seed(&seven); got != 7 {
		t.Fatalf("explicit seed must be honored, got %d", got)
	}
}

func TestStratifiedDrawsWithoutReplacement(t *testing.T) {
	treatment := []TreatmentPatient{
		{PatientID: "t1", StratumKey: "k"},
		{PatientID: "t2", StratumKey: "k"},
	}
	controls := map[string][]string{"k": {"c1", "c2", "c3"}}

	result := Stratified(treatment, controls, nil, 13, 1)
	if result.Returned != 2 {
		t.Fatalf("expected 2 controls, got %d", result.Returned)
	}
	if result.PatientIDs[0] == result.PatientIDs[1] {
		t.Fatal("controls must be drawn without replacement")
	}
}
