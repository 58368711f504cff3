package stratify

import (
	"fmt"
	"testing"
	"time"

	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/models"
)

var (
	corpusStart = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	refDate     = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
)

func datePtr(t time.Time) *time.Time { return &t }

func TestStratumKeyScenario(t *testing.T) {
	builder := NewBuilder(corpusStart, refDate)
	patient := models.Patient{
		PatientID: "p1",
		BirthDate: datePtr(time.Date(1978, 3, 10, 0, 0, 0, 0, time.UTC)),
		Gender:    "Male",
	}

	var events []models.CodedEvent
	for i := 0; i < 30; i++ {
		d := corpusStart.AddDate(0, i, 0)
		events = append(events, models.CodedEvent{
			PatientID: "p1",
			Code:      fmt.Sprintf("C%03d", i),
			EventDate: &d,
		})
	}

	var islands []models.MedicationIsland
	for i := 0; i < 8; i++ {
		islands = append(islands, models.MedicationIsland{
			PatientID:      "p1",
			MedicationCode: fmt.Sprintf("M%d", i),
			StartDate:      refDate.AddDate(0, -6, 0),
			EndDate:        refDate.AddDate(0, 6, 0),
		})
	}

	record := builder.Build(patient, events, islands)
	if record.Age == nil || *record.Age != 45 {
		t.Fatalf("expected age 45, got %v", record.Age)
	}
	if record.ConditionCount != 30 {
		t.Fatalf("expected 30 conditions, got %d", record.ConditionCount)
	}
	if record.PrescriptionCount != 8 {
		t.Fatalf("expected 8 prescriptions, got %d", record.PrescriptionCount)
	}
	if record.StratumKey != "Male|40-60|26-50|6-12" {
		t.Fatalf("expected stratum key Male|40-60|26-50|6-12, got %q", record.StratumKey)
	}
}

func TestStratumKeyIsPure(t *testing.T) {
	if StratumKey("Female", "60-80", "11-25", "3-5") != StratumKey("Female", "60-80", "11-25", "3-5") {
		t.Fatal("stratum key must be deterministic")
	}
}

func TestMissingDemographicsGetSentinelBins(t *testing.T) {
	builder := NewBuilder(corpusStart, refDate)
	record := builder.Build(models.Patient{PatientID: "p2"}, nil, nil)

	if record.Age != nil {
		t.Fatalf("expected nil age, got %v", *record.Age)
	}
	if record.AgeBin != UnknownBin || record.GenderBin != UnknownBin {
		t.Fatalf("expected sentinel bins, got age=%q gender=%q", record.AgeBin, record.GenderBin)
	}
	if record.StratumKey != "U|U|0-10|0-2" {
		t.Fatalf("unexpected stratum key %q", record.StratumKey)
	}
}

func TestConditionCountBoundedByCorpusWindow(t *testing.T) {
	builder := NewBuilder(corpusStart, refDate)
	before := corpusStart.AddDate(-1, 0, 0)
	after := refDate.AddDate(0, 1, 0)
	inside := corpusStart.AddDate(1, 0, 0)
	events := []models.CodedEvent{
		{PatientID: "p1", Code: "OLD", EventDate: &before},
		{PatientID: "p1", Code: "FUTURE", EventDate: &after},
		{PatientID: "p1", Code: "OK", EventDate: &inside},
		{PatientID: "p1", Code: "OK", EventDate: &inside}, // duplicate code
		{PatientID: "p1", Code: "UNDATED"},
	}

	record := builder.Build(models.Patient{PatientID: "p1"}, events, nil)
	if record.ConditionCount != 1 {
		t.Fatalf("expected 1 distinct in-window condition, got %d", record.ConditionCount)
	}
}

func TestPrescriptionCountRequiresCoverage(t *testing.T) {
	builder := NewBuilder(corpusStart, refDate)
	islands := []models.MedicationIsland{
		// Ended before the reference date.
		{PatientID: "p1", MedicationCode: "A", StartDate: refDate.AddDate(-1, 0, 0), EndDate: refDate.AddDate(0, -1, 0)},
		// Starts after the reference date.
		{PatientID: "p1", MedicationCode: "B", StartDate: refDate.AddDate(0, 1, 0), EndDate: refDate.AddDate(0, 2, 0)},
		// Covers the reference date.
		{PatientID: "p1", MedicationCode: "C", StartDate: refDate.AddDate(0, -1, 0), EndDate: refDate.AddDate(0, 1, 0)},
		// Unbounded end counts as still active.
		{PatientID: "p1", MedicationCode: "D", StartDate: refDate.AddDate(0, -2, 0)},
	}

	record := builder.Build(models.Patient{PatientID: "p1"}, nil, islands)
	if record.PrescriptionCount != 2 {
		t.Fatalf("expected 2 covering medications, got %d", record.PrescriptionCount)
	}
}

func TestBinEdges(t *testing.T) {
	ages := map[int]string{0: "0-18", 17: "0-18", 18: "18-40", 39: "18-40", 40: "40-60", 59: "40-60", 60: "60-80", 79: "60-80", 80: "80+"}
	for age, want := range ages {
		a := age
		if got := AgeBin(&a); got != want {
			t.Fatalf("AgeBin(%d): expected %q, got %q", age, want, got)
		}
	}
	conditions := map[int]string{0: "0-10", 10: "0-10", 11: "11-25", 25: "11-25", 26: "26-50", 50: "26-50", 51: "50+"}
	for count, want := range conditions {
		if got := ConditionBin(count); got != want {
			t.Fatalf("ConditionBin(%d): expected %q, got %q", count, want, got)
		}
	}
	prescriptions := map[int]string{0: "0-2", 2: "0-2", 3: "3-5", 5: "3-5", 6: "6-12", 12: "6-12", 13: "13+"}
	for count, want := range prescriptions {
		if got := PrescriptionBin(count); got != want {
			t.Fatalf("PrescriptionBin(%d): expected %q, got %q", count, want, got)
		}
	}
}
