package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/models"
)

func TestMapGroupsPreservesOrder(t *testing.T) {
	groups := []int{1, 2, 3, 4, 5, 6, 7, 8}
	out, err := mapGroups(groups, 3, func(n int) (int, error) {
		return n * 10, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, n := range groups {
		if out[i] != n*10 {
			t.Fatalf("result %d out of order: got %d", i, out[i])
		}
	}
}

func TestMapGroupsStopsOnFirstError(t *testing.T) {
	boom := errors.New("bad partition")
	groups := make([]int, 100)
	_, err := mapGroups(groups, 4, func(n int) (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected partition error, got %v", err)
	}
}

func TestPartitionByPatientMergesBothSources(t *testing.T) {
	d := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []models.CodedEvent{
		{PatientID: "p2", Code: "A", EventDate: &d},
		{PatientID: "p1", Code: "B", EventDate: &d},
	}
	islands := []models.MedicationIsland{
		{PatientID: "p3", MedicationCode: "X", StartDate: d, EndDate: d},
		{PatientID: "p1", MedicationCode: "Y", StartDate: d, EndDate: d},
	}

	partitions := partitionByPatient(events, islands)
	if len(partitions) != 3 {
		t.Fatalf("expected 3 partitions, got %d", len(partitions))
	}
	// Sorted by patient id for deterministic output.
	for i, want := range []string{"p1", "p2", "p3"} {
		if partitions[i].patientID != want {
			t.Fatalf("partition %d: expected %s, got %s", i, want, partitions[i].patientID)
		}
	}
	if len(partitions[0].events) != 1 || len(partitions[0].islands) != 1 {
		t.Fatal("p1 partition must carry both its events and islands")
	}
	// Patients with islands but no coded events still get a partition.
	if len(partitions[2].events) != 0 || len(partitions[2].islands) != 1 {
		t.Fatal("p3 partition must carry islands only")
	}
}
