package stratify

import (
	"strings"
	"time"

	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/models"
)

// UnknownBin is the sentinel for missing demographics. Patients are
// binned under it rather than dropped.
const UnknownBin = "U"

// Fixed bin edges. These match the published analysis and are not
// configurable.

func AgeBin(age *int) string {
	if age == nil {
		return UnknownBin
	}
	switch {
	case *age < 18:
		return "0-18"
	case *age < 40:
		return "18-40"
	case *age < 60:
		return "40-60"
	case *age < 80:
		return "60-80"
	default:
		return "80+"
	}
}

func ConditionBin(count int) string {
	switch {
	case count <= 10:
		return "0-10"
	case count <= 25:
		return "11-25"
	case count <= 50:
		return "26-50"
	default:
		return "50+"
	}
}

func PrescriptionBin(count int) string {
	switch {
	case count <= 2:
		return "0-2"
	case count <= 5:
		return "3-5"
	case count <= 12:
		return "6-12"
	default:
		return "13+"
	}
}

func GenderBin(gender string) string {
	if trimmed := strings.TrimSpace(gender); trimmed != "" {
		return trimmed
	}
	return UnknownBin
}

// StratumKey joins the four bins into the composite matching label.
// Deterministic: identical bins always produce the same key.
func StratumKey(genderBin, ageBin, conditionBin, prescriptionBin string) string {
	return strings.Join([]string{genderBin, ageBin, conditionBin, prescriptionBin}, "|")
}

// Builder computes per-patient stratification features as of a
// reference date.
type Builder struct {
	corpusStart   time.Time
	referenceDate time.Time
}

func NewBuilder(corpusStart, referenceDate time.Time) *Builder {
	return &Builder{corpusStart: corpusStart, referenceDate: referenceDate}
}

// Build derives the stratification record for one patient. Age is the
// integer year difference, consistent with the coarse age bins.
func (b *Builder) Build(patient models.Patient, events []models.CodedEvent, islandRows []models.MedicationIsland) models.StratificationRecord {
	var age *int
	if patient.BirthDate != nil {
		years := b.referenceDate.Year() - patient.BirthDate.Year()
		age = &years
	}

	conditions := make(map[string]struct{})
	for _, ev := range events {
		if ev.EventDate == nil || ev.Code == "" {
			continue
		}
		if ev.EventDate.Before(b.corpusStart) || ev.EventDate.After(b.referenceDate) {
			continue
		}
		conditions[ev.Code] = struct{}{}
	}

	medications := make(map[string]struct{})
	for _, island := range islandRows {
		if island.StartDate.After(b.referenceDate) {
			continue
		}
		if !island.EndDate.IsZero() && island.EndDate.Before(b.referenceDate) {
			continue
		}
		medications[island.MedicationCode] = struct{}{}
	}

	record := models.StratificationRecord{
		PatientID:         patient.PatientID,
		Age:               age,
		Gender:            patient.Gender,
		ConditionCount:    len(conditions),
		PrescriptionCount: len(medications),
	}
	record.AgeBin = AgeBin(age)
	record.ConditionBin = ConditionBin(record.ConditionCount)
	record.PrescriptionBin = PrescriptionBin(record.PrescriptionCount)
	record.GenderBin = GenderBin(patient.Gender)
	record.StratumKey = StratumKey(record.GenderBin, record.AgeBin, record.ConditionBin, record.PrescriptionBin)
	return record
}
