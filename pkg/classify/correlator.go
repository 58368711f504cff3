package classify

import (
	"sort"
	"time"

	"github.com/i-dot-ai/medguard-paper-sub001/pkg/codelist"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/models"
)

// Correlator aligns the three curated code sets onto a patient's
// unified event-date axis and classifies each date. Classifying the
// merged axis once, instead of joining the sets separately, yields
// exactly one row per (patient, date) even when codes co-occur.
type Correlator struct {
	lists    codelist.Lists
	detector *ChangeDetector
}

func NewCorrelator(lists codelist.Lists, detector *ChangeDetector) *Correlator {
	return &Correlator{lists: lists, detector: detector}
}

// ClassifyDay classifies the codes recorded on one day. Outcome codes
// without a review trigger on the same day do not make the day a
// review; positive takes precedence when both outcome codes co-occur.
func (c *Correlator) ClassifyDay(codes []string) Classification {
	review := false
	positive := false
	negative := false
	for _, code := range codes {
		if c.lists.ReviewTriggers.Contains(code) {
			review = true
		}
		if c.lists.PositiveOutcomes.Contains(code) {
			positive = true
		}
		if c.lists.NegativeOutcomes.Contains(code) {
			negative = true
		}
	}
	switch {
	case !review:
		return NoReview
	case positive:
		return ReviewPositive
	case negative:
		return ReviewNegative
	default:
		return ReviewUnknownOutcome
	}
}

// Classify derives the classified-event rows for one patient, plus the
// medication changes detected at each review date. Events with no date
// are skipped; every remaining distinct event date appears exactly once.
func (c *Correlator) Classify(patientID string, events []models.CodedEvent, islandRows []models.MedicationIsland) ([]models.ClassifiedEvent, []models.MedicationChange) {
	axis := make(map[time.Time][]string)
	for _, ev := range events {
		if ev.EventDate == nil {
			continue
		}
		day := truncateToDay(*ev.EventDate)
		axis[day] = append(axis[day], ev.Code)
	}
	if len(axis) == 0 {
		return nil, nil
	}

	dates := make([]time.Time, 0, len(axis))
	for day := range axis {
		dates = append(dates, day)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	classified := make([]models.ClassifiedEvent, 0, len(dates))
	var allChanges []models.MedicationChange
	for _, day := range dates {
		cl := c.ClassifyDay(axis[day])
		row := models.ClassifiedEvent{
			PatientID: patientID,
			EventDate: day,
			WasReview: cl.IsReview(),
			Outcome:   cl.Outcome(),
		}
		if cl.IsReview() {
			changes := c.detector.Detect(islandRows, patientID, day)
			started := false
			stopped := false
			for _, change := range changes {
				switch change.ChangeType {
				case models.ChangeStarted:
					started = true
				case models.ChangeStopped:
					stopped = true
				}
			}
			row.MedicationStarted = &started
			row.MedicationStopped = &stopped
			allChanges = append(allChanges, changes...)
		}
		classified = append(classified, row)
	}
	return classified, allChanges
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
