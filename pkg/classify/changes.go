package classify

import (
	"sort"
	"time"

	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/models"
)

// ChangeDetector flags medications started or stopped around a review
// date by comparing island activity in the windows on either side.
type ChangeDetector struct {
	windowMonths int
}

func NewChangeDetector(windowMonths int) *ChangeDetector {
	if windowMonths <= 0 {
		windowMonths = 3
	}
	return &ChangeDetector{windowMonths: windowMonths}
}

type medActivity struct {
	name   string
	before bool
	after  bool
}

// Detect computes the set difference of active medications before vs
// after the review. A medication active in both windows, or neither,
// produces no row; a brief stop and restart inside the window is
// reported as no change.
func (d *ChangeDetector) Detect(islandRows []models.MedicationIsland, patientID string, reviewDate time.Time) []models.MedicationChange {
	windowStart := reviewDate.AddDate(0, -d.windowMonths, 0)
	windowEnd := reviewDate.AddDate(0, d.windowMonths, 0)

	activity := make(map[string]*medActivity)
	var order []string
	for _, island := range islandRows {
		act, ok := activity[island.MedicationCode]
		if !ok {
			act = &medActivity{name: island.MedicationName}
			activity[island.MedicationCode] = act
			order = append(order, island.MedicationCode)
		}
		// Active before: island overlaps [reviewDate-window, reviewDate).
		if island.StartDate.Before(reviewDate) && !island.EndDate.Before(windowStart) {
			act.before = true
		}
		// Active after: island overlaps [reviewDate, reviewDate+window].
		if !island.EndDate.Before(reviewDate) && !island.StartDate.After(windowEnd) {
			act.after = true
		}
	}
	sort.Strings(order)

	var changes []models.MedicationChange
	for _, code := range order {
		act := activity[code]
		var changeType string
		switch {
		case act.before && !act.after:
			changeType = models.ChangeStopped
		case act.after && !act.before:
			changeType = models.ChangeStarted
		default:
			continue
		}
		changes = append(changes, models.MedicationChange{
			PatientID:      patientID,
			ReviewDate:     reviewDate,
			MedicationCode: code,
			MedicationName: act.name,
			ChangeType:     changeType,
		})
	}
	return changes
}
