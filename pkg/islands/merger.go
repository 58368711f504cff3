package islands

import (
	"fmt"
	"sort"
	"time"

	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/models"
)

type Options struct {
	// GapThresholdDays is the largest gap, in days, between the end of
	// one prescription and the start of the next that still counts as
	// continuous exposure.
	GapThresholdDays int
	// FallbackCourseDays is the assumed course length for records with
	// no end date and no recorded course length. A value of 0 disables
	// the fallback; such records leave their island unbounded.
	FallbackCourseDays int
}

// StructuralError reports a prescription whose resolved end date
// precedes its start date. This is an upstream defect; the run must
// abort rather than derive from it.
type StructuralError struct {
	PatientID      string
	MedicationCode string
	Start          time.Time
	End            time.Time
}

func (e StructuralError) Error() string {
	return fmt.Sprintf("prescription end before start for patient %s medication %s: %s > %s",
		e.PatientID, e.MedicationCode,
		e.Start.Format("2006-01-02"), e.End.Format("2006-01-02"))
}

// span is one prescription with its dates resolved. An unbounded span
// has no derivable end date.
type span struct {
	rec       models.PrescriptionRecord
	start     time.Time
	end       time.Time
	unbounded bool
}

// accumulator is the current island being grown during the forward scan.
type accumulator struct {
	patientID   string
	medCode     string
	start       time.Time
	end         time.Time
	unbounded   bool
	names       *modalCounter
	dosages     *modalCounter
	units       *modalCounter
	quantity    float64
	count       int
	repeatCount int
}

// Build merges the prescription records of one (patient, medication)
// pair into non-overlapping continuous-exposure islands. Records with
// no start date are dropped. Islands that cannot be bounded on both
// sides are discarded rather than reported as open-ended exposure.
func Build(records []models.PrescriptionRecord, opts Options) ([]models.MedicationIsland, error) {
	spans := make([]span, 0, len(records))
	for _, rec := range records {
		if rec.StartDate == nil {
			continue
		}
		s := span{rec: rec, start: *rec.StartDate}
		switch {
		case rec.EndDate != nil:
			s.end = *rec.EndDate
		case rec.CourseDays > 0:
			s.end = s.start.AddDate(0, 0, rec.CourseDays)
		case opts.FallbackCourseDays > 0:
			s.end = s.start.AddDate(0, 0, opts.FallbackCourseDays)
		default:
			s.unbounded = true
		}
		if !s.unbounded && s.end.Before(s.start) {
			return nil, StructuralError{
				PatientID:      rec.PatientID,
				MedicationCode: rec.MedicationCode,
				Start:          s.start,
				End:            s.end,
			}
		}
		spans = append(spans, s)
	}
	if len(spans) == 0 {
		return nil, nil
	}

	// Stable sort keeps original record order for equal start dates.
	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].start.Before(spans[j].start)
	})

	var result []models.MedicationIsland
	cur := newAccumulator(spans[0])
	for _, s := range spans[1:] {
		if cur.extends(s, opts.GapThresholdDays) {
			cur.absorb(s)
			continue
		}
		if island, ok := cur.flush(); ok {
			result = append(result, island)
		}
		cur = newAccumulator(s)
	}
	if island, ok := cur.flush(); ok {
		result = append(result, island)
	}
	return result, nil
}

func newAccumulator(s span) *accumulator {
	acc := &accumulator{
		patientID: s.rec.PatientID,
		medCode:   s.rec.MedicationCode,
		start:     s.start,
		end:       s.end,
		unbounded: s.unbounded,
		names:     newModalCounter(),
		dosages:   newModalCounter(),
		units:     newModalCounter(),
	}
	acc.add(s.rec)
	return acc
}

// extends reports whether span s continues the current island: its
// start falls within the gap threshold of the island's end. An island
// with no derivable end absorbs every later record.
func (a *accumulator) extends(s span, gapDays int) bool {
	if a.unbounded {
		return true
	}
	return !s.start.After(a.end.AddDate(0, 0, gapDays))
}

func (a *accumulator) absorb(s span) {
	if s.unbounded {
		a.unbounded = true
	} else if !a.unbounded && s.end.After(a.end) {
		a.end = s.end
	}
	a.add(s.rec)
}

func (a *accumulator) add(rec models.PrescriptionRecord) {
	a.names.add(rec.MedicationName)
	a.dosages.add(rec.Dosage)
	a.units.add(rec.Units)
	a.quantity += rec.Quantity
	a.count++
	if rec.IsRepeat {
		a.repeatCount++
	}
}

// flush closes the current island. Unbounded islands are discarded.
func (a *accumulator) flush() (models.MedicationIsland, bool) {
	if a.unbounded {
		return models.MedicationIsland{}, false
	}
	return models.MedicationIsland{
		PatientID:         a.patientID,
		MedicationCode:    a.medCode,
		StartDate:         a.start,
		EndDate:           a.end,
		MedicationName:    a.names.mode(),
		Dosage:            a.dosages.mode(),
		Units:             a.units.mode(),
		TotalQuantity:     a.quantity,
		PrescriptionCount: a.count,
		IsRepeat:          a.repeatCount*2 > a.count,
	}, true
}

// modalCounter tracks the most frequent value, ties broken by first
// occurrence.
type modalCounter struct {
	counts map[string]int
	order  []string
}

func newModalCounter() *modalCounter {
	return &modalCounter{counts: make(map[string]int)}
}

func (m *modalCounter) add(value string) {
	if value == "" {
		return
	}
	if _, seen := m.counts[value]; !seen {
		m.order = append(m.order, value)
	}
	m.counts[value]++
}

func (m *modalCounter) mode() string {
	best := ""
	bestCount := 0
	for _, value := range m.order {
		if m.counts[value] > bestCount {
			best = value
			bestCount = m.counts[value]
		}
	}
	return best
}
