package classify

import "github.com/i-dot-ai/medguard-paper-sub001/pkg/common/models"

// Classification is the tri-state result for one (patient, date) on
// the event axis. Outcome variants only exist under a review, so a
// non-review day structurally cannot carry an outcome.
type Classification int

const (
	NoReview Classification = iota
	ReviewUnknownOutcome
	ReviewPositive
	ReviewNegative
)

func (c Classification) IsReview() bool {
	return c != NoReview
}

// Outcome maps the classification to the persisted outcome column:
// nil when no review occurred, otherwise one of the outcome values.
// An untriaged review is reported as unknown, never guessed.
func (c Classification) Outcome() *string {
	var v string
	switch c {
	case ReviewPositive:
		v = models.OutcomePositive
	case ReviewNegative:
		v = models.OutcomeNegative
	case ReviewUnknownOutcome:
		v = models.OutcomeUnknown
	default:
		return nil
	}
	return &v
}

func (c Classification) String() string {
	switch c {
	case NoReview:
		return "no_review"
	case ReviewUnknownOutcome:
		return "review_unknown_outcome"
	case ReviewPositive:
		return "review_positive"
	case ReviewNegative:
		return "review_negative"
	}
	return "invalid"
}
