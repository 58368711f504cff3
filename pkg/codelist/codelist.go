package codelist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// CodeSet is an immutable membership lookup over clinical code strings.
// Built once at startup and shared read-only across all workers.
type CodeSet struct {
	codes map[string]string
}

func NewCodeSet(codes map[string]string) CodeSet {
	normalized := make(map[string]string, len(codes))
	for code, display := range codes {
		if trimmed := strings.TrimSpace(code); trimmed != "" {
			normalized[trimmed] = display
		}
	}
	return CodeSet{codes: normalized}
}

func (s CodeSet) Contains(code string) bool {
	_, ok := s.codes[strings.TrimSpace(code)]
	return ok
}

func (s CodeSet) Display(code string) (string, bool) {
	display, ok := s.codes[strings.TrimSpace(code)]
	return display, ok
}

func (s CodeSet) Len() int { return len(s.codes) }

type file struct {
	ReviewTriggers   map[string]string `yaml:"review_triggers"`
	PositiveOutcomes map[string]string `yaml:"positive_outcomes"`
	NegativeOutcomes map[string]string `yaml:"negative_outcomes"`
	ExcludedEvents   map[string]string `yaml:"excluded_events"`
}

// Lists holds the externally curated reference code sets: which coded
// events count as a medication review, which codes record its outcome,
// and which event codes are excluded from derivation entirely.
type Lists struct {
	ReviewTriggers   CodeSet
	PositiveOutcomes CodeSet
	NegativeOutcomes CodeSet
	ExcludedEvents   CodeSet
}

func Load(path string) (Lists, error) {
	if path == "" {
		return DefaultLists(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Lists{}, err
	}
	var f file
	if err := yaml.Unmarshal(content, &f); err != nil {
		return Lists{}, err
	}
	if len(f.ReviewTriggers) == 0 {
		return Lists{}, fmt.Errorf("code list %s has no review trigger codes", path)
	}
	return Lists{
		ReviewTriggers:   NewCodeSet(f.ReviewTriggers),
		PositiveOutcomes: NewCodeSet(f.PositiveOutcomes),
		NegativeOutcomes: NewCodeSet(f.NegativeOutcomes),
		ExcludedEvents:   NewCodeSet(f.ExcludedEvents),
	}, nil
}

func DefaultLists() Lists {
	return Lists{
		ReviewTriggers: NewCodeSet(map[string]string{
			"314530002":        "Medication review done",
			"1239511000000100": "Structured medication review",
			"182836005":        "Review of medication",
		}),
		PositiveOutcomes: NewCodeSet(map[string]string{
			"1239521000000106": "Structured medication review declined",
			"473231009":        "Medication review without change",
		}),
		NegativeOutcomes: NewCodeSet(map[string]string{
			"182838006": "Change of medication",
			"182840001": "Drug dose reduced",
			"274512008": "Drug therapy discontinued",
		}),
		ExcludedEvents: NewCodeSet(map[string]string{
			"184103008": "Patient registration",
		}),
	}
}
