package codelist

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultListsContainReviewTriggers(t *testing.T) {
	lists := DefaultLists()
	if lists.ReviewTriggers.Len() == 0 {
		t.Fatal("default lists must carry review trigger codes")
	}
	if !lists.ReviewTriggers.Contains("314530002") {
		t.Fatal("expected medication review code in default triggers")
	}
	if lists.ReviewTriggers.Contains("not-a-code") {
		t.Fatal("unexpected membership for unknown code")
	}
}

func TestLoadFromYAML(t *testing.T) {
	content := []byte(`
review_triggers:
  "314530002": "Medication review done"
positive_outcomes:
  "473231009": "Medication review without change"
negative_outcomes:
  "182838006": "Change of medication"
excluded_events:
  "184103008": "Patient registration"
`)
	path := filepath.Join(t.TempDir(), "codes.yaml")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	lists, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !lists.ReviewTriggers.Contains("314530002") {
		t.Fatal("expected loaded review trigger")
	}
	if !lists.ExcludedEvents.Contains("184103008") {
		t.Fatal("expected loaded exclusion code")
	}
	display, ok := lists.PositiveOutcomes.Display("473231009")
	if !ok || display != "Medication review without change" {
		t.Fatalf("unexpected display %q", display)
	}
}

func TestLoadRejectsEmptyTriggerList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codes.yaml")
	if err := os.WriteFile(path, []byte(`positive_outcomes: {"x": "y"}`), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for code list without review triggers")
	}
}

func TestCodeSetTrimsWhitespace(t *testing.T) {
	set := NewCodeSet(map[string]string{" 123 ": "padded"})
	if !set.Contains("123") {
		t.Fatal("expected trimmed code to match")
	}
}
