package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		GapThresholdDays:   28,
		FallbackCourseDays: 30,
		ChangeWindowMonths: 3,
		CorpusStartDate:    time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC),
		ReferenceDate:      time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		WorkerCount:        4,
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative gap threshold", func(c *Config) { c.GapThresholdDays = -1 }},
		{"negative fallback course", func(c *Config) { c.FallbackCourseDays = -5 }},
		{"zero change window", func(c *Config) { c.ChangeWindowMonths = 0 }},
		{"zero corpus start", func(c *Config) { c.CorpusStartDate = time.Time{} }},
		{"reference before corpus start", func(c *Config) { c.ReferenceDate = c.CorpusStartDate.AddDate(-1, 0, 0) }},
		{"zero workers", func(c *Config) { c.WorkerCount = 0 }},
	}
	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestMalformedEnvValuesAreFatal(t *testing.T) {
	cases := []struct {
		key   string
		value string
	}{
		{"GAP_THRESHOLD_DAYS", "abc"},
		{"FALLBACK_COURSE_DAYS", "thirty"},
		{"CORPUS_START_DATE", "not-a-date"},
		{"REFERENCE_DATE", "01/06/2023"},
		{"FEATURE_CACHE_TTL", "5 minutes"},
		{"SAMPLE_SEED", "1.5"},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			cfg := Load()
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected %s=%q to fail validation", tc.key, tc.value)
			}
		})
	}
}

func TestUnsetEnvValuesStillDefault(t *testing.T) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("absent variables must fall back to defaults: %v", err)
	}
	if cfg.GapThresholdDays != 28 {
		t.Fatalf("expected default gap threshold 28, got %d", cfg.GapThresholdDays)
	}
}

func TestLoadUsesDefaults(t *testing.T) {
	cfg := Load()
	if cfg.GapThresholdDays != 28 {
		t.Fatalf("expected default gap threshold 28, got %d", cfg.GapThresholdDays)
	}
	if cfg.FallbackCourseDays != 30 {
		t.Fatalf("expected default fallback 30, got %d", cfg.FallbackCourseDays)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}
