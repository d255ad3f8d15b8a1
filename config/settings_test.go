package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	if s.TestSpeedMBps != 1.0 {
		t.Fatalf("TestSpeedMBps = %v, want 1.0", s.TestSpeedMBps)
	}
	if s.KeepDuplicatesHours != 168 {
		t.Fatalf("KeepDuplicatesHours = %d, want 168", s.KeepDuplicatesHours)
	}
	if !s.SparsifyOnWrite {
		t.Fatal("expected SparsifyOnWrite to default true")
	}
}

func TestParseSettingsOverridesDefaults(t *testing.T) {
	text := `
# comment
HDD_TEST_SPEED = 5.5
HDD_REBALANCE_UTILIZATION = 50
HDD_FSYNC_BEFORE_CLOSE = true
HDD_ERROR_TOLERANCE_PERIOD = 120
`
	s, err := ParseSettings(strings.NewReader(text))
	if err != nil {
		t.Fatalf("ParseSettings: %v", err)
	}
	if s.TestSpeedMBps != 5.5 {
		t.Fatalf("TestSpeedMBps = %v, want 5.5", s.TestSpeedMBps)
	}
	if s.RebalanceUtilizationPct != 50 {
		t.Fatalf("RebalanceUtilizationPct = %d, want 50", s.RebalanceUtilizationPct)
	}
	if !s.FsyncBeforeClose {
		t.Fatal("expected FsyncBeforeClose true")
	}
	if s.ErrorTolerancePeriod != 120*time.Second {
		t.Fatalf("ErrorTolerancePeriod = %v, want 120s", s.ErrorTolerancePeriod)
	}
	// Untouched keys keep their defaults.
	if s.KeepDuplicatesHours != 168 {
		t.Fatalf("KeepDuplicatesHours = %d, want default 168", s.KeepDuplicatesHours)
	}
}

func TestParseSettingsClampsRange(t *testing.T) {
	s, err := ParseSettings(strings.NewReader("HDD_REBALANCE_UTILIZATION = 500\n"))
	if err != nil {
		t.Fatalf("ParseSettings: %v", err)
	}
	if s.RebalanceUtilizationPct != 100 {
		t.Fatalf("RebalanceUtilizationPct = %d, want clamped 100", s.RebalanceUtilizationPct)
	}
}

func TestParseSettingsRejectsUnknownKey(t *testing.T) {
	if _, err := ParseSettings(strings.NewReader("NOT_A_REAL_KEY = 1\n")); err == nil {
		t.Fatal("expected error for unknown setting key")
	}
}
