package store

import (
	"testing"

	"github.com/mpaulsen/farthing/internal/database"
)

func setupSettingsTestDB(t *testing.T) (*SettingsStore, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	hh, err := NewHouseholdStore(db).Create("Testers")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	return NewSettingsStore(db), hh.ID
}

func TestSettingsSetGet(t *testing.T) {
	s, hhID := setupSettingsTestDB(t)

	if err := s.Set(hhID, SettingAnalysisEndpoint, "https://vision.example.com"); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := s.Get(hhID, SettingAnalysisEndpoint)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "https://vision.example.com" {
		t.Errorf("value = %q", got)
	}

	// Upsert overwrites.
	if err := s.Set(hhID, SettingAnalysisEndpoint, "https://vision2.example.com"); err != nil {
		t.Fatalf("set again: %v", err)
	}
	got, _ = s.Get(hhID, SettingAnalysisEndpoint)
	if got != "https://vision2.example.com" {
		t.Errorf("value = %q after upsert", got)
	}

	// Unknown keys return empty, not an error.
	got, err = s.Get(hhID, "nope")
	if err != nil || got != "" {
		t.Errorf("get unknown = (%q, %v), want empty", got, err)
	}
}

func TestVerificationDefaults(t *testing.T) {
	s, hhID := setupSettingsTestDB(t)

	vs, err := s.GetVerification(hhID)
	if err != nil {
		t.Fatalf("get verification: %v", err)
	}
	if vs.Threshold != DefaultThreshold {
		t.Errorf("threshold = %v, want %v", vs.Threshold, DefaultThreshold)
	}
	if vs.RetryAttempts != DefaultRetryAttempts {
		t.Errorf("retry attempts = %d, want %d", vs.RetryAttempts, DefaultRetryAttempts)
	}
	if vs.RequireValidation {
		t.Error("require_validation should default to false")
	}
}

func TestVerificationOverrides(t *testing.T) {
	s, hhID := setupSettingsTestDB(t)

	s.Set(hhID, SettingThreshold, "0.85")
	s.Set(hhID, SettingRetryAttempts, "3")
	s.Set(hhID, SettingRequireValidation, "true")
	s.Set(hhID, SettingAnalysisEndpoint, "https://vision.example.com")

	vs, err := s.GetVerification(hhID)
	if err != nil {
		t.Fatalf("get verification: %v", err)
	}
	if vs.Threshold != 0.85 {
		t.Errorf("threshold = %v, want 0.85", vs.Threshold)
	}
	if vs.RetryAttempts != 3 {
		t.Errorf("retry attempts = %d, want 3", vs.RetryAttempts)
	}
	if !vs.RequireValidation {
		t.Error("require_validation should be true")
	}
}

func TestVerificationIgnoresInvalidValues(t *testing.T) {
	s, hhID := setupSettingsTestDB(t)

	s.Set(hhID, SettingThreshold, "1.7")
	s.Set(hhID, SettingRetryAttempts, "zero")

	vs, err := s.GetVerification(hhID)
	if err != nil {
		t.Fatalf("get verification: %v", err)
	}
	if vs.Threshold != DefaultThreshold {
		t.Errorf("out-of-range threshold accepted: %v", vs.Threshold)
	}
	if vs.RetryAttempts != DefaultRetryAttempts {
		t.Errorf("non-numeric retry attempts accepted: %d", vs.RetryAttempts)
	}
}
