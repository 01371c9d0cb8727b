package store

import (
	"database/sql"
	"fmt"
	"strconv"
)

// Setting keys.
const (
	SettingAnalysisEndpoint  = "analysis_endpoint"
	SettingAnalysisAPIKey    = "analysis_api_key"
	SettingThreshold         = "confidence_threshold"
	SettingRetryAttempts     = "analysis_retry_attempts"
	SettingRequireValidation = "require_validation"
)

// Defaults for verification settings.
const (
	DefaultThreshold     = 0.7
	DefaultRetryAttempts = 2
)

type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Get(householdID int64, key string) (string, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM settings WHERE household_id = ? AND key = ?`,
		householdID, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

func (s *SettingsStore) Set(householdID int64, key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (household_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (household_id, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		householdID, key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

func (s *SettingsStore) GetAll(householdID int64) (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings WHERE household_id = ?`, householdID)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// VerificationSettings holds the photo-verification policy knobs for one
// household.
type VerificationSettings struct {
	AnalysisEndpoint  string  `json:"analysis_endpoint"`
	AnalysisAPIKey    string  `json:"-"`
	Threshold         float64 `json:"confidence_threshold"`
	RetryAttempts     int     `json:"analysis_retry_attempts"`
	RequireValidation bool    `json:"require_validation"`
}

// GetVerification returns the household's verification settings with
// defaults applied for anything unset.
func (s *SettingsStore) GetVerification(householdID int64) (VerificationSettings, error) {
	all, err := s.GetAll(householdID)
	if err != nil {
		return VerificationSettings{}, err
	}

	vs := VerificationSettings{
		AnalysisEndpoint: all[SettingAnalysisEndpoint],
		AnalysisAPIKey:   all[SettingAnalysisAPIKey],
		Threshold:        DefaultThreshold,
		RetryAttempts:    DefaultRetryAttempts,
	}
	if v, err := strconv.ParseFloat(all[SettingThreshold], 64); err == nil && v >= 0 && v <= 1 {
		vs.Threshold = v
	}
	if n, err := strconv.Atoi(all[SettingRetryAttempts]); err == nil && n > 0 {
		vs.RetryAttempts = n
	}
	vs.RequireValidation = all[SettingRequireValidation] == "true"
	return vs, nil
}
