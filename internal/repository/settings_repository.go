package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"arbitrage/internal/models"
)

// ErrSettingsNotFound is returned when the singleton settings row has
// never been initialized.
var ErrSettingsNotFound = errors.New("settings not found")

// SettingsRepository backs the single global-settings row (id=1) that
// stores max_concurrent_trades (risk.GlobalRiskController does not read
// it) and feeds NotificationPreferences to the notification fan-out.
type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) scanSettings(row *sql.Row) (*models.Settings, error) {
	s := &models.Settings{}
	var prefsRaw []byte
	err := row.Scan(&s.ID, &s.ConsiderFunding, &s.MaxConcurrentTrades, &prefsRaw, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, err
	}
	if len(prefsRaw) > 0 {
		if err := json.Unmarshal(prefsRaw, &s.NotificationPrefs); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Get returns the singleton settings row, creating it with defaults on
// first use so callers never have to special-case "not configured yet".
func (r *SettingsRepository) Get() (*models.Settings, error) {
	query := `SELECT id, consider_funding, max_concurrent_trades, notification_prefs, updated_at FROM settings WHERE id = 1`
	s, err := r.scanSettings(r.db.QueryRow(query))
	if errors.Is(err, ErrSettingsNotFound) {
		return r.createDefaults()
	}
	return s, err
}

func (r *SettingsRepository) createDefaults() (*models.Settings, error) {
	defaults := &models.Settings{
		ID:                1,
		ConsiderFunding:   false,
		NotificationPrefs: defaultNotificationPrefs(),
		UpdatedAt:         time.Now(),
	}
	if err := r.Update(defaults); err != nil {
		return nil, err
	}
	return defaults, nil
}

func defaultNotificationPrefs() models.NotificationPreferences {
	return models.NotificationPreferences{
		Open: true, Close: true, StopLoss: true, Liquidation: true,
		APIError: true, Margin: true, Pause: true, SecondLegFail: true,
	}
}

// Update upserts the singleton row.
func (r *SettingsRepository) Update(settings *models.Settings) error {
	prefsJSON, err := json.Marshal(settings.NotificationPrefs)
	if err != nil {
		return err
	}
	settings.UpdatedAt = time.Now()

	query := `
		INSERT INTO settings (id, consider_funding, max_concurrent_trades, notification_prefs, updated_at)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			consider_funding = EXCLUDED.consider_funding,
			max_concurrent_trades = EXCLUDED.max_concurrent_trades,
			notification_prefs = EXCLUDED.notification_prefs,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.Exec(query, settings.ConsiderFunding, settings.MaxConcurrentTrades, prefsJSON, settings.UpdatedAt)
	return err
}

func (r *SettingsRepository) UpdateNotificationPrefs(prefs models.NotificationPreferences) error {
	s, err := r.Get()
	if err != nil {
		return err
	}
	s.NotificationPrefs = prefs
	return r.Update(s)
}

func (r *SettingsRepository) UpdateConsiderFunding(consider bool) error {
	s, err := r.Get()
	if err != nil {
		return err
	}
	s.ConsiderFunding = consider
	return r.Update(s)
}

func (r *SettingsRepository) UpdateMaxConcurrentTrades(maxTrades *int) error {
	s, err := r.Get()
	if err != nil {
		return err
	}
	s.MaxConcurrentTrades = maxTrades
	return r.Update(s)
}

func (r *SettingsRepository) GetNotificationPrefs() (*models.NotificationPreferences, error) {
	s, err := r.Get()
	if err != nil {
		return nil, err
	}
	return &s.NotificationPrefs, nil
}

func (r *SettingsRepository) GetMaxConcurrentTrades() (*int, error) {
	s, err := r.Get()
	if err != nil {
		return nil, err
	}
	return s.MaxConcurrentTrades, nil
}

// ResetToDefaults restores factory settings (everything enabled, no concurrency cap).
func (r *SettingsRepository) ResetToDefaults() error {
	return r.Update(&models.Settings{
		ID:                  1,
		ConsiderFunding:     false,
		MaxConcurrentTrades: nil,
		NotificationPrefs:   defaultNotificationPrefs(),
	})
}
