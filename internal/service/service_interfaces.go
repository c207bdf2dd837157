package service

import "context"
import "arbitrage/internal/models"

// The interfaces below let handlers depend on behavior rather than
// concrete services, so tests in internal/api/handlers can swap in a
// mock without touching the handler code itself.

// ExchangeServiceInterface определяет интерфейс сервиса бирж
type ExchangeServiceInterface interface {
	ConnectExchange(ctx context.Context, name, apiKey, secretKey, passphrase string) error
	DisconnectExchange(ctx context.Context, name string) error
	UpdateBalance(ctx context.Context, name string) (float64, error)
	GetAllExchanges() ([]*models.ExchangeAccount, error)
	GetExchangeByName(name string) (*models.ExchangeAccount, error)
}

// SettingsServiceInterface определяет интерфейс сервиса настроек
type SettingsServiceInterface interface {
	GetSettings() (*models.Settings, error)
	UpdateSettings(req *UpdateSettingsRequest) (*models.Settings, error)
	GetNotificationPrefs() (*models.NotificationPreferences, error)
	GetMaxConcurrentTrades() (*int, error)
	ResetToDefaults() error
}

// NotificationServiceInterface определяет интерфейс сервиса уведомлений
type NotificationServiceInterface interface {
	GetNotifications(types []string, limit int) ([]*models.Notification, error)
	ClearNotifications() error
	CreateNotification(notif *models.Notification) error
	GetNotificationCount() (int, error)
}

// StatsServiceInterface определяет интерфейс сервиса статистики
type StatsServiceInterface interface {
	GetStats() (*models.Stats, error)
	GetTopPairs(metric string, limit int) ([]models.PairStat, error)
	ResetStats() error
}

// BlacklistServiceInterface определяет интерфейс сервиса черного списка
type BlacklistServiceInterface interface {
	AddToBlacklist(symbol, reason string) (*models.BlacklistEntry, error)
	GetBlacklist() ([]*models.BlacklistEntry, error)
	RemoveFromBlacklist(symbol string) error
	GetBySymbol(symbol string) (*models.BlacklistEntry, error)
	IsBlacklisted(symbol string) (bool, error)
	UpdateReason(symbol, reason string) error
	Search(query string) ([]*models.BlacklistEntry, error)
	GetCount() (int, error)
	ClearAll() error
}

var _ ExchangeServiceInterface = (*ExchangeService)(nil)
var _ SettingsServiceInterface = (*SettingsService)(nil)
var _ NotificationServiceInterface = (*NotificationService)(nil)
var _ StatsServiceInterface = (*StatsService)(nil)
var _ BlacklistServiceInterface = (*BlacklistService)(nil)
