package service

import (
	"arbitrage/internal/models"
	"arbitrage/internal/repository"
)

// NotificationBroadcaster отправляет новое уведомление всем подключенным
// dashboard-клиентам через WebSocket.
type NotificationBroadcaster interface {
	BroadcastNotification(notification interface{})
}

// NotificationService stores and fans out the activity feed (the
// orchestrator emits OPEN, CLOSE, EMERGENCY_CLOSE and self-heal ERROR
// events), gating each type against the operator's NotificationPreferences.
type NotificationService struct {
	notifRepo    *repository.NotificationRepository
	settingsRepo *repository.SettingsRepository
	wsHub        NotificationBroadcaster
}

func NewNotificationService(notifRepo *repository.NotificationRepository, settingsRepo *repository.SettingsRepository) *NotificationService {
	return &NotificationService{notifRepo: notifRepo, settingsRepo: settingsRepo}
}

// SetWebSocketHub wires the dashboard broadcast hub, called from main.go
// once the hub is constructed.
func (s *NotificationService) SetWebSocketHub(hub NotificationBroadcaster) {
	s.wsHub = hub
}

// enabled reports whether the operator's preferences allow this
// notification type through. A missing/unreadable preference defaults
// to allowed, so a settings-row failure never silences real events.
func (s *NotificationService) enabled(notifType string) bool {
	if s.settingsRepo == nil {
		return true
	}
	prefs, err := s.settingsRepo.GetNotificationPrefs()
	if err != nil || prefs == nil {
		return true
	}
	switch notifType {
	case models.NotificationTypeOpen:
		return prefs.Open
	case models.NotificationTypeClose:
		return prefs.Close
	case models.NotificationTypeSL:
		return prefs.StopLoss
	case models.NotificationTypeLiquidation:
		return prefs.Liquidation
	case models.NotificationTypeError:
		return prefs.APIError
	case models.NotificationTypeMargin:
		return prefs.Margin
	case models.NotificationTypePause:
		return prefs.Pause
	case models.NotificationTypeSecondLegFail:
		return prefs.SecondLegFail
	default:
		return true
	}
}

// CreateNotification persists a notification and broadcasts it, unless
// its type is disabled in settings.
func (s *NotificationService) CreateNotification(notif *models.Notification) error {
	if !s.enabled(notif.Type) {
		return nil
	}
	if err := s.notifRepo.Create(notif); err != nil {
		return err
	}
	if s.wsHub != nil {
		s.wsHub.BroadcastNotification(notif)
	}
	return nil
}

// Notify is a convenience wrapper the orchestrator's reporting bridge
// calls without constructing a models.Notification by hand.
func (s *NotificationService) Notify(notifType, severity string, pairID *int, message string, meta map[string]interface{}) error {
	return s.CreateNotification(&models.Notification{
		Type:     notifType,
		Severity: severity,
		PairID:   pairID,
		Message:  message,
		Meta:     meta,
	})
}

// GetNotifications возвращает последние уведомления, опционально
// отфильтрованные по типам.
func (s *NotificationService) GetNotifications(types []string, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	notifications, err := s.notifRepo.GetByTypes(types, limit)
	if err != nil {
		return nil, err
	}
	if notifications == nil {
		notifications = []*models.Notification{}
	}
	return notifications, nil
}

// ClearNotifications очищает журнал уведомлений.
func (s *NotificationService) ClearNotifications() error {
	return s.notifRepo.DeleteAll()
}

// GetNotificationCount возвращает общее количество уведомлений в журнале.
func (s *NotificationService) GetNotificationCount() (int, error) {
	return s.notifRepo.Count()
}
