package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"arbitrage/internal/models"
)

// NotificationRepository persists the notification feed (the orchestrator
// emits OPEN, CLOSE, EMERGENCY_CLOSE and self-heal ERROR events),
// so a dashboard restart doesn't lose the recent activity log.
type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification, JSON-encoding Meta into a jsonb column.
func (r *NotificationRepository) Create(notif *models.Notification) error {
	if notif.Timestamp.IsZero() {
		notif.Timestamp = time.Now()
	}
	metaJSON, err := encodeMeta(notif.Meta)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO notifications (timestamp, type, severity, pair_id, message, meta)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	return r.db.QueryRow(query, notif.Timestamp, notif.Type, notif.Severity, notif.PairID, notif.Message, metaJSON).Scan(&notif.ID)
}

func encodeMeta(meta map[string]interface{}) ([]byte, error) {
	if meta == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(meta)
}

func scanNotification(rows *sql.Rows) (*models.Notification, error) {
	n := &models.Notification{}
	var metaRaw []byte
	if err := rows.Scan(&n.ID, &n.Timestamp, &n.Type, &n.Severity, &n.PairID, &n.Message, &metaRaw); err != nil {
		return nil, err
	}
	if len(metaRaw) > 0 {
		if err := json.Unmarshal(metaRaw, &n.Meta); err != nil {
			return nil, err
		}
	}
	return n, nil
}

const notificationColumns = `id, timestamp, type, severity, pair_id, message, meta`

func (r *NotificationRepository) queryNotifications(query string, args ...interface{}) ([]*models.Notification, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRecent returns the latest limit notifications, newest first.
func (r *NotificationRepository) GetRecent(limit int) ([]*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications ORDER BY timestamp DESC LIMIT $1`
	return r.queryNotifications(query, limit)
}

// GetByTypes filters to the given notification types (its
// per-channel preferences narrow which types a dashboard subscriber sees).
func (r *NotificationRepository) GetByTypes(types []string, limit int) ([]*models.Notification, error) {
	if len(types) == 0 {
		return r.GetRecent(limit)
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE type = ANY($1) ORDER BY timestamp DESC LIMIT $2`
	return r.queryNotifications(query, pq.Array(types), limit)
}

func (r *NotificationRepository) DeleteAll() error {
	_, err := r.db.Exec(`DELETE FROM notifications`)
	return err
}

func (r *NotificationRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM notifications`).Scan(&count)
	return count, err
}

func (r *NotificationRepository) CountByType(notifType string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM notifications WHERE type = $1`, notifType).Scan(&count)
	return count, err
}

// KeepRecent trims the notification log down to the most recent
// keepCount rows, returning how many were deleted.
func (r *NotificationRepository) KeepRecent(keepCount int) (int64, error) {
	result, err := r.db.Exec(`
		DELETE FROM notifications
		WHERE id NOT IN (
			SELECT id FROM notifications ORDER BY timestamp DESC LIMIT $1
		)`, keepCount)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
