package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"arbitrage/internal/models"
)

// Ошибки репозитория биржевых аккаунтов
var (
	ErrExchangeNotFound = errors.New("exchange account not found")
	ErrExchangeExists   = errors.New("exchange account already exists")
)

// ExchangeRepository persists the API credentials and live connection
// state of each venue account the orchestrator's exchange.VenueAdapter
// set connects to - the balanceSweep/reconnectVenue status this records
// is the same status the dashboard renders for operators.
type ExchangeRepository struct {
	db *sql.DB
}

func NewExchangeRepository(db *sql.DB) *ExchangeRepository {
	return &ExchangeRepository{db: db}
}

const exchangeColumns = `id, name, api_key, secret_key, passphrase, connected, balance, last_error, updated_at, created_at`

func (r *ExchangeRepository) Create(acc *models.ExchangeAccount) error {
	query := `
		INSERT INTO exchanges (name, api_key, secret_key, passphrase, connected, balance, last_error, updated_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	now := time.Now()
	acc.CreatedAt = now
	acc.UpdatedAt = now

	err := r.db.QueryRow(
		query,
		strings.ToLower(acc.Name),
		acc.APIKey,
		acc.SecretKey,
		acc.Passphrase,
		acc.Connected,
		acc.Balance,
		acc.LastError,
		acc.UpdatedAt,
		acc.CreatedAt,
	).Scan(&acc.ID)

	if err != nil {
		if isExchangeUniqueViolation(err) {
			return ErrExchangeExists
		}
		return err
	}
	return nil
}

func (r *ExchangeRepository) scanExchange(row *sql.Row) (*models.ExchangeAccount, error) {
	acc := &models.ExchangeAccount{}
	err := row.Scan(
		&acc.ID, &acc.Name, &acc.APIKey, &acc.SecretKey, &acc.Passphrase,
		&acc.Connected, &acc.Balance, &acc.LastError, &acc.UpdatedAt, &acc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExchangeNotFound
		}
		return nil, err
	}
	return acc, nil
}

func (r *ExchangeRepository) GetByID(id int) (*models.ExchangeAccount, error) {
	query := `SELECT ` + exchangeColumns + ` FROM exchanges WHERE id = $1`
	return r.scanExchange(r.db.QueryRow(query, id))
}

func (r *ExchangeRepository) GetByName(name string) (*models.ExchangeAccount, error) {
	query := `SELECT ` + exchangeColumns + ` FROM exchanges WHERE name = $1`
	return r.scanExchange(r.db.QueryRow(query, strings.ToLower(name)))
}

func (r *ExchangeRepository) queryExchanges(query string, args ...interface{}) ([]*models.ExchangeAccount, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.ExchangeAccount
	for rows.Next() {
		acc := &models.ExchangeAccount{}
		if err := rows.Scan(
			&acc.ID, &acc.Name, &acc.APIKey, &acc.SecretKey, &acc.Passphrase,
			&acc.Connected, &acc.Balance, &acc.LastError, &acc.UpdatedAt, &acc.CreatedAt,
		); err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *ExchangeRepository) GetAll() ([]*models.ExchangeAccount, error) {
	return r.queryExchanges(`SELECT ` + exchangeColumns + ` FROM exchanges ORDER BY name`)
}

// GetConnected returns every account currently marked connected - the
// same set balanceSweep iterates in memory, kept here so a dashboard
// restart can recover which venues were live without waiting a tick.
func (r *ExchangeRepository) GetConnected() ([]*models.ExchangeAccount, error) {
	return r.queryExchanges(`SELECT `+exchangeColumns+` FROM exchanges WHERE connected = $1 ORDER BY name`, true)
}

func (r *ExchangeRepository) Update(acc *models.ExchangeAccount) error {
	query := `
		UPDATE exchanges
		SET api_key = $1, secret_key = $2, passphrase = $3, connected = $4, balance = $5, last_error = $6, updated_at = $7
		WHERE id = $8`

	acc.UpdatedAt = time.Now()
	result, err := r.db.Exec(query, acc.APIKey, acc.SecretKey, acc.Passphrase, acc.Connected, acc.Balance, acc.LastError, acc.UpdatedAt, acc.ID)
	if err != nil {
		return err
	}
	return checkRowsAffected(result, ErrExchangeNotFound)
}

func (r *ExchangeRepository) Delete(id int) error {
	result, err := r.db.Exec(`DELETE FROM exchanges WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(result, ErrExchangeNotFound)
}

// UpdateBalance is the balanceSweep write path: every 30s tick's
// GetBalance result lands here keyed by account id.
func (r *ExchangeRepository) UpdateBalance(id int, balance float64) error {
	result, err := r.db.Exec(`UPDATE exchanges SET balance = $1, connected = true, last_error = '', updated_at = $2 WHERE id = $3`,
		balance, time.Now(), id)
	if err != nil {
		return err
	}
	return checkRowsAffected(result, ErrExchangeNotFound)
}

// SetLastError records a failed balance poll or reconnect attempt,
// marking the account disconnected the way reconnectVenue observes it.
func (r *ExchangeRepository) SetLastError(id int, errMsg string) error {
	result, err := r.db.Exec(`UPDATE exchanges SET connected = false, last_error = $1, updated_at = $2 WHERE id = $3`,
		errMsg, time.Now(), id)
	if err != nil {
		return err
	}
	return checkRowsAffected(result, ErrExchangeNotFound)
}

func (r *ExchangeRepository) CountConnected() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM exchanges WHERE connected = $1`, true).Scan(&count)
	return count, err
}

func isExchangeUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate key") || strings.Contains(errStr, "23505")
}
