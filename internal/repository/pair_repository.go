package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"arbitrage/internal/models"
)

// Ошибки репозитория торговых пар
var (
	ErrPairNotFound = errors.New("pair not found")
	ErrPairExists   = errors.New("symbol already configured")
)

// PairRepository хранит настройки торговых пар дашборда и их локальную
// статистику (trades_count, total_pnl) в таблице pairs. internal/gridcfg
// эту таблицу не читает: конфигурация торгового ядра берется только из
// переменных окружения.
type PairRepository struct {
	db *sql.DB
}

func NewPairRepository(db *sql.DB) *PairRepository {
	return &PairRepository{db: db}
}

const pairColumns = `id, symbol, base, quote, entry_spread_pct, exit_spread_pct, volume_asset,
	n_orders, stop_loss, status, trades_count, total_pnl, created_at, updated_at`

// Create заводит новую пару
func (r *PairRepository) Create(pair *models.PairConfig) error {
	query := `
		INSERT INTO pairs (symbol, base, quote, entry_spread_pct, exit_spread_pct, volume_asset, n_orders, stop_loss, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	now := time.Now()
	pair.CreatedAt = now
	pair.UpdatedAt = now
	if pair.Status == "" {
		pair.Status = models.PairStatusPaused
	}

	err := r.db.QueryRow(
		query,
		strings.ToUpper(pair.Symbol),
		strings.ToUpper(pair.Base),
		strings.ToUpper(pair.Quote),
		pair.EntrySpreadPct,
		pair.ExitSpreadPct,
		pair.VolumeAsset,
		pair.NOrders,
		pair.StopLoss,
		pair.Status,
		pair.CreatedAt,
		pair.UpdatedAt,
	).Scan(&pair.ID)

	if err != nil {
		if isPairUniqueViolation(err) {
			return ErrPairExists
		}
		return err
	}

	return nil
}

func (r *PairRepository) scanPair(row *sql.Row) (*models.PairConfig, error) {
	pair := &models.PairConfig{}
	err := row.Scan(
		&pair.ID, &pair.Symbol, &pair.Base, &pair.Quote,
		&pair.EntrySpreadPct, &pair.ExitSpreadPct, &pair.VolumeAsset,
		&pair.NOrders, &pair.StopLoss, &pair.Status,
		&pair.TradesCount, &pair.TotalPnl, &pair.CreatedAt, &pair.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPairNotFound
		}
		return nil, err
	}
	return pair, nil
}

// GetByID возвращает пару по ID
func (r *PairRepository) GetByID(id int) (*models.PairConfig, error) {
	query := `SELECT ` + pairColumns + ` FROM pairs WHERE id = $1`
	return r.scanPair(r.db.QueryRow(query, id))
}

func (r *PairRepository) queryPairs(query string, args ...interface{}) ([]*models.PairConfig, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []*models.PairConfig
	for rows.Next() {
		pair := &models.PairConfig{}
		if err := rows.Scan(
			&pair.ID, &pair.Symbol, &pair.Base, &pair.Quote,
			&pair.EntrySpreadPct, &pair.ExitSpreadPct, &pair.VolumeAsset,
			&pair.NOrders, &pair.StopLoss, &pair.Status,
			&pair.TradesCount, &pair.TotalPnl, &pair.CreatedAt, &pair.UpdatedAt,
		); err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pairs, nil
}

// GetAll возвращает все сконфигурированные пары
func (r *PairRepository) GetAll() ([]*models.PairConfig, error) {
	return r.queryPairs(`SELECT ` + pairColumns + ` FROM pairs ORDER BY symbol`)
}

// GetActive возвращает пары со статусом active.
func (r *PairRepository) GetActive() ([]*models.PairConfig, error) {
	return r.queryPairs(`SELECT `+pairColumns+` FROM pairs WHERE status = $1 ORDER BY symbol`, models.PairStatusActive)
}

// Update перезаписывает параметры пары целиком
func (r *PairRepository) Update(pair *models.PairConfig) error {
	query := `
		UPDATE pairs
		SET entry_spread_pct = $1, exit_spread_pct = $2, volume_asset = $3,
		    n_orders = $4, stop_loss = $5, status = $6, updated_at = $7
		WHERE id = $8`

	pair.UpdatedAt = time.Now()
	result, err := r.db.Exec(query, pair.EntrySpreadPct, pair.ExitSpreadPct, pair.VolumeAsset,
		pair.NOrders, pair.StopLoss, pair.Status, pair.UpdatedAt, pair.ID)
	if err != nil {
		return err
	}
	return checkRowsAffected(result, ErrPairNotFound)
}

// Delete удаляет пару
func (r *PairRepository) Delete(id int) error {
	result, err := r.db.Exec(`DELETE FROM pairs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(result, ErrPairNotFound)
}

// UpdateStatus переключает пару между paused/active. Это только запись
// в таблице pairs: маршруты торгового ядра строятся из переменных
// окружения и от этого статуса не зависят.
func (r *PairRepository) UpdateStatus(id int, status string) error {
	result, err := r.db.Exec(`UPDATE pairs SET status = $1, updated_at = $2 WHERE id = $3`, status, time.Now(), id)
	if err != nil {
		return err
	}
	return checkRowsAffected(result, ErrPairNotFound)
}

// UpdateParams updates the grid/quantity/risk fields a dashboard operator tunes live.
func (r *PairRepository) UpdateParams(id int, entrySpread, exitSpread, volume float64, nOrders int, stopLoss float64) error {
	query := `
		UPDATE pairs
		SET entry_spread_pct = $1, exit_spread_pct = $2, volume_asset = $3, n_orders = $4, stop_loss = $5, updated_at = $6
		WHERE id = $7`
	result, err := r.db.Exec(query, entrySpread, exitSpread, volume, nOrders, stopLoss, time.Now(), id)
	if err != nil {
		return err
	}
	return checkRowsAffected(result, ErrPairNotFound)
}

func (r *PairRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM pairs`).Scan(&count)
	return count, err
}

func (r *PairRepository) CountActive() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM pairs WHERE status = $1`, models.PairStatusActive).Scan(&count)
	return count, err
}

func (r *PairRepository) ExistsBySymbol(symbol string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM pairs WHERE symbol = $1)`, strings.ToUpper(symbol)).Scan(&exists)
	return exists, err
}

// IncrementTrades adds one to trades_count. The reporting bridge reaches
// it through StatsService.RecordTradeCompletion after each completed
// close (opens are not counted); PairService also calls it.
func (r *PairRepository) IncrementTrades(id int) error {
	result, err := r.db.Exec(`UPDATE pairs SET trades_count = trades_count + 1, updated_at = $1 WHERE id = $2`, time.Now(), id)
	if err != nil {
		return err
	}
	return checkRowsAffected(result, ErrPairNotFound)
}

// UpdatePnl adds a realized PnL delta; it is reached by the same paths
// as IncrementTrades.
func (r *PairRepository) UpdatePnl(id int, pnl float64) error {
	result, err := r.db.Exec(`UPDATE pairs SET total_pnl = total_pnl + $1, updated_at = $2 WHERE id = $3`, pnl, time.Now(), id)
	if err != nil {
		return err
	}
	return checkRowsAffected(result, ErrPairNotFound)
}

func (r *PairRepository) Search(query string) ([]*models.PairConfig, error) {
	return r.queryPairs(`SELECT `+pairColumns+` FROM pairs WHERE UPPER(symbol) LIKE UPPER($1) ORDER BY symbol`, "%"+query+"%")
}

// ResetStats zeroes the locally accumulated trade count and PnL.
func (r *PairRepository) ResetStats(id int) error {
	result, err := r.db.Exec(`UPDATE pairs SET trades_count = 0, total_pnl = 0, updated_at = $1 WHERE id = $2`, time.Now(), id)
	if err != nil {
		return err
	}
	return checkRowsAffected(result, ErrPairNotFound)
}

func checkRowsAffected(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

func isPairUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate key") || strings.Contains(errStr, "23505")
}
