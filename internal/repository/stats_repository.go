package repository

import (
	"database/sql"
	"time"

	"arbitrage/internal/models"
)

// Trade is one completed arbitrage round-trip (open+close) as recorded
// in the trades table, joined by pair_id to internal/models.PairConfig.
type Trade struct {
	ID             int
	PairID         int
	Symbol         string
	ExchangeBuy    string
	ExchangeSell   string
	EntryTime      time.Time
	ExitTime       time.Time
	Pnl            float64
	WasStopLoss    bool
	WasLiquidation bool
}

// StatsRepository aggregates the trades table into the day/week/month
// rollups the dashboard renders (models.Stats), derived live from
// trades rather than maintained as running counters.
type StatsRepository struct {
	db *sql.DB
}

func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// RecordTrade inserts one completed round-trip.
func (r *StatsRepository) RecordTrade(pairID int, symbol string, exchanges [2]string, entryTime, exitTime time.Time, pnl float64, wasStopLoss, wasLiquidation bool) error {
	query := `
		INSERT INTO trades (pair_id, symbol, exchange_buy, exchange_sell, entry_time, exit_time, pnl, was_stop_loss, was_liquidation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.Exec(query, pairID, symbol, exchanges[0], exchanges[1], entryTime, exitTime, pnl, wasStopLoss, wasLiquidation)
	return err
}

func countAndSumSince(db *sql.DB, since time.Time) (count int, pnl float64, err error) {
	err = db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(pnl), 0) FROM trades WHERE exit_time >= $1`, since).Scan(&count, &pnl)
	return
}

// GetStats computes the full aggregate view: lifetime, today/week/month
// counts and PnL, stop-loss/liquidation tallies, and top-5 pair tables.
func (r *StatsRepository) GetStats() (*models.Stats, error) {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := dayStart.AddDate(0, 0, -int(dayStart.Weekday()))
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	s := &models.Stats{}
	var err error
	if s.TotalTrades, s.TotalPnl, err = countAndSumSince(r.db, time.Time{}); err != nil {
		return nil, err
	}
	if s.TodayTrades, s.TodayPnl, err = countAndSumSince(r.db, dayStart); err != nil {
		return nil, err
	}
	if s.WeekTrades, s.WeekPnl, err = countAndSumSince(r.db, weekStart); err != nil {
		return nil, err
	}
	if s.MonthTrades, s.MonthPnl, err = countAndSumSince(r.db, monthStart); err != nil {
		return nil, err
	}

	if err := r.db.QueryRow(`SELECT COUNT(*) FROM trades WHERE was_stop_loss = true AND exit_time >= $1`, dayStart).Scan(&s.StopLossCount.Today); err != nil {
		return nil, err
	}
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM trades WHERE was_stop_loss = true AND exit_time >= $1`, weekStart).Scan(&s.StopLossCount.Week); err != nil {
		return nil, err
	}
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM trades WHERE was_stop_loss = true AND exit_time >= $1`, monthStart).Scan(&s.StopLossCount.Month); err != nil {
		return nil, err
	}
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM trades WHERE was_liquidation = true AND exit_time >= $1`, dayStart).Scan(&s.LiquidationCount.Today); err != nil {
		return nil, err
	}
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM trades WHERE was_liquidation = true AND exit_time >= $1`, weekStart).Scan(&s.LiquidationCount.Week); err != nil {
		return nil, err
	}
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM trades WHERE was_liquidation = true AND exit_time >= $1`, monthStart).Scan(&s.LiquidationCount.Month); err != nil {
		return nil, err
	}

	var err2 error
	if s.TopPairsByTrades, err2 = r.GetTopPairsByTrades(5); err2 != nil {
		return nil, err2
	}
	if s.TopPairsByProfit, err2 = r.GetTopPairsByProfit(5); err2 != nil {
		return nil, err2
	}
	if s.TopPairsByLoss, err2 = r.GetTopPairsByLoss(5); err2 != nil {
		return nil, err2
	}

	return s, nil
}

func (r *StatsRepository) topPairs(query string, limit int) ([]models.PairStat, error) {
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PairStat
	for rows.Next() {
		var p models.PairStat
		if err := rows.Scan(&p.Symbol, &p.Value); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *StatsRepository) GetTopPairsByTrades(limit int) ([]models.PairStat, error) {
	return r.topPairs(`SELECT symbol, COUNT(*)::float8 AS value FROM trades GROUP BY symbol ORDER BY value DESC LIMIT $1`, limit)
}

func (r *StatsRepository) GetTopPairsByProfit(limit int) ([]models.PairStat, error) {
	return r.topPairs(`SELECT symbol, COALESCE(SUM(pnl), 0) AS value FROM trades GROUP BY symbol ORDER BY value DESC LIMIT $1`, limit)
}

func (r *StatsRepository) GetTopPairsByLoss(limit int) ([]models.PairStat, error) {
	return r.topPairs(`SELECT symbol, COALESCE(SUM(pnl), 0) AS value FROM trades GROUP BY symbol ORDER BY value ASC LIMIT $1`, limit)
}

// ResetCounters deletes every recorded trade, zeroing every rollup this
// repository derives.
func (r *StatsRepository) ResetCounters() error {
	_, err := r.db.Exec(`DELETE FROM trades`)
	return err
}

func (r *StatsRepository) GetTradesByPairID(pairID int, limit int) ([]*Trade, error) {
	return r.queryTrades(`SELECT id, pair_id, symbol, exchange_buy, exchange_sell, entry_time, exit_time, pnl, was_stop_loss, was_liquidation
		FROM trades WHERE pair_id = $1 ORDER BY exit_time DESC LIMIT $2`, pairID, limit)
}

func (r *StatsRepository) GetTradesInTimeRange(from, to time.Time, limit int) ([]*Trade, error) {
	return r.queryTrades(`SELECT id, pair_id, symbol, exchange_buy, exchange_sell, entry_time, exit_time, pnl, was_stop_loss, was_liquidation
		FROM trades WHERE exit_time >= $1 AND exit_time <= $2 ORDER BY exit_time DESC LIMIT $3`, from, to, limit)
}

func (r *StatsRepository) queryTrades(query string, args ...interface{}) ([]*Trade, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Trade
	for rows.Next() {
		t := &Trade{}
		if err := rows.Scan(&t.ID, &t.PairID, &t.Symbol, &t.ExchangeBuy, &t.ExchangeSell, &t.EntryTime, &t.ExitTime, &t.Pnl, &t.WasStopLoss, &t.WasLiquidation); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *StatsRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM trades`).Scan(&count)
	return count, err
}

func (r *StatsRepository) GetPNLBySymbol(symbol string) (float64, error) {
	var pnl float64
	err := r.db.QueryRow(`SELECT COALESCE(SUM(pnl), 0) FROM trades WHERE symbol = $1`, symbol).Scan(&pnl)
	return pnl, err
}

func (r *StatsRepository) DeleteOlderThan(olderThan time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM trades WHERE exit_time < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
