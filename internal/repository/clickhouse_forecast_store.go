package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	pkgch "FinCast/pkg/clickhouse"
	applogger "FinCast/pkg/logger"
)

const (
	forecastTable = "forecast_results"
	chunkSize     = 500
)

var forecastColumns = []string{
	"run_id", "ticker", "as_of", "created_at", "fit_window", "window",
	"predicted_return", "sharpe_ratio", "predicted_date", "stage", "error",
}

// CHForecastStore implements ForecastStore backed by ClickHouse.
type CHForecastStore struct {
	db *sql.DB
	l  *applogger.Logger
}

var _ domrepo.ForecastStore = (*CHForecastStore)(nil)

func NewCHForecastStore(ch *pkgch.Client, l *applogger.Logger) *CHForecastStore {
	return &CHForecastStore{db: ch.DB(), l: applogger.OrNop(l)}
}

func (s *CHForecastStore) SaveResults(ctx context.Context, recs []models.ForecastRecord) error {
	for start := 0; start < len(recs); start += chunkSize {
		end := start + chunkSize
		if end > len(recs) {
			end = len(recs)
		}
		q, args := forecastInsert(recs[start:end])
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse save_results error", applogger.Int("rows", end-start), applogger.Error(err))
			return fmt.Errorf("save results: %w", err)
		}
	}
	return nil
}

func (s *CHForecastStore) Latest(ctx context.Context, ticker string, limit int) ([]models.ForecastRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE ticker = ? ORDER BY created_at DESC LIMIT ?",
		strings.Join(forecastColumns, ", "), forecastTable)
	rows, err := s.db.QueryContext(ctx, q, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("latest results: %w", err)
	}
	defer rows.Close()

	out := make([]models.ForecastRecord, 0, limit)
	for rows.Next() {
		var (
			r          models.ForecastRecord
			fit, win   uint16
			asOf, made time.Time
		)
		if err := rows.Scan(&r.RunID, &r.Ticker, &asOf, &made, &fit, &win,
			&r.PredictedReturn, &r.SharpeRatio, &r.PredictedDate, &r.Stage, &r.Error); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.AsOf, r.CreatedAt = asOf.UTC(), made.UTC()
		r.FitWindow, r.Window = int(fit), int(win)
		out = append(out, r)
	}
	return out, rows.Err()
}

func forecastInsert(recs []models.ForecastRecord) (string, []interface{}) {
	ph := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(forecastColumns)), ", ") + ")"
	values := make([]string, 0, len(recs))
	args := make([]interface{}, 0, len(recs)*len(forecastColumns))
	for _, r := range recs {
		values = append(values, ph)
		args = append(args,
			r.RunID, r.Ticker, r.AsOf, r.CreatedAt, uint16(r.FitWindow), uint16(r.Window),
			r.PredictedReturn, r.SharpeRatio, r.PredictedDate, r.Stage, r.Error,
		)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		forecastTable, strings.Join(forecastColumns, ", "), strings.Join(values, ","))
	return q, args
}
