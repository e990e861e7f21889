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

const closesTable = "daily_closes"

// CHCloseStore serves daily closes from ClickHouse and ingests new ones.
type CHCloseStore struct {
	db *sql.DB
	l  *applogger.Logger
}

var _ domrepo.MarketData = (*CHCloseStore)(nil)

func NewCHCloseStore(ch *pkgch.Client, l *applogger.Logger) *CHCloseStore {
	return &CHCloseStore{db: ch.DB(), l: applogger.OrNop(l)}
}

func (s *CHCloseStore) GetDailyCloses(ctx context.Context, ticker string, start, end time.Time) (*models.TimeSeries, error) {
	began := time.Now()
	q := fmt.Sprintf(`
        SELECT day, argMax(close, updated)
        FROM %s
        WHERE ticker = ? AND day >= ? AND day <= ?
        GROUP BY day
        ORDER BY day ASC
    `, closesTable)
	rows, err := s.db.QueryContext(ctx, q, ticker, start, end)
	if err != nil {
		s.l.Error("clickhouse get_closes query error", applogger.String("ticker", ticker), applogger.Error(err))
		return nil, fmt.Errorf("get closes: %w: %v", models.ErrDataSourceUnavailable, err)
	}
	defer rows.Close()

	ts := &models.TimeSeries{Ticker: ticker}
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.Date, &p.Close); err != nil {
			return nil, fmt.Errorf("scan close: %w", err)
		}
		p.Date = p.Date.UTC()
		ts.Points = append(ts.Points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse get_closes ok",
		applogger.String("ticker", ticker),
		applogger.Int("rows", ts.Len()),
		applogger.Duration("duration_ms", time.Since(began)),
	)
	return ts, nil
}

// StoreCloses upserts a series. Rows with the same (ticker, day) collapse to the newest.
func (s *CHCloseStore) StoreCloses(ctx context.Context, ts *models.TimeSeries, source string) error {
	if ts == nil || ts.Len() == 0 {
		return nil
	}
	q, args := closesInsert(ts, source)
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("store closes %s: %w", ts.Ticker, err)
	}
	return nil
}

func closesInsert(ts *models.TimeSeries, source string) (string, []interface{}) {
	values := make([]string, 0, ts.Len())
	args := make([]interface{}, 0, ts.Len()*4)
	for _, p := range ts.Points {
		values = append(values, "(?, ?, ?, ?)")
		args = append(args, p.Date, ts.Ticker, p.Close, source)
	}
	q := fmt.Sprintf("INSERT INTO %s (day, ticker, close, source) VALUES %s", closesTable, strings.Join(values, ","))
	return q, args
}
