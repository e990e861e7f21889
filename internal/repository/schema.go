package repository

// Schema is the idempotent DDL for the ClickHouse tables used by the
// close provider and the forecast store.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS daily_closes (
        day     Date,
        ticker  LowCardinality(String),
        close   Float64,
        source  LowCardinality(String),
        updated DateTime DEFAULT now()
    ) ENGINE = ReplacingMergeTree(updated)
    ORDER BY (ticker, day)`,
	`CREATE TABLE IF NOT EXISTS forecast_results (
        run_id           String,
        ticker           LowCardinality(String),
        as_of            Date,
        created_at       DateTime64(3),
        fit_window       UInt16,
        window           UInt16,
        predicted_return Nullable(Float64),
        sharpe_ratio     Nullable(Float64),
        predicted_date   Nullable(Date),
        stage            Nullable(String),
        error            Nullable(String)
    ) ENGINE = MergeTree
    ORDER BY (ticker, created_at)`,
}
