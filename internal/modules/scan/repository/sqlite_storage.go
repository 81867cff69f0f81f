package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/oops"
	"github.com/shopspring/decimal"

	"github.com/threatwatch-io/threatwatch/internal/modules/scan/domain"
)

// SQLiteStorage implements scan.Repository backed by SQLite.
type SQLiteStorage struct {
	db *sqlx.DB
}

// NewSQLiteStorage creates a SQLite-backed scan record repository.
func NewSQLiteStorage(db *sqlx.DB) Repository {
	return &SQLiteStorage{db: db}
}

type recordRow struct {
	ID                string    `db:"id"`
	MonitorID         string    `db:"monitor_id"`
	ScanTimestamp     time.Time `db:"scan_timestamp"`
	ScanDurationMs    int64     `db:"scan_duration_ms"`
	ArticlesProcessed int       `db:"articles_processed"`
	AlertsGenerated   int       `db:"alerts_generated"`
	SearchQueries     int       `db:"search_queries"`
	InputTokens       int64     `db:"llm_input_tokens"`
	OutputTokens      int64     `db:"llm_output_tokens"`
	TotalTokens       int64     `db:"llm_tokens"`
	TotalCost         string    `db:"total_cost"`
	Query             string    `db:"query"`
	Timeframe         string    `db:"timeframe"`
	Errors            string    `db:"errors"`
	Success           bool      `db:"success"`
}

func (s *SQLiteStorage) SaveRecord(ctx context.Context, record *domain.ScanRecord) error {
	errs, err := json.Marshal(record.Errors)
	if err != nil {
		return oops.With("record_id", record.ID, "context", "failed to marshal errors").Wrap(err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scan_records (
			id, monitor_id, scan_timestamp, scan_duration_ms, articles_processed,
			alerts_generated, search_queries, llm_input_tokens, llm_output_tokens,
			llm_tokens, total_cost, query, timeframe, errors, success
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.MonitorID, record.ScanTimestamp,
		record.ScanDuration.Milliseconds(), record.ArticlesProcessed,
		record.AlertsGenerated, record.APICosts.SearchQueries,
		record.APICosts.InputTokens, record.APICosts.OutputTokens,
		record.APICosts.TotalTokens, record.APICosts.TotalCost.String(),
		record.Metadata.Query, record.Metadata.Timeframe, string(errs), record.Success)
	if err != nil {
		return oops.With("record_id", record.ID, "context", "failed to insert scan record").Wrap(err)
	}
	return nil
}

func (s *SQLiteStorage) ListForMonitor(ctx context.Context, monitorID string, limit int) ([]*domain.ScanRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []recordRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM scan_records WHERE monitor_id = ?
		ORDER BY scan_timestamp DESC LIMIT ?`, monitorID, limit)
	if err != nil {
		return nil, oops.With("monitor_id", monitorID, "context", "failed to list scan records").Wrap(err)
	}

	records := make([]*domain.ScanRecord, 0, len(rows))
	for _, row := range rows {
		rec := &domain.ScanRecord{
			ID:                row.ID,
			MonitorID:         row.MonitorID,
			ScanTimestamp:     row.ScanTimestamp,
			ScanDuration:      time.Duration(row.ScanDurationMs) * time.Millisecond,
			ArticlesProcessed: row.ArticlesProcessed,
			AlertsGenerated:   row.AlertsGenerated,
			APICosts: domain.APICosts{
				SearchQueries: row.SearchQueries,
				InputTokens:   row.InputTokens,
				OutputTokens:  row.OutputTokens,
				TotalTokens:   row.TotalTokens,
			},
			Metadata: domain.ScanMetadata{Query: row.Query, Timeframe: row.Timeframe},
			Success:  row.Success,
		}
		cost, err := decimal.NewFromString(row.TotalCost)
		if err != nil {
			return nil, oops.With("record_id", row.ID, "context", "failed to parse total cost").Wrap(err)
		}
		rec.APICosts.TotalCost = cost
		if err := json.Unmarshal([]byte(row.Errors), &rec.Errors); err != nil {
			return nil, oops.With("record_id", row.ID, "context", "failed to unmarshal errors").Wrap(err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *SQLiteStorage) Summarize(ctx context.Context, since time.Time) (*Summary, error) {
	var rows []recordRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM scan_records WHERE scan_timestamp >= ?", since)
	if err != nil {
		return nil, oops.With("context", "failed to summarize scan records").Wrap(err)
	}

	summary := &Summary{}
	total := decimal.Zero
	var durationMs int64
	for _, row := range rows {
		summary.TotalScans++
		if row.Success {
			summary.SuccessfulScans++
		}
		durationMs += row.ScanDurationMs
		if cost, err := decimal.NewFromString(row.TotalCost); err == nil {
			total = total.Add(cost)
		}
	}
	if summary.TotalScans > 0 {
		summary.AvgDurationSecs = float64(durationMs) / float64(summary.TotalScans) / 1000
	}
	summary.TotalCost = total.String()
	return summary, nil
}
