package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	"github.com/samber/oops"

	alertDomain "github.com/threatwatch-io/threatwatch/internal/modules/alert/domain"
	"github.com/threatwatch-io/threatwatch/internal/modules/monitor/domain"
	sharederrors "github.com/threatwatch-io/threatwatch/internal/shared/errors"
)

// SQLiteStorage implements monitor.Repository backed by SQLite.
type SQLiteStorage struct {
	db *sqlx.DB
}

// NewSQLiteStorage creates a SQLite-backed monitor repository.
func NewSQLiteStorage(db *sqlx.DB) Repository {
	return &SQLiteStorage{db: db}
}

type monitorRow struct {
	ID                   string     `db:"id"`
	UserID               string     `db:"user_id"`
	Term                 string     `db:"term"`
	Description          string     `db:"description"`
	Keywords             string     `db:"keywords"`
	ExcludeKeywords      string     `db:"exclude_keywords"`
	Frequency            string     `db:"frequency"`
	SeverityThreshold    string     `db:"severity_threshold"`
	Active               bool       `db:"active"`
	CreatedAt            time.Time  `db:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at"`
	LastScanAt           *time.Time `db:"last_scan_at"`
	NextScanAt           *time.Time `db:"next_scan_at"`
	ScanCount            int        `db:"scan_count"`
	AlertCount           int        `db:"alert_count"`
	NotificationSettings string     `db:"notification_settings"`
}

func (r monitorRow) toDomain() (*domain.Monitor, error) {
	m := &domain.Monitor{
		ID:                r.ID,
		UserID:            r.UserID,
		Term:              r.Term,
		Description:       r.Description,
		Frequency:         domain.MonitorFrequency(r.Frequency),
		SeverityThreshold: alertDomain.SeverityLevel(r.SeverityThreshold),
		Active:            r.Active,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
		LastScanAt:        r.LastScanAt,
		NextScanAt:        r.NextScanAt,
		ScanCount:         r.ScanCount,
		AlertCount:        r.AlertCount,
	}
	if err := json.Unmarshal([]byte(r.Keywords), &m.Keywords); err != nil {
		return nil, oops.With("monitor_id", r.ID, "context", "failed to unmarshal keywords").Wrap(err)
	}
	if err := json.Unmarshal([]byte(r.ExcludeKeywords), &m.ExcludeKeywords); err != nil {
		return nil, oops.With("monitor_id", r.ID, "context", "failed to unmarshal exclude keywords").Wrap(err)
	}
	if err := json.Unmarshal([]byte(r.NotificationSettings), &m.NotificationSettings); err != nil {
		return nil, oops.With("monitor_id", r.ID, "context", "failed to unmarshal notification settings").Wrap(err)
	}
	return m, nil
}

func toRow(m *domain.Monitor) (*monitorRow, error) {
	keywords, err := json.Marshal(lo.Ternary(m.Keywords != nil, m.Keywords, []string{}))
	if err != nil {
		return nil, oops.With("monitor_id", m.ID, "context", "failed to marshal keywords").Wrap(err)
	}
	excluded, err := json.Marshal(lo.Ternary(m.ExcludeKeywords != nil, m.ExcludeKeywords, []string{}))
	if err != nil {
		return nil, oops.With("monitor_id", m.ID, "context", "failed to marshal exclude keywords").Wrap(err)
	}
	notify, err := json.Marshal(m.NotificationSettings)
	if err != nil {
		return nil, oops.With("monitor_id", m.ID, "context", "failed to marshal notification settings").Wrap(err)
	}
	return &monitorRow{
		ID:                   m.ID,
		UserID:               m.UserID,
		Term:                 m.Term,
		Description:          m.Description,
		Keywords:             string(keywords),
		ExcludeKeywords:      string(excluded),
		Frequency:            string(m.Frequency),
		SeverityThreshold:    string(m.SeverityThreshold),
		Active:               m.Active,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
		LastScanAt:           m.LastScanAt,
		NextScanAt:           m.NextScanAt,
		ScanCount:            m.ScanCount,
		AlertCount:           m.AlertCount,
		NotificationSettings: string(notify),
	}, nil
}

func (s *SQLiteStorage) SaveMonitor(ctx context.Context, monitor *domain.Monitor) error {
	row, err := toRow(monitor)
	if err != nil {
		return err
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO monitors (
			id, user_id, term, description, keywords, exclude_keywords,
			frequency, severity_threshold, active, created_at, updated_at,
			last_scan_at, next_scan_at, scan_count, alert_count, notification_settings
		) VALUES (
			:id, :user_id, :term, :description, :keywords, :exclude_keywords,
			:frequency, :severity_threshold, :active, :created_at, :updated_at,
			:last_scan_at, :next_scan_at, :scan_count, :alert_count, :notification_settings
		)`, row)
	if err != nil {
		return oops.With("monitor_id", monitor.ID, "context", "failed to insert monitor").Wrap(err)
	}
	return nil
}

func (s *SQLiteStorage) GetMonitor(ctx context.Context, monitorID string) (*domain.Monitor, error) {
	var row monitorRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM monitors WHERE id = ?", monitorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sharederrors.ErrMonitorNotFound
	}
	if err != nil {
		return nil, oops.With("monitor_id", monitorID, "context", "failed to read monitor").Wrap(err)
	}
	return row.toDomain()
}

func (s *SQLiteStorage) GetOwnedMonitor(ctx context.Context, monitorID, userID string) (*domain.Monitor, error) {
	var row monitorRow
	err := s.db.GetContext(ctx, &row,
		"SELECT * FROM monitors WHERE id = ? AND user_id = ?", monitorID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sharederrors.ErrMonitorNotFound
	}
	if err != nil {
		return nil, oops.With("monitor_id", monitorID, "context", "failed to read monitor").Wrap(err)
	}
	return row.toDomain()
}

func (s *SQLiteStorage) ListUserMonitors(ctx context.Context, userID string, activeOnly bool) ([]*domain.Monitor, error) {
	query := "SELECT * FROM monitors WHERE user_id = ?"
	if activeOnly {
		query += " AND active = 1"
	}
	query += " ORDER BY created_at DESC"

	var rows []monitorRow
	if err := s.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, oops.With("user_id", userID, "context", "failed to list monitors").Wrap(err)
	}

	monitors := make([]*domain.Monitor, 0, len(rows))
	for _, row := range rows {
		m, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		monitors = append(monitors, m)
	}
	return monitors, nil
}

// UpdateMonitor rewrites all mutable fields, guarded by (id, user_id) so a
// monitor can only be modified by its owner. Reports ErrMonitorNotFound when
// no row was touched.
func (s *SQLiteStorage) UpdateMonitor(ctx context.Context, monitor *domain.Monitor) error {
	row, err := toRow(monitor)
	if err != nil {
		return err
	}

	res, err := s.db.NamedExecContext(ctx, `
		UPDATE monitors SET
			term = :term, description = :description, keywords = :keywords,
			exclude_keywords = :exclude_keywords, frequency = :frequency,
			severity_threshold = :severity_threshold, active = :active,
			updated_at = :updated_at, next_scan_at = :next_scan_at,
			notification_settings = :notification_settings
		WHERE id = :id AND user_id = :user_id`, row)
	if err != nil {
		return oops.With("monitor_id", monitor.ID, "context", "failed to update monitor").Wrap(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return oops.With("monitor_id", monitor.ID, "context", "failed to read affected rows").Wrap(err)
	}
	if affected == 0 {
		return sharederrors.ErrMonitorNotFound
	}
	return nil
}

func (s *SQLiteStorage) DeleteMonitor(ctx context.Context, monitorID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM monitors WHERE id = ? AND user_id = ?", monitorID, userID)
	if err != nil {
		return oops.With("monitor_id", monitorID, "context", "failed to delete monitor").Wrap(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return oops.With("monitor_id", monitorID, "context", "failed to read affected rows").Wrap(err)
	}
	if affected == 0 {
		return sharederrors.ErrMonitorNotFound
	}
	return nil
}

func (s *SQLiteStorage) CountUserMonitors(ctx context.Context, userID string) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM monitors WHERE user_id = ?", userID); err != nil {
		return 0, oops.With("user_id", userID, "context", "failed to count monitors").Wrap(err)
	}
	return count, nil
}

// GetDueMonitors has no upper bound on how overdue a monitor may be; an
// arbitrarily late monitor is still due exactly once.
func (s *SQLiteStorage) GetDueMonitors(ctx context.Context, now time.Time) ([]*domain.Monitor, error) {
	var rows []monitorRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM monitors WHERE active = 1 AND next_scan_at IS NOT NULL AND next_scan_at <= ?", now)
	if err != nil {
		return nil, oops.With("context", "failed to query due monitors").Wrap(err)
	}

	monitors := make([]*domain.Monitor, 0, len(rows))
	for _, row := range rows {
		m, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		monitors = append(monitors, m)
	}
	return monitors, nil
}

func (s *SQLiteStorage) RecordScan(ctx context.Context, monitorID string, lastScan, nextScan time.Time, alertsGenerated int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE monitors SET
			last_scan_at = ?, next_scan_at = ?, updated_at = ?,
			scan_count = scan_count + 1, alert_count = alert_count + ?
		WHERE id = ?`,
		lastScan, nextScan, time.Now().UTC(), alertsGenerated, monitorID)
	if err != nil {
		return oops.With("monitor_id", monitorID, "context", "failed to record scan").Wrap(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return oops.With("monitor_id", monitorID, "context", "failed to read affected rows").Wrap(err)
	}
	if affected == 0 {
		return sharederrors.ErrMonitorNotFound
	}
	return nil
}
