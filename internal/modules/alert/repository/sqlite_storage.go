package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/samber/oops"

	"github.com/threatwatch-io/threatwatch/internal/modules/alert/domain"
	sharederrors "github.com/threatwatch-io/threatwatch/internal/shared/errors"
)

// SQLiteStorage implements alert.Repository backed by SQLite.
type SQLiteStorage struct {
	db *sqlx.DB
}

// NewSQLiteStorage creates a SQLite-backed alert repository.
func NewSQLiteStorage(db *sqlx.DB) Repository {
	return &SQLiteStorage{db: db}
}

type alertRow struct {
	ID                 string     `db:"id"`
	MonitorID          string     `db:"monitor_id"`
	UserID             string     `db:"user_id"`
	Title              string     `db:"title"`
	Summary            string     `db:"summary"`
	Severity           string     `db:"severity"`
	ConfidenceScore    float64    `db:"confidence_score"`
	SourceCount        int        `db:"source_count"`
	Sources            string     `db:"sources"`
	ThreatIndicators   string     `db:"threat_indicators"`
	Status             string     `db:"status"`
	UserFeedback       string     `db:"user_feedback"`
	CreatedAt          time.Time  `db:"created_at"`
	NotificationSent   bool       `db:"notification_sent"`
	NotificationSentAt *time.Time `db:"notification_sent_at"`
}

func (r alertRow) toDomain() (*domain.Alert, error) {
	a := &domain.Alert{
		ID:                 r.ID,
		MonitorID:          r.MonitorID,
		UserID:             r.UserID,
		Title:              r.Title,
		Summary:            r.Summary,
		Severity:           domain.SeverityLevel(r.Severity),
		ConfidenceScore:    r.ConfidenceScore,
		SourceCount:        r.SourceCount,
		Status:             domain.AlertStatus(r.Status),
		UserFeedback:       r.UserFeedback,
		CreatedAt:          r.CreatedAt,
		NotificationSent:   r.NotificationSent,
		NotificationSentAt: r.NotificationSentAt,
	}
	if err := json.Unmarshal([]byte(r.Sources), &a.Sources); err != nil {
		return nil, oops.With("alert_id", r.ID, "context", "failed to unmarshal sources").Wrap(err)
	}
	if err := json.Unmarshal([]byte(r.ThreatIndicators), &a.ThreatIndicators); err != nil {
		return nil, oops.With("alert_id", r.ID, "context", "failed to unmarshal threat indicators").Wrap(err)
	}
	return a, nil
}

func (s *SQLiteStorage) SaveAlert(ctx context.Context, alert *domain.Alert) error {
	sources, err := json.Marshal(alert.Sources)
	if err != nil {
		return oops.With("alert_id", alert.ID, "context", "failed to marshal sources").Wrap(err)
	}
	indicators, err := json.Marshal(alert.ThreatIndicators)
	if err != nil {
		return oops.With("alert_id", alert.ID, "context", "failed to marshal threat indicators").Wrap(err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alerts (
			id, monitor_id, user_id, title, summary, severity, confidence_score,
			source_count, sources, threat_indicators, status, user_feedback,
			created_at, notification_sent, notification_sent_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID, alert.MonitorID, alert.UserID, alert.Title, alert.Summary,
		string(alert.Severity), alert.ConfidenceScore, alert.SourceCount,
		string(sources), string(indicators), string(alert.Status),
		alert.UserFeedback, alert.CreatedAt, alert.NotificationSent,
		alert.NotificationSentAt)
	if err != nil {
		return oops.With("alert_id", alert.ID, "context", "failed to insert alert").Wrap(err)
	}
	return nil
}

func (s *SQLiteStorage) GetAlert(ctx context.Context, alertID, userID string) (*domain.Alert, error) {
	var row alertRow
	err := s.db.GetContext(ctx, &row,
		"SELECT * FROM alerts WHERE id = ? AND user_id = ?", alertID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sharederrors.ErrAlertNotFound
	}
	if err != nil {
		return nil, oops.With("alert_id", alertID, "context", "failed to read alert").Wrap(err)
	}
	return row.toDomain()
}

func (s *SQLiteStorage) ListUserAlerts(ctx context.Context, userID string, filter ListFilter) ([]*domain.Alert, error) {
	builder := sq.Select("*").From("alerts").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC")

	if filter.MonitorID != nil {
		builder = builder.Where(sq.Eq{"monitor_id": *filter.MonitorID})
	}
	if filter.Status != nil {
		builder = builder.Where(sq.Eq{"status": string(*filter.Status)})
	}
	if filter.Severity != nil {
		builder = builder.Where(sq.Eq{"severity": string(*filter.Severity)})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, oops.With("user_id", userID, "context", "failed to build alert query").Wrap(err)
	}

	var rows []alertRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, oops.With("user_id", userID, "context", "failed to list alerts").Wrap(err)
	}

	alerts := make([]*domain.Alert, 0, len(rows))
	for _, row := range rows {
		a, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

func (s *SQLiteStorage) ExistsRecent(ctx context.Context, userID, monitorID, title string, since time.Time) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM alerts
		WHERE user_id = ? AND monitor_id = ? AND title = ? AND created_at >= ?`,
		userID, monitorID, title, since)
	if err != nil {
		return false, oops.With("monitor_id", monitorID, "context", "failed to check recent alerts").Wrap(err)
	}
	return count > 0, nil
}

func (s *SQLiteStorage) UpdateStatus(ctx context.Context, alertID, userID string, status domain.AlertStatus, feedback string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET status = ?, user_feedback = ?
		WHERE id = ? AND user_id = ?`,
		string(status), feedback, alertID, userID)
	if err != nil {
		return false, oops.With("alert_id", alertID, "context", "failed to update alert status").Wrap(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, oops.With("alert_id", alertID, "context", "failed to read affected rows").Wrap(err)
	}
	return affected > 0, nil
}

func (s *SQLiteStorage) MarkNotificationSent(ctx context.Context, alertID string, sentAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET notification_sent = 1, notification_sent_at = ?
		WHERE id = ?`, sentAt, alertID)
	if err != nil {
		return false, oops.With("alert_id", alertID, "context", "failed to mark notification sent").Wrap(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, oops.With("alert_id", alertID, "context", "failed to read affected rows").Wrap(err)
	}
	return affected > 0, nil
}

func (s *SQLiteStorage) ListUnsent(ctx context.Context, limit int) ([]*domain.Alert, error) {
	var rows []alertRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM alerts WHERE notification_sent = 0 ORDER BY created_at ASC LIMIT ?", limit)
	if err != nil {
		return nil, oops.With("context", "failed to list unsent alerts").Wrap(err)
	}

	alerts := make([]*domain.Alert, 0, len(rows))
	for _, row := range rows {
		a, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

func (s *SQLiteStorage) CountByStatus(ctx context.Context, userID string, status domain.AlertStatus) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM alerts WHERE user_id = ? AND status = ?", userID, string(status))
	if err != nil {
		return 0, oops.With("user_id", userID, "context", "failed to count alerts by status").Wrap(err)
	}
	return count, nil
}

func (s *SQLiteStorage) CountBySeverity(ctx context.Context, userID string, severity domain.SeverityLevel) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM alerts WHERE user_id = ? AND severity = ?", userID, string(severity))
	if err != nil {
		return 0, oops.With("user_id", userID, "context", "failed to count alerts by severity").Wrap(err)
	}
	return count, nil
}

func (s *SQLiteStorage) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM alerts WHERE user_id = ? AND created_at >= ?", userID, since)
	if err != nil {
		return 0, oops.With("user_id", userID, "context", "failed to count recent alerts").Wrap(err)
	}
	return count, nil
}

func (s *SQLiteStorage) CountAll(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM alerts WHERE user_id = ?", userID)
	if err != nil {
		return 0, oops.With("user_id", userID, "context", "failed to count alerts").Wrap(err)
	}
	return count, nil
}

func (s *SQLiteStorage) DeleteOlderThan(ctx context.Context, userID string, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM alerts WHERE user_id = ? AND created_at < ?", userID, cutoff)
	if err != nil {
		return 0, oops.With("user_id", userID, "context", "failed to prune alerts").Wrap(err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, oops.With("user_id", userID, "context", "failed to read affected rows").Wrap(err)
	}
	return deleted, nil
}

func (s *SQLiteStorage) DeleteAllOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM alerts WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, oops.With("context", "failed to prune alerts").Wrap(err)
	}
	return res.RowsAffected()
}
