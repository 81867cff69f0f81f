package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/threatwatch-io/threatwatch/internal/modules/alert/domain"
	"github.com/threatwatch-io/threatwatch/internal/modules/alert/repository"
	sharederrors "github.com/threatwatch-io/threatwatch/internal/shared/errors"
)

// dedupWindow is the rolling window within which a repeated
// (user, monitor, title) alert is suppressed instead of re-created.
const dedupWindow = 24 * time.Hour

// Service handles alert lifecycle: creation with duplicate suppression,
// status transitions, statistics, and retention pruning.
type Service struct {
	repo repository.Repository
	now  func() time.Time
}

// New creates a new alert service.
func New(repo repository.Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Draft carries the fields of a prospective alert produced by a scan.
type Draft struct {
	MonitorID        string
	UserID           string
	Title            string
	Summary          string
	Severity         domain.SeverityLevel
	ConfidenceScore  float64
	Sources          []domain.AlertSource
	ThreatIndicators domain.ThreatIndicators
}

// Create inserts a new alert in status new unless an alert with the same
// (owner, monitor, title) was created within the trailing 24 hours. A
// suppressed duplicate returns ErrDuplicateAlert; callers treat it as a
// normal outcome, not a failure.
func (s *Service) Create(ctx context.Context, draft Draft) (*domain.Alert, error) {
	since := s.now().Add(-dedupWindow)
	duplicate, err := s.repo.ExistsRecent(ctx, draft.UserID, draft.MonitorID, draft.Title, since)
	if err != nil {
		return nil, err
	}
	if duplicate {
		slog.Info("Skipping duplicate alert", "monitor_id", draft.MonitorID, "title", draft.Title)
		return nil, sharederrors.ErrDuplicateAlert
	}

	alert := &domain.Alert{
		ID:               uuid.New().String(),
		MonitorID:        draft.MonitorID,
		UserID:           draft.UserID,
		Title:            draft.Title,
		Summary:          draft.Summary,
		Severity:         draft.Severity,
		ConfidenceScore:  draft.ConfidenceScore,
		SourceCount:      len(draft.Sources),
		Sources:          draft.Sources,
		ThreatIndicators: draft.ThreatIndicators,
		Status:           domain.AlertStatusNew,
		CreatedAt:        s.now(),
	}

	if err := s.repo.SaveAlert(ctx, alert); err != nil {
		return nil, err
	}

	slog.Info("Alert created", "alert_id", alert.ID, "monitor_id", alert.MonitorID, "severity", alert.Severity)
	return alert, nil
}

// Get retrieves an alert scoped to its owner.
func (s *Service) Get(ctx context.Context, alertID, userID string) (*domain.Alert, error) {
	return s.repo.GetAlert(ctx, alertID, userID)
}

// List retrieves a user's alerts, newest first, with optional filters.
func (s *Service) List(ctx context.Context, userID string, filter repository.ListFilter) ([]*domain.Alert, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.repo.ListUserAlerts(ctx, userID, filter)
}

// UpdateStatus drives the review lifecycle. Only transitions allowed by the
// state machine are accepted; resolved and false_positive are terminal.
func (s *Service) UpdateStatus(ctx context.Context, alertID, userID string, next domain.AlertStatus, feedback string) (*domain.Alert, error) {
	if !next.IsValid() {
		return nil, sharederrors.ErrInvalidStatus
	}

	alert, err := s.repo.GetAlert(ctx, alertID, userID)
	if err != nil {
		return nil, err
	}
	if !alert.Status.CanTransition(next) {
		return nil, sharederrors.ErrInvalidStatus
	}

	modified, err := s.repo.UpdateStatus(ctx, alertID, userID, next, feedback)
	if err != nil {
		return nil, err
	}
	if !modified {
		return nil, sharederrors.ErrAlertNotFound
	}

	slog.Info("Alert status updated", "alert_id", alertID, "status", next)
	return s.repo.GetAlert(ctx, alertID, userID)
}

// MarkNotificationSent flags an alert as delivered.
func (s *Service) MarkNotificationSent(ctx context.Context, alertID string) error {
	_, err := s.repo.MarkNotificationSent(ctx, alertID, s.now())
	return err
}

// ListUnsent returns alerts still awaiting notification delivery.
func (s *Service) ListUnsent(ctx context.Context, limit int) ([]*domain.Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListUnsent(ctx, limit)
}

// Statistics summarizes a user's alerts by status, severity, and recency.
type Statistics struct {
	TotalAlerts  int `json:"total_alerts"`
	New          int `json:"new"`
	Acknowledged int `json:"acknowledged"`
	Resolved     int `json:"resolved"`
	Critical     int `json:"critical"`
	High         int `json:"high"`
	Last24Hours  int `json:"last_24_hours"`
}

// GetStatistics computes alert counts for a user.
func (s *Service) GetStatistics(ctx context.Context, userID string) (*Statistics, error) {
	stats := &Statistics{}
	var err error

	if stats.TotalAlerts, err = s.repo.CountAll(ctx, userID); err != nil {
		return nil, err
	}
	if stats.New, err = s.repo.CountByStatus(ctx, userID, domain.AlertStatusNew); err != nil {
		return nil, err
	}
	if stats.Acknowledged, err = s.repo.CountByStatus(ctx, userID, domain.AlertStatusAcknowledged); err != nil {
		return nil, err
	}
	if stats.Resolved, err = s.repo.CountByStatus(ctx, userID, domain.AlertStatusResolved); err != nil {
		return nil, err
	}
	if stats.Critical, err = s.repo.CountBySeverity(ctx, userID, domain.SeverityLevelCritical); err != nil {
		return nil, err
	}
	if stats.High, err = s.repo.CountBySeverity(ctx, userID, domain.SeverityLevelHigh); err != nil {
		return nil, err
	}
	if stats.Last24Hours, err = s.repo.CountCreatedSince(ctx, userID, s.now().Add(-24*time.Hour)); err != nil {
		return nil, err
	}
	return stats, nil
}

// Prune deletes a user's alerts older than the retention horizon.
// The purge is irreversible and does not cascade to scan records.
func (s *Service) Prune(ctx context.Context, userID string, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	deleted, err := s.repo.DeleteOlderThan(ctx, userID, s.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		slog.Info("Pruned old alerts", "user_id", userID, "deleted", deleted)
	}
	return deleted, nil
}

// PruneAll applies the retention horizon across every user.
func (s *Service) PruneAll(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	deleted, err := s.repo.DeleteAllOlderThan(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		slog.Info("Pruned old alerts", "deleted", deleted)
	}
	return deleted, nil
}
