package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	alertDomain "github.com/threatwatch-io/threatwatch/internal/modules/alert/domain"
	"github.com/threatwatch-io/threatwatch/internal/modules/monitor/domain"
	"github.com/threatwatch-io/threatwatch/internal/modules/monitor/repository"
)

// Service handles monitor business logic and scheduling arithmetic.
type Service struct {
	repo repository.Repository
	now  func() time.Time
}

// New creates a new monitor service.
func New(repo repository.Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// CreateRequest carries the caller-supplied fields of a new monitor.
type CreateRequest struct {
	Term                 string
	Description          string
	Keywords             []string
	ExcludeKeywords      []string
	Frequency            domain.MonitorFrequency
	SeverityThreshold    alertDomain.SeverityLevel
	NotificationSettings *domain.NotificationSettings
}

// UpdateRequest carries optional monitor edits; nil fields are left untouched.
type UpdateRequest struct {
	Term                 *string
	Description          *string
	Keywords             []string
	ExcludeKeywords      []string
	Frequency            *domain.MonitorFrequency
	SeverityThreshold    *alertDomain.SeverityLevel
	Active               *bool
	NotificationSettings *domain.NotificationSettings
}

// CreateMonitor creates a monitor and schedules its first scan one full
// period ahead.
func (s *Service) CreateMonitor(ctx context.Context, userID string, req CreateRequest) (*domain.Monitor, error) {
	term := strings.TrimSpace(req.Term)
	if term == "" {
		return nil, oops.Errorf("monitor term cannot be empty")
	}

	now := s.now()
	frequency := req.Frequency
	if !frequency.IsValid() {
		frequency = domain.MonitorFrequencyDaily
	}
	threshold := req.SeverityThreshold
	if !threshold.IsValid() {
		threshold = alertDomain.SeverityLevelMedium
	}

	monitor := &domain.Monitor{
		ID:                uuid.New().String(),
		UserID:            userID,
		Term:              term,
		Description:       req.Description,
		Keywords:          req.Keywords,
		ExcludeKeywords:   req.ExcludeKeywords,
		Frequency:         frequency,
		SeverityThreshold: threshold,
		Active:            true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if req.NotificationSettings != nil {
		monitor.NotificationSettings = *req.NotificationSettings
	} else {
		monitor.NotificationSettings = domain.NotificationSettings{ImmediateAlerts: true, DailySummary: true}
	}

	next := s.NextScanTime(frequency)
	monitor.NextScanAt = &next

	if err := s.repo.SaveMonitor(ctx, monitor); err != nil {
		return nil, oops.With("user_id", userID, "context", "failed to create monitor").Wrap(err)
	}

	slog.Info("Monitor created", "monitor_id", monitor.ID, "term", monitor.Term, "frequency", monitor.Frequency)
	return monitor, nil
}

// GetMonitor retrieves a monitor, scoped to its owner.
func (s *Service) GetMonitor(ctx context.Context, monitorID, userID string) (*domain.Monitor, error) {
	return s.repo.GetOwnedMonitor(ctx, monitorID, userID)
}

// GetByID retrieves a monitor without an owner check for internal callers.
func (s *Service) GetByID(ctx context.Context, monitorID string) (*domain.Monitor, error) {
	return s.repo.GetMonitor(ctx, monitorID)
}

// ListMonitors retrieves all monitors owned by a user.
func (s *Service) ListMonitors(ctx context.Context, userID string, activeOnly bool) ([]*domain.Monitor, error) {
	return s.repo.ListUserMonitors(ctx, userID, activeOnly)
}

// CountMonitors returns the number of monitors a user owns.
func (s *Service) CountMonitors(ctx context.Context, userID string) (int, error) {
	return s.repo.CountUserMonitors(ctx, userID)
}

// UpdateMonitor applies the provided edits. A frequency change recomputes
// next_scan_at immediately so a tightened schedule takes effect right away.
func (s *Service) UpdateMonitor(ctx context.Context, monitorID, userID string, req UpdateRequest) (*domain.Monitor, error) {
	monitor, err := s.repo.GetOwnedMonitor(ctx, monitorID, userID)
	if err != nil {
		return nil, err
	}

	if req.Term != nil {
		term := strings.TrimSpace(*req.Term)
		if term == "" {
			return nil, oops.Errorf("monitor term cannot be empty")
		}
		monitor.Term = term
	}
	if req.Description != nil {
		monitor.Description = *req.Description
	}
	if req.Keywords != nil {
		monitor.Keywords = req.Keywords
	}
	if req.ExcludeKeywords != nil {
		monitor.ExcludeKeywords = req.ExcludeKeywords
	}
	if req.Frequency != nil && req.Frequency.IsValid() {
		monitor.Frequency = *req.Frequency
		next := s.NextScanTime(monitor.Frequency)
		monitor.NextScanAt = &next
	}
	if req.SeverityThreshold != nil && req.SeverityThreshold.IsValid() {
		monitor.SeverityThreshold = *req.SeverityThreshold
	}
	if req.Active != nil {
		monitor.Active = *req.Active
	}
	if req.NotificationSettings != nil {
		monitor.NotificationSettings = *req.NotificationSettings
	}
	monitor.UpdatedAt = s.now()

	if err := s.repo.UpdateMonitor(ctx, monitor); err != nil {
		return nil, err
	}
	return monitor, nil
}

// DeleteMonitor removes the monitor permanently. Alerts and scan records
// are retained until pruned on their own schedule.
func (s *Service) DeleteMonitor(ctx context.Context, monitorID, userID string) error {
	if err := s.repo.DeleteMonitor(ctx, monitorID, userID); err != nil {
		return err
	}
	slog.Info("Monitor deleted", "monitor_id", monitorID)
	return nil
}

// GetDueMonitors returns active monitors whose next_scan_at has passed.
func (s *Service) GetDueMonitors(ctx context.Context) ([]*domain.Monitor, error) {
	return s.repo.GetDueMonitors(ctx, s.now())
}

// AdvanceSchedule moves a monitor's schedule forward after a terminal scan
// attempt, regardless of whether the attempt succeeded, and bumps counters.
func (s *Service) AdvanceSchedule(ctx context.Context, monitorID string, frequency domain.MonitorFrequency, scannedAt time.Time, alertsGenerated int) error {
	return s.repo.RecordScan(ctx, monitorID, scannedAt, s.NextScanTime(frequency), alertsGenerated)
}

// NextScanTime computes when the next scan is due: hourly = +1h,
// daily = +24h, weekly = +7d. Unknown frequencies default to daily.
func (s *Service) NextScanTime(frequency domain.MonitorFrequency) time.Time {
	return s.now().Add(frequency.Interval())
}
