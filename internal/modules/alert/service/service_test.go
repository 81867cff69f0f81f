package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/threatwatch-io/threatwatch/internal/modules/alert/domain"
	"github.com/threatwatch-io/threatwatch/internal/modules/alert/repository"
	sharederrors "github.com/threatwatch-io/threatwatch/internal/shared/errors"
	"github.com/threatwatch-io/threatwatch/internal/storage"
)

func testService(t *testing.T) *Service {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(repository.NewSQLiteStorage(db))
}

func sampleDraft() Draft {
	return Draft{
		MonitorID:       "mon-1",
		UserID:          "user-1",
		Title:           "Ransomware campaign detected",
		Summary:         "Several incidents reported.",
		Severity:        domain.SeverityLevelHigh,
		ConfidenceScore: 0.9,
		Sources: []domain.AlertSource{
			{Title: "src", URL: "https://example.com/a", Domain: "example.com"},
		},
	}
}

func TestCreateSuppressesDuplicateWithin24h(t *testing.T) {
	t.Parallel()
	svc := testService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, sampleDraft())
	if err != nil {
		t.Fatalf("first Create() error = %v", err)
	}
	if first.Status != domain.AlertStatusNew {
		t.Errorf("status = %v, want new", first.Status)
	}
	if first.SourceCount != 1 {
		t.Errorf("source count = %d, want 1", first.SourceCount)
	}

	if _, err := svc.Create(ctx, sampleDraft()); !errors.Is(err, sharederrors.ErrDuplicateAlert) {
		t.Fatalf("second Create() error = %v, want ErrDuplicateAlert", err)
	}

	// Exactly one alert persisted after two identical creates.
	alerts, err := svc.List(ctx, "user-1", repository.ListFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(alerts) != 1 {
		t.Errorf("alerts = %d, want 1", len(alerts))
	}
}

func TestCreateAllowsSameTitleAfterWindow(t *testing.T) {
	t.Parallel()
	svc := testService(t)
	ctx := context.Background()

	base := time.Now().UTC()
	svc.now = func() time.Time { return base.Add(-25 * time.Hour) }
	if _, err := svc.Create(ctx, sampleDraft()); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}

	svc.now = func() time.Time { return base }
	if _, err := svc.Create(ctx, sampleDraft()); err != nil {
		t.Fatalf("Create() after window error = %v", err)
	}
}

func TestCreateAllowsSameTitleOnDifferentMonitor(t *testing.T) {
	t.Parallel()
	svc := testService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, sampleDraft()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	other := sampleDraft()
	other.MonitorID = "mon-2"
	if _, err := svc.Create(ctx, other); err != nil {
		t.Fatalf("Create() on other monitor error = %v", err)
	}
}

func TestUpdateStatusEnforcesTransitions(t *testing.T) {
	t.Parallel()
	svc := testService(t)
	ctx := context.Background()

	alert, err := svc.Create(ctx, sampleDraft())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	updated, err := svc.UpdateStatus(ctx, alert.ID, "user-1", domain.AlertStatusResolved, "handled")
	if err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if updated.Status != domain.AlertStatusResolved {
		t.Errorf("status = %v, want resolved", updated.Status)
	}

	// Resolved is terminal.
	if _, err := svc.UpdateStatus(ctx, alert.ID, "user-1", domain.AlertStatusAcknowledged, ""); !errors.Is(err, sharederrors.ErrInvalidStatus) {
		t.Errorf("error = %v, want ErrInvalidStatus", err)
	}
}

func TestGetStatistics(t *testing.T) {
	t.Parallel()
	svc := testService(t)
	ctx := context.Background()

	critical := sampleDraft()
	critical.Title = "critical one"
	critical.Severity = domain.SeverityLevelCritical
	for _, d := range []Draft{sampleDraft(), critical} {
		if _, err := svc.Create(ctx, d); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	stats, err := svc.GetStatistics(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetStatistics() error = %v", err)
	}
	if stats.TotalAlerts != 2 || stats.New != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Critical != 1 || stats.High != 1 {
		t.Errorf("severity counts = %+v", stats)
	}
	if stats.Last24Hours != 2 {
		t.Errorf("last 24h = %d, want 2", stats.Last24Hours)
	}
}

func TestPruneAll(t *testing.T) {
	t.Parallel()
	svc := testService(t)
	ctx := context.Background()

	base := time.Now().UTC()
	svc.now = func() time.Time { return base.Add(-40 * 24 * time.Hour) }
	if _, err := svc.Create(ctx, sampleDraft()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	svc.now = func() time.Time { return base }
	fresh := sampleDraft()
	fresh.Title = "fresh"
	if _, err := svc.Create(ctx, fresh); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	deleted, err := svc.PruneAll(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("PruneAll() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	// Zero retention means keep forever.
	deleted, err = svc.PruneAll(ctx, 0)
	if err != nil {
		t.Fatalf("PruneAll(0) error = %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted with zero retention = %d, want 0", deleted)
	}
}
