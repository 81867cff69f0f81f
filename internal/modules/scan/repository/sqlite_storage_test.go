package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/threatwatch-io/threatwatch/internal/modules/scan/domain"
	"github.com/threatwatch-io/threatwatch/internal/storage"
)

func testRepo(t *testing.T) Repository {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStorage(db)
}

func sampleRecord(monitorID string, ts time.Time, success bool, cost string) *domain.ScanRecord {
	return &domain.ScanRecord{
		ID:                uuid.NewString(),
		MonitorID:         monitorID,
		ScanTimestamp:     ts,
		ScanDuration:      1500 * time.Millisecond,
		ArticlesProcessed: 4,
		AlertsGenerated:   1,
		APICosts: domain.APICosts{
			SearchQueries: 1,
			InputTokens:   1000,
			OutputTokens:  200,
			TotalTokens:   1200,
			TotalCost:     decimal.RequireFromString(cost),
		},
		Metadata: domain.ScanMetadata{Query: "ransomware (hospital)", Timeframe: "24h"},
		Success:  success,
	}
}

func TestSaveAndListRecords(t *testing.T) {
	t.Parallel()
	repo := testRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	first := sampleRecord("mon-1", now.Add(-2*time.Hour), true, "0.0095")
	second := sampleRecord("mon-1", now.Add(-time.Hour), false, "0.005")
	second.Errors = []string{"analysis: timeout"}
	other := sampleRecord("mon-2", now, true, "0.005")

	for _, r := range []*domain.ScanRecord{first, second, other} {
		if err := repo.SaveRecord(ctx, r); err != nil {
			t.Fatalf("SaveRecord() error = %v", err)
		}
	}

	got, err := repo.ListForMonitor(ctx, "mon-1", 10)
	if err != nil {
		t.Fatalf("ListForMonitor() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("records = %d, want 2", len(got))
	}
	// Newest first.
	if got[0].ID != second.ID {
		t.Error("expected newest record first")
	}
	if !got[1].APICosts.TotalCost.Equal(decimal.RequireFromString("0.0095")) {
		t.Errorf("cost = %s, want 0.0095", got[1].APICosts.TotalCost)
	}
	if got[0].ScanDuration != 1500*time.Millisecond {
		t.Errorf("duration = %v", got[0].ScanDuration)
	}
	if len(got[0].Errors) != 1 {
		t.Errorf("errors = %v", got[0].Errors)
	}
	if got[0].Metadata.Query != "ransomware (hospital)" {
		t.Errorf("metadata = %+v", got[0].Metadata)
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	repo := testRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	recent1 := sampleRecord("mon-1", now.Add(-time.Hour), true, "0.01")
	recent2 := sampleRecord("mon-1", now.Add(-2*time.Hour), false, "0.005")
	ancient := sampleRecord("mon-1", now.Add(-48*time.Hour), true, "1.00")
	for _, r := range []*domain.ScanRecord{recent1, recent2, ancient} {
		if err := repo.SaveRecord(ctx, r); err != nil {
			t.Fatalf("SaveRecord() error = %v", err)
		}
	}

	summary, err := repo.Summarize(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if summary.TotalScans != 2 {
		t.Errorf("total scans = %d, want 2", summary.TotalScans)
	}
	if summary.SuccessfulScans != 1 {
		t.Errorf("successful scans = %d, want 1", summary.SuccessfulScans)
	}
	want := decimal.RequireFromString("0.015")
	got, err := decimal.NewFromString(summary.TotalCost)
	if err != nil {
		t.Fatalf("total cost %q is not a decimal: %v", summary.TotalCost, err)
	}
	if !got.Equal(want) {
		t.Errorf("total cost = %s, want %s", summary.TotalCost, want)
	}
	if summary.AvgDurationSecs != 1.5 {
		t.Errorf("avg duration = %v, want 1.5", summary.AvgDurationSecs)
	}
}
