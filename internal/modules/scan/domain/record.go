package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScanRecord is the append-only audit trail of one scan attempt.
// It is written once per terminal attempt and never mutated; the scheduler
// does not read it back.
type ScanRecord struct {
	ID        string `json:"id"`
	MonitorID string `json:"monitor_id"`

	ScanTimestamp time.Time     `json:"scan_timestamp"`
	ScanDuration  time.Duration `json:"scan_duration"`

	ArticlesProcessed int `json:"articles_processed"`
	AlertsGenerated   int `json:"alerts_generated"`

	APICosts APICosts     `json:"api_costs"`
	Metadata ScanMetadata `json:"scan_metadata"`

	Errors  []string `json:"errors"`
	Success bool     `json:"success"`
}

// APICosts tracks external-API usage accumulated during one scan.
type APICosts struct {
	SearchQueries int             `json:"search_queries"`
	InputTokens   int64           `json:"llm_input_tokens"`
	OutputTokens  int64           `json:"llm_output_tokens"`
	TotalTokens   int64           `json:"llm_tokens"`
	TotalCost     decimal.Decimal `json:"total_cost"`
}

// ScanMetadata records how the scan was performed.
type ScanMetadata struct {
	Query     string `json:"query"`
	Timeframe string `json:"timeframe"`
}
