package domain

import (
	"time"

	alertDomain "github.com/threatwatch-io/threatwatch/internal/modules/alert/domain"
)

// Monitor is a saved, recurring search topic with a schedule and severity gate.
type Monitor struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	Term            string   `json:"term"`
	Description     string   `json:"description,omitempty"`
	Keywords        []string `json:"keywords"`
	ExcludeKeywords []string `json:"exclude_keywords"`

	Frequency         MonitorFrequency          `json:"frequency"`
	SeverityThreshold alertDomain.SeverityLevel `json:"severity_threshold"`
	Active            bool                      `json:"active"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastScanAt *time.Time `json:"last_scan_at,omitempty"`
	NextScanAt *time.Time `json:"next_scan_at,omitempty"`

	ScanCount  int `json:"scan_count"`
	AlertCount int `json:"alert_count"`

	NotificationSettings NotificationSettings `json:"notification_settings"`
}

// NotificationSettings controls how alert notifications are delivered.
type NotificationSettings struct {
	ImmediateAlerts bool   `json:"immediate_alerts"`
	DailySummary    bool   `json:"daily_summary"`
	TelegramChatID  int64  `json:"telegram_chat_id,omitempty"`
	Webhook         string `json:"webhook,omitempty"`
}

// Interval translates the scan frequency into a schedule step.
// Unknown values default to daily.
func (x MonitorFrequency) Interval() time.Duration {
	switch x {
	case MonitorFrequencyHourly:
		return time.Hour
	case MonitorFrequencyDaily:
		return 24 * time.Hour
	case MonitorFrequencyWeekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}
