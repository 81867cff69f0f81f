package domain

import "time"

// Alert is a detected threat that matched a monitoring term.
// Created by the scan pipeline in status new; a reviewer drives the rest of
// the lifecycle.
type Alert struct {
	ID        string `json:"id"`
	MonitorID string `json:"monitor_id"`
	UserID    string `json:"user_id"`

	Title           string        `json:"title"`
	Summary         string        `json:"summary"`
	Severity        SeverityLevel `json:"severity"`
	ConfidenceScore float64       `json:"confidence_score"`

	SourceCount int           `json:"source_count"`
	Sources     []AlertSource `json:"sources"`

	ThreatIndicators ThreatIndicators `json:"threat_indicators"`

	Status       AlertStatus `json:"status"`
	UserFeedback string      `json:"user_feedback,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`

	NotificationSent   bool       `json:"notification_sent"`
	NotificationSentAt *time.Time `json:"notification_sent_at,omitempty"`
}

// AlertSource is a single news article that contributed to an alert.
type AlertSource struct {
	Title     string     `json:"title"`
	URL       string     `json:"url"`
	Domain    string     `json:"domain"`
	Published *time.Time `json:"published,omitempty"`
	Snippet   string     `json:"snippet,omitempty"`
}

// ThreatIndicators holds the structured intelligence extracted from sources.
type ThreatIndicators struct {
	AttackVectors     []string `json:"attack_vectors"`
	AffectedSectors   []string `json:"affected_sectors"`
	GeographicalScope []string `json:"geographical_scope"`
	ThreatActors      []string `json:"threat_actors"`
}
