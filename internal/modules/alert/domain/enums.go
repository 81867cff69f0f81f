//go:generate go run github.com/abice/go-enum --file=$GOFILE --names --nocase

package domain

// SeverityLevel represents how serious a detected threat is
// ENUM(low,medium,high,critical)
type SeverityLevel string

// AlertStatus represents the review lifecycle of an alert
// ENUM(new,acknowledged,resolved,false_positive)
type AlertStatus string
