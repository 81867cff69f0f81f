//go:generate go run github.com/abice/go-enum --file=$GOFILE --names --nocase

package domain

// MonitorFrequency represents how often a monitor is scanned
// ENUM(hourly,daily,weekly)
type MonitorFrequency string
