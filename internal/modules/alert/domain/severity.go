package domain

// severityRank imposes the total order low < medium < high < critical.
// Unknown values rank below low so they never pass a threshold.
var severityRank = map[SeverityLevel]int{
	SeverityLevelLow:      1,
	SeverityLevelMedium:   2,
	SeverityLevelHigh:     3,
	SeverityLevelCritical: 4,
}

// Rank returns the position of the severity in the total order, 0 for unknown values.
func (x SeverityLevel) Rank() int {
	return severityRank[x]
}

// Meets reports whether the severity is equal to or above the threshold.
func (x SeverityLevel) Meets(threshold SeverityLevel) bool {
	return severityRank[x] >= severityRank[threshold]
}
