package domain

// CanTransition reports whether a human reviewer may move an alert from its
// current status to next. The pipeline only ever creates alerts as new;
// acknowledged may progress, resolved and false_positive are terminal.
func (x AlertStatus) CanTransition(next AlertStatus) bool {
	switch x {
	case AlertStatusNew:
		return next == AlertStatusAcknowledged ||
			next == AlertStatusResolved ||
			next == AlertStatusFalsePositive
	case AlertStatusAcknowledged:
		return next == AlertStatusResolved || next == AlertStatusFalsePositive
	default:
		return false
	}
}

// Terminal reports whether no further transitions are allowed from the status.
func (x AlertStatus) Terminal() bool {
	return x == AlertStatusResolved || x == AlertStatusFalsePositive
}
