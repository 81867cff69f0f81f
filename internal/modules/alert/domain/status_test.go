package domain

import "testing"

func TestStatusTransitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to AlertStatus
		want     bool
	}{
		{AlertStatusNew, AlertStatusAcknowledged, true},
		{AlertStatusNew, AlertStatusResolved, true},
		{AlertStatusNew, AlertStatusFalsePositive, true},
		{AlertStatusAcknowledged, AlertStatusResolved, true},
		{AlertStatusAcknowledged, AlertStatusFalsePositive, true},
		{AlertStatusAcknowledged, AlertStatusNew, false},
		{AlertStatusResolved, AlertStatusAcknowledged, false},
		{AlertStatusFalsePositive, AlertStatusNew, false},
		{AlertStatusNew, AlertStatusNew, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	t.Parallel()

	if AlertStatusNew.Terminal() || AlertStatusAcknowledged.Terminal() {
		t.Error("new and acknowledged are not terminal")
	}
	if !AlertStatusResolved.Terminal() || !AlertStatusFalsePositive.Terminal() {
		t.Error("resolved and false_positive are terminal")
	}
}
