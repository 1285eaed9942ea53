package domain

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestDecide_EvaluationOrder(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		lic  *License
		want Outcome
	}{
		{"missing record", nil, OutcomeNotFound},
		{"inactive beats unbound", &License{Active: false}, OutcomeInactive},
		{"inactive beats matching machine", &License{Active: false, MachineID: strPtr("machine-A")}, OutcomeInactive},
		{"expired beats unbound", &License{Active: true, ExpiresAt: &past}, OutcomeExpired},
		{"expired beats matching machine", &License{Active: true, ExpiresAt: &past, MachineID: strPtr("machine-A")}, OutcomeExpired},
		{"inactive beats expired", &License{Active: false, ExpiresAt: &past}, OutcomeInactive},
		{"unbound activates", &License{Active: true}, OutcomeActivatedNow},
		{"unbound with future expiry activates", &License{Active: true, ExpiresAt: &future}, OutcomeActivatedNow},
		{"same machine valid", &License{Active: true, MachineID: strPtr("machine-A")}, OutcomeValid},
		{"other machine rejected", &License{Active: true, MachineID: strPtr("machine-B")}, OutcomeBoundElsewhere},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.lic, "machine-A", now); got != tt.want {
				t.Errorf("Decide() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecide_ExpiryIsTimeRelative(t *testing.T) {
	expiry := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	lic := &License{Active: true, ExpiresAt: &expiry, MachineID: strPtr("machine-A")}

	before := expiry.Add(-time.Minute)
	if got := Decide(lic, "machine-A", before); got != OutcomeValid {
		t.Errorf("before expiry: Decide() = %v, want %v", got, OutcomeValid)
	}

	after := expiry.Add(time.Minute)
	if got := Decide(lic, "machine-A", after); got != OutcomeExpired {
		t.Errorf("after expiry: Decide() = %v, want %v", got, OutcomeExpired)
	}

	// Exactly at the horizon the license is still honored.
	if got := Decide(lic, "machine-A", expiry); got != OutcomeValid {
		t.Errorf("at expiry: Decide() = %v, want %v", got, OutcomeValid)
	}
}

func TestDecide_NeverMutates(t *testing.T) {
	lic := &License{Active: true}
	Decide(lic, "machine-A", time.Now())
	if lic.MachineID != nil || lic.LastValidatedAt != nil {
		t.Errorf("Decide mutated the record: %+v", lic)
	}
}
