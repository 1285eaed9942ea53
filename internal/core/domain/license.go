// Package domain contains the core business logic and entities for licensegate.
package domain

import (
	"errors"
	"time"
)

// License represents an issued license key bound to a customer identity.
type License struct {
	ID              string     `json:"id"`
	Key             string     `json:"license_key"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Company         *string    `json:"company,omitempty"`
	Purpose         *string    `json:"purpose,omitempty"`
	Active          bool       `json:"is_active"`
	MachineID       *string    `json:"activated_machine,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	LastValidatedAt *time.Time `json:"last_validated_at,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

// Outcome is the result of applying the activation state machine to a
// validation request.
type Outcome string

const (
	// OutcomeNotFound means no record matches the (key, email) pair.
	OutcomeNotFound Outcome = "NOT_FOUND"
	// OutcomeInactive means the record was administratively disabled.
	OutcomeInactive Outcome = "INACTIVE"
	// OutcomeExpired means the validity horizon has passed.
	OutcomeExpired Outcome = "EXPIRED"
	// OutcomeActivatedNow means the requester won the first activation.
	OutcomeActivatedNow Outcome = "ACTIVATED_NOW"
	// OutcomeValid means a repeat validation from the bound machine.
	OutcomeValid Outcome = "VALID"
	// OutcomeBoundElsewhere means the key is bound to a different machine.
	OutcomeBoundElsewhere Outcome = "BOUND_ELSEWHERE"
)

// Sentinel errors for dependency and generator faults. Policy results
// (inactive, expired, wrong machine) are Outcomes, never errors.
var (
	ErrKeyTaken            = errors.New("license key already taken")
	ErrKeySpaceExhausted   = errors.New("license key space exhausted")
	ErrMissingIdentity     = errors.New("name and email are required")
	ErrStoreUnavailable    = errors.New("license store unavailable")
	ErrNotifierUnavailable = errors.New("notifier unavailable")
)

// Decide applies the activation state machine to a single record observed at
// validation time. The evaluation order is strict: missing record, then the
// inactive and expired vetoes, then binding state. Changing this order changes
// observable behavior.
//
// OutcomeActivatedNow is an intent, not a final state: the caller must execute
// it through the store's conditional binding update and re-decide if that
// update binds no row. Decide itself never mutates anything.
func Decide(lic *License, machineID string, now time.Time) Outcome {
	if lic == nil {
		return OutcomeNotFound
	}
	if !lic.Active {
		return OutcomeInactive
	}
	if lic.ExpiresAt != nil && now.After(*lic.ExpiresAt) {
		return OutcomeExpired
	}
	if lic.MachineID == nil {
		return OutcomeActivatedNow
	}
	if *lic.MachineID == machineID {
		return OutcomeValid
	}
	return OutcomeBoundElsewhere
}

// IssuanceRequest carries the identity attributes for a new license.
type IssuanceRequest struct {
	Name    string
	Email   string
	Company *string
	Purpose *string
}

// IssuanceResult reports the record an issuance call resolved to. Created is
// false when the email already had a license and the existing record was
// returned instead.
type IssuanceResult struct {
	License *License
	Created bool
}
