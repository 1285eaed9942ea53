package ports

import (
	"context"
	"time"

	"github.com/bimora/licensegate/internal/core/domain"
)

// LicenseRepository is the durable record of issued licenses. It owns all
// state transitions and is the sole arbiter of concurrent activation races:
// Reserve and BindMachine are the only operations that need an atomic
// guarantee from the backing store.
type LicenseRepository interface {
	// Reserve inserts the candidate record unless the email already has one,
	// in which case the existing record is returned and created is false.
	// A collision on the license key maps to domain.ErrKeyTaken.
	Reserve(ctx context.Context, lic *domain.License) (created bool, existing *domain.License, err error)
	// FindByKeyAndEmail looks a record up by both key and email jointly.
	// Returns (nil, nil) when no record matches.
	FindByKeyAndEmail(ctx context.Context, key, email string) (*domain.License, error)
	GetByEmail(ctx context.Context, email string) (*domain.License, error)
	// BindMachine sets the machine binding only if it is currently unset and
	// the record is active, as a single conditional update. It reports whether
	// this call won the binding.
	BindMachine(ctx context.Context, id, machineID string, now time.Time) (bool, error)
	// TouchValidation updates last_validated_at, guarded by the binding still
	// matching the given machine.
	TouchValidation(ctx context.Context, id, machineID string, now time.Time) (bool, error)

	// Administrative operations, exposed only through cmd/lickey.
	SetActive(ctx context.Context, id string, active bool) error
	ClearBinding(ctx context.Context, id string) error
	SetExpiry(ctx context.Context, id string, expiresAt *time.Time) error
	ListLicenses(ctx context.Context) ([]domain.License, error)

	Ping(ctx context.Context) error
}

// LicenseService orchestrates issuance and validation over the repository.
type LicenseService interface {
	Issue(ctx context.Context, req domain.IssuanceRequest) (*domain.IssuanceResult, error)
	Validate(ctx context.Context, key, email, machineID string) (domain.Outcome, error)
	HealthCheck(ctx context.Context) map[string]error
}

// Notifier delivers an issued key to its owner. Delivery failures must not
// roll back issuance.
type Notifier interface {
	Send(ctx context.Context, email, key string) error
}

// IssuanceLimiter throttles issuance requests per caller.
type IssuanceLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
}
