package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bimora/licensegate/internal/core/domain"
	"github.com/bimora/licensegate/internal/core/ports"
)

// DefaultKeyAttempts bounds key regeneration on collision. Exhaustion is a
// configuration fault, never a user-facing condition.
const DefaultKeyAttempts = 5

type licenseService struct {
	repo        ports.LicenseRepository
	notifier    ports.Notifier
	keys        *KeyGenerator
	logger      *slog.Logger
	keyAttempts int
}

// NewLicenseService wires the issuance and validation flows over the given
// repository and notifier. keyAttempts <= 0 selects DefaultKeyAttempts.
func NewLicenseService(repo ports.LicenseRepository, notifier ports.Notifier, keys *KeyGenerator, logger *slog.Logger, keyAttempts int) ports.LicenseService {
	if keys == nil {
		keys = NewKeyGenerator(nil)
	}
	if keyAttempts <= 0 {
		keyAttempts = DefaultKeyAttempts
	}
	return &licenseService{
		repo:        repo,
		notifier:    notifier,
		keys:        keys,
		logger:      logger.With(slog.String("service", "license")),
		keyAttempts: keyAttempts,
	}
}

// Issue generates a key, reserves it for the identity and hands the key to
// the notifier. Issuance is idempotent per email: a repeat request resolves
// to the existing record and resends its key instead of fabricating a new one.
func (s *licenseService) Issue(ctx context.Context, req domain.IssuanceRequest) (*domain.IssuanceResult, error) {
	if err := domain.ValidateIdentity(req.Name, req.Email); err != nil {
		return nil, err
	}
	email := domain.NormalizeEmail(req.Email)

	var result *domain.IssuanceResult
	for attempt := 0; attempt < s.keyAttempts; attempt++ {
		key, err := s.keys.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate license key: %w", err)
		}

		lic := &domain.License{
			ID:        uuid.New().String(),
			Key:       key,
			Name:      req.Name,
			Email:     email,
			Company:   req.Company,
			Purpose:   req.Purpose,
			Active:    true,
			CreatedAt: time.Now().UTC(),
		}

		created, existing, err := s.repo.Reserve(ctx, lic)
		if errors.Is(err, domain.ErrKeyTaken) {
			s.logger.WarnContext(ctx, "license key collision, regenerating",
				slog.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}

		if created {
			result = &domain.IssuanceResult{License: lic, Created: true}
		} else {
			result = &domain.IssuanceResult{License: existing, Created: false}
		}
		break
	}
	if result == nil {
		return nil, domain.ErrKeySpaceExhausted
	}

	s.logger.InfoContext(ctx, "license reserved",
		slog.String("license_id", result.License.ID),
		slog.Bool("created", result.Created))

	// The record is durable at this point; a delivery failure is surfaced to
	// the caller for manual resend, never rolled back.
	if err := s.notifier.Send(ctx, result.License.Email, result.License.Key); err != nil {
		s.logger.ErrorContext(ctx, "license key delivery failed",
			slog.String("license_id", result.License.ID),
			slog.String("error", err.Error()))
		return result, fmt.Errorf("%w: %v", domain.ErrNotifierUnavailable, err)
	}

	return result, nil
}

// Validate looks the record up by key and email jointly and applies the
// activation state machine. The first activation is executed through the
// repository's conditional binding update; a request that loses that race
// re-reads the record and deterministically lands on the loser outcome.
func (s *licenseService) Validate(ctx context.Context, key, email, machineID string) (domain.Outcome, error) {
	email = domain.NormalizeEmail(email)
	now := time.Now().UTC()

	// Two passes at most: the second pass only runs after a lost conditional
	// write (binding race or a concurrent administrative change), and by then
	// the record is bound or vetoed.
	for attempt := 0; attempt < 2; attempt++ {
		lic, err := s.repo.FindByKeyAndEmail(ctx, key, email)
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}

		outcome := domain.Decide(lic, machineID, now)
		switch outcome {
		case domain.OutcomeActivatedNow:
			bound, err := s.repo.BindMachine(ctx, lic.ID, machineID, now)
			if err != nil {
				return "", fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
			}
			if bound {
				s.logger.InfoContext(ctx, "license activated",
					slog.String("license_id", lic.ID))
				return domain.OutcomeActivatedNow, nil
			}
			// Lost the race or the record was administratively flipped
			// between the read and the update. Re-read and re-decide.
			continue
		case domain.OutcomeValid:
			touched, err := s.repo.TouchValidation(ctx, lic.ID, machineID, now)
			if err != nil {
				return "", fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
			}
			if touched {
				return domain.OutcomeValid, nil
			}
			// The binding or active flag changed between the read and the
			// touch. Re-read and re-decide.
			continue
		default:
			return outcome, nil
		}
	}

	// Both passes read a bindable or bound-here record and lost the
	// conditional write: another machine holds the binding.
	return domain.OutcomeBoundElsewhere, nil
}

// HealthCheck reports per-dependency reachability.
func (s *licenseService) HealthCheck(ctx context.Context) map[string]error {
	return map[string]error{
		"database": s.repo.Ping(ctx),
	}
}
