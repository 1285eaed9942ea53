package repository

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bimora/licensegate/internal/core/domain"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("licensegate_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432").
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start container: %s", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %s", err)
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		t.Fatalf("failed to open db: %s", err)
	}

	repo := NewPostgresRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("failed to apply schema: %s", err)
	}

	return db, func() {
		db.Close()
		pgContainer.Terminate(ctx)
	}
}

func newTestLicense(email string) *domain.License {
	return &domain.License{
		ID:        uuid.New().String(),
		Key:       uuid.New().String()[:32],
		Name:      "Test User",
		Email:     email,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
}

func TestPostgresRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPostgresRepository(db)
	ctx := context.Background()

	// 1. Fresh reservation.
	lic := newTestLicense("alice@example.com")
	created, existing, err := repo.Reserve(ctx, lic)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if !created || existing != nil {
		t.Fatalf("expected fresh reservation, got created=%v existing=%+v", created, existing)
	}

	// 2. Re-reserving the same email returns the original record, not a new one.
	second := newTestLicense("Alice@Example.COM")
	created, existing, err = repo.Reserve(ctx, second)
	if err != nil {
		t.Fatalf("second Reserve failed: %v", err)
	}
	if created || existing == nil || existing.Key != lic.Key {
		t.Errorf("expected original record back, got created=%v existing=%+v", created, existing)
	}

	// 3. Lookup requires key and email to match jointly, case-insensitive on email.
	found, err := repo.FindByKeyAndEmail(ctx, lic.Key, "ALICE@example.com")
	if err != nil || found == nil {
		t.Fatalf("FindByKeyAndEmail failed: %v, found=%v", err, found)
	}
	miss, err := repo.FindByKeyAndEmail(ctx, lic.Key, "bob@example.com")
	if err != nil || miss != nil {
		t.Errorf("expected no match for wrong email, got %+v (err %v)", miss, err)
	}

	// 4. Concurrent binding: exactly one caller wins.
	const racers = 8
	var wg sync.WaitGroup
	wins := make(chan string, racers)
	for i := 0; i < racers; i++ {
		machine := "machine-" + string(rune('A'+i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			bound, err := repo.BindMachine(ctx, lic.ID, machine, time.Now().UTC())
			if err != nil {
				t.Errorf("BindMachine failed: %v", err)
				return
			}
			if bound {
				wins <- machine
			}
		}()
	}
	wg.Wait()
	close(wins)
	var winners []string
	for m := range wins {
		winners = append(winners, m)
	}
	if len(winners) != 1 {
		t.Fatalf("expected exactly one binding winner, got %v", winners)
	}

	bound, err := repo.FindByKeyAndEmail(ctx, lic.Key, lic.Email)
	if err != nil || bound.MachineID == nil || *bound.MachineID != winners[0] {
		t.Errorf("stored binding %v does not match winner %s (err %v)", bound.MachineID, winners[0], err)
	}

	// 5. TouchValidation only succeeds for the bound machine.
	touched, err := repo.TouchValidation(ctx, lic.ID, winners[0], time.Now().UTC())
	if err != nil || !touched {
		t.Errorf("TouchValidation for bound machine = (%v, %v)", touched, err)
	}
	touched, err = repo.TouchValidation(ctx, lic.ID, "machine-other", time.Now().UTC())
	if err != nil || touched {
		t.Errorf("TouchValidation for foreign machine = (%v, %v), want no-op", touched, err)
	}

	// 6. Admin operations: deactivate blocks binding, unbind reopens it.
	if err := repo.SetActive(ctx, lic.ID, false); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}
	if err := repo.ClearBinding(ctx, lic.ID); err != nil {
		t.Fatalf("ClearBinding failed: %v", err)
	}
	bound2, err := repo.BindMachine(ctx, lic.ID, "machine-new", time.Now().UTC())
	if err != nil || bound2 {
		t.Errorf("BindMachine on inactive license = (%v, %v), want refusal", bound2, err)
	}
	if err := repo.SetActive(ctx, lic.ID, true); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}
	bound2, err = repo.BindMachine(ctx, lic.ID, "machine-new", time.Now().UTC())
	if err != nil || !bound2 {
		t.Errorf("BindMachine after reactivate+unbind = (%v, %v), want win", bound2, err)
	}

	// 7. Expiry round-trips through the nullable column.
	exp := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Microsecond)
	if err := repo.SetExpiry(ctx, lic.ID, &exp); err != nil {
		t.Fatalf("SetExpiry failed: %v", err)
	}
	got, err := repo.FindByKeyAndEmail(ctx, lic.Key, lic.Email)
	if err != nil || got.ExpiresAt == nil || !got.ExpiresAt.Equal(exp) {
		t.Errorf("expected expiry %v, got %v (err %v)", exp, got.ExpiresAt, err)
	}

	// 8. ListLicenses sees the record.
	all, err := repo.ListLicenses(ctx)
	if err != nil || len(all) != 1 {
		t.Errorf("ListLicenses = %d records (err %v), want 1", len(all), err)
	}
}
