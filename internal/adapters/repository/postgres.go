package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bimora/licensegate/internal/core/domain"
)

//go:embed schema.sql
var schema string

// pgUniqueViolation is the PostgreSQL error code for unique_violation.
const pgUniqueViolation = "23505"

const licenseColumns = `id, license_key, name, email, company, purpose, is_active, activated_machine, created_at, last_validated_at, expires_at`

// PostgresRepository implements ports.LicenseRepository using PostgreSQL.
// Both atomic operations (Reserve, BindMachine) are single statements so the
// database serializes concurrent callers; no application-level locking.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates and returns a new PostgresRepository instance.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema applies the embedded schema. Safe to run on every startup.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

func (r *PostgresRepository) Reserve(ctx context.Context, lic *domain.License) (bool, *domain.License, error) {
	query := `INSERT INTO licenses (id, license_key, name, email, company, purpose, is_active, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          ON CONFLICT (email) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, lic.ID, lic.Key, lic.Name, lic.Email, lic.Company, lic.Purpose, lic.Active, lic.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && strings.Contains(pgErr.ConstraintName, "license_key") {
			return false, nil, domain.ErrKeyTaken
		}
		return false, nil, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, nil, err
	}
	if n == 1 {
		return true, nil, nil
	}

	existing, err := r.GetByEmail(ctx, lic.Email)
	if err != nil {
		return false, nil, err
	}
	if existing == nil {
		// Conflicting row deleted between the insert and the read. The caller
		// retries issuance; we do not loop here.
		return false, nil, fmt.Errorf("reservation conflict for %s but no record found", lic.Email)
	}
	return false, existing, nil
}

func (r *PostgresRepository) FindByKeyAndEmail(ctx context.Context, key, email string) (*domain.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses WHERE license_key = $1 AND LOWER(email) = LOWER($2)`
	return r.scanOne(r.db.QueryRowContext(ctx, query, key, email))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses WHERE LOWER(email) = LOWER($1)`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

// BindMachine is the conditional binding update: it sets the machine only if
// none is set and the record is still active, in one statement. RowsAffected
// decides the race; two concurrent callers can never both win.
func (r *PostgresRepository) BindMachine(ctx context.Context, id, machineID string, now time.Time) (bool, error) {
	query := `UPDATE licenses SET activated_machine = $2, last_validated_at = $3
	          WHERE id = $1 AND activated_machine IS NULL AND is_active`
	res, err := r.db.ExecContext(ctx, query, id, machineID, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *PostgresRepository) TouchValidation(ctx context.Context, id, machineID string, now time.Time) (bool, error) {
	query := `UPDATE licenses SET last_validated_at = $3
	          WHERE id = $1 AND activated_machine = $2 AND is_active`
	res, err := r.db.ExecContext(ctx, query, id, machineID, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *PostgresRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE licenses SET is_active = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, active)
	return err
}

func (r *PostgresRepository) ClearBinding(ctx context.Context, id string) error {
	query := `UPDATE licenses SET activated_machine = NULL WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *PostgresRepository) SetExpiry(ctx context.Context, id string, expiresAt *time.Time) error {
	query := `UPDATE licenses SET expires_at = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, expiresAt)
	return err
}

func (r *PostgresRepository) ListLicenses(ctx context.Context) ([]domain.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses ORDER BY created_at DESC`
	rows, errQuery := r.db.QueryContext(ctx, query)
	if errQuery != nil {
		return nil, errQuery
	}
	defer func() {
		if errClose := rows.Close(); errClose != nil {
			log.Printf("failed to close rows: %v", errClose)
		}
	}()

	var licenses []domain.License
	for rows.Next() {
		lic, errScan := scanLicense(rows)
		if errScan != nil {
			return nil, errScan
		}
		licenses = append(licenses, *lic)
	}
	return licenses, rows.Err()
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*domain.License, error) {
	lic, err := scanLicense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lic, nil
}

func scanLicense(row rowScanner) (*domain.License, error) {
	var lic domain.License
	var company, purpose, machine sql.NullString
	var lastValidated, expires sql.NullTime
	if err := row.Scan(&lic.ID, &lic.Key, &lic.Name, &lic.Email, &company, &purpose, &lic.Active, &machine, &lic.CreatedAt, &lastValidated, &expires); err != nil {
		return nil, err
	}
	if company.Valid {
		lic.Company = &company.String
	}
	if purpose.Valid {
		lic.Purpose = &purpose.String
	}
	if machine.Valid {
		lic.MachineID = &machine.String
	}
	if lastValidated.Valid {
		t := lastValidated.Time
		lic.LastValidatedAt = &t
	}
	if expires.Valid {
		t := expires.Time
		lic.ExpiresAt = &t
	}
	return &lic, nil
}
