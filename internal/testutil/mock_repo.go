package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/bimora/licensegate/internal/core/domain"
)

// MockRepo is a testify mock over ports.LicenseRepository.
type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) Reserve(ctx context.Context, lic *domain.License) (bool, *domain.License, error) {
	args := m.Called(lic)
	var existing *domain.License
	if args.Get(1) != nil {
		existing = args.Get(1).(*domain.License)
	}
	return args.Bool(0), existing, args.Error(2)
}

func (m *MockRepo) FindByKeyAndEmail(ctx context.Context, key, email string) (*domain.License, error) {
	args := m.Called(key, email)
	var lic *domain.License
	if args.Get(0) != nil {
		lic = args.Get(0).(*domain.License)
	}
	return lic, args.Error(1)
}

func (m *MockRepo) GetByEmail(ctx context.Context, email string) (*domain.License, error) {
	args := m.Called(email)
	var lic *domain.License
	if args.Get(0) != nil {
		lic = args.Get(0).(*domain.License)
	}
	return lic, args.Error(1)
}

func (m *MockRepo) BindMachine(ctx context.Context, id, machineID string, now time.Time) (bool, error) {
	args := m.Called(id, machineID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepo) TouchValidation(ctx context.Context, id, machineID string, now time.Time) (bool, error) {
	args := m.Called(id, machineID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepo) SetActive(ctx context.Context, id string, active bool) error {
	args := m.Called(id, active)
	return args.Error(0)
}

func (m *MockRepo) ClearBinding(ctx context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockRepo) SetExpiry(ctx context.Context, id string, expiresAt *time.Time) error {
	args := m.Called(id, expiresAt)
	return args.Error(0)
}

func (m *MockRepo) ListLicenses(ctx context.Context) ([]domain.License, error) {
	args := m.Called()
	return args.Get(0).([]domain.License), args.Error(1)
}

func (m *MockRepo) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}
