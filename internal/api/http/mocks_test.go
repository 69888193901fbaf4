package http

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"tenantauth-backend/internal/domain"
	"tenantauth-backend/internal/payments"
	"tenantauth-backend/internal/security"
	"tenantauth-backend/internal/service"
)

// MockAuthService
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, req *service.RegisterRequest) (*service.RegisterResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RegisterResult), args.Error(1)
}
func (m *MockAuthService) Activate(ctx context.Context, activationToken string) (*service.Session, error) {
	args := m.Called(ctx, activationToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Session), args.Error(1)
}
func (m *MockAuthService) VerifyOTP(ctx context.Context, phone, code string, windowSeconds uint) (*service.Session, error) {
	args := m.Called(ctx, phone, code, windowSeconds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Session), args.Error(1)
}
func (m *MockAuthService) ResendOTP(ctx context.Context, phone string) error {
	args := m.Called(ctx, phone)
	return args.Error(0)
}
func (m *MockAuthService) Login(ctx context.Context, identifier, password string) (*service.Session, error) {
	args := m.Called(ctx, identifier, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Session), args.Error(1)
}
func (m *MockAuthService) Logout(ctx context.Context, sessionToken string) error {
	args := m.Called(ctx, sessionToken)
	return args.Error(0)
}
func (m *MockAuthService) RequestPasswordReset(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}
func (m *MockAuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	args := m.Called(ctx, token, newPassword)
	return args.Error(0)
}
func (m *MockAuthService) Authenticate(ctx context.Context, sessionToken string) (*security.SessionClaims, *domain.User, error) {
	args := m.Called(ctx, sessionToken)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*security.SessionClaims), args.Get(1).(*domain.User), args.Error(2)
}

// MockOrganizationService
type MockOrganizationService struct {
	mock.Mock
}

func (m *MockOrganizationService) EnsureMaster(ctx context.Context, name string) (*domain.Organization, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Organization), args.Error(1)
}
func (m *MockOrganizationService) Resolve(ctx context.Context, publicID string) (*domain.Organization, error) {
	args := m.Called(ctx, publicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Organization), args.Error(1)
}
func (m *MockOrganizationService) GetByID(ctx context.Context, id int32) (*domain.Organization, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Organization), args.Error(1)
}

// MockPaymentService
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) Submit(ctx context.Context, req *payments.Request) (*service.SubmitResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SubmitResult), args.Error(1)
}
func (m *MockPaymentService) HandleValidation(ctx context.Context, provider string, body []byte) (string, error) {
	args := m.Called(ctx, provider, body)
	return args.String(0), args.Error(1)
}
func (m *MockPaymentService) HandleConfirmation(ctx context.Context, provider string, body []byte) error {
	args := m.Called(ctx, provider, body)
	return args.Error(0)
}
func (m *MockPaymentService) WalletBalance(ctx context.Context, provider string) (*payments.WalletBalance, error) {
	args := m.Called(ctx, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.WalletBalance), args.Error(1)
}
func (m *MockPaymentService) ListTransactions(ctx context.Context, page, pageSize int32) (*service.TransactionPage, error) {
	args := m.Called(ctx, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.TransactionPage), args.Error(1)
}
func (m *MockPaymentService) ReconcileStale(ctx context.Context, olderThan time.Duration) (int, error) {
	args := m.Called(ctx, olderThan)
	return args.Int(0), args.Error(1)
}
