package service

import (
	"context"
	"time"

	"tenantauth-backend/internal/domain"
	"tenantauth-backend/internal/payments"
	"tenantauth-backend/internal/security"
	"tenantauth-backend/internal/tasks"
)

// RegisterRequest carries the signup attributes; which fields are required depends on SignupMethod
type RegisterRequest struct {
	GivenNames          string
	Surname             string
	Email               string
	Phone               string
	Password            string
	IdentificationType  domain.IdentificationType
	IdentificationValue string
	SignupMethod        domain.SignupMethod
	OrganizationID      string // public identifier; empty means the master organization
}

type RegisterResult struct {
	User    *domain.User
	Message string
}

// Session is an issued session token with the user it was issued to
type Session struct {
	Token string
	User  *domain.User
}

// AuthService composes tokens, OTPs and access control into the account lifecycle
type AuthService interface {
	Register(ctx context.Context, req *RegisterRequest) (*RegisterResult, error)
	Activate(ctx context.Context, activationToken string) (*Session, error)
	VerifyOTP(ctx context.Context, phone, code string, windowSeconds uint) (*Session, error)
	ResendOTP(ctx context.Context, phone string) error
	Login(ctx context.Context, identifier, password string) (*Session, error)
	Logout(ctx context.Context, sessionToken string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error

	// Authenticate resolves a bearer session token to its claims and an activated user
	Authenticate(ctx context.Context, sessionToken string) (*security.SessionClaims, *domain.User, error)
}

// OrganizationService resolves tenants
type OrganizationService interface {
	EnsureMaster(ctx context.Context, name string) (*domain.Organization, error)
	Resolve(ctx context.Context, publicID string) (*domain.Organization, error)
	GetByID(ctx context.Context, id int32) (*domain.Organization, error)
}

// SubmitResult is the outcome of a payment the provider accepted
type SubmitResult struct {
	Transactions []domain.MpesaTransaction
	Message      string
}

type TransactionPage struct {
	Items []domain.MpesaTransaction
	Pages int32
	Total int32
}

// PaymentService drives the mobile money transaction lifecycle
type PaymentService interface {
	Submit(ctx context.Context, req *payments.Request) (*SubmitResult, error)
	HandleValidation(ctx context.Context, provider string, body []byte) (string, error)
	HandleConfirmation(ctx context.Context, provider string, body []byte) error
	WalletBalance(ctx context.Context, provider string) (*payments.WalletBalance, error)
	ListTransactions(ctx context.Context, page, pageSize int32) (*TransactionPage, error)
	ReconcileStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// PaymentProvider is the outbound payment API
type PaymentProvider interface {
	Submit(ctx context.Context, req *payments.Request) (*payments.Submission, error)
	WalletBalance(ctx context.Context) (*payments.WalletBalance, error)
	FindTransaction(ctx context.Context, transactionID string) (*payments.TransactionStatus, error)
}

// Dispatcher runs fire-and-forget work off the request path
type Dispatcher interface {
	Enqueue(name string, fn func(ctx context.Context) error) (string, error)
}

// Submitter runs work on the task pool and lets the caller wait for its result
type Submitter interface {
	Submit(ctx context.Context, name string, fn tasks.Func) (*tasks.Result, error)
}

// Mailer delivers a composed message
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// SMSSender delivers a text message to an E.164 number
type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}
