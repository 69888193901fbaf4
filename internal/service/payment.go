package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tenantauth-backend/internal/domain"
	"tenantauth-backend/internal/logger"
	"tenantauth-backend/internal/metrics"
	"tenantauth-backend/internal/payments"
	"tenantauth-backend/internal/phone"
	"tenantauth-backend/internal/repository"
)

// Validation callback answers
const (
	ValidationAccepted = "Validated"
	ValidationRejected = "Failed"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type PaymentServiceDeps struct {
	Transactions repository.TransactionRepository
	Provider     PaymentProvider
	Tasks        Submitter
	Metrics      *metrics.Metrics
	PhoneRegion  string
}

type paymentService struct {
	PaymentServiceDeps
	now func() time.Time
}

func NewPaymentService(deps PaymentServiceDeps) PaymentService {
	if deps.PhoneRegion == "" {
		deps.PhoneRegion = phone.DefaultRegion
	}
	return &paymentService{PaymentServiceDeps: deps, now: time.Now}
}

// Submit sends req to the provider and waits for its synchronous answer.
// Local transactions are recorded only for what the provider queued.
func (s *paymentService) Submit(ctx context.Context, req *payments.Request) (*SubmitResult, error) {
	log := logger.WithMethod("PaymentService", "Submit")

	value, err := s.await(ctx, "submit_payment", func(ctx context.Context) (any, error) {
		return s.Provider.Submit(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	sub, ok := value.(*payments.Submission)
	if !ok || sub == nil {
		return nil, fmt.Errorf("unexpected provider result %T", value)
	}

	if len(sub.Accepted) == 0 {
		s.Metrics.Transaction(string(sub.Type), "REJECTED")
		log.Warn("Payment rejected by provider", "type", sub.Type, "status_code", sub.StatusCode, "error", sub.ErrorMessage)
		if sub.ErrorMessage != "" {
			return nil, &Error{Kind: KindValidation, Message: sub.ErrorMessage}
		}
		return nil, ErrPaymentRejected
	}

	result := &SubmitResult{Message: sub.Accepted[0].Description}
	for _, a := range sub.Accepted {
		tx := domain.MpesaTransaction{
			ID:                           uuid.New(),
			DestinationAccount:           a.DestinationAccount,
			Amount:                       a.Amount,
			ProductName:                  sub.ProductName,
			Provider:                     a.Provider,
			ServiceProviderTransactionID: a.ProviderTransactionID,
			Status:                       domain.TransactionStatusInitiated,
			StatusDescription:            a.Description,
			Type:                         sub.Type,
			ServiceProvider:              domain.ServiceProviderAfricasTalking,
		}
		if err := s.Transactions.Create(ctx, &tx); err != nil {
			log.Error("Failed to record accepted transaction", "provider_transaction_id", a.ProviderTransactionID, "error", err)
			return nil, fmt.Errorf("failed to record transaction %s: %w", a.ProviderTransactionID, err)
		}
		s.Metrics.Transaction(string(tx.Type), string(tx.Status))
		result.Transactions = append(result.Transactions, tx)
	}
	log.Info("Payment queued", "type", sub.Type, "transactions", len(result.Transactions))
	return result, nil
}

// HandleValidation checks a provider's transaction against what was submitted; it never mutates state
func (s *paymentService) HandleValidation(ctx context.Context, provider string, body []byte) (string, error) {
	cb, err := payments.DecodeValidation(provider, body)
	if err != nil {
		s.Metrics.Callback(provider, "validation", metrics.OutcomeFailure)
		return ValidationRejected, err
	}

	tx, err := s.Transactions.GetByProviderTransactionID(ctx, cb.TransactionID)
	if errors.Is(err, repository.ErrNotFound) {
		logger.WarnContext(ctx, "Validation for unknown transaction", "provider", provider, "transaction_id", cb.TransactionID)
		s.Metrics.Callback(provider, "validation", metrics.OutcomeFailure)
		return ValidationRejected, nil
	}
	if err != nil {
		return ValidationRejected, err
	}

	if !s.accountsMatch(tx.DestinationAccount, cb.Account) || !tx.Amount.Equal(cb.Amount) {
		logger.WarnContext(ctx, "Validation mismatch", "transaction_id", cb.TransactionID,
			"expected_amount", tx.Amount.String(), "amount", cb.Amount.String())
		s.Metrics.Callback(provider, "validation", metrics.OutcomeFailure)
		return ValidationRejected, nil
	}
	s.Metrics.Callback(provider, "validation", metrics.OutcomeSuccess)
	return ValidationAccepted, nil
}

// HandleConfirmation applies the provider's final outcome. Unknown transactions, amount
// mismatches and conflicting terminal outcomes are logged and dropped; redelivery is a no-op.
func (s *paymentService) HandleConfirmation(ctx context.Context, provider string, body []byte) error {
	log := logger.FromContext(ctx).With("provider", provider)

	cb, err := payments.DecodeConfirmation(provider, body)
	if err != nil {
		s.Metrics.Callback(provider, "confirmation", metrics.OutcomeFailure)
		return err
	}

	tx, err := s.Transactions.GetByProviderTransactionID(ctx, cb.TransactionID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("Confirmation for unknown transaction dropped", "transaction_id", cb.TransactionID)
		s.Metrics.Callback(provider, "confirmation", metrics.OutcomeDropped)
		return nil
	}
	if err != nil {
		return err
	}

	if !tx.Amount.Equal(cb.Amount) {
		log.Warn("Confirmation amount mismatch dropped", "transaction_id", cb.TransactionID,
			"expected_amount", tx.Amount.String(), "amount", cb.Amount.String())
		s.Metrics.Callback(provider, "confirmation", metrics.OutcomeDropped)
		return nil
	}

	if err := s.finalize(ctx, tx, cb.Succeeded, cb.Description); err != nil {
		if errors.Is(err, domain.ErrTransactionFinalized) {
			log.Warn("Confirmation for finalized transaction dropped", "transaction_id", cb.TransactionID, "status", tx.Status)
			s.Metrics.Callback(provider, "confirmation", metrics.OutcomeDropped)
			return nil
		}
		return err
	}
	s.Metrics.Callback(provider, "confirmation", metrics.OutcomeSuccess)
	return nil
}

func (s *paymentService) WalletBalance(ctx context.Context, provider string) (*payments.WalletBalance, error) {
	if provider != payments.ProviderAfricasTalking {
		return nil, fmt.Errorf("%w: %s.", payments.ErrInvalidServiceProvider, provider)
	}
	value, err := s.await(ctx, "wallet_balance", func(ctx context.Context) (any, error) {
		return s.Provider.WalletBalance(ctx)
	})
	if err != nil {
		return nil, err
	}
	balance, ok := value.(*payments.WalletBalance)
	if !ok {
		return nil, fmt.Errorf("unexpected provider result %T", value)
	}
	return balance, nil
}

func (s *paymentService) ListTransactions(ctx context.Context, page, pageSize int32) (*TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	items, total, err := s.Transactions.List(ctx, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	if items == nil {
		items = []domain.MpesaTransaction{}
	}
	return &TransactionPage{
		Items: items,
		Pages: (total + pageSize - 1) / pageSize,
		Total: total,
	}, nil
}

// ReconcileStale asks the provider about transactions still INITIATED after olderThan
// and applies the same transitions as a confirmation callback. It returns how many it finalized.
func (s *paymentService) ReconcileStale(ctx context.Context, olderThan time.Duration) (int, error) {
	log := logger.WithMethod("PaymentService", "ReconcileStale")

	stale, err := s.Transactions.ListByStatusOlderThan(ctx, domain.TransactionStatusInitiated, s.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to list stale transactions: %w", err)
	}

	finalized := 0
	for i := range stale {
		if err := ctx.Err(); err != nil {
			return finalized, err
		}
		tx := &stale[i]
		status, err := s.Provider.FindTransaction(ctx, tx.ServiceProviderTransactionID)
		if err != nil {
			log.Warn("Transaction status query failed", "transaction_id", tx.ServiceProviderTransactionID, "error", err)
			continue
		}
		succeeded, ok := status.Succeeded()
		if !ok {
			continue
		}
		if !status.Amount.IsZero() && !status.Amount.Equal(tx.Amount) {
			log.Warn("Reconciled amount mismatch skipped", "transaction_id", tx.ServiceProviderTransactionID,
				"expected_amount", tx.Amount.String(), "amount", status.Amount.String())
			continue
		}
		if err := s.finalize(ctx, tx, succeeded, status.Description); err != nil {
			log.Warn("Failed to finalize transaction", "transaction_id", tx.ServiceProviderTransactionID, "error", err)
			continue
		}
		finalized++
	}
	log.Info("Reconciled stale transactions", "checked", len(stale), "finalized", finalized)
	return finalized, nil
}

func (s *paymentService) finalize(ctx context.Context, tx *domain.MpesaTransaction, succeeded bool, description string) error {
	to := domain.TransactionStatusFailed
	if succeeded {
		to = domain.TransactionStatusComplete
	}
	changed, err := tx.Transition(to, description)
	if err != nil || !changed {
		return err
	}
	if err := s.Transactions.UpdateStatus(ctx, tx); err != nil {
		return err
	}
	s.Metrics.Transaction(string(tx.Type), string(tx.Status))
	return nil
}

// await runs fn on the task pool and blocks until it finishes
func (s *paymentService) await(ctx context.Context, name string, fn func(ctx context.Context) (any, error)) (any, error) {
	result, err := s.Tasks.Submit(ctx, name, fn)
	if err != nil {
		return nil, err
	}
	return result.Await(ctx)
}

// accountsMatch compares destination accounts, treating phone numbers in different formats as equal
func (s *paymentService) accountsMatch(expected, got string) bool {
	if expected == got {
		return true
	}
	a, errA := phone.Normalize(expected, s.PhoneRegion)
	b, errB := phone.Normalize(got, s.PhoneRegion)
	return errA == nil && errB == nil && a == b
}
