package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionStatusInitiated TransactionStatus = "INITIATED"
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusComplete  TransactionStatus = "COMPLETE"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// IsTerminal reports whether no further transition is allowed
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusComplete || s == TransactionStatusFailed
}

type TransactionType string

const (
	TransactionTypeMobileCheckout   TransactionType = "MOBILE_CHECKOUT"
	TransactionTypeBusinessToBiz    TransactionType = "MOBILE_BUSINESS_TO_BUSINESS"
	TransactionTypeBusinessToClient TransactionType = "MOBILE_BUSINESS_TO_CONSUMER"
)

type ServiceProvider string

const (
	ServiceProviderAfricasTalking ServiceProvider = "AFRICAS_TALKING"
	ServiceProviderDaraja         ServiceProvider = "DARAJA"
)

var ErrTransactionFinalized = errors.New("transaction already reached a different terminal status")

// MpesaTransaction is created only after the provider accepted the submission
type MpesaTransaction struct {
	ID                           uuid.UUID         `json:"id"`
	DestinationAccount           string            `json:"destination_account"`
	Amount                       decimal.Decimal   `json:"amount"`
	ProductName                  string            `json:"product_name"`
	Provider                     string            `json:"provider"`
	ServiceProviderTransactionID string            `json:"service_provider_transaction_id"`
	Status                       TransactionStatus `json:"status"`
	StatusDescription            string            `json:"status_description"`
	Type                         TransactionType   `json:"type"`
	ServiceProvider              ServiceProvider   `json:"service_provider"`
	CreatedAt                    time.Time         `json:"created_at"`
	UpdatedAt                    time.Time         `json:"updated_at"`
}

// Transition moves an initiated transaction to a terminal status.
// Re-applying the current terminal status reports no change and no error.
func (t *MpesaTransaction) Transition(to TransactionStatus, description string) (bool, error) {
	if t.Status == to && to.IsTerminal() {
		return false, nil
	}
	if t.Status.IsTerminal() {
		return false, ErrTransactionFinalized
	}
	t.Status = to
	t.StatusDescription = description
	return true, nil
}

type BlacklistedToken struct {
	ID            int32     `json:"id"`
	Token         string    `json:"token"`
	BlacklistedOn time.Time `json:"blacklisted_on"`
}
