package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrMalformedCallback = errors.New("malformed payment callback")

// ValidationCallback asks whether a transaction matches what was submitted
type ValidationCallback struct {
	TransactionID string
	Account       string
	Amount        decimal.Decimal
}

// ConfirmationCallback reports the final outcome of a transaction
type ConfirmationCallback struct {
	TransactionID string
	Amount        decimal.Decimal
	Succeeded     bool
	Description   string
}

type africasTalkingValidation struct {
	TransactionID string          `json:"transactionId"`
	PhoneNumber   string          `json:"phoneNumber"`
	ClientAccount string          `json:"clientAccount"`
	Amount        json.RawMessage `json:"amount"`
	Value         string          `json:"value"`
}

type africasTalkingConfirmation struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Description   string `json:"description"`
	Value         string `json:"value"`
}

// darajaCallback is shared by Daraja C2B validation and confirmation requests
type darajaCallback struct {
	TransactionType   string `json:"TransactionType"`
	TransID           string `json:"TransID"`
	TransTime         string `json:"TransTime"`
	TransAmount       string `json:"TransAmount"`
	BusinessShortCode string `json:"BusinessShortCode"`
	BillRefNumber     string `json:"BillRefNumber"`
	MSISDN            string `json:"MSISDN"`
}

// DecodeValidation reads a provider-specific validation payload
func DecodeValidation(provider string, body []byte) (*ValidationCallback, error) {
	switch provider {
	case ProviderAfricasTalking:
		var p africasTalkingValidation
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
		}
		account := p.PhoneNumber
		if account == "" {
			account = p.ClientAccount
		}
		var amount decimal.Decimal
		var err error
		if len(p.Amount) > 0 {
			amount, err = ParseAmount(p.Amount)
		} else {
			_, amount, err = ParseMoney(p.Value)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
		}
		return validated(&ValidationCallback{TransactionID: p.TransactionID, Account: account, Amount: amount})

	case ProviderDaraja:
		var p darajaCallback
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(p.TransAmount))
		if err != nil {
			return nil, fmt.Errorf("%w: TransAmount %q", ErrMalformedCallback, p.TransAmount)
		}
		account := p.BillRefNumber
		if account == "" {
			account = p.MSISDN
		}
		return validated(&ValidationCallback{TransactionID: p.TransID, Account: account, Amount: amount})

	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidServiceProvider, provider)
	}
}

// DecodeConfirmation reads a provider-specific confirmation payload.
// Daraja only confirms completed payments, so every Daraja confirmation is a success.
func DecodeConfirmation(provider string, body []byte) (*ConfirmationCallback, error) {
	switch provider {
	case ProviderAfricasTalking:
		var p africasTalkingConfirmation
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
		}
		_, amount, err := ParseMoney(p.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
		}
		if p.TransactionID == "" {
			return nil, fmt.Errorf("%w: missing transaction id", ErrMalformedCallback)
		}
		return &ConfirmationCallback{
			TransactionID: p.TransactionID,
			Amount:        amount,
			Succeeded:     p.Status == "Success",
			Description:   p.Description,
		}, nil

	case ProviderDaraja:
		var p darajaCallback
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(p.TransAmount))
		if err != nil {
			return nil, fmt.Errorf("%w: TransAmount %q", ErrMalformedCallback, p.TransAmount)
		}
		if p.TransID == "" {
			return nil, fmt.Errorf("%w: missing TransID", ErrMalformedCallback)
		}
		return &ConfirmationCallback{
			TransactionID: p.TransID,
			Amount:        amount,
			Succeeded:     true,
			Description:   fmt.Sprintf("%s confirmed at %s", p.TransactionType, p.TransTime),
		}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidServiceProvider, provider)
	}
}

func validated(cb *ValidationCallback) (*ValidationCallback, error) {
	if cb.TransactionID == "" {
		return nil, fmt.Errorf("%w: missing transaction id", ErrMalformedCallback)
	}
	return cb, nil
}
