// Package payments builds, submits and decodes mobile money transactions exchanged with
// Africa's Talking and Safaricom Daraja.
package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tenantauth-backend/internal/domain"
	"tenantauth-backend/internal/phone"
)

// Service provider identifiers used in request bodies and callback routes
const (
	ProviderAfricasTalking = "africas_talking"
	ProviderDaraja         = "daraja"
)

type PaymentType string

const (
	PaymentTypeMobileCheckout     PaymentType = "mobile_checkout"
	PaymentTypeBusinessToBusiness PaymentType = "business_to_business"
	PaymentTypeBusinessToConsumer PaymentType = "business_to_consumer"
)

const DefaultCurrencyCode = "KES"

var (
	CurrencyCodes = []string{"KES", "UGX", "USD"}
	Providers     = []string{"Athena", "Mpesa"}
	TransferTypes = []string{"BusinessBuyGoods", "BusinessPayBill", "DisburseFundsToBusiness", "BusinessToBusinessTransfer"}
	Reasons       = []string{
		"SalaryPayment",
		"SalaryPaymentWithWithdrawalChargePaid",
		"BusinessPayment",
		"BusinessPaymentWithWithdrawalChargePaid",
		"PromotionPayment",
	}
)

// Validation failures; each is wrapped with the offending value
var (
	ErrInvalidAmount           = errors.New("Incorrect amount")
	ErrUnsupportedCurrency     = errors.New("Unsupported currency code")
	ErrUnsupportedProvider     = errors.New("Unsupported provider")
	ErrUnsupportedTransferType = errors.New("Unsupported transfer type")
	ErrUnsupportedReason       = errors.New("Unsupported reason")
	ErrInvalidPaymentType      = errors.New("Invalid payment type")
	ErrInvalidServiceProvider  = errors.New("Invalid payments service provider")
	ErrMissingField            = errors.New("Missing required field")
	ErrInvalidPhoneNumber      = errors.New("Invalid phone number")
)

// Request is a payment submission as received from an API client
type Request struct {
	ServiceProvider    string            `json:"payments_service_provider"`
	PaymentType        PaymentType       `json:"payment_type"`
	Amount             json.RawMessage   `json:"amount"`
	CurrencyCode       string            `json:"currency_code"`
	PhoneNumber        string            `json:"phone_number"`
	ProductName        string            `json:"product_name"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	ProviderChannel    string            `json:"provider_channel"`
	DestinationAccount string            `json:"destination_account"`
	DestinationChannel string            `json:"destination_channel"`
	Provider           string            `json:"provider"`
	TransferType       string            `json:"transfer_type"`
	Name               string            `json:"name"`
	Reason             string            `json:"reason"`
}

// Accepted is one transaction the provider queued for processing
type Accepted struct {
	ProviderTransactionID string
	DestinationAccount    string
	Amount                decimal.Decimal
	Provider              string
	Description           string
}

// Submission is the provider's synchronous answer to a payment request
type Submission struct {
	Type         domain.TransactionType
	ProductName  string
	StatusCode   int
	Accepted     []Accepted
	ErrorMessage string
	Body         json.RawMessage
}

// ParseAmount reads a JSON number or numeric string; the amount must be positive
func ParseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return decimal.Zero, fmt.Errorf("%w: missing.", ErrInvalidAmount)
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s.", ErrInvalidAmount, s)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s.", ErrInvalidAmount, s)
	}
	return amount, nil
}

// ParseMoney reads provider values such as "KES 375.0000"
func ParseMoney(value string) (string, decimal.Decimal, error) {
	fields := strings.Fields(value)
	var currency, number string
	switch len(fields) {
	case 1:
		number = fields[0]
	case 2:
		currency, number = fields[0], fields[1]
	default:
		return "", decimal.Zero, fmt.Errorf("%w: %q.", ErrInvalidAmount, value)
	}
	amount, err := decimal.NewFromString(number)
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("%w: %q.", ErrInvalidAmount, value)
	}
	return currency, amount, nil
}

func validateCurrency(code string) (string, error) {
	if code == "" {
		return DefaultCurrencyCode, nil
	}
	if !contains(CurrencyCodes, code) {
		return "", fmt.Errorf("%w: %s.", ErrUnsupportedCurrency, code)
	}
	return code, nil
}

func normalizeConsumerPhone(number, region string) (string, error) {
	if number == "" {
		return "", fmt.Errorf("%w: phone_number.", ErrMissingField)
	}
	normalized, err := phone.Normalize(number, region)
	if err != nil {
		return "", fmt.Errorf("%w: %s.", ErrInvalidPhoneNumber, number)
	}
	return normalized, nil
}

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s.", ErrMissingField, name)
	}
	return nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// IsValidationError reports whether err is a request validation failure
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount, ErrUnsupportedCurrency, ErrUnsupportedProvider, ErrUnsupportedTransferType,
		ErrUnsupportedReason, ErrInvalidPaymentType, ErrInvalidServiceProvider, ErrMissingField, ErrInvalidPhoneNumber,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
