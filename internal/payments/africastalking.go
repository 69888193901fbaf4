package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"tenantauth-backend/internal/domain"
	"tenantauth-backend/internal/logger"
)

// Provider status values that mean the request was queued
const (
	statusPendingConfirmation = "PendingConfirmation"
	statusQueued              = "Queued"
)

const serviceName = "africastalking"

var ErrProviderUnavailable = errors.New("payment provider unavailable")

type Endpoints struct {
	MobileCheckout  string
	B2B             string
	B2C             string
	WalletBalance   string
	FindTransaction string
}

type AfricasTalkingClient struct {
	httpClient *http.Client
	apiKey     string
	username   string
	endpoints  Endpoints
	region     string
}

func NewAfricasTalkingClient(apiKey, username string, endpoints Endpoints, timeout time.Duration, region string) *AfricasTalkingClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AfricasTalkingClient{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		username:   username,
		endpoints:  endpoints,
		region:     region,
	}
}

// Amounts are sent as JSON numbers; decimal.Decimal would marshal as a string.
type mobileCheckoutPayload struct {
	Amount          json.Number       `json:"amount"`
	PhoneNumber     string            `json:"phoneNumber"`
	ProductName     string            `json:"productName"`
	Username        string            `json:"username"`
	CurrencyCode    string            `json:"currencyCode"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	ProviderChannel string            `json:"providerChannel,omitempty"`
}

type businessToBusinessPayload struct {
	Amount             json.Number       `json:"amount"`
	DestinationAccount string            `json:"destinationAccount"`
	DestinationChannel string            `json:"destinationChannel"`
	ProductName        string            `json:"productName"`
	Provider           string            `json:"provider"`
	TransferType       string            `json:"transferType"`
	Username           string            `json:"username"`
	CurrencyCode       string            `json:"currencyCode"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

type consumerRecipient struct {
	Amount          json.Number       `json:"amount"`
	PhoneNumber     string            `json:"phoneNumber"`
	CurrencyCode    string            `json:"currencyCode"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	Name            string            `json:"name,omitempty"`
	ProviderChannel string            `json:"providerChannel,omitempty"`
	Reason          string            `json:"reason,omitempty"`
}

type businessToConsumerPayload struct {
	ProductName string              `json:"productName"`
	Username    string              `json:"username"`
	Recipients  []consumerRecipient `json:"recipients"`
}

type checkoutResponse struct {
	Status        string `json:"status"`
	Description   string `json:"description"`
	TransactionID string `json:"transactionId"`
	ErrorMessage  string `json:"errorMessage"`
}

type consumerEntry struct {
	PhoneNumber   string `json:"phoneNumber"`
	Status        string `json:"status"`
	Provider      string `json:"provider"`
	Value         string `json:"value"`
	TransactionID string `json:"transactionId"`
	ErrorMessage  string `json:"errorMessage"`
}

type consumerResponse struct {
	NumQueued    int             `json:"numQueued"`
	Entries      []consumerEntry `json:"entries"`
	ErrorMessage string          `json:"errorMessage"`
}

// Submit validates req, normalizes consumer phone numbers and sends it to the provider
func (c *AfricasTalkingClient) Submit(ctx context.Context, req *Request) (*Submission, error) {
	if req.ServiceProvider != ProviderAfricasTalking {
		return nil, fmt.Errorf("%w: %s", ErrInvalidServiceProvider, req.ServiceProvider)
	}
	switch req.PaymentType {
	case PaymentTypeMobileCheckout:
		return c.MobileCheckout(ctx, req)
	case PaymentTypeBusinessToBusiness:
		return c.BusinessToBusiness(ctx, req)
	case PaymentTypeBusinessToConsumer:
		return c.BusinessToConsumer(ctx, req)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidPaymentType, req.PaymentType)
	}
}

func (c *AfricasTalkingClient) MobileCheckout(ctx context.Context, req *Request) (*Submission, error) {
	payload, err := c.buildMobileCheckout(req)
	if err != nil {
		return nil, err
	}

	var resp checkoutResponse
	status, body, err := c.post(ctx, "mobile_checkout", c.endpoints.MobileCheckout, payload, &resp)
	if err != nil {
		return nil, err
	}
	sub := &Submission{Type: domain.TransactionTypeMobileCheckout, ProductName: payload.ProductName,
		StatusCode: status, Body: body, ErrorMessage: resp.ErrorMessage}
	if status == http.StatusCreated && resp.Status == statusPendingConfirmation {
		sub.Accepted = []Accepted{{
			ProviderTransactionID: resp.TransactionID,
			DestinationAccount:    payload.PhoneNumber,
			Amount:                decimal.RequireFromString(payload.Amount.String()),
			Provider:              "Mpesa",
			Description:           "Mobile checkout queued successfully.",
		}}
	}
	return sub, nil
}

func (c *AfricasTalkingClient) BusinessToBusiness(ctx context.Context, req *Request) (*Submission, error) {
	payload, err := c.buildBusinessToBusiness(req)
	if err != nil {
		return nil, err
	}

	var resp checkoutResponse
	status, body, err := c.post(ctx, "business_to_business", c.endpoints.B2B, payload, &resp)
	if err != nil {
		return nil, err
	}
	sub := &Submission{Type: domain.TransactionTypeBusinessToBiz, ProductName: payload.ProductName,
		StatusCode: status, Body: body, ErrorMessage: resp.ErrorMessage}
	if status == http.StatusCreated && resp.Status == statusQueued {
		sub.Accepted = []Accepted{{
			ProviderTransactionID: resp.TransactionID,
			DestinationAccount:    payload.DestinationAccount,
			Amount:                decimal.RequireFromString(payload.Amount.String()),
			Provider:              payload.Provider,
			Description:           "Mobile business to business transaction queued successfully.",
		}}
	}
	return sub, nil
}

func (c *AfricasTalkingClient) BusinessToConsumer(ctx context.Context, req *Request) (*Submission, error) {
	payload, err := c.buildBusinessToConsumer(req)
	if err != nil {
		return nil, err
	}

	var resp consumerResponse
	status, body, err := c.post(ctx, "business_to_consumer", c.endpoints.B2C, payload, &resp)
	if err != nil {
		return nil, err
	}
	sub := &Submission{Type: domain.TransactionTypeBusinessToClient, ProductName: payload.ProductName,
		StatusCode: status, Body: body, ErrorMessage: resp.ErrorMessage}
	if status != http.StatusCreated {
		return sub, nil
	}
	for _, entry := range resp.Entries {
		if entry.Status != statusQueued {
			if sub.ErrorMessage == "" {
				sub.ErrorMessage = entry.ErrorMessage
			}
			continue
		}
		_, amount, err := ParseMoney(entry.Value)
		if err != nil {
			logger.WarnContext(ctx, "Unreadable consumer entry value", "value", entry.Value, "transaction_id", entry.TransactionID)
			continue
		}
		sub.Accepted = append(sub.Accepted, Accepted{
			ProviderTransactionID: entry.TransactionID,
			DestinationAccount:    entry.PhoneNumber,
			Amount:                amount,
			Provider:              "Mpesa",
			Description:           "Mobile Business to consumer transaction queued successfully.",
		})
	}
	return sub, nil
}

// WalletBalance is the provider's payment wallet balance
type WalletBalance struct {
	Status       string `json:"status"`
	Balance      string `json:"balance"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

func (c *AfricasTalkingClient) WalletBalance(ctx context.Context) (*WalletBalance, error) {
	var balance WalletBalance
	status, _, err := c.get(ctx, "wallet_balance", c.endpoints.WalletBalance, url.Values{"username": {c.username}}, &balance)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: wallet balance status %d: %s", ErrProviderUnavailable, status, balance.ErrorMessage)
	}
	return &balance, nil
}

// TransactionStatus is the provider's current view of a transaction
type TransactionStatus struct {
	TransactionID string
	Status        string
	Description   string
	Amount        decimal.Decimal
}

// Succeeded reports a terminal success; ok is false while the provider has no final answer
func (t *TransactionStatus) Succeeded() (succeeded, ok bool) {
	switch t.Status {
	case "Success":
		return true, true
	case "Failed":
		return false, true
	default:
		return false, false
	}
}

type findTransactionResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage"`
	Data         struct {
		Status        string `json:"status"`
		Description   string `json:"description"`
		Value         string `json:"value"`
		TransactionID string `json:"transactionId"`
	} `json:"data"`
}

func (c *AfricasTalkingClient) FindTransaction(ctx context.Context, transactionID string) (*TransactionStatus, error) {
	var resp findTransactionResponse
	query := url.Values{"username": {c.username}, "transactionId": {transactionID}}
	status, _, err := c.get(ctx, "find_transaction", c.endpoints.FindTransaction, query, &resp)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || resp.Status != "Success" {
		return nil, fmt.Errorf("%w: find transaction status %d: %s", ErrProviderUnavailable, status, resp.ErrorMessage)
	}
	ts := &TransactionStatus{TransactionID: resp.Data.TransactionID, Status: resp.Data.Status, Description: resp.Data.Description}
	if resp.Data.Value != "" {
		if _, ts.Amount, err = ParseMoney(resp.Data.Value); err != nil {
			return nil, err
		}
	}
	return ts, nil
}

func (c *AfricasTalkingClient) buildMobileCheckout(req *Request) (*mobileCheckoutPayload, error) {
	phoneNumber, err := normalizeConsumerPhone(req.PhoneNumber, c.region)
	if err != nil {
		return nil, err
	}
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	currency, err := validateCurrency(req.CurrencyCode)
	if err != nil {
		return nil, err
	}
	if err := requireField("product_name", req.ProductName); err != nil {
		return nil, err
	}
	return &mobileCheckoutPayload{
		Amount:          json.Number(amount.String()),
		PhoneNumber:     phoneNumber,
		ProductName:     req.ProductName,
		Username:        c.username,
		CurrencyCode:    currency,
		Metadata:        req.Metadata,
		ProviderChannel: req.ProviderChannel,
	}, nil
}

func (c *AfricasTalkingClient) buildBusinessToBusiness(req *Request) (*businessToBusinessPayload, error) {
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if !contains(Providers, req.Provider) {
		return nil, fmt.Errorf("%w: %s.", ErrUnsupportedProvider, req.Provider)
	}
	if !contains(TransferTypes, req.TransferType) {
		return nil, fmt.Errorf("%w: %s.", ErrUnsupportedTransferType, req.TransferType)
	}
	currency, err := validateCurrency(req.CurrencyCode)
	if err != nil {
		return nil, err
	}
	for _, f := range [][2]string{
		{"destination_account", req.DestinationAccount},
		{"destination_channel", req.DestinationChannel},
		{"product_name", req.ProductName},
	} {
		if err := requireField(f[0], f[1]); err != nil {
			return nil, err
		}
	}
	return &businessToBusinessPayload{
		Amount:             json.Number(amount.String()),
		DestinationAccount: req.DestinationAccount,
		DestinationChannel: req.DestinationChannel,
		ProductName:        req.ProductName,
		Provider:           req.Provider,
		TransferType:       req.TransferType,
		Username:           c.username,
		CurrencyCode:       currency,
		Metadata:           req.Metadata,
	}, nil
}

func (c *AfricasTalkingClient) buildBusinessToConsumer(req *Request) (*businessToConsumerPayload, error) {
	phoneNumber, err := normalizeConsumerPhone(req.PhoneNumber, c.region)
	if err != nil {
		return nil, err
	}
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	currency, err := validateCurrency(req.CurrencyCode)
	if err != nil {
		return nil, err
	}
	if req.Reason != "" && !contains(Reasons, req.Reason) {
		return nil, fmt.Errorf("%w: %s.", ErrUnsupportedReason, req.Reason)
	}
	if err := requireField("product_name", req.ProductName); err != nil {
		return nil, err
	}
	return &businessToConsumerPayload{
		ProductName: req.ProductName,
		Username:    c.username,
		Recipients: []consumerRecipient{{
			Amount:          json.Number(amount.String()),
			PhoneNumber:     phoneNumber,
			CurrencyCode:    currency,
			Metadata:        req.Metadata,
			Name:            req.Name,
			ProviderChannel: req.ProviderChannel,
			Reason:          req.Reason,
		}},
	}, nil
}

func (c *AfricasTalkingClient) post(ctx context.Context, operation, endpoint string, payload, out any) (int, json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("encode %s request: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, operation, out)
}

func (c *AfricasTalkingClient) get(ctx context.Context, operation, endpoint string, query url.Values, out any) (int, json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, err
	}
	req.URL.RawQuery = query.Encode()
	return c.do(req, operation, out)
}

func (c *AfricasTalkingClient) do(req *http.Request, operation string, out any) (int, json.RawMessage, error) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("ApiKey", c.apiKey)

	logger.ExternalServiceCall(serviceName, operation, "url", req.URL.Redacted())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.ExternalServiceResult(serviceName, operation, err)
		return 0, nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		logger.ExternalServiceResult(serviceName, operation, err)
		return 0, nil, fmt.Errorf("%w: read body: %v", ErrProviderUnavailable, err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			logger.ExternalServiceResult(serviceName, operation, err, "status", resp.StatusCode)
			return 0, nil, fmt.Errorf("%w: decode %s response: %v", ErrProviderUnavailable, operation, err)
		}
	}
	logger.ExternalServiceResult(serviceName, operation, nil, "status", resp.StatusCode)
	return resp.StatusCode, json.RawMessage(raw), nil
}
