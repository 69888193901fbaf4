package http

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"tenantauth-backend/internal/domain"
	"tenantauth-backend/internal/logger"
	"tenantauth-backend/internal/payments"
	"tenantauth-backend/internal/service"
)

const maxCallbackBytes = 1 << 20

// Daraja expects its own acknowledgement shape; C2B00016 is its generic rejection code
const darajaRejectCode = "C2B00016"

// PaymentHandler serves payment submission, provider callbacks and the admin listings
type PaymentHandler struct {
	payments service.PaymentService
}

var initiatedMessages = map[payments.PaymentType]string{
	payments.PaymentTypeMobileCheckout:     "Mobile checkout successfully initiated.",
	payments.PaymentTypeBusinessToBusiness: "Business to business successfully initiated.",
	payments.PaymentTypeBusinessToConsumer: "Business to consumer successfully initiated.",
}

type transactionsData struct {
	Transactions []domain.MpesaTransaction `json:"mpesa_transactions"`
}

type darajaAck struct {
	ResultCode any    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

type callbackAck struct {
	Status string `json:"status"`
}

func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req payments.Request
	if !decode(w, r, &req) {
		return
	}
	res, err := h.payments.Submit(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg, ok := initiatedMessages[req.PaymentType]
	if !ok {
		msg = res.Message
	}
	writeSuccess(w, http.StatusCreated, Envelope{
		Data:    transactionsData{Transactions: res.Transactions},
		Message: msg,
	})
}

func (h *PaymentHandler) WalletBalance(w http.ResponseWriter, r *http.Request) {
	provider := r.URL.Query().Get("payments_service_provider")
	balance, err := h.payments.WalletBalance(r.Context(), provider)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, Envelope{Data: balance, Message: "Wallet balance successfully retrieved."})
}

// ListTransactions pages through recorded transactions; an empty page is a 404
func (h *PaymentHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	page := queryInt32(r, "page")
	pageSize := queryInt32(r, "per_page")

	res, err := h.payments.ListTransactions(r.Context(), page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(res.Items) == 0 {
		writeFail(w, http.StatusNotFound, "No mpesa transactions found.")
		return
	}
	writeSuccess(w, http.StatusOK, Envelope{
		Data:    transactionsData{Transactions: res.Items},
		Message: "Successfully loaded all mpesa transactions.",
		Items:   &res.Total,
		Pages:   &res.Pages,
	})
}

// Validate answers the provider's pre-settlement check. A malformed payload is rejected with 400,
// anything else that does not match gets a rejection with 200 so the provider stops retrying.
func (h *PaymentHandler) Validate(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBytes))
	if err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	result, err := h.payments.HandleValidation(r.Context(), provider, body)
	code := http.StatusOK
	if err != nil {
		logger.FromContext(r.Context()).Warn("Payment validation failed", "provider", provider, "error", err)
		if service.KindOf(err) == service.KindInternal {
			writeError(w, r, err)
			return
		}
		code = http.StatusBadRequest
	}

	if provider == payments.ProviderDaraja {
		ack := darajaAck{ResultCode: 0, ResultDesc: "Accepted"}
		if result != service.ValidationAccepted {
			ack = darajaAck{ResultCode: darajaRejectCode, ResultDesc: "Rejected"}
		}
		writeJSON(w, code, ack)
		return
	}
	writeJSON(w, code, callbackAck{Status: result})
}

// Confirm applies the provider's final outcome; dropped callbacks are still acknowledged
func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBytes))
	if err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	if err := h.payments.HandleConfirmation(r.Context(), provider, body); err != nil {
		writeError(w, r, err)
		return
	}

	if provider == payments.ProviderDaraja {
		writeJSON(w, http.StatusOK, darajaAck{ResultCode: 0, ResultDesc: "Success"})
		return
	}
	writeSuccess(w, http.StatusOK, Envelope{Message: "Payment confirmation received."})
}

func queryInt32(r *http.Request, key string) int32 {
	v, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 32)
	if err != nil {
		return 0
	}
	return int32(v)
}
