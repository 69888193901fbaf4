package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tenantauth-backend/internal/config"
	"tenantauth-backend/internal/logger"
)

// AfricasTalkingSMS sends text messages through the Africa's Talking messaging API
type AfricasTalkingSMS struct {
	httpClient *http.Client
	endpoint   string
	username   string
	apiKey     string
	senderID   string
}

func NewAfricasTalkingSMS(cfg config.SMSConfig, timeout time.Duration) *AfricasTalkingSMS {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AfricasTalkingSMS{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   cfg.URL,
		username:   cfg.Username,
		apiKey:     cfg.APIKey,
		senderID:   cfg.SenderID,
	}
}

type smsResponse struct {
	SMSMessageData struct {
		Message    string `json:"Message"`
		Recipients []struct {
			Number     string `json:"number"`
			Status     string `json:"status"`
			StatusCode int    `json:"statusCode"`
		} `json:"Recipients"`
	} `json:"SMSMessageData"`
}

func (s *AfricasTalkingSMS) Send(ctx context.Context, phone, message string) error {
	form := url.Values{
		"username": {s.username},
		"to":       {phone},
		"message":  {message},
	}
	if s.senderID != "" {
		form.Set("from", s.senderID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("apiKey", s.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	logger.ExternalServiceCall("africastalking_sms", "send")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.ExternalServiceResult("africastalking_sms", "send", err)
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	var body smsResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)

	if resp.StatusCode >= 300 {
		err = fmt.Errorf("sms gateway status %d: %s", resp.StatusCode, body.SMSMessageData.Message)
	} else {
		for _, r := range body.SMSMessageData.Recipients {
			if r.StatusCode >= 300 {
				err = fmt.Errorf("sms rejected for recipient: %s", r.Status)
				break
			}
		}
	}
	logger.ExternalServiceResult("africastalking_sms", "send", err)
	return err
}
