package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

type PaystackService struct {
	SecretKey string
	BaseURL   string
}

type InitializePaymentResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

type VerifyPaymentResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID              int64  `json:"id"`
		Status          string `json:"status"`
		Reference       string `json:"reference"`
		Amount          int    `json:"amount"` // Amount in subunits (100 = 1.00)
		GatewayResponse string `json:"gateway_response"`
		PaidAt          string `json:"paid_at"`
		Channel         string `json:"channel"`
		Currency        string `json:"currency"`
	} `json:"data"`
}

type TransferRecipientResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Active        bool   `json:"active"`
		RecipientCode string `json:"recipient_code"`
		Type          string `json:"type"`
	} `json:"data"`
}

type InitiateTransferResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID           int64  `json:"id"`
		Amount       int    `json:"amount"`
		Reference    string `json:"reference"`
		Status       string `json:"status"`
		TransferCode string `json:"transfer_code"`
	} `json:"data"`
}

func NewPaystackService() *PaystackService {
	return &PaystackService{
		SecretKey: os.Getenv("PAYSTACK_SECRET_KEY"),
		BaseURL:   "https://api.paystack.co",
	}
}

func (ps *PaystackService) makeRequest(method, endpoint string, payload interface{}) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, ps.BaseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+ps.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	return http.DefaultClient.Do(req)
}

// InitializePayment creates a Paystack checkout session for an engagement payment.
func (ps *PaystackService) InitializePayment(email string, amount float64, reference string, callbackURL string) (*InitializePaymentResponse, error) {
	payload := map[string]interface{}{
		"email":        email,
		"amount":       int(amount * 100), // Paystack expects subunits
		"reference":    reference,
		"callback_url": callbackURL,
	}

	resp, err := ps.makeRequest("POST", "/transaction/initialize", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result InitializePaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !result.Status {
		return nil, fmt.Errorf("paystack error: %s", result.Message)
	}
	return &result, nil
}

// VerifyPayment confirms a payment's final status with Paystack.
func (ps *PaystackService) VerifyPayment(reference string) (*VerifyPaymentResponse, error) {
	resp, err := ps.makeRequest("GET", "/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result VerifyPaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !result.Status {
		return nil, fmt.Errorf("paystack error: %s", result.Message)
	}
	return &result, nil
}

// CreateTransferRecipient registers a bank account for withdrawal transfers.
func (ps *PaystackService) CreateTransferRecipient(accountName, accountNumber, bankCode string) (*TransferRecipientResponse, error) {
	payload := map[string]interface{}{
		"type":           "nuban",
		"name":           accountName,
		"account_number": accountNumber,
		"bank_code":      bankCode,
		"currency":       "NGN",
	}

	resp, err := ps.makeRequest("POST", "/transferrecipient", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result TransferRecipientResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !result.Status {
		return nil, fmt.Errorf("paystack error: %s", result.Message)
	}
	return &result, nil
}

// InitiateTransfer sends a withdrawal to a previously registered recipient.
func (ps *PaystackService) InitiateTransfer(recipientCode string, amount float64, reason string, reference string) (*InitiateTransferResponse, error) {
	payload := map[string]interface{}{
		"source":    "balance",
		"amount":    int(amount * 100),
		"recipient": recipientCode,
		"reason":    reason,
		"reference": reference,
	}

	resp, err := ps.makeRequest("POST", "/transfer", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result InitiateTransferResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !result.Status {
		return nil, fmt.Errorf("paystack error: %s", result.Message)
	}
	return &result, nil
}
