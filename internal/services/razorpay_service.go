package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RazorpayService creates orders through the Razorpay Orders API and
// verifies checkout signatures.
type RazorpayService struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *http.Client
}

func NewRazorpayService(keyID, keySecret, baseURL string) *RazorpayService {
	if baseURL == "" {
		baseURL = "https://api.razorpay.com"
	}
	return &RazorpayService{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *RazorpayService) Name() string { return "razorpay" }

// Configured reports whether real-looking credentials are present.
func (s *RazorpayService) Configured() bool {
	return !isPlaceholderCredential(s.keyID) && !isPlaceholderCredential(s.keySecret)
}

func isPlaceholderCredential(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return true
	}
	for _, marker := range []string{"placeholder", "your_", "your-", "changeme", "xxxx"} {
		if strings.Contains(v, marker) {
			return true
		}
	}
	return false
}

type razorpayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type razorpayOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type razorpayErrorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder posts to /v1/orders.
func (s *RazorpayService) CreateOrder(ctx context.Context, req GatewayOrderRequest) (*GatewayOrder, error) {
	if !s.Configured() {
		return nil, ErrGatewayNotConfigured
	}

	body, err := json.Marshal(razorpayOrderRequest{
		Amount:   req.AmountMinor,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(s.keyID, s.keySecret)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("razorpay request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr razorpayErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Description != "" {
			return nil, fmt.Errorf("razorpay returned status %d: %s", resp.StatusCode, apiErr.Error.Description)
		}
		return nil, fmt.Errorf("razorpay returned status %d", resp.StatusCode)
	}

	var order razorpayOrderResponse
	if err := json.Unmarshal(respBody, &order); err != nil {
		return nil, fmt.Errorf("decode razorpay order: %w", err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("razorpay order response missing id")
	}

	return &GatewayOrder{
		ID:          order.ID,
		Provider:    s.Name(),
		AmountMinor: order.Amount,
		Currency:    order.Currency,
		Status:      order.Status,
		KeyID:       s.keyID,
	}, nil
}

// VerifySignature checks hex(HMAC-SHA256(secret, orderID|paymentID)).
func (s *RazorpayService) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	if s.keySecret == "" || gatewayOrderID == "" || paymentID == "" || signature == "" {
		return false
	}
	expected := SignPayment(s.keySecret, gatewayOrderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignPayment computes the checkout signature for a gateway order and payment.
func SignPayment(secret, gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
