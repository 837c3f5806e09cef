package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/IAmShivay/ANIME-sub001/internal/models"
)

// TelegramService handles sending admin notifications to Telegram.
type TelegramService struct {
	botToken    string
	adminChatID string
	apiBase     string
	client      *http.Client
	logger      *logrus.Logger
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string, logger *logrus.Logger) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		apiBase:     "https://api.telegram.org",
		client:      &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" {
		s.logger.Debug("telegram bot token not configured")
		return nil
	}

	body, err := json.Marshal(telegramMessage{ChatID: chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(ctx context.Context, text string) error {
	if s.adminChatID == "" {
		return nil
	}
	return s.SendMessage(ctx, s.adminChatID, text)
}

// FormatPrice formats price with currency and thousand separators.
func FormatPrice(amount float64, currency string) string {
	if currency == "" {
		currency = "INR"
	}
	whole := int64(amount)
	str := fmt.Sprintf("%d", whole)
	negative := strings.HasPrefix(str, "-")
	str = strings.TrimPrefix(str, "-")

	var result strings.Builder
	if negative {
		result.WriteByte('-')
	}
	length := len(str)
	for i, digit := range str {
		if i > 0 && (length-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}

	cents := int64((amount-float64(whole))*100 + 0.5)
	if cents < 0 {
		cents = -cents
	}
	if cents > 0 {
		fmt.Fprintf(&result, ".%02d", cents%100)
	}

	return result.String() + " " + currency
}

// NotifyNewOrder sends notification about a new order to the admin chat.
func (s *TelegramService) NotifyNewOrder(ctx context.Context, order *models.Order) error {
	var itemsList strings.Builder
	for i, item := range order.Items {
		variant := strings.TrimSpace(item.Size + " " + item.Color)
		if variant != "" {
			variant = " (" + html.EscapeString(variant) + ")"
		}
		fmt.Fprintf(&itemsList, "%d. <b>%s</b>%s\n   %d x %s = %s\n",
			i+1,
			html.EscapeString(item.ProductName),
			variant,
			item.Quantity,
			FormatPrice(item.UnitPrice, order.Currency),
			FormatPrice(item.LineTotal, order.Currency),
		)
	}

	paymentText := "Cash on delivery"
	if order.Payment.Method == models.PaymentMethodOnline {
		paymentText = "Online (" + order.Payment.Provider + ")"
	}

	message := fmt.Sprintf(`<b>🛒 NEW ORDER</b>
<b>📋 Order:</b> %s
<b>👤 Customer:</b> %s
<b>📞 Phone:</b> %s
<b>📦 Items:</b>
%s
<b>💰 Total:</b> %s
<b>💳 Payment:</b> %s
<b>📍 Ship to:</b> %s, %s
━━━━━━━━━━━━━━━━━━`,
		order.OrderNumber,
		html.EscapeString(order.ShippingAddress.FullName),
		html.EscapeString(order.ShippingAddress.Phone),
		itemsList.String(),
		FormatPrice(order.Pricing.Total, order.Currency),
		paymentText,
		html.EscapeString(order.ShippingAddress.City),
		html.EscapeString(order.ShippingAddress.PostalCode),
	)

	return s.SendToAdmin(ctx, strings.TrimSpace(message))
}

// NotifyPaymentSuccess sends notification about a confirmed online payment.
func (s *TelegramService) NotifyPaymentSuccess(ctx context.Context, order *models.Order) error {
	message := fmt.Sprintf(`<b>✅ PAYMENT RECEIVED</b>
<b>📋 Order:</b> %s
<b>💰 Amount:</b> %s
<b>💳 Transaction:</b> %s
━━━━━━━━━━━━━━━━━━`,
		order.OrderNumber,
		FormatPrice(order.Pricing.Total, order.Currency),
		html.EscapeString(order.Payment.TransactionID),
	)

	return s.SendToAdmin(ctx, strings.TrimSpace(message))
}
