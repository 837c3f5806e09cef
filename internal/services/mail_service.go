package services

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/IAmShivay/ANIME-sub001/internal/models"
)

// Mailer sends transactional email.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPMailer delivers email through an authenticated SMTP relay.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, username: username, password: password, from: from}
}

// ErrMailerNotConfigured is returned when no SMTP host is set.
var ErrMailerNotConfigured = fmt.Errorf("smtp mailer is not configured")

func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if m.host == "" {
		return ErrMailerNotConfigured
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	opts := []mail.Option{
		mail.WithPort(m.port),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}
	if m.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(m.username),
			mail.WithPassword(m.password),
		)
	}

	client, err := mail.NewClient(m.host, opts...)
	if err != nil {
		return err
	}

	return client.DialAndSendWithContext(ctx, msg)
}

// OTPEmail renders the one-time code message.
func OTPEmail(code, purpose string) (subject, body string) {
	subject = "Your verification code"
	action := "verify your email"
	switch purpose {
	case models.OTPPurposeReset:
		subject = "Your password reset code"
		action = "reset your password"
	case models.OTPPurposeSignup:
		action = "finish creating your account"
	}
	body = fmt.Sprintf(`<p>Use the code below to %s. It expires in 10 minutes.</p>
<p style="font-size:24px;font-weight:bold;letter-spacing:4px">%s</p>
<p>If you did not request this, you can ignore this email.</p>`, action, html.EscapeString(code))
	return subject, body
}

// OrderConfirmationEmail renders the order summary sent after checkout.
func OrderConfirmationEmail(order *models.Order) (subject, body string) {
	var rows strings.Builder
	for _, item := range order.Items {
		label := item.ProductName
		if item.Size != "" || item.Color != "" {
			label = fmt.Sprintf("%s (%s %s)", label, item.Size, item.Color)
		}
		fmt.Fprintf(&rows, "<tr><td>%s</td><td>%d</td><td>%s</td></tr>\n",
			html.EscapeString(strings.TrimSpace(label)), item.Quantity, FormatPrice(item.LineTotal, order.Currency))
	}

	subject = fmt.Sprintf("Order %s received", order.OrderNumber)
	body = fmt.Sprintf(`<h2>Thanks for your order!</h2>
<p>Order number: <b>%s</b></p>
<table>
<tr><th>Item</th><th>Qty</th><th>Total</th></tr>
%s</table>
<p>Subtotal: %s<br>Shipping: %s<br>Tax: %s<br><b>Total: %s</b></p>`,
		html.EscapeString(order.OrderNumber),
		rows.String(),
		FormatPrice(order.Pricing.Subtotal, order.Currency),
		FormatPrice(order.Pricing.Shipping, order.Currency),
		FormatPrice(order.Pricing.Tax, order.Currency),
		FormatPrice(order.Pricing.Total, order.Currency),
	)
	return subject, body
}

// StatusUpdateEmail renders the message sent when an order changes status.
func StatusUpdateEmail(order *models.Order) (subject, body string) {
	subject = fmt.Sprintf("Order %s is %s", order.OrderNumber, order.Status)
	body = fmt.Sprintf("<p>Your order <b>%s</b> is now <b>%s</b>.</p>",
		html.EscapeString(order.OrderNumber), html.EscapeString(order.Status))
	if order.TrackingNumber != "" {
		body += fmt.Sprintf("<p>Tracking: %s %s</p>",
			html.EscapeString(order.Carrier), html.EscapeString(order.TrackingNumber))
	}
	return subject, body
}
