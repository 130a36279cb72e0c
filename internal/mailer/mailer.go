/**
 * @description
 * Notification Dispatcher for triggered price alerts.
 * Delivers a single formatted email per trigger via SMTP.
 *
 * Delivery is strictly best-effort: every transport failure is caught
 * inside this package and reported as a false return, never as an error
 * or panic. There is no retry; the alert's history entry records the
 * delivery outcome.
 *
 * @dependencies
 * - gopkg.in/gomail.v2: SMTP client
 * - backend/internal/config
 * - backend/internal/logger
 */

package mailer

import (
	"fmt"
	"strings"

	"github.com/stockpulse/backend/internal/config"
	"github.com/stockpulse/backend/internal/logger"
	gomail "gopkg.in/gomail.v2"
)

// PriceAlertEmail carries everything needed to render one alert notification
type PriceAlertEmail struct {
	Symbol       string
	AssetName    string
	CurrentPrice float64
	TargetPrice  float64
	Condition    string
	UserEmail    string
}

// Mailer sends alert notification emails over SMTP
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	host   string
}

// NewMailer creates a Mailer from SMTP config. An empty host yields a
// Mailer whose sends always report failure, so the rest of the system
// keeps working in environments without outbound email.
func NewMailer(cfg *config.Config) *Mailer {
	m := &Mailer{
		from: cfg.SMTP.From,
		host: cfg.SMTP.Host,
	}
	if cfg.SMTP.Host != "" {
		m.dialer = gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password)
	}
	return m
}

// SendPriceAlertEmail delivers one alert notification.
// Returns true only when the SMTP handoff succeeded.
func (m *Mailer) SendPriceAlertEmail(email PriceAlertEmail) (sent bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Mailer: panic during send to %s: %v", email.UserEmail, r)
			sent = false
		}
	}()

	if m.dialer == nil {
		logger.Error("Mailer: SMTP not configured, skipping email to %s", email.UserEmail)
		return false
	}
	if email.UserEmail == "" {
		return false
	}

	direction := "risen above"
	if strings.EqualFold(email.Condition, "below") {
		direction = "fallen below"
	}

	assetName := email.AssetName
	if assetName == "" {
		assetName = email.Symbol
	}

	subject := fmt.Sprintf("Price Alert: %s hit $%.2f", email.Symbol, email.CurrentPrice)
	body := fmt.Sprintf(
		"<h2>Your price alert fired</h2>"+
			"<p><strong>%s (%s)</strong> has %s your target of <strong>$%.2f</strong>.</p>"+
			"<p>Current price: <strong>$%.2f</strong></p>"+
			"<p>This alert is now complete and will not fire again. Create a new alert to keep watching %s.</p>",
		assetName, email.Symbol, direction, email.TargetPrice, email.CurrentPrice, email.Symbol,
	)

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email.UserEmail)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		logger.Error("Mailer: failed to send alert email to %s: %v", email.UserEmail, err)
		return false
	}

	logger.Info("Mailer: alert email sent to %s for %s", email.UserEmail, email.Symbol)
	return true
}
