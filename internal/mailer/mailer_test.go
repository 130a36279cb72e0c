package mailer

import (
	"testing"

	"github.com/stockpulse/backend/internal/config"
)

func TestUnconfiguredMailerReportsFailure(t *testing.T) {
	m := NewMailer(&config.Config{})

	sent := m.SendPriceAlertEmail(PriceAlertEmail{
		Symbol:       "AAPL",
		AssetName:    "Apple Inc.",
		CurrentPrice: 190.5,
		TargetPrice:  185,
		Condition:    "above",
		UserEmail:    "trader@example.com",
	})

	if sent {
		t.Fatal("mailer without SMTP config must report failure, not success")
	}
}

func TestMailerRejectsEmptyRecipient(t *testing.T) {
	cfg := &config.Config{}
	cfg.SMTP.Host = "smtp.example.com"
	cfg.SMTP.Port = 587
	cfg.SMTP.From = "alerts@stockpulse.app"

	m := NewMailer(cfg)

	if m.SendPriceAlertEmail(PriceAlertEmail{Symbol: "AAPL"}) {
		t.Fatal("send without a recipient must fail")
	}
}
