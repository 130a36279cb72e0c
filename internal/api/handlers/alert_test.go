package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stockpulse/backend/internal/db"
	"github.com/stockpulse/backend/internal/mailer"
	"github.com/stockpulse/backend/internal/marketdata"
	"github.com/stockpulse/backend/internal/models"
	"github.com/stockpulse/backend/internal/services"
	"github.com/valyala/fasthttp/fasthttputil"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

type stubQuotes struct {
	quote *marketdata.Quote
}

func (s *stubQuotes) GetQuote(ctx context.Context, symbol string) (*marketdata.Quote, error) {
	return s.quote, nil
}

func (s *stubQuotes) RefreshQuote(ctx context.Context, symbol string) (*marketdata.Quote, error) {
	return s.quote, nil
}

type stubMailer struct{}

func (stubMailer) SendPriceAlertEmail(mailer.PriceAlertEmail) bool { return true }

func newHandlerTestApp(t *testing.T, rdb *redis.Client) (*fiber.App, *gorm.DB, *models.User) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	user := &models.User{ClerkID: "clerk_test", Email: "trader@example.com"}
	if err := gdb.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	quotes := &stubQuotes{quote: &marketdata.Quote{Symbol: "AAPL", Name: "Apple Inc.", Price: 190.5}}
	alertService := services.NewAlertService(gdb, rdb, quotes, stubMailer{})
	scheduler := services.NewAlertScheduler(alertService, time.Minute)
	handler := NewAlertHandler(gdb, alertService, scheduler)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	// Stand-in for the auth middleware: every request is clerk_test
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("clerk_id", "clerk_test")
		return c.Next()
	})
	app.Post("/api/v1/alerts", handler.CreateAlert)
	app.Get("/api/v1/alerts", handler.GetAlerts)
	app.Get("/api/v1/alerts/stats", handler.GetAlertStats)
	app.Get("/api/v1/alerts/scheduler", handler.SchedulerStatus)
	app.Get("/api/v1/alerts/stream", handler.StreamTriggers)

	return app, gdb, user
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestCreateAndListAlerts(t *testing.T) {
	app, _, _ := newHandlerTestApp(t, nil)

	resp := postJSON(t, app, "/api/v1/alerts", CreateAlertRequest{
		Symbol:      "aapl",
		TargetPrice: 200,
		Condition:   "above",
	})
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, body)
	}

	// Duplicate active alert is rejected with 409
	resp = postJSON(t, app, "/api/v1/alerts", CreateAlertRequest{
		Symbol:      "AAPL",
		TargetPrice: 250,
		Condition:   "above",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", resp.StatusCode)
	}

	// Bad input is rejected with 400
	resp = postJSON(t, app, "/api/v1/alerts", CreateAlertRequest{
		Symbol:      "MSFT",
		TargetPrice: -1,
		Condition:   "above",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad target, got %d", resp.StatusCode)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
	listResp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("list request failed: %v", err)
	}
	var listBody struct {
		Alerts []models.Alert `json:"alerts"`
	}
	if err := json.NewDecoder(listResp.Body).Decode(&listBody); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(listBody.Alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(listBody.Alerts))
	}
	if listBody.Alerts[0].Symbol != "AAPL" {
		t.Errorf("expected normalized AAPL, got %q", listBody.Alerts[0].Symbol)
	}
}

func TestSchedulerStatusEndpoint(t *testing.T) {
	app, _, _ := newHandlerTestApp(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts/scheduler", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	var status struct {
		Active          bool `json:"active"`
		IntervalSeconds int  `json:"interval_seconds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if status.Active {
		t.Error("scheduler should be inactive in tests")
	}
	if status.IntervalSeconds != 60 {
		t.Errorf("expected 60s interval, got %d", status.IntervalSeconds)
	}
}

func TestStreamTriggers(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	app, _, _ := newHandlerTestApp(t, redisClient)

	// SSE needs a real server loop; app.Test buffers the whole body and
	// would block on the endless stream.
	ln := fasthttputil.NewInmemoryListener()
	defer ln.Close()
	go func() {
		_ = app.Listener(ln)
	}()

	client := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return ln.Dial()
			},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	payload := `{"alert_id":"a1","symbol":"AAPL","price":190.5,"email_sent":true}`
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = redisClient.Publish(context.Background(), services.AlertTriggerChannel, payload).Err()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://stockpulse.test/api/v1/alerts/stream", nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("failed to call SSE endpoint: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}

	reader := bufio.NewReader(resp.Body)

	timeout := time.After(2 * time.Second)
	for {
		select {
		case <-timeout:
			t.Fatal("timed out waiting for SSE data")
		default:
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("failed to read SSE line: %v", err)
			}
			if strings.HasPrefix(line, "data:") {
				if !strings.Contains(line, `"AAPL"`) {
					t.Fatalf("unexpected SSE payload: %s", line)
				}
				return
			}
		}
	}
}
