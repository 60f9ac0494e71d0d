package funding

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletd/walletd/internal/httperr"
	"github.com/walletd/walletd/internal/logging"
	"github.com/walletd/walletd/internal/money"
)

const testSecret = "sk_test_webhook"

func newWebhookApp(h *harness, userID string) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: httperr.Handler(logging.Discard())})
	handler := NewHandler(h.svc, testSecret, logging.Discard())
	app.Post("/wallet/paystack/webhook", handler.Webhook)
	app.Get("/wallet/paystack/webhook", handler.WebhookLiveness)

	authed := app.Group("", func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		c.Locals("email", "me@example.com")
		return c.Next()
	})
	authed.Post("/wallet/deposit", handler.Deposit)
	authed.Get("/wallet/deposit/:reference/status", handler.Status)
	authed.Get("/wallet/manual-verify", handler.ManualVerify)
	return app
}

func deliver(t *testing.T, app *fiber.App, payload, signature string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/wallet/paystack/webhook", strings.NewReader(payload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body
}

func TestWebhookCreditsOnce(t *testing.T) {
	h := newHarness(t, nil)
	userID := uuid.NewString()
	_, err := h.wallets.Create(context.Background(), userID, money.NGN)
	require.NoError(t, err)
	app := newWebhookApp(h, userID)

	payload := `{"event":"charge.success","data":{"reference":"PSK_REF_123456","amount":5000,"currency":"NGN",` +
		`"status":"success","metadata":{"user_id":"` + userID + `"},"customer":{"id":4471,"email":"payer@example.com"}}}`
	sig := Sign(testSecret, []byte(payload))

	status, body := deliver(t, app, payload, sig)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, StatusCredited, body["status"])

	status, body = deliver(t, app, payload, sig)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, StatusAlreadyProcessed, body["status"])

	assert.Equal(t, money.Amount(5000), h.balance(t, userID))
	assert.Equal(t, 1, h.rowsFor(t, userID, "PSK_REF_123456"))
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := newHarness(t, nil)
	userID := uuid.NewString()
	_, err := h.wallets.Create(context.Background(), userID, money.NGN)
	require.NoError(t, err)
	app := newWebhookApp(h, userID)

	payload := `{"event":"charge.success","data":{"reference":"PSK_FORGED","amount":5000,"metadata":{"user_id":"` + userID + `"}}}`

	status, _ := deliver(t, app, payload, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = deliver(t, app, payload, Sign("wrong-secret", []byte(payload)))
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = deliver(t, app, payload, "not-hex")
	assert.Equal(t, http.StatusUnauthorized, status)

	assert.Equal(t, money.Amount(0), h.balance(t, userID))
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	h := newHarness(t, nil)
	app := newWebhookApp(h, "")

	payload := `{"event":"transfer.success","data":{"reference":"TRF_1","amount":100,"metadata":""}}`
	status, body := deliver(t, app, payload, Sign(testSecret, []byte(payload)))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ignored", body["status"])

	bad := `{"event":`
	status, _ = deliver(t, app, bad, Sign(testSecret, []byte(bad)))
	assert.Equal(t, http.StatusBadRequest, status)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/wallet/paystack/webhook", nil))
	require.NoError(t, err)
	text, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(text), "live")
}

func TestDepositStatusAndManualVerifyRoutes(t *testing.T) {
	h := newHarness(t, &StaticGateway{})
	userID := uuid.NewString()
	app := newWebhookApp(h, userID)

	req := httptest.NewRequest(http.MethodPost, "/wallet/deposit", strings.NewReader(`{"amount":1200}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var dep DepositResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dep))
	assert.Equal(t, "PENDING", dep.Status)
	assert.NotEmpty(t, dep.AuthorizationURL)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/wallet/deposit/"+dep.Reference+"/status", nil))
	require.NoError(t, err)
	var st DepositStatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, "PENDING", st.Status)
	assert.Equal(t, int64(1200), st.Amount)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/wallet/manual-verify?reference="+dep.Reference, nil))
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, "SUCCESS", st.Status)
	assert.Equal(t, money.Amount(1200), h.balance(t, userID))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/wallet/deposit/dep_missing/status", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/wallet/manual-verify", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDepositGatewayFailureIsBadGateway(t *testing.T) {
	h := newHarness(t, failingGateway{})
	app := newWebhookApp(h, uuid.NewString())

	req := httptest.NewRequest(http.MethodPost, "/wallet/deposit", strings.NewReader(`{"amount":1200}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}
