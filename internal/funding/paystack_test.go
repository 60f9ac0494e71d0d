package funding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletd/walletd/internal/money"
)

func TestPaystackInitializePayment(t *testing.T) {
	var got initializeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"dep_1"}}`))
	}))
	defer srv.Close()

	gw := NewPaystackGateway(srv.URL, "sk_test_123", time.Second)
	auth, err := gw.InitializePayment(context.Background(), PaymentRequest{
		Amount: 500_000, Currency: money.NGN, Email: "a@b.co", Reference: "dep_1", UserID: "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/abc", auth.AuthorizationURL)
	assert.Equal(t, int64(500_000), got.Amount, "amount is sent in the smallest unit unchanged")
	assert.Equal(t, "user-1", got.Metadata["user_id"])
	assert.Equal(t, "NGN", got.Currency)
}

func TestPaystackVerifyPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/dep_2", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{"reference":"dep_2","status":"success",` +
			`"amount":2500,"currency":"NGN","channel":"card","paid_at":"2024-05-01T10:00:00.000Z",` +
			`"metadata":{"user_id":"user-9"},"customer":{"id":302961,"email":"c@d.co","customer_code":"CUS_x"}}}`))
	}))
	defer srv.Close()

	v, err := NewPaystackGateway(srv.URL, "sk", time.Second).VerifyPayment(context.Background(), "dep_2")
	require.NoError(t, err)
	assert.True(t, v.Paid())
	assert.Equal(t, money.Amount(2500), v.Amount)
	assert.Equal(t, money.NGN, v.Currency)
	assert.Equal(t, "302961", v.Customer.ID)
	assert.Equal(t, "CUS_x", v.Customer.Code)
	assert.Equal(t, "user-9", v.UserID)
}

func TestPaystackErrorsWrapErrGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":false,"message":"Invalid key"}`))
	}))
	defer srv.Close()

	_, err := NewPaystackGateway(srv.URL, "bad", time.Second).VerifyPayment(context.Background(), "dep_3")
	require.ErrorIs(t, err, ErrGateway)
	assert.Contains(t, err.Error(), "Invalid key")

	ctx, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()
	_, err = NewPaystackGateway(srv.URL, "bad", time.Second).VerifyPayment(ctx, "dep_3")
	assert.ErrorIs(t, err, ErrGateway)
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"event":"charge.success"}`)
	sig := Sign("secret", payload)

	assert.NoError(t, VerifySignature("secret", payload, sig))
	assert.Error(t, VerifySignature("secret", append(payload, ' '), sig))
	assert.Error(t, VerifySignature("other", payload, sig))
	assert.Error(t, VerifySignature("", payload, Sign("", payload)))
	assert.Error(t, VerifySignature("secret", payload, ""))
}
