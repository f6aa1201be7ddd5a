package api

import (
	"bytes"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"creditledger/models"
	"creditledger/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	testWebhookSecret = "whsec_" + base64.StdEncoding.EncodeToString([]byte("identity-webhook-signing-key"))
	testWebhookNow    = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
)

func newTestVerifier(t *testing.T) *WebhookVerifier {
	t.Helper()
	v, err := NewWebhookVerifier(testWebhookSecret)
	require.NoError(t, err)
	v.now = func() time.Time { return testWebhookNow }
	return v
}

func TestWebhookVerifier(t *testing.T) {
	v := newTestVerifier(t)
	body := []byte(`{"type":"user.created"}`)
	ts := strconv.FormatInt(testWebhookNow.Unix(), 10)
	valid := "v1," + v.sign("msg_1", ts, body)

	tests := []struct {
		name       string
		id         string
		timestamp  string
		signatures string
		body       []byte
		wantErr    error
	}{
		{"valid", "msg_1", ts, valid, body, nil},
		{"one of several signatures", "msg_1", ts, "v1,bm9wZQ== " + valid, body, nil},
		{"tampered body", "msg_1", ts, valid, []byte(`{"type":"user.deleted"}`), ErrWebhookSignature},
		{"other delivery id", "msg_2", ts, valid, body, ErrWebhookSignature},
		{"unknown version", "msg_1", ts, "v2," + v.sign("msg_1", ts, body), body, ErrWebhookSignature},
		{"stale", "msg_1", strconv.FormatInt(testWebhookNow.Add(-6*time.Minute).Unix(), 10), valid, body, ErrWebhookTimestamp},
		{"future", "msg_1", strconv.FormatInt(testWebhookNow.Add(6*time.Minute).Unix(), 10), valid, body, ErrWebhookTimestamp},
		{"garbage timestamp", "msg_1", "soon", valid, body, ErrWebhookTimestamp},
		{"missing id", "", ts, valid, body, ErrMissingWebhookHeaders},
		{"missing signature", "msg_1", ts, "", body, ErrMissingWebhookHeaders},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Verify(tt.id, tt.timestamp, tt.signatures, tt.body)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewWebhookVerifier_RejectsBadSecrets(t *testing.T) {
	_, err := NewWebhookVerifier("")
	assert.Error(t, err)

	_, err = NewWebhookVerifier("whsec_not base64!")
	assert.Error(t, err)
}

func signedWebhook(t *testing.T, v *WebhookVerifier, id string, body string) *http.Request {
	t.Helper()
	ts := strconv.FormatInt(testWebhookNow.Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/identity", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerDeliveryID, id)
	req.Header.Set(headerTimestamp, ts)
	req.Header.Set(headerSignature, "v1,"+v.sign(id, ts, []byte(body)))
	return req
}

const userCreatedPayload = `{
	"type": "user.created",
	"data": {
		"id": "user_2abc",
		"email_addresses": [
			{"id": "idn_1", "email_address": "old@example.com"},
			{"id": "idn_2", "email_address": "ada@example.com"}
		],
		"primary_email_address_id": "idn_2",
		"first_name": "Ada",
		"last_name": "Lovelace",
		"image_url": "https://img.example.com/ada.png"
	}
}`

func TestIdentityWebhook(t *testing.T) {
	t.Run("user.created syncs the user", func(t *testing.T) {
		v := newTestVerifier(t)
		f := newAPIFixture(t, func(h *Handlers) { h.Webhook = v })

		f.deliveries.On("MarkDelivered", mock.Anything, "msg_1", 24*time.Hour).Return(true, nil).Once()
		f.users.On("SyncUser", mock.Anything, service.IdentityUser{
			ExternalID: "user_2abc",
			Email:      "ada@example.com",
			FirstName:  "Ada",
			LastName:   "Lovelace",
			ImageURL:   "https://img.example.com/ada.png",
		}).Return(&models.User{ID: "u-1", ExternalID: "user_2abc"}, true, nil).Once()

		w := f.do(signedWebhook(t, v, "msg_1", userCreatedPayload))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true}`, w.Body.String())
	})

	t.Run("duplicate deliveries are acknowledged without work", func(t *testing.T) {
		v := newTestVerifier(t)
		f := newAPIFixture(t, func(h *Handlers) { h.Webhook = v })
		f.deliveries.On("MarkDelivered", mock.Anything, "msg_1", 24*time.Hour).Return(false, nil).Once()

		w := f.do(signedWebhook(t, v, "msg_1", userCreatedPayload))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decodeBody(t, w)["duplicate"])
	})

	t.Run("user.deleted deletes the user", func(t *testing.T) {
		v := newTestVerifier(t)
		f := newAPIFixture(t, func(h *Handlers) { h.Webhook = v })
		f.deliveries.On("MarkDelivered", mock.Anything, "msg_2", 24*time.Hour).Return(true, nil).Once()
		f.users.On("DeleteUser", mock.Anything, "user_2abc").Return(true, nil).Once()

		w := f.do(signedWebhook(t, v, "msg_2", `{"type":"user.deleted","data":{"id":"user_2abc","deleted":true}}`))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("failed sync can be redelivered", func(t *testing.T) {
		v := newTestVerifier(t)
		f := newAPIFixture(t, func(h *Handlers) { h.Webhook = v })
		f.deliveries.On("MarkDelivered", mock.Anything, "msg_3", 24*time.Hour).Return(true, nil).Once()
		f.users.On("SyncUser", mock.Anything, mock.Anything).
			Return(nil, false, &service.StoreError{Op: "upsert user", Err: errors.New("timeout")}).Once()
		f.deliveries.On("ForgetDelivery", mock.Anything, "msg_3").Return(nil).Once()

		w := f.do(signedWebhook(t, v, "msg_3", userCreatedPayload))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("payload without email is rejected", func(t *testing.T) {
		v := newTestVerifier(t)
		f := newAPIFixture(t, func(h *Handlers) { h.Webhook = v })
		f.deliveries.On("MarkDelivered", mock.Anything, "msg_4", 24*time.Hour).Return(true, nil).Once()
		f.deliveries.On("ForgetDelivery", mock.Anything, "msg_4").Return(nil).Once()

		w := f.do(signedWebhook(t, v, "msg_4", `{"type":"user.updated","data":{"id":"user_2abc","email_addresses":[]}}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unhandled event types are acknowledged", func(t *testing.T) {
		v := newTestVerifier(t)
		f := newAPIFixture(t, func(h *Handlers) {
			h.Webhook = v
			h.Deliveries = nil
		})

		w := f.do(signedWebhook(t, v, "msg_5", `{"type":"session.created","data":{"id":"sess_1"}}`))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("bad signature", func(t *testing.T) {
		v := newTestVerifier(t)
		f := newAPIFixture(t, func(h *Handlers) { h.Webhook = v })

		req := signedWebhook(t, v, "msg_6", userCreatedPayload)
		req.Header.Set(headerSignature, "v1,Zm9yZ2Vk")
		w := f.do(req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid webhook signature", decodeBody(t, w)["error"])
	})

	t.Run("missing headers", func(t *testing.T) {
		v := newTestVerifier(t)
		f := newAPIFixture(t, func(h *Handlers) { h.Webhook = v })

		req := httptest.NewRequest(http.MethodPost, "/webhooks/identity", bytes.NewBufferString(userCreatedPayload))
		w := f.do(req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "missing svix headers", decodeBody(t, w)["error"])
	})

	t.Run("no secret configured", func(t *testing.T) {
		f := newAPIFixture(t)
		w := f.do(httptest.NewRequest(http.MethodPost, "/webhooks/identity", bytes.NewBufferString("{}")))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
