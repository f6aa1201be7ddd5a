package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"creditledger/observability"
	"creditledger/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testCronToken = "cron-secret"

type mockDeliveryStore struct {
	mock.Mock
}

func (m *mockDeliveryStore) MarkDelivered(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, deliveryID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockDeliveryStore) ForgetDelivery(ctx context.Context, deliveryID string) error {
	args := m.Called(ctx, deliveryID)
	return args.Error(0)
}

type apiFixture struct {
	credits    *service.MockCreditLedger
	users      *service.MockUserSyncer
	messages   *service.MockMessageRecorder
	deliveries *mockDeliveryStore
	handlers   *Handlers
	router     *gin.Engine
}

func newAPIFixture(t *testing.T, configure ...func(*Handlers)) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &apiFixture{
		credits:    &service.MockCreditLedger{},
		users:      &service.MockUserSyncer{},
		messages:   &service.MockMessageRecorder{},
		deliveries: &mockDeliveryStore{},
	}
	f.handlers = NewHandlers(f.credits, f.users)
	f.handlers.Deliveries = f.deliveries
	f.handlers.Messages = f.messages
	f.handlers.Metrics = observability.NewMetrics()
	f.handlers.CronToken = testCronToken
	f.handlers.DailyRefreshAmount = 10
	for _, fn := range configure {
		fn(f.handlers)
	}
	f.router = SetupRouter(f.handlers)

	t.Cleanup(func() {
		f.credits.AssertExpectations(t)
		f.users.AssertExpectations(t)
		f.messages.AssertExpectations(t)
		f.deliveries.AssertExpectations(t)
	})
	return f
}

func (f *apiFixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) get(path string) *httptest.ResponseRecorder {
	return f.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}
