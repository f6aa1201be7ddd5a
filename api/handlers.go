package api

import (
	"context"
	"net/http"
	"time"

	"creditledger/observability"
	"creditledger/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// DeliveryStore remembers webhook deliveries that were already processed
type DeliveryStore interface {
	MarkDelivered(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error)
	ForgetDelivery(ctx context.Context, deliveryID string) error
}

// HealthCheck is a named dependency probe for /healthz
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handlers holds the dependencies of the HTTP handlers
type Handlers struct {
	Credits            service.CreditLedger
	Users              service.UserSyncer
	Messages           service.MessageRecorder
	Deliveries         DeliveryStore
	Webhook            *WebhookVerifier
	Metrics            *observability.Metrics
	CronToken          string
	DailyRefreshAmount int64
	HealthChecks       []HealthCheck

	validate *validator.Validate
}

// NewHandlers creates handlers with a fresh payload validator
func NewHandlers(credits service.CreditLedger, users service.UserSyncer) *Handlers {
	return &Handlers{
		Credits:            credits,
		Users:              users,
		DailyRefreshAmount: service.DefaultStartingBalance,
		validate:           validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Health reports the state of every registered dependency
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{}
	for _, hc := range h.HealthChecks {
		if err := hc.Check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks[hc.Name] = err.Error()
			continue
		}
		checks[hc.Name] = "ok"
	}

	c.JSON(status, gin.H{
		"status": http.StatusText(status),
		"checks": checks,
	})
}
