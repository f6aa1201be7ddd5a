package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"creditledger/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	maxWebhookBody   = 1 << 20
	deliveryDedupTTL = 24 * time.Hour
)

type identityEmail struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address" validate:"required,email"`
}

type identityUserData struct {
	ID                    string          `json:"id" validate:"required"`
	EmailAddresses        []identityEmail `json:"email_addresses" validate:"dive"`
	PrimaryEmailAddressID string          `json:"primary_email_address_id"`
	FirstName             string          `json:"first_name"`
	LastName              string          `json:"last_name"`
	ImageURL              string          `json:"image_url" validate:"omitempty,url"`
}

type identityEvent struct {
	Type string           `json:"type" validate:"required"`
	Data identityUserData `json:"data" validate:"required"`
}

// primaryEmail prefers the address marked primary and falls back to the first one
func (d identityUserData) primaryEmail() string {
	for _, e := range d.EmailAddresses {
		if e.ID != "" && e.ID == d.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	if len(d.EmailAddresses) > 0 {
		return d.EmailAddresses[0].EmailAddress
	}
	return ""
}

func (d identityUserData) identity() service.IdentityUser {
	return service.IdentityUser{
		ExternalID: d.ID,
		Email:      d.primaryEmail(),
		FirstName:  d.FirstName,
		LastName:   d.LastName,
		ImageURL:   d.ImageURL,
	}
}

// IdentityWebhook handles POST /webhooks/identity
func (h *Handlers) IdentityWebhook(c *gin.Context) {
	if h.Webhook == nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "missing webhook secret"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		badRequest(c, "unreadable body")
		return
	}

	deliveryID := c.GetHeader(headerDeliveryID)
	err = h.Webhook.Verify(deliveryID, c.GetHeader(headerTimestamp), c.GetHeader(headerSignature), body)
	if errors.Is(err, ErrMissingWebhookHeaders) {
		badRequest(c, err.Error())
		return
	}
	if err != nil {
		log.WithFields(log.Fields{
			"deliveryID": deliveryID,
			"error":      err,
		}).Warn("Rejected identity webhook")
		badRequest(c, ErrWebhookSignature.Error())
		return
	}

	var event identityEvent
	if err := json.Unmarshal(body, &event); err != nil {
		badRequest(c, "malformed payload")
		return
	}

	ctx := c.Request.Context()
	if h.Deliveries != nil {
		first, err := h.Deliveries.MarkDelivered(ctx, deliveryID, deliveryDedupTTL)
		if err != nil {
			log.WithError(err).Warn("Webhook dedup unavailable, processing delivery")
		} else if !first {
			log.WithField("deliveryID", deliveryID).Info("Skipping duplicate webhook delivery")
			c.JSON(http.StatusOK, gin.H{"success": true, "duplicate": true})
			return
		}
	}

	if err := h.dispatchIdentityEvent(c, event); err != nil {
		if h.Deliveries != nil {
			if forgetErr := h.Deliveries.ForgetDelivery(ctx, deliveryID); forgetErr != nil {
				log.WithError(forgetErr).Warn("Failed to forget webhook delivery")
			}
		}
		var verr invalidPayloadError
		if errors.As(err, &verr) {
			badRequest(c, verr.Error())
			return
		}
		h.respondError(c, "identity_webhook", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type invalidPayloadError struct {
	err error
}

func (e invalidPayloadError) Error() string {
	return "invalid payload: " + e.err.Error()
}

func (h *Handlers) dispatchIdentityEvent(c *gin.Context, event identityEvent) error {
	ctx := c.Request.Context()
	fields := log.Fields{
		"eventType":  event.Type,
		"externalID": event.Data.ID,
	}

	switch event.Type {
	case "user.created", "user.updated":
		if err := h.validate.Struct(event); err != nil {
			return invalidPayloadError{err: err}
		}
		identity := event.Data.identity()
		if identity.Email == "" {
			return invalidPayloadError{err: errors.New("user has no email address")}
		}
		user, created, err := h.Users.SyncUser(ctx, identity)
		if err != nil {
			return err
		}
		fields["userID"] = user.ID
		fields["created"] = created
		log.WithFields(fields).Info("Synced identity user")
	case "user.deleted":
		if err := h.validate.Var(event.Data.ID, "required"); err != nil {
			return invalidPayloadError{err: err}
		}
		deleted, err := h.Users.DeleteUser(ctx, event.Data.ID)
		if err != nil {
			return err
		}
		fields["deleted"] = deleted
		log.WithFields(fields).Info("Deleted identity user")
	default:
		log.WithFields(fields).Debug("Ignoring identity webhook event")
	}
	return nil
}
