package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	secretPrefix     = "whsec_"
	signatureVersion = "v1"
	defaultTolerance = 5 * time.Minute
	headerDeliveryID = "svix-id"
	headerTimestamp  = "svix-timestamp"
	headerSignature  = "svix-signature"
)

var (
	ErrMissingWebhookHeaders = errors.New("missing svix headers")
	ErrWebhookTimestamp      = errors.New("webhook timestamp outside tolerance")
	ErrWebhookSignature      = errors.New("invalid webhook signature")
)

// WebhookVerifier checks identity-provider webhook signatures. A signature
// is the base64 HMAC-SHA256 of "id.timestamp.body" keyed with the secret.
type WebhookVerifier struct {
	key       []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewWebhookVerifier decodes a "whsec_" prefixed base64 secret
func NewWebhookVerifier(secret string) (*WebhookVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("webhook secret is empty")
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, secretPrefix))
	if err != nil {
		return nil, fmt.Errorf("failed to decode webhook secret: %w", err)
	}
	return &WebhookVerifier{
		key:       key,
		tolerance: defaultTolerance,
		now:       time.Now,
	}, nil
}

// Verify checks the delivery headers against body
func (v *WebhookVerifier) Verify(id, timestamp, signatures string, body []byte) error {
	if id == "" || timestamp == "" || signatures == "" {
		return ErrMissingWebhookHeaders
	}

	secs, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q is not a unix timestamp", ErrWebhookTimestamp, timestamp)
	}
	sent := time.Unix(secs, 0)
	now := v.now()
	if sent.Before(now.Add(-v.tolerance)) || sent.After(now.Add(v.tolerance)) {
		return ErrWebhookTimestamp
	}

	expected := v.sign(id, timestamp, body)
	for _, candidate := range strings.Fields(signatures) {
		version, sig, ok := strings.Cut(candidate, ",")
		if !ok || version != signatureVersion {
			continue
		}
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return ErrWebhookSignature
}

func (v *WebhookVerifier) sign(id, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(id))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
