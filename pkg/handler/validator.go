package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"
)

// stripeTolerance is how far a Stripe signature timestamp may drift
const stripeTolerance = 5 * time.Minute

var ErrInvalidSignature = errors.New("invalid signature")

// ValidateChatwootRequest checks X-Chatwoot-Signature, the hex HMAC-SHA256
// of the raw body. A "sha256=" prefix is accepted.
func ValidateChatwootRequest(body []byte, signature, secret string) error {
	if secret == "" {
		return fmt.Errorf("%w: no secret configured", ErrInvalidSignature)
	}
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if signature == "" {
		return fmt.Errorf("%w: missing signature", ErrInvalidSignature)
	}

	if !hmac.Equal([]byte(sign(secret, body)), []byte(strings.ToLower(signature))) {
		return ErrInvalidSignature
	}
	return nil
}

// ValidateStripeRequest checks a Stripe-Signature header of the form
// t=<unix>,v1=<hex>[,v1=<hex>...]. The signature itself is checked by
// stripe-go; the timestamp tolerance is applied against now.
func ValidateStripeRequest(body []byte, header, secret string, now time.Time) error {
	if secret == "" {
		return fmt.Errorf("%w: no secret configured", ErrInvalidSignature)
	}
	if err := webhook.ValidatePayloadIgnoringTolerance(body, header, secret); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	ts, err := stripeTimestamp(header)
	if err != nil {
		return err
	}
	if age := now.Sub(time.Unix(ts, 0)); age > stripeTolerance || age < -stripeTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}
	return nil
}

func stripeTimestamp(header string) (int64, error) {
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && k == "t" {
			ts, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: invalid timestamp %q", ErrInvalidSignature, v)
			}
			return ts, nil
		}
	}
	return 0, fmt.Errorf("%w: malformed header", ErrInvalidSignature)
}

func sign(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
