// Package stripe creates Stripe Checkout links for paid lessons.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/savaki/tutorbot/pkg/logging"
	"github.com/savaki/tutorbot/pkg/models"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"go.uber.org/zap"
)

// DefaultCurrency is used when none is configured
const DefaultCurrency = "eur"

// SessionAPI is the subset of the Checkout Sessions client used here
type SessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

var _ SessionAPI = (*session.Client)(nil)

// Client creates payment links
type Client struct {
	sessions   SessionAPI
	successURL string
	cancelURL  string
	currency   string
	logger     *zap.Logger
}

// NewClient creates a Client authenticated with a Stripe secret key
func NewClient(secretKey, successURL, cancelURL, currency string, logger *zap.Logger) *Client {
	api := &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey}
	return NewWithAPI(api, successURL, cancelURL, currency, logger)
}

// NewWithAPI creates a Client on top of an existing SessionAPI
func NewWithAPI(api SessionAPI, successURL, cancelURL, currency string, logger *zap.Logger) *Client {
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Client{
		sessions:   api,
		successURL: successURL,
		cancelURL:  cancelURL,
		currency:   strings.ToLower(currency),
		logger:     logging.OrNop(logger),
	}
}

// CreatePaymentLink opens a one-item Checkout session and returns its URL.
// The contact and conversation ride along as session metadata, which is what
// the checkout.session.completed webhook reads back.
func (c *Client) CreatePaymentLink(ctx context.Context, req models.PaymentRequest) (string, error) {
	if req.AmountCents <= 0 {
		return "", fmt.Errorf("invalid amount %d", req.AmountCents)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(c.successURL),
		ClientReferenceID: stripe.String(req.OrderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(c.currency),
				UnitAmount: stripe.Int64(req.AmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Description),
				},
			},
		}},
	}
	if c.cancelURL != "" {
		params.CancelURL = stripe.String(c.cancelURL)
	}
	params.Context = ctx
	params.AddMetadata(models.PaymentMetaContactID, req.ContactID)
	params.AddMetadata(models.PaymentMetaConversationID, req.ConversationID)
	params.AddMetadata(models.PaymentMetaOrderID, req.OrderID)

	sess, err := c.sessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	if sess.URL == "" {
		return "", errors.New("checkout session has no url")
	}

	c.logger.Info("checkout session created",
		zap.String("session_id", sess.ID),
		zap.String("order_id", req.OrderID),
		zap.Int64("amount_cents", req.AmountCents))
	return sess.URL, nil
}
