package backend

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeCheckout creates subscription checkout sessions directly with Stripe.
type StripeCheckout struct {
	api        *client.API
	successURL string
	cancelURL  string
}

// NewStripeCheckout builds a checkout creator. backends may be nil to use Stripe's defaults.
// Customers return to appBaseURL: on success at the password step, on cancel at the email step.
func NewStripeCheckout(key string, backends *stripe.Backends, appBaseURL string) *StripeCheckout {
	api := &client.API{}
	api.Init(key, backends)
	return &StripeCheckout{
		api:        api,
		successURL: withQuery(appBaseURL, url.Values{"step": {"2"}, "checkout": {"success"}}),
		cancelURL:  withQuery(appBaseURL, url.Values{"step": {"1"}}),
	}
}

// CreateCheckoutSession creates a subscription-mode session for the selected price.
func (s *StripeCheckout) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		CustomerEmail: stripe.String(req.Email),
		SuccessURL:    stripe.String(s.successURL),
		CancelURL:     stripe.String(s.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PricingID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("fullname", req.FullName)
	if req.ReferralCode != "" {
		params.ClientReferenceID = stripe.String(req.ReferralCode)
		params.AddMetadata("referral_code", req.ReferralCode)
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return nil, fmt.Errorf("stripe.CreateCheckoutSession: %w", &APIError{Status: stripeErr.HTTPStatusCode, Message: stripeErr.Msg})
		}
		return nil, fmt.Errorf("stripe.CreateCheckoutSession: %w", err)
	}
	if sess.URL == "" {
		return nil, fmt.Errorf("stripe.CreateCheckoutSession: session %s has no url", sess.ID)
	}
	return &CheckoutResponse{URL: sess.URL, SessionID: sess.ID}, nil
}

func withQuery(base string, q url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	existing := u.Query()
	for k, v := range q {
		existing[k] = v
	}
	u.RawQuery = existing.Encode()
	return u.String()
}
