// Package backend talks to the remote analytics backend that owns accounts,
// subscriptions and profile data. The onboarding flow treats every call as a black box.
package backend

import (
	"context"
)

// CheckoutCreator starts a paid subscription checkout.
type CheckoutCreator interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error)
}

// AccountActivator sets the password of an invited account and activates it.
type AccountActivator interface {
	SetPassword(ctx context.Context, verificationToken string, req SetPasswordRequest) (*SetPasswordResponse, error)
}

// ReferenceSource lists the options used by the profile steps.
type ReferenceSource interface {
	Categories(ctx context.Context) ([]RawRecord, error)
	ExperienceLevels(ctx context.Context) ([]RawRecord, error)
	Countries(ctx context.Context) ([]RawRecord, error)
}

// ProfileUpdater stores the seller profile chosen during onboarding.
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, authToken string, req ProfileUpdateRequest) error
}

// Operations bundles every collaborator the wizard depends on.
type Operations struct {
	Checkout  CheckoutCreator
	Accounts  AccountActivator
	Reference ReferenceSource
	Profile   ProfileUpdater
}

// CheckoutRequest is the payload for a checkout session.
type CheckoutRequest struct {
	PricingID    string `json:"pricing_id"`
	Email        string `json:"email"`
	FullName     string `json:"fullname"`
	ReferralCode string `json:"referral_code,omitempty"`
}

// CheckoutResponse carries the URL the browser must follow.
type CheckoutResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id,omitempty"`
}

// SetPasswordRequest is the payload of the account activation call.
type SetPasswordRequest struct {
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// ActivatedUser is the account returned by a successful activation.
type ActivatedUser struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Email            string `json:"email"`
	SubscriptionType string `json:"subscription_type"`
}

// SetPasswordResponse is returned by SetPassword.
type SetPasswordResponse struct {
	User        ActivatedUser `json:"user"`
	AccessToken string        `json:"access_token,omitempty"`
}

// ProfileUpdateRequest uses the numeric ids the backend expects.
type ProfileUpdateRequest struct {
	CategoryIDs       []int `json:"category_ids"`
	ExperienceLevelID int   `json:"experience_level_id"`
	CountryID         int   `json:"country_id"`
}

// RawRecord is a loosely typed reference-data record as returned by the backend.
type RawRecord map[string]interface{}
