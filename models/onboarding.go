package models

import "time"

// MaxStep is the index of the terminal confirmation step.
const MaxStep = 7

// StepIndex identifies the visible onboarding step (0..MaxStep).
type StepIndex int

// Valid reports whether the index is inside the wizard's range.
func (s StepIndex) Valid() bool {
	return s >= 0 && s <= MaxStep
}

// WizardFormState holds the values entered across the onboarding steps.
type WizardFormState struct {
	FullName          string   `json:"fullName"`
	Email             string   `json:"email"`
	Password          string   `json:"password"`
	ConfirmPassword   string   `json:"confirmPassword"`
	ExperienceLevelID string   `json:"experienceLevelId"`
	CategoryIDs       []string `json:"categoryIds"`
	CountryID         string   `json:"countryId"`
}

// HasValues reports whether any field has been filled in.
func (f WizardFormState) HasValues() bool {
	return f.FullName != "" ||
		f.Email != "" ||
		f.Password != "" ||
		f.ConfirmPassword != "" ||
		f.ExperienceLevelID != "" ||
		len(f.CategoryIDs) > 0 ||
		f.CountryID != ""
}

// Redacted returns a copy without the password fields, used for the snapshot and API responses.
func (f WizardFormState) Redacted() WizardFormState {
	out := f
	out.Password = ""
	out.ConfirmPassword = ""
	if f.CategoryIDs != nil {
		out.CategoryIDs = make([]string, len(f.CategoryIDs))
		copy(out.CategoryIDs, f.CategoryIDs)
	}
	return out
}

// UserIdentity is the account returned once the password step activates it.
type UserIdentity struct {
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Email            string `json:"email"`
	SubscriptionType string `json:"subscriptionType"`
}

// SessionSnapshot is the reload-surviving subset of the wizard.
type SessionSnapshot struct {
	FormData          WizardFormState `json:"formData"`
	UserIdentity      *UserIdentity   `json:"userIdentity,omitempty"`
	VerificationToken string          `json:"verificationToken,omitempty"`
	SelectedPlanID    string          `json:"selectedPlanId,omitempty"`
	ReferralCode      string          `json:"referralCode,omitempty"`
}

// Option is the boundary projection of a reference-data record.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ReferenceData groups the select options shown on steps 4 to 6.
type ReferenceData struct {
	Categories       []Option `json:"categories"`
	ExperienceLevels []Option `json:"experienceLevels"`
	Countries        []Option `json:"countries"`
}

// OnboardingRecord is stored once a user finishes the flow.
type OnboardingRecord struct {
	ID                string    `json:"id" bson:"id"`
	SessionID         string    `json:"sessionId" bson:"sessionId"`
	FullName          string    `json:"fullName" bson:"fullName"`
	Email             string    `json:"email" bson:"email"`
	SubscriptionType  string    `json:"subscriptionType,omitempty" bson:"subscriptionType,omitempty"`
	SelectedPlanID    string    `json:"selectedPlanId,omitempty" bson:"selectedPlanId,omitempty"`
	ReferralCode      string    `json:"referralCode,omitempty" bson:"referralCode,omitempty"`
	ExperienceLevelID string    `json:"experienceLevelId,omitempty" bson:"experienceLevelId,omitempty"`
	CategoryIDs       []string  `json:"categoryIds,omitempty" bson:"categoryIds,omitempty"`
	CountryID         string    `json:"countryId,omitempty" bson:"countryId,omitempty"`
	AmazonConnected   bool      `json:"amazonConnected" bson:"amazonConnected"`
	CompletedAt       time.Time `json:"completedAt" bson:"completedAt"`
}
