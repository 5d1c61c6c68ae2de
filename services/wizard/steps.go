package wizard

import (
	"profitpilot/models"
)

// Gate is the validation that must pass before a step's Next action runs.
type Gate string

const (
	GateNone     Gate = "none"
	GateFullName Gate = "full_name"
	GateEmail    Gate = "email"
	GatePassword Gate = "password"
)

// Validate runs the gate against the form.
func (g Gate) Validate(form models.WizardFormState) FieldErrors {
	switch g {
	case GateFullName:
		return ValidateFullName(form.FullName)
	case GateEmail:
		return ValidateEmail(form.Email)
	case GatePassword:
		return ValidatePassword(form.Password, form.ConfirmPassword)
	default:
		return FieldErrors{}
	}
}

// Operation is the remote call, or exit, fired after a step's gate passes.
type Operation string

const (
	OpNone            Operation = "none"
	OpCheckout        Operation = "checkout"
	OpActivateAccount Operation = "activate_account"
	OpUpdateProfile   Operation = "update_profile"
	OpExitToDashboard Operation = "exit_to_dashboard"
)

// StepDescriptor says what a step shows, what gates it and what it triggers.
type StepDescriptor struct {
	Step      models.StepIndex `json:"step"`
	Name      string           `json:"name"`
	Fields    []string         `json:"fields,omitempty"`
	Gate      Gate             `json:"gate"`
	Operation Operation        `json:"operation"`
	ReadOnly  bool             `json:"readOnly"`
}

var steps = [models.MaxStep + 1]StepDescriptor{
	{Step: 0, Name: "full_name", Fields: []string{FieldFullName}, Gate: GateFullName, Operation: OpNone},
	{Step: 1, Name: "email", Fields: []string{FieldEmail}, Gate: GateEmail, Operation: OpCheckout},
	{Step: 2, Name: "password", Fields: []string{FieldPassword, FieldConfirmPassword}, Gate: GatePassword, Operation: OpActivateAccount},
	{Step: 3, Name: "account_created", Gate: GateNone, Operation: OpNone, ReadOnly: true},
	{Step: 4, Name: "experience_level", Fields: []string{FieldExperienceLevelID}, Gate: GateNone, Operation: OpNone},
	{Step: 5, Name: "categories", Fields: []string{FieldCategoryIDs}, Gate: GateNone, Operation: OpNone},
	{Step: 6, Name: "country", Fields: []string{FieldCountryID}, Gate: GateNone, Operation: OpUpdateProfile},
	{Step: 7, Name: "finished", Gate: GateNone, Operation: OpExitToDashboard, ReadOnly: true},
}

// referenceStep is the first step whose views need reference data.
const referenceStep models.StepIndex = 3

// Resolve returns the descriptor of step.
func Resolve(step models.StepIndex) (StepDescriptor, bool) {
	if !step.Valid() {
		return StepDescriptor{}, false
	}
	d := steps[step]
	d.Fields = append([]string(nil), d.Fields...)
	return d, true
}
