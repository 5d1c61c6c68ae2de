package wizard

import "errors"

var (
	// ErrStepBusy is returned when Next is pressed while the step's call is still in flight.
	ErrStepBusy = errors.New("wizard: step is already being submitted")
	// ErrFinished is returned once the flow has exited to the dashboard.
	ErrFinished = errors.New("wizard: onboarding already finished")
	// ErrSessionNotFound means no wizard is registered for the session.
	ErrSessionNotFound = errors.New("wizard: session not found")
)
