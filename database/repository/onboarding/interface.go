package onboardingRepo

import (
	"context"

	"profitpilot/models"
)

// OnboardingRepository stores the records of completed onboardings.
type OnboardingRepository interface {
	// Save inserts the record, or replaces the one already stored under its id.
	Save(ctx context.Context, record models.OnboardingRecord) error
	// GetByID returns nil, nil when no record has the id.
	GetByID(ctx context.Context, id string) (*models.OnboardingRecord, error)
}
