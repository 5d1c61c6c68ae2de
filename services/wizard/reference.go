package wizard

import (
	"context"

	"profitpilot/models"
	"profitpilot/services/backend"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maybeFetchReference starts the reference fetch the first time the wizard reaches
// the account-created step or later. Callers hold c.mu.
func (c *Controller) maybeFetchReference() {
	if c.dataFetched || c.step < referenceStep || c.ops.Reference == nil {
		return
	}
	c.dataFetched = true
	done := make(chan struct{})
	c.referenceDone = done
	go c.fetchReference(done)
}

// fetchReference runs the three independent fetches concurrently. A failed list is
// left empty and never blocks the others; the first failure is logged once more.
func (c *Controller) fetchReference(done chan struct{}) {
	defer close(done)
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ReferenceTimeout)
	defer cancel()

	var categories, levels, countries []models.Option
	fetch := func(name string, call func(context.Context) ([]backend.RawRecord, error), dst *[]models.Option) func() error {
		return func() error {
			records, err := call(ctx)
			if err != nil {
				c.logger.Warn("wizard: reference fetch failed", zap.String("list", name), zap.Error(err))
				return err
			}
			*dst = backend.ProjectOptions(records)
			return nil
		}
	}

	var g errgroup.Group
	g.Go(fetch("categories", c.ops.Reference.Categories, &categories))
	g.Go(fetch("experience_levels", c.ops.Reference.ExperienceLevels, &levels))
	g.Go(fetch("countries", c.ops.Reference.Countries, &countries))
	if err := g.Wait(); err != nil {
		c.logger.Warn("wizard: reference data is partial", zap.Error(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.reference = models.ReferenceData{
		Categories:       nonNil(categories),
		ExperienceLevels: nonNil(levels),
		Countries:        nonNil(countries),
	}
}

func nonNil(opts []models.Option) []models.Option {
	if opts == nil {
		return []models.Option{}
	}
	return opts
}

// referenceReady reports whether the fetch has completed. Callers hold c.mu.
func (c *Controller) referenceReady() bool {
	if c.referenceDone == nil {
		return false
	}
	select {
	case <-c.referenceDone:
		return true
	default:
		return false
	}
}

// ReferenceData waits for the reference fetch and returns its result. ok is false when
// the fetch has not been triggered yet or ctx ends first.
func (c *Controller) ReferenceData(ctx context.Context) (models.ReferenceData, bool) {
	c.mu.Lock()
	done := c.referenceDone
	c.mu.Unlock()
	if done == nil {
		return models.ReferenceData{}, false
	}

	select {
	case <-done:
	case <-ctx.Done():
		return models.ReferenceData{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reference, true
}
