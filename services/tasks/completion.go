package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	onboardingRepo "profitpilot/database/repository/onboarding"
	"profitpilot/models"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TypeOnboardingCompleted = "onboarding:completed"

// NewCompletionTask wraps a finished onboarding into a task.
func NewCompletionTask(record models.OnboardingRecord) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(record)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeOnboardingCompleted, b)
	opts := []asynq.Option{
		asynq.MaxRetry(10),
		asynq.Timeout(30 * time.Second),
		asynq.TaskID("onboarding:" + record.ID),
	}
	return task, opts, nil
}

// Enqueuer is the part of *asynq.Client the sink needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// CompletionSink hands finished onboardings to the worker queue.
type CompletionSink struct {
	client Enqueuer
	logger *zap.Logger
}

func NewCompletionSink(client Enqueuer, logger *zap.Logger) *CompletionSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompletionSink{client: client, logger: logger}
}

// Completed enqueues the record. A task already queued for the same record is not an error.
func (s *CompletionSink) Completed(ctx context.Context, record models.OnboardingRecord) error {
	task, opts, err := NewCompletionTask(record)
	if err != nil {
		return fmt.Errorf("failed to build completion task: %w", err)
	}
	info, err := s.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		if err == asynq.ErrTaskIDConflict {
			s.logger.Info("completion task already queued", zap.String("recordID", record.ID))
			return nil
		}
		return fmt.Errorf("failed to enqueue completion task: %w", err)
	}
	s.logger.Debug("completion task queued", zap.String("taskID", info.ID), zap.String("queue", info.Queue))
	return nil
}

// HandleCompletionTask stores the record carried by the task unless a previous attempt already did.
func HandleCompletionTask(repo onboardingRepo.OnboardingRepository, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var record models.OnboardingRecord
		if err := json.Unmarshal(task.Payload(), &record); err != nil {
			logger.Error("invalid completion payload", zap.Error(err))
			return fmt.Errorf("invalid completion payload: %v: %w", err, asynq.SkipRetry)
		}
		existing, err := repo.GetByID(ctx, record.ID)
		if err != nil {
			logger.Warn("failed to look up onboarding record", zap.String("recordID", record.ID), zap.Error(err))
			return err
		}
		if existing != nil {
			logger.Info("onboarding record already stored", zap.String("recordID", record.ID))
			return nil
		}
		if err := repo.Save(ctx, record); err != nil {
			logger.Warn("failed to store onboarding record", zap.String("sessionID", record.SessionID), zap.Error(err))
			return err
		}
		logger.Info("onboarding record stored", zap.String("sessionID", record.SessionID), zap.String("email", record.Email))
		return nil
	}
}
