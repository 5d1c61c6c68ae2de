package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"profitpilot/models"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{ID: "task-1", Queue: "default", Type: task.Type()}, nil
}

type fakeRepo struct {
	saved   []models.OnboardingRecord
	err     error
	findErr error
}

func (r *fakeRepo) Save(ctx context.Context, record models.OnboardingRecord) error {
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, record)
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*models.OnboardingRecord, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	for i := range r.saved {
		if r.saved[i].ID == id {
			return &r.saved[i], nil
		}
	}
	return nil, nil
}

func sampleRecord() models.OnboardingRecord {
	return models.OnboardingRecord{
		ID:              "rec-1",
		SessionID:       "sess-1",
		FullName:        "Jane Doe",
		Email:           "jane@x.com",
		SelectedPlanID:  "price_pro",
		CategoryIDs:     []string{"1", "2"},
		AmazonConnected: true,
		CompletedAt:     time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestCompletionSinkEnqueues(t *testing.T) {
	q := &fakeEnqueuer{}
	sink := NewCompletionSink(q, zap.NewNop())

	require.NoError(t, sink.Completed(context.Background(), sampleRecord()))
	require.Len(t, q.tasks, 1)
	assert.Equal(t, TypeOnboardingCompleted, q.tasks[0].Type())

	var got models.OnboardingRecord
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &got))
	assert.Equal(t, sampleRecord(), got)
}

func TestCompletionSinkErrors(t *testing.T) {
	sink := NewCompletionSink(&fakeEnqueuer{err: errors.New("redis down")}, nil)
	assert.Error(t, sink.Completed(context.Background(), sampleRecord()))

	sink = NewCompletionSink(&fakeEnqueuer{err: asynq.ErrTaskIDConflict}, nil)
	assert.NoError(t, sink.Completed(context.Background(), sampleRecord()))
}

func TestHandleCompletionTask(t *testing.T) {
	repo := &fakeRepo{}
	handler := HandleCompletionTask(repo, zap.NewNop())

	task, _, err := NewCompletionTask(sampleRecord())
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))

	stored, err := repo.GetByID(context.Background(), "rec-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "jane@x.com", stored.Email)

	// A redelivered task does not write again.
	require.NoError(t, handler(context.Background(), task))
	assert.Len(t, repo.saved, 1)
}

func TestCompletionTaskIDIsPerRecord(t *testing.T) {
	q := &fakeEnqueuer{}
	sink := NewCompletionSink(q, zap.NewNop())

	first := sampleRecord()
	second := sampleRecord()
	second.ID = "rec-2"
	require.NoError(t, sink.Completed(context.Background(), first))
	require.NoError(t, sink.Completed(context.Background(), second))
	require.Len(t, q.opts, 2)
	assert.Contains(t, q.opts[0], asynq.TaskID("onboarding:rec-1"))
	assert.Contains(t, q.opts[1], asynq.TaskID("onboarding:rec-2"))

	repo := &fakeRepo{}
	handler := HandleCompletionTask(repo, zap.NewNop())
	for _, task := range q.tasks {
		require.NoError(t, handler(context.Background(), task))
	}
	require.Len(t, repo.saved, 2)
	assert.Equal(t, repo.saved[0].SessionID, repo.saved[1].SessionID)
}

func TestHandleCompletionTaskFailures(t *testing.T) {
	handler := HandleCompletionTask(&fakeRepo{}, zap.NewNop())
	err := handler(context.Background(), asynq.NewTask(TypeOnboardingCompleted, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	repoErr := errors.New("mongo unavailable")
	handler = HandleCompletionTask(&fakeRepo{err: repoErr}, zap.NewNop())
	task, _, err := NewCompletionTask(sampleRecord())
	require.NoError(t, err)
	assert.ErrorIs(t, handler(context.Background(), task), repoErr)

	lookupErr := errors.New("mongo timeout")
	handler = HandleCompletionTask(&fakeRepo{findErr: lookupErr}, zap.NewNop())
	assert.ErrorIs(t, handler(context.Background(), task), lookupErr)
}
