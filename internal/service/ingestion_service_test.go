package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/docmgmt-api/internal/models"
	appErrors "github.com/noah-isme/docmgmt-api/pkg/errors"
)

// fakeBackend hands out sequential ids and records scheduled completions so tests decide when callbacks fire.
type fakeBackend struct {
	mu        sync.Mutex
	next      int64
	submitErr error
	inputs    []models.IngestionInput
	scheduled []int64
}

func (b *fakeBackend) Submit(ctx context.Context, input models.IngestionInput) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.submitErr != nil {
		return 0, b.submitErr
	}
	b.next++
	b.inputs = append(b.inputs, input)
	return b.next, nil
}

func (b *fakeBackend) ScheduleCompletion(taskID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scheduled = append(b.scheduled, taskID)
}

type ingestionFixture struct {
	svc     *IngestionService
	tasks   *memoryTasks
	cache   *memoryCache
	backend *fakeBackend
}

func newIngestionFixture() *ingestionFixture {
	tasks := newMemoryTasks()
	cache := newMemoryCache()
	backend := &fakeBackend{next: 41}
	cacheSvc := NewCacheService(cache, NewMetricsService(), 0, zap.NewNop(), true)
	svc := NewIngestionService(tasks, backend, cacheSvc, nil, NewMetricsService(), zap.NewNop(), 180*time.Second)
	return &ingestionFixture{svc: svc, tasks: tasks, cache: cache, backend: backend}
}

func TestIngestionTriggerPersistsAndCaches(t *testing.T) {
	f := newIngestionFixture()
	ctx := context.Background()

	task, err := f.svc.Trigger(ctx, 7, models.TriggerIngestionRequest{Data: "test-data"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), task.ID)
	assert.Equal(t, models.TaskStatusInProgress, task.Status)
	assert.Equal(t, "test-data", task.IngestionInput["data"])
	require.NotNil(t, task.UserID)
	assert.Equal(t, int64(7), *task.UserID)

	stored, err := f.tasks.FindByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusInProgress, stored.Status)

	assert.Equal(t, 180*time.Second, f.cache.ttls[statusCacheKey(42)])
	assert.Equal(t, []int64{42}, f.backend.scheduled)
}

func TestIngestionStatusLifecycle(t *testing.T) {
	f := newIngestionFixture()
	ctx := context.Background()

	task, err := f.svc.Trigger(ctx, 7, models.TriggerIngestionRequest{Data: "test-data"})
	require.NoError(t, err)
	readsBefore := f.tasks.storeReads()

	status, err := f.svc.Status(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusInProgress, status.Status)
	assert.Equal(t, readsBefore, f.tasks.storeReads(), "cache hit must not touch the store")

	res, err := f.svc.HandleCallback(ctx, models.IngestionCallbackRequest{ID: task.ID, Status: models.TaskStatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, "Callback received successfully", res.Message)
	assert.Equal(t, models.TaskStatusCompleted, res.Task.Status)

	status, err = f.svc.Status(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, status.Status)
}

func TestIngestionStatusCacheMissRepopulates(t *testing.T) {
	f := newIngestionFixture()
	ctx := context.Background()

	task, err := f.svc.Trigger(ctx, 7, models.TriggerIngestionRequest{Data: "x"})
	require.NoError(t, err)
	_, err = f.svc.HandleCallback(ctx, models.IngestionCallbackRequest{ID: task.ID, Status: models.TaskStatusFailed})
	require.NoError(t, err)
	f.cache.expire(statusCacheKey(task.ID))

	status, err := f.svc.Status(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, status.Status)

	var cached models.TaskStatus
	require.NoError(t, f.cache.Get(ctx, statusCacheKey(task.ID), &cached))
	assert.Equal(t, models.TaskStatusFailed, cached)
}

func TestIngestionStatusUnknownTask(t *testing.T) {
	f := newIngestionFixture()
	_, err := f.svc.Status(context.Background(), 999)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestIngestionStatusSurvivesCacheOutage(t *testing.T) {
	f := newIngestionFixture()
	ctx := context.Background()
	task, err := f.svc.Trigger(ctx, 7, models.TriggerIngestionRequest{Data: "x"})
	require.NoError(t, err)

	f.cache.getErr = errors.New("redis down")
	f.cache.setErr = errors.New("redis down")
	status, err := f.svc.Status(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusInProgress, status.Status)
}

func TestIngestionTriggerFailures(t *testing.T) {
	f := newIngestionFixture()
	ctx := context.Background()

	f.backend.submitErr = errors.New("processor unavailable")
	_, err := f.svc.Trigger(ctx, 7, models.TriggerIngestionRequest{Data: "x"})
	assert.True(t, errors.Is(err, appErrors.ErrUpstream))
	assert.Equal(t, "Failed to trigger ingestion", appErrors.FromError(err).Message)

	f.backend.submitErr = nil
	f.tasks.createErr = errBoom
	_, err = f.svc.Trigger(ctx, 7, models.TriggerIngestionRequest{Data: "x"})
	assert.Equal(t, "Failed to trigger ingestion", appErrors.FromError(err).Message)
	assert.Empty(t, f.backend.scheduled)
	assert.Empty(t, f.cache.entries)

	_, err = f.svc.Trigger(ctx, 7, models.TriggerIngestionRequest{})
	assert.Equal(t, "data is required", appErrors.FromError(err).Message)
}

func TestIngestionTriggerOutlivesCanceledRequest(t *testing.T) {
	f := newIngestionFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task, err := f.svc.Trigger(ctx, 7, models.TriggerIngestionRequest{Data: "x"})
	require.NoError(t, err)

	stored, err := f.tasks.FindByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusInProgress, stored.Status)
	assert.Contains(t, f.cache.entries, statusCacheKey(task.ID))
	assert.Equal(t, []int64{task.ID}, f.backend.scheduled)
}

func TestIngestionTriggerToleratesCacheFailure(t *testing.T) {
	f := newIngestionFixture()
	f.cache.setErr = errors.New("redis down")

	task, err := f.svc.Trigger(context.Background(), 7, models.TriggerIngestionRequest{Data: "x"})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusInProgress, task.Status)
}

func TestIngestionCallbackMissingID(t *testing.T) {
	f := newIngestionFixture()

	_, err := f.svc.HandleCallback(context.Background(), models.IngestionCallbackRequest{Status: models.TaskStatusCompleted})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, "id is required", appErrors.FromError(err).Message)
}

func TestIngestionCallbackValidation(t *testing.T) {
	f := newIngestionFixture()
	ctx := context.Background()

	_, err := f.svc.HandleCallback(ctx, models.IngestionCallbackRequest{ID: 42, Status: "In Progress"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.HandleCallback(ctx, models.IngestionCallbackRequest{ID: 999, Status: models.TaskStatusCompleted})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestIngestionCallbackAllowsRegression(t *testing.T) {
	f := newIngestionFixture()
	ctx := context.Background()
	task, err := f.svc.Trigger(ctx, 7, models.TriggerIngestionRequest{Data: "x"})
	require.NoError(t, err)

	_, err = f.svc.HandleCallback(ctx, models.IngestionCallbackRequest{ID: task.ID, Status: models.TaskStatusCompleted})
	require.NoError(t, err)
	res, err := f.svc.HandleCallback(ctx, models.IngestionCallbackRequest{ID: task.ID, Status: models.TaskStatusInProgress})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusInProgress, res.Task.Status)

	status, err := f.svc.Status(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusInProgress, status.Status)
}
