package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/docmgmt-api/internal/models"
	appErrors "github.com/noah-isme/docmgmt-api/pkg/errors"
	"github.com/noah-isme/docmgmt-api/pkg/validation"
)

type ingestionTaskRepository interface {
	Create(ctx context.Context, task *models.IngestionTask) error
	FindByID(ctx context.Context, id int64) (*models.IngestionTask, error)
	UpdateStatus(ctx context.Context, id int64, status models.TaskStatus, updatedAt time.Time) (*models.IngestionTask, error)
}

// ProcessingBackend accepts ingestion input and returns the id the processor will report back with.
type ProcessingBackend interface {
	Submit(ctx context.Context, input models.IngestionInput) (int64, error)
}

// CompletionScheduler is implemented by backends that deliver their own callbacks later.
// ScheduleCompletion must not block.
type CompletionScheduler interface {
	ScheduleCompletion(taskID int64)
}

const callbackAcknowledged = "Callback received successfully"

var taskStatuses = []string{
	string(models.TaskStatusCreated),
	string(models.TaskStatusInProgress),
	string(models.TaskStatusCompleted),
	string(models.TaskStatusFailed),
}

// IngestionService drives ingestion tasks from trigger to callback and serves cache-first status reads.
type IngestionService struct {
	tasks     ingestionTaskRepository
	backend   ProcessingBackend
	cache     *CacheService
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	cacheTTL  time.Duration
	now       func() time.Time
}

// NewIngestionService constructs an IngestionService. cacheTTL bounds how stale a status read may be.
func NewIngestionService(tasks ingestionTaskRepository, backend ProcessingBackend, cache *CacheService, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, cacheTTL time.Duration) *IngestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.New()
	}
	return &IngestionService{
		tasks:     tasks,
		backend:   backend,
		cache:     cache,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		cacheTTL:  cacheTTL,
		now:       time.Now,
	}
}

func statusCacheKey(id int64) string {
	return fmt.Sprintf("ingestion:status:%d", id)
}

// Trigger submits the input, records the task as in progress and returns without waiting for completion.
func (s *IngestionService) Trigger(ctx context.Context, requesterID int64, req models.TriggerIngestionRequest) (*models.IngestionTask, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err)
	}
	input := models.IngestionInput{"data": req.Data}

	id, err := s.backend.Submit(ctx, input)
	if err != nil {
		s.metrics.RecordIngestionTrigger("failed")
		s.logger.Error("ingestion submit failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "Failed to trigger ingestion")
	}

	now := s.now().UTC()
	owner := requesterID
	task := &models.IngestionTask{
		ID:             id,
		Status:         models.TaskStatusInProgress,
		IngestionInput: input,
		CreatedAt:      now,
		UpdatedAt:      now,
		UserID:         &owner,
	}
	// The processor already holds the task, so its row outlives the request.
	persistCtx := context.WithoutCancel(ctx)
	if err := s.tasks.Create(persistCtx, task); err != nil {
		s.metrics.RecordIngestionTrigger("failed")
		s.logger.Error("ingestion task persist failed", zap.Int64("task_id", id), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Failed to trigger ingestion")
	}

	_ = s.cache.Set(persistCtx, statusCacheKey(id), task.Status, s.cacheTTL)

	if scheduler, ok := s.backend.(CompletionScheduler); ok {
		scheduler.ScheduleCompletion(id)
	}

	s.metrics.RecordIngestionTrigger("accepted")
	s.logger.Info("ingestion triggered", zap.Int64("task_id", id), zap.Int64("user_id", requesterID))
	return task, nil
}

// HandleCallback records the status reported by the processor and overwrites the cached status.
// Transitions are not checked against the lifecycle; regressions are logged and applied.
func (s *IngestionService) HandleCallback(ctx context.Context, req models.IngestionCallbackRequest) (*models.IngestionCallbackResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err)
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("status must be one of [%s]", strings.Join(taskStatuses, ", ")))
	}

	current, err := s.tasks.FindByID(ctx, req.ID)
	if err != nil {
		return nil, s.taskLookupError(err)
	}
	if current.Status.Terminal() || req.Status.Rank() < current.Status.Rank() {
		s.logger.Warn("suspect ingestion status transition",
			zap.Int64("task_id", req.ID),
			zap.String("from", string(current.Status)),
			zap.String("to", string(req.Status)))
	}

	task, err := s.tasks.UpdateStatus(ctx, req.ID, req.Status, s.now().UTC())
	if err != nil {
		return nil, s.taskLookupError(err)
	}

	_ = s.cache.Set(ctx, statusCacheKey(task.ID), task.Status, s.cacheTTL)

	s.metrics.RecordIngestionCallback(string(task.Status))
	s.logger.Info("ingestion callback applied", zap.Int64("task_id", task.ID), zap.String("status", string(task.Status)))
	return &models.IngestionCallbackResponse{Message: callbackAcknowledged, Task: task}, nil
}

// Status answers from the cache when possible and falls back to the store, repopulating the cache.
func (s *IngestionService) Status(ctx context.Context, id int64) (*models.IngestionStatusResponse, error) {
	var cached models.TaskStatus
	if hit, _ := s.cache.Get(ctx, statusCacheKey(id), &cached); hit && cached.Valid() {
		return &models.IngestionStatusResponse{ID: id, Status: cached}, nil
	}

	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, s.taskLookupError(err)
	}

	_ = s.cache.Set(ctx, statusCacheKey(id), task.Status, s.cacheTTL)
	return &models.IngestionStatusResponse{ID: task.ID, Status: task.Status}, nil
}

func (s *IngestionService) taskLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "Ingestion task not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ingestion task")
}
