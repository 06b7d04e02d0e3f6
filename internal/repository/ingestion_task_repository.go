package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/docmgmt-api/internal/models"
)

const ingestionTaskColumns = `id, status, ingestion_input, created_at, updated_at, user_id`

// IngestionTaskRepository persists ingestion tasks. Ids are assigned by the processing backend.
type IngestionTaskRepository struct {
	db *sqlx.DB
}

// NewIngestionTaskRepository creates an ingestion task repository.
func NewIngestionTaskRepository(db *sqlx.DB) *IngestionTaskRepository {
	return &IngestionTaskRepository{db: db}
}

// Create inserts a task with its caller-provided id.
func (r *IngestionTaskRepository) Create(ctx context.Context, task *models.IngestionTask) error {
	const query = `INSERT INTO ingestion_tasks (id, status, ingestion_input, created_at, updated_at, user_id)
VALUES (:id, :status, :ingestion_input, :created_at, :updated_at, :user_id)`
	if _, err := r.db.NamedExecContext(ctx, query, task); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create ingestion task: %w", ErrDuplicate)
		}
		return fmt.Errorf("create ingestion task: %w", err)
	}
	return nil
}

// FindByID returns a task by identifier.
func (r *IngestionTaskRepository) FindByID(ctx context.Context, id int64) (*models.IngestionTask, error) {
	var task models.IngestionTask
	query := `SELECT ` + ingestionTaskColumns + ` FROM ingestion_tasks WHERE id = $1`
	if err := r.db.GetContext(ctx, &task, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find ingestion task: %w", err)
	}
	return &task, nil
}

// UpdateStatus overwrites the status and returns the updated task.
func (r *IngestionTaskRepository) UpdateStatus(ctx context.Context, id int64, status models.TaskStatus, updatedAt time.Time) (*models.IngestionTask, error) {
	var task models.IngestionTask
	query := `UPDATE ingestion_tasks SET status = $2, updated_at = $3 WHERE id = $1 RETURNING ` + ingestionTaskColumns
	if err := r.db.GetContext(ctx, &task, query, id, status, updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("update ingestion task status: %w", err)
	}
	return &task, nil
}
