package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TaskStatus is the lifecycle state of an ingestion task.
type TaskStatus string

const (
	TaskStatusCreated    TaskStatus = "CREATED"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusFailed     TaskStatus = "FAILED"
)

// Valid reports whether s is a member of the status enumeration.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusCreated, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is expected.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Rank orders statuses along the expected lifecycle.
func (s TaskStatus) Rank() int {
	switch s {
	case TaskStatusCreated:
		return 0
	case TaskStatusInProgress:
		return 1
	case TaskStatusCompleted, TaskStatusFailed:
		return 2
	}
	return -1
}

// IngestionTask tracks one unit of external processing.
type IngestionTask struct {
	ID             int64          `db:"id" json:"id"`
	Status         TaskStatus     `db:"status" json:"status"`
	IngestionInput IngestionInput `db:"ingestion_input" json:"ingestionInput"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updatedAt"`
	UserID         *int64         `db:"user_id" json:"userId"`
}

// IngestionInput is the schema-free payload submitted for processing, persisted as JSONB.
type IngestionInput map[string]interface{}

// Value marshals the payload to JSON for persistence.
func (in IngestionInput) Value() (driver.Value, error) {
	if in == nil {
		in = IngestionInput{}
	}
	data, err := json.Marshal(map[string]interface{}(in))
	if err != nil {
		return nil, fmt.Errorf("marshal ingestion input: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads from the database.
func (in *IngestionInput) Scan(value interface{}) error {
	if value == nil {
		*in = IngestionInput{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported ingestion input type %T", value)
	}
	out := IngestionInput{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("unmarshal ingestion input: %w", err)
	}
	*in = out
	return nil
}

// TriggerIngestionRequest starts a new ingestion task.
type TriggerIngestionRequest struct {
	Data interface{} `json:"data" validate:"required"`
}

// IngestionCallbackRequest is delivered by the processing system when a task finishes.
type IngestionCallbackRequest struct {
	ID     int64      `json:"id" validate:"required"`
	Status TaskStatus `json:"status" validate:"required"`
}

// IngestionCallbackResponse acknowledges a processed callback.
type IngestionCallbackResponse struct {
	Message string         `json:"message"`
	Task    *IngestionTask `json:"task"`
}

// IngestionStatusResponse is returned by status lookups.
type IngestionStatusResponse struct {
	ID     int64      `json:"id"`
	Status TaskStatus `json:"status"`
}
