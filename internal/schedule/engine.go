// Package schedule maps backup schedules onto an external workflow engine's
// cron triggers and executions, filtered to this client's backup workflow.
package schedule

import (
	"context"
	"time"
)

// BackupWorkflowName is the engine workflow this adapter owns. Triggers and
// executions of any other workflow are invisible through it.
const BackupWorkflowName = "CreateBackupWorkflow"

// BackupInput is the workflow input of a scheduled backup. The adapter
// filters triggers and executions by its Instance field.
type BackupInput struct {
	Instance    string `json:"instance"`
	Name        string `json:"name"`
	ParentID    string `json:"parent_id,omitempty"`
	Incremental int    `json:"incremental,omitempty"`
	Description string `json:"description,omitempty"`
}

// CronTrigger is a derived view onto one engine cron trigger.
type CronTrigger struct {
	ID           string
	Name         string
	Pattern      string
	WorkflowName string
	Input        BackupInput
	NextFireTime time.Time
}

// Execution is a derived view onto one engine workflow execution.
type Execution struct {
	ID           string
	WorkflowID   string
	WorkflowName string
	State        string
	StartTime    time.Time
}

// CronEngine is the injected workflow-engine surface. Production uses the
// Temporal implementation; tests stub it in-process.
type CronEngine interface {
	CreateCron(ctx context.Context, trigger CronTrigger) (CronTrigger, error)
	GetCron(ctx context.Context, id string) (CronTrigger, error)
	ListCron(ctx context.Context) ([]CronTrigger, error)
	DeleteCron(ctx context.Context, id string) error
	// ListExecutions returns one engine page of executions of the named
	// workflow plus the continuation token, nil at the end.
	ListExecutions(ctx context.Context, workflowName string, pageSize int, pageToken []byte) ([]Execution, []byte, error)
	DeleteExecution(ctx context.Context, executionID string) error
}
