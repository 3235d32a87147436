package schedule

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/edvin/dbaas/internal/transport"
)

// enginePageSize is how many records each engine round-trip asks for while
// filtering executions down to this client's workflow.
const enginePageSize = 50

const triggerIDPrefix = "dbaas-backup-sched"

// workflowIDPrefix is the workflow id base of scheduled runs for one
// instance; the engine appends its own per-run suffix.
func workflowIDPrefix(instanceID string) string {
	return "dbaas-backup-" + instanceID
}

// Adapter is the schedule/execution surface over an injected CronEngine.
// All workflow-name and input filtering happens here, never in callers.
type Adapter struct {
	engine CronEngine
	logger zerolog.Logger
}

func NewAdapter(engine CronEngine, logger zerolog.Logger) *Adapter {
	return &Adapter{
		engine: engine,
		logger: logger.With().Str("component", "schedule").Logger(),
	}
}

// Create registers a cron trigger whose workflow input is the backup
// request for the instance.
func (a *Adapter) Create(ctx context.Context, instanceID, cronPattern, backupName string, input BackupInput) (CronTrigger, error) {
	if instanceID == "" || cronPattern == "" || backupName == "" {
		return CronTrigger{}, transport.NewError(transport.KindValidationError,
			"instance, cron pattern, and backup name are all required")
	}
	input.Instance = instanceID
	input.Name = backupName

	trigger := CronTrigger{
		ID:           fmt.Sprintf("%s-%s", triggerIDPrefix, uuid.New().String()),
		Name:         backupName,
		Pattern:      cronPattern,
		WorkflowName: BackupWorkflowName,
		Input:        input,
	}
	created, err := a.engine.CreateCron(ctx, trigger)
	if err != nil {
		return CronTrigger{}, fmt.Errorf("create cron trigger: %w", err)
	}
	a.logger.Debug().Str("schedule", created.ID).Str("instance", instanceID).Msg("created backup schedule")
	return created, nil
}

// List returns the backup schedules of one instance: only triggers of the
// backup workflow whose input names the instance.
func (a *Adapter) List(ctx context.Context, instanceID string) ([]CronTrigger, error) {
	all, err := a.engine.ListCron(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cron triggers: %w", err)
	}
	var mine []CronTrigger
	for _, t := range all {
		if t.WorkflowName == BackupWorkflowName && t.Input.Instance == instanceID {
			mine = append(mine, t)
		}
	}
	return mine, nil
}

// Show returns one schedule. Triggers belonging to other workflows are
// NotFound through this adapter.
func (a *Adapter) Show(ctx context.Context, scheduleID string) (CronTrigger, error) {
	t, err := a.engine.GetCron(ctx, scheduleID)
	if err != nil {
		return CronTrigger{}, err
	}
	if t.WorkflowName != BackupWorkflowName {
		return CronTrigger{}, transport.NewError(transport.KindNotFound,
			"schedule %s does not belong to the backup workflow", scheduleID)
	}
	return t, nil
}

func (a *Adapter) Delete(ctx context.Context, scheduleID string) error {
	if _, err := a.Show(ctx, scheduleID); err != nil {
		return err
	}
	return a.engine.DeleteCron(ctx, scheduleID)
}

// Executions lists the runs a schedule produced, paging the engine by
// enginePageSize and filtering until limit matches are collected. A marker
// resumes after the named execution; limit <= 0 means all.
func (a *Adapter) Executions(ctx context.Context, schedule CronTrigger, limit int, marker string) ([]Execution, error) {
	prefix := workflowIDPrefix(schedule.Input.Instance)
	var out []Execution
	skipping := marker != ""
	var token []byte

	for {
		page, next, err := a.engine.ListExecutions(ctx, BackupWorkflowName, enginePageSize, token)
		if err != nil {
			return nil, fmt.Errorf("list executions: %w", err)
		}
		for _, ex := range page {
			if skipping {
				if ex.ID == marker {
					skipping = false
				}
				continue
			}
			if !strings.HasPrefix(ex.WorkflowID, prefix) {
				continue
			}
			out = append(out, ex)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
		if next == nil {
			return out, nil
		}
		token = next
	}
}

func (a *Adapter) DeleteExecution(ctx context.Context, executionID string) error {
	if executionID == "" {
		return transport.NewError(transport.KindValidationError, "missing execution id")
	}
	return a.engine.DeleteExecution(ctx, executionID)
}
