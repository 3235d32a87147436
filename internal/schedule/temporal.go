package schedule

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/api/workflowservice/v1"
	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"

	"github.com/edvin/dbaas/internal/transport"
)

const taskQueue = "dbaas-backups"

// Memo keys carried on every trigger this client creates. Describe responses
// return workflow args as opaque payloads, so the trigger's own fields ride
// in the memo where they decode cleanly.
const (
	memoName     = "name"
	memoPattern  = "pattern"
	memoWorkflow = "workflow"
	memoInput    = "input"
)

// TemporalEngine is the production CronEngine: schedules map to Temporal
// schedules with a cron spec, executions to workflow executions.
type TemporalEngine struct {
	client    temporalclient.Client
	namespace string
	logger    zerolog.Logger
}

func NewTemporalEngine(address, namespace string, logger zerolog.Logger) (*TemporalEngine, error) {
	if namespace == "" {
		namespace = "default"
	}
	tc, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  address,
		Namespace: namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to workflow engine: %w", err)
	}
	return &TemporalEngine{
		client:    tc,
		namespace: namespace,
		logger:    logger.With().Str("component", "workflow-engine").Logger(),
	}, nil
}

func (e *TemporalEngine) Close() {
	e.client.Close()
}

func (e *TemporalEngine) CreateCron(ctx context.Context, trigger CronTrigger) (CronTrigger, error) {
	_, err := e.client.ScheduleClient().Create(ctx, temporalclient.ScheduleOptions{
		ID: trigger.ID,
		Spec: temporalclient.ScheduleSpec{
			CronExpressions: []string{trigger.Pattern},
		},
		Action: &temporalclient.ScheduleWorkflowAction{
			ID:        workflowIDPrefix(trigger.Input.Instance),
			Workflow:  trigger.WorkflowName,
			TaskQueue: taskQueue,
			Args:      []any{trigger.Input},
		},
		Memo: map[string]any{
			memoName:     trigger.Name,
			memoPattern:  trigger.Pattern,
			memoWorkflow: trigger.WorkflowName,
			memoInput:    trigger.Input,
		},
	})
	if err != nil {
		return CronTrigger{}, err
	}
	return trigger, nil
}

func (e *TemporalEngine) GetCron(ctx context.Context, id string) (CronTrigger, error) {
	desc, err := e.client.ScheduleClient().GetHandle(ctx, id).Describe(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return CronTrigger{}, transport.NewError(transport.KindNotFound, "schedule %s not found", id)
		}
		return CronTrigger{}, fmt.Errorf("describe schedule %s: %w", id, err)
	}

	trigger := triggerFromMemo(id, desc.Memo)
	if len(desc.Info.NextActionTimes) > 0 {
		trigger.NextFireTime = desc.Info.NextActionTimes[0]
	}
	return trigger, nil
}

func (e *TemporalEngine) ListCron(ctx context.Context) ([]CronTrigger, error) {
	iter, err := e.client.ScheduleClient().List(ctx, temporalclient.ScheduleListOptions{
		PageSize: enginePageSize,
	})
	if err != nil {
		return nil, err
	}

	var triggers []CronTrigger
	for iter.HasNext() {
		entry, err := iter.Next()
		if err != nil {
			return nil, err
		}
		trigger := triggerFromMemo(entry.ID, entry.Memo)
		if len(entry.NextActionTimes) > 0 {
			trigger.NextFireTime = entry.NextActionTimes[0]
		}
		triggers = append(triggers, trigger)
	}
	return triggers, nil
}

func (e *TemporalEngine) DeleteCron(ctx context.Context, id string) error {
	if err := e.client.ScheduleClient().GetHandle(ctx, id).Delete(ctx); err != nil {
		if strings.Contains(err.Error(), "not found") {
			return transport.NewError(transport.KindNotFound, "schedule %s not found", id)
		}
		return fmt.Errorf("delete schedule %s: %w", id, err)
	}
	return nil
}

func (e *TemporalEngine) ListExecutions(ctx context.Context, workflowName string, pageSize int, pageToken []byte) ([]Execution, []byte, error) {
	resp, err := e.client.ListWorkflow(ctx, &workflowservice.ListWorkflowExecutionsRequest{
		Namespace:     e.namespace,
		PageSize:      int32(pageSize),
		NextPageToken: pageToken,
		Query:         fmt.Sprintf("WorkflowType = %q", workflowName),
	})
	if err != nil {
		return nil, nil, err
	}

	executions := make([]Execution, 0, len(resp.Executions))
	for _, info := range resp.Executions {
		ex := Execution{
			WorkflowName: workflowName,
			State:        info.Status.String(),
		}
		if info.Execution != nil {
			ex.WorkflowID = info.Execution.WorkflowId
			ex.ID = executionID(info.Execution.WorkflowId, info.Execution.RunId)
		}
		if info.StartTime != nil {
			ex.StartTime = info.StartTime.AsTime()
		}
		executions = append(executions, ex)
	}

	next := resp.NextPageToken
	if len(next) == 0 {
		next = nil
	}
	return executions, next, nil
}

func (e *TemporalEngine) DeleteExecution(ctx context.Context, id string) error {
	workflowID, runID, err := splitExecutionID(id)
	if err != nil {
		return err
	}
	_, err = e.client.WorkflowService().DeleteWorkflowExecution(ctx, &workflowservice.DeleteWorkflowExecutionRequest{
		Namespace: e.namespace,
		WorkflowExecution: &commonpb.WorkflowExecution{
			WorkflowId: workflowID,
			RunId:      runID,
		},
	})
	if err != nil {
		return fmt.Errorf("delete execution %s: %w", id, err)
	}
	return nil
}

// executionID joins workflow id and run id into one opaque handle that
// round-trips through DeleteExecution.
func executionID(workflowID, runID string) string {
	return workflowID + "/" + runID
}

func splitExecutionID(id string) (workflowID, runID string, err error) {
	i := strings.LastIndex(id, "/")
	if i <= 0 || i == len(id)-1 {
		return "", "", transport.NewError(transport.KindValidationError,
			"malformed execution id %q", id)
	}
	return id[:i], id[i+1:], nil
}

func triggerFromMemo(id string, memo *commonpb.Memo) CronTrigger {
	trigger := CronTrigger{ID: id}
	trigger.Name = memoString(memo, memoName)
	trigger.Pattern = memoString(memo, memoPattern)
	trigger.WorkflowName = memoString(memo, memoWorkflow)
	if memo != nil {
		if p, ok := memo.Fields[memoInput]; ok {
			_ = converter.GetDefaultDataConverter().FromPayload(p, &trigger.Input)
		}
	}
	return trigger
}

func memoString(memo *commonpb.Memo, key string) string {
	if memo == nil {
		return ""
	}
	p, ok := memo.Fields[key]
	if !ok {
		return ""
	}
	var s string
	_ = converter.GetDefaultDataConverter().FromPayload(p, &s)
	return s
}
