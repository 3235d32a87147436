package schedule

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/dbaas/internal/transport"
)

// stubEngine holds triggers and executions in memory and pages executions
// the way the real engine does.
type stubEngine struct {
	triggers   map[string]CronTrigger
	executions []Execution
	deleted    []string
	pageCalls  int
}

func newStubEngine() *stubEngine {
	return &stubEngine{triggers: map[string]CronTrigger{}}
}

func (e *stubEngine) CreateCron(ctx context.Context, trigger CronTrigger) (CronTrigger, error) {
	e.triggers[trigger.ID] = trigger
	return trigger, nil
}

func (e *stubEngine) GetCron(ctx context.Context, id string) (CronTrigger, error) {
	t, ok := e.triggers[id]
	if !ok {
		return CronTrigger{}, transport.NewError(transport.KindNotFound, "no trigger %s", id)
	}
	return t, nil
}

func (e *stubEngine) ListCron(ctx context.Context) ([]CronTrigger, error) {
	var out []CronTrigger
	for _, t := range e.triggers {
		out = append(out, t)
	}
	return out, nil
}

func (e *stubEngine) DeleteCron(ctx context.Context, id string) error {
	delete(e.triggers, id)
	return nil
}

func (e *stubEngine) ListExecutions(ctx context.Context, workflowName string, pageSize int, pageToken []byte) ([]Execution, []byte, error) {
	e.pageCalls++
	start := 0
	if pageToken != nil {
		fmt.Sscanf(string(pageToken), "%d", &start)
	}
	end := start + pageSize
	if end >= len(e.executions) {
		return e.executions[start:], nil, nil
	}
	return e.executions[start:end], []byte(fmt.Sprintf("%d", end)), nil
}

func (e *stubEngine) DeleteExecution(ctx context.Context, executionID string) error {
	e.deleted = append(e.deleted, executionID)
	return nil
}

func newAdapter(e CronEngine) *Adapter {
	return NewAdapter(e, zerolog.Nop())
}

func TestCreateStampsTriggerIdentity(t *testing.T) {
	engine := newStubEngine()
	a := newAdapter(engine)

	created, err := a.Create(context.Background(), "i-1", "0 3 * * *", "nightly",
		BackupInput{Incremental: 1, Description: "nightly run"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(created.ID, triggerIDPrefix+"-"))
	assert.Equal(t, BackupWorkflowName, created.WorkflowName)
	assert.Equal(t, "i-1", created.Input.Instance)
	assert.Equal(t, "nightly", created.Input.Name)
	assert.Equal(t, 1, created.Input.Incremental)
	assert.Contains(t, engine.triggers, created.ID)
}

func TestCreateRequiresAllIdentityParts(t *testing.T) {
	a := newAdapter(newStubEngine())

	for _, args := range [][3]string{
		{"", "0 3 * * *", "nightly"},
		{"i-1", "", "nightly"},
		{"i-1", "0 3 * * *", ""},
	} {
		_, err := a.Create(context.Background(), args[0], args[1], args[2], BackupInput{})
		assert.True(t, transport.IsKind(err, transport.KindValidationError))
	}
}

func TestListFiltersByWorkflowAndInstance(t *testing.T) {
	engine := newStubEngine()
	engine.triggers["s-1"] = CronTrigger{ID: "s-1", WorkflowName: BackupWorkflowName, Input: BackupInput{Instance: "i-1"}}
	engine.triggers["s-2"] = CronTrigger{ID: "s-2", WorkflowName: BackupWorkflowName, Input: BackupInput{Instance: "i-2"}}
	engine.triggers["s-3"] = CronTrigger{ID: "s-3", WorkflowName: "RotateCertsWorkflow", Input: BackupInput{Instance: "i-1"}}
	a := newAdapter(engine)

	mine, err := a.List(context.Background(), "i-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "s-1", mine[0].ID)
}

func TestShowHidesForeignWorkflows(t *testing.T) {
	engine := newStubEngine()
	engine.triggers["s-3"] = CronTrigger{ID: "s-3", WorkflowName: "RotateCertsWorkflow"}
	a := newAdapter(engine)

	_, err := a.Show(context.Background(), "s-3")
	assert.True(t, transport.IsKind(err, transport.KindNotFound))

	// Delete goes through the same ownership check.
	err = a.Delete(context.Background(), "s-3")
	assert.True(t, transport.IsKind(err, transport.KindNotFound))
	assert.Contains(t, engine.triggers, "s-3")
}

func TestExecutionsPagesAndFilters(t *testing.T) {
	engine := newStubEngine()
	// 120 executions across two instances, interleaved, so collecting the
	// instance's runs spans several engine pages.
	for i := 0; i < 120; i++ {
		instance := "i-1"
		if i%2 == 1 {
			instance = "i-2"
		}
		engine.executions = append(engine.executions, Execution{
			ID:         fmt.Sprintf("run-%03d", i),
			WorkflowID: fmt.Sprintf("%s-%03d", workflowIDPrefix(instance), i),
			State:      "Completed",
		})
	}
	a := newAdapter(engine)
	sched := CronTrigger{Input: BackupInput{Instance: "i-1"}}

	all, err := a.Executions(context.Background(), sched, 0, "")
	require.NoError(t, err)
	assert.Len(t, all, 60)
	assert.Equal(t, 3, engine.pageCalls)

	engine.pageCalls = 0
	limited, err := a.Executions(context.Background(), sched, 10, "")
	require.NoError(t, err)
	require.Len(t, limited, 10)
	assert.Equal(t, "run-000", limited[0].ID)
	assert.Equal(t, 1, engine.pageCalls)

	// A marker resumes strictly after the named run.
	resumed, err := a.Executions(context.Background(), sched, 5, limited[9].ID)
	require.NoError(t, err)
	require.Len(t, resumed, 5)
	assert.Equal(t, "run-020", resumed[0].ID)
}

func TestDeleteExecution(t *testing.T) {
	engine := newStubEngine()
	a := newAdapter(engine)

	require.NoError(t, a.DeleteExecution(context.Background(), "run-001"))
	assert.Equal(t, []string{"run-001"}, engine.deleted)

	err := a.DeleteExecution(context.Background(), "")
	assert.True(t, transport.IsKind(err, transport.KindValidationError))
}
