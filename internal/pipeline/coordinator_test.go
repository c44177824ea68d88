package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/researchops/runcore/internal/database"
	"github.com/researchops/runcore/internal/model"
	"github.com/researchops/runcore/internal/pipeline"
	"github.com/researchops/runcore/internal/runstate"
	"github.com/researchops/runcore/internal/store"
)

func newTestClient(t *testing.T) *database.Client {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"pgvector/pgvector:pg16",
		tcpostgres.WithDatabase("runcore_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	client, err := database.NewClient(ctx, database.Config{
		Host: host, Port: port.Int(), User: "test", Password: "test",
		Database: "runcore_test", SSLMode: "disable",
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

// fakeStage is a minimal pipeline.Stage: it records every invocation and
// returns a preset outcome/error, letting these tests drive the
// Coordinator's DAG and repair-loop logic without real stage bodies.
type fakeStage struct {
	name  string
	calls int
	run   func(calls int) (pipeline.StageOutcome, error)
}

func (s *fakeStage) Name() string { return s.name }

func (s *fakeStage) Run(ctx context.Context, tx store.DBTX, sc pipeline.StageContext) (pipeline.StageOutcome, error) {
	s.calls++
	if s.run != nil {
		return s.run(s.calls)
	}
	return pipeline.StageOutcome{}, nil
}

func seedRun(t *testing.T, ctx context.Context, client *database.Client) (model.TenantID, model.Run) {
	tenantID := model.NewID()
	projectID := model.NewID()
	_, err := client.Pool.Exec(ctx, `INSERT INTO projects (tenant_id, id, name) VALUES ($1, $2, $3)`,
		tenantID, projectID, "proj")
	require.NoError(t, err)

	runRepo := store.NewRunRepo()
	run, _, err := runRepo.CreateRun(ctx, client.Pool, store.NewRunInput{
		TenantID: tenantID, ProjectID: projectID, Question: "q", OutputType: "report",
		LLMProvider: "anthropic", LLMModel: "claude",
	})
	require.NoError(t, err)

	// CreateRun leaves status=created; enqueueing a job normally flips it to
	// queued (internal/store's job_queue.py-grounded enqueue path, tested
	// separately). These Coordinator tests only care about what happens
	// once a job has been claimed, so set it directly.
	_, err = client.Pool.Exec(ctx, `UPDATE runs SET status = 'queued' WHERE tenant_id = $1 AND id = $2`,
		tenantID, run.ID)
	require.NoError(t, err)

	jobRepo := store.NewJobRepo()
	_, _, err = jobRepo.EnqueueJob(ctx, client.Pool, tenantID, run.ID, model.ResearchJobType)
	require.NoError(t, err)
	_, err = jobRepo.ClaimNextJob(ctx, client.Pool)
	require.NoError(t, err)

	run.Status = model.RunStatusQueued
	return tenantID, run
}

func newStages(overrides map[string]*fakeStage) map[string]pipeline.Stage {
	stages := map[string]pipeline.Stage{}
	for _, name := range append(append([]string{}, model.StageOrder...), model.StageRepair) {
		if fs, ok := overrides[name]; ok {
			stages[name] = fs
			continue
		}
		stages[name] = &fakeStage{name: name}
	}
	return stages
}

func TestCoordinator_HappyPathSucceedsRun(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	tenantID, run := seedRun(t, ctx, client)

	sink := runstate.NewPoolEventSink(client.Pool)
	runStore := runstate.NewRunStore(sink)
	stages := newStages(nil)
	coord := pipeline.NewCoordinator(client.Pool, runStore, sink, stages)

	job := model.Job{TenantID: tenantID, RunID: run.ID, JobType: model.ResearchJobType}
	err := coord.Execute(ctx, job)
	require.NoError(t, err)

	runs := store.NewRunRepo()
	got, err := runs.Get(ctx, client.Pool, tenantID, run.ID)
	require.NoError(t, err)
	require.Equal(t, model.RunStatusSucceeded, got.Status)
	require.NotNil(t, got.FinishedAt)

	for _, name := range model.StageOrder {
		require.Equal(t, 1, stages[name].(*fakeStage).calls, "stage %s should run exactly once", name)
	}
	require.Equal(t, 0, stages[model.StageRepair].(*fakeStage).calls, "repair should not run on a clean pass")
}

func TestCoordinator_ContinueRewriteRunsRepairThenReEvaluates(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	tenantID, run := seedRun(t, ctx, client)

	evaluate := &fakeStage{name: model.StageEvaluate, run: func(calls int) (pipeline.StageOutcome, error) {
		if calls == 1 {
			return pipeline.StageOutcome{Decision: pipeline.DecisionContinueRewrite}, nil
		}
		return pipeline.StageOutcome{Decision: pipeline.DecisionStopSuccess}, nil
	}}
	stages := newStages(map[string]*fakeStage{model.StageEvaluate: evaluate})

	sink := runstate.NewPoolEventSink(client.Pool)
	runStore := runstate.NewRunStore(sink)
	coord := pipeline.NewCoordinator(client.Pool, runStore, sink, stages)

	job := model.Job{TenantID: tenantID, RunID: run.ID, JobType: model.ResearchJobType}
	err := coord.Execute(ctx, job)
	require.NoError(t, err)

	runs := store.NewRunRepo()
	got, err := runs.Get(ctx, client.Pool, tenantID, run.ID)
	require.NoError(t, err)
	require.Equal(t, model.RunStatusSucceeded, got.Status)

	require.Equal(t, 2, evaluate.calls, "evaluate should run once, repair, then re-run")
	require.Equal(t, 1, stages[model.StageRepair].(*fakeStage).calls)
}

func TestCoordinator_SecondRepairAttemptEscalatesToFailed(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	tenantID, run := seedRun(t, ctx, client)

	// Simulate a run that already used its one repair attempt on a prior
	// worker invocation (repair_attempts persists across retries).
	_, err := client.Pool.Exec(ctx, `UPDATE runs SET repair_attempts = 1 WHERE tenant_id = $1 AND id = $2`,
		tenantID, run.ID)
	require.NoError(t, err)

	evaluate := &fakeStage{name: model.StageEvaluate, run: func(calls int) (pipeline.StageOutcome, error) {
		return pipeline.StageOutcome{Decision: pipeline.DecisionContinueRewrite}, nil
	}}
	stages := newStages(map[string]*fakeStage{model.StageEvaluate: evaluate})

	sink := runstate.NewPoolEventSink(client.Pool)
	runStore := runstate.NewRunStore(sink)
	coord := pipeline.NewCoordinator(client.Pool, runStore, sink, stages)

	job := model.Job{TenantID: tenantID, RunID: run.ID, JobType: model.ResearchJobType}
	err = coord.Execute(ctx, job)
	require.Error(t, err)

	runs := store.NewRunRepo()
	got, err := runs.Get(ctx, client.Pool, tenantID, run.ID)
	require.NoError(t, err)
	require.Equal(t, model.RunStatusFailed, got.Status)
	require.NotNil(t, got.ErrorCode)
	require.Equal(t, "evaluation_failed", *got.ErrorCode)
	require.Equal(t, 0, stages[model.StageRepair].(*fakeStage).calls, "repair must not run a second time")
}

func TestCoordinator_StageErrorFailsRunWithWorkerError(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	tenantID, run := seedRun(t, ctx, client)

	boom := errors.New("connector exploded")
	outline := &fakeStage{name: model.StageOutline, run: func(int) (pipeline.StageOutcome, error) {
		return pipeline.StageOutcome{}, boom
	}}
	stages := newStages(map[string]*fakeStage{model.StageOutline: outline})

	sink := runstate.NewPoolEventSink(client.Pool)
	runStore := runstate.NewRunStore(sink)
	coord := pipeline.NewCoordinator(client.Pool, runStore, sink, stages)

	job := model.Job{TenantID: tenantID, RunID: run.ID, JobType: model.ResearchJobType}
	err := coord.Execute(ctx, job)
	require.Error(t, err)

	runs := store.NewRunRepo()
	got, err := runs.Get(ctx, client.Pool, tenantID, run.ID)
	require.NoError(t, err)
	require.Equal(t, model.RunStatusFailed, got.Status)
	require.NotNil(t, got.ErrorCode)
	require.Equal(t, "worker_error", *got.ErrorCode)
	require.NotNil(t, got.FailureReason)
	require.Contains(t, *got.FailureReason, "connector exploded")

	require.Equal(t, 0, stages[model.StageDraft].(*fakeStage).calls, "stages after the failure point must not run")
}

func TestCoordinator_CancellationObservedAtStageBoundary(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	tenantID, run := seedRun(t, ctx, client)

	sink := runstate.NewPoolEventSink(client.Pool)
	runStore := runstate.NewRunStore(sink)

	outline := &fakeStage{name: model.StageOutline, run: func(int) (pipeline.StageOutcome, error) {
		// Request cancellation mid-pipeline, as an API call would between
		// this stage committing and the next stage's boundary check.
		tx, err := client.Pool.Begin(ctx)
		require.NoError(t, err)
		_, err = runStore.RequestCancel(ctx, tx, tenantID, run.ID, false)
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx))
		return pipeline.StageOutcome{}, nil
	}}
	stages := newStages(map[string]*fakeStage{model.StageOutline: outline})

	coord := pipeline.NewCoordinator(client.Pool, runStore, sink, stages)

	job := model.Job{TenantID: tenantID, RunID: run.ID, JobType: model.ResearchJobType}
	err := coord.Execute(ctx, job)
	require.NoError(t, err)

	runs := store.NewRunRepo()
	got, err := runs.Get(ctx, client.Pool, tenantID, run.ID)
	require.NoError(t, err)
	require.Equal(t, model.RunStatusCanceled, got.Status)

	require.Equal(t, 1, stages[model.StageOutline].(*fakeStage).calls)
	require.Equal(t, 0, stages[model.StageDraft].(*fakeStage).calls, "draft must not run once cancellation is observed")
}
