package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/researchops/runcore/internal/database"
	"github.com/researchops/runcore/internal/model"
	"github.com/researchops/runcore/internal/store"
)

// newTestClient starts a disposable pgvector-enabled Postgres container and
// applies the module's embedded migrations, grounded on
// pkg/database/client_test.go's newTestClient helper.
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
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

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

func seedProjectAndRun(t *testing.T, ctx context.Context, client *database.Client) (model.TenantID, model.Run) {
	tenantID := model.NewID()
	projectID := model.NewID()

	_, err := client.Pool.Exec(ctx, `
		INSERT INTO projects (tenant_id, id, name) VALUES ($1, $2, $3)
	`, tenantID, projectID, "test-project-"+uuid.NewString())
	require.NoError(t, err)

	runRepo := store.NewRunRepo()
	run, isNew, err := runRepo.CreateRun(ctx, client.Pool, store.NewRunInput{
		TenantID: tenantID, ProjectID: projectID, Question: "what is X?",
		OutputType: "report", LLMProvider: "anthropic", LLMModel: "claude",
	})
	require.NoError(t, err)
	require.True(t, isNew)
	require.Equal(t, model.RunStatusCreated, run.Status)

	return tenantID, run
}

func TestRunRepo_CreateRun_IdempotentOnClientRequestID(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	tenantID := model.NewID()
	projectID := model.NewID()
	_, err := client.Pool.Exec(ctx, `INSERT INTO projects (tenant_id, id, name) VALUES ($1, $2, $3)`,
		tenantID, projectID, "proj")
	require.NoError(t, err)

	crid := "client-req-1"
	runRepo := store.NewRunRepo()
	in := store.NewRunInput{
		TenantID: tenantID, ProjectID: projectID, Question: "q", OutputType: "report",
		ClientRequestID: &crid, LLMProvider: "anthropic", LLMModel: "claude",
	}

	first, isNew, err := runRepo.CreateRun(ctx, client.Pool, in)
	require.NoError(t, err)
	require.True(t, isNew)

	second, isNew, err := runRepo.CreateRun(ctx, client.Pool, in)
	require.NoError(t, err)
	require.False(t, isNew)
	require.Equal(t, first.ID, second.ID)
}

func TestJobRepo_EnqueueJob_IdempotentAndClaimable(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	tenantID, run := seedProjectAndRun(t, ctx, client)

	jobRepo := store.NewJobRepo()
	job1, isNew, err := jobRepo.EnqueueJob(ctx, client.Pool, tenantID, run.ID, model.ResearchJobType)
	require.NoError(t, err)
	require.True(t, isNew)

	job2, isNew, err := jobRepo.EnqueueJob(ctx, client.Pool, tenantID, run.ID, model.ResearchJobType)
	require.NoError(t, err)
	require.False(t, isNew)
	require.Equal(t, job1.ID, job2.ID)

	claimed, err := jobRepo.ClaimNextJob(ctx, client.Pool)
	require.NoError(t, err)
	require.Equal(t, job1.ID, claimed.ID)
	require.Equal(t, model.JobStatusRunning, claimed.Status)
	require.Equal(t, 1, claimed.Attempts)

	_, err = jobRepo.ClaimNextJob(ctx, client.Pool)
	require.ErrorIs(t, err, store.ErrNoJobsAvailable)
}

func TestArtifactRepo_Upsert_ReplacesByType(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	tenantID, run := seedProjectAndRun(t, ctx, client)

	artifactRepo := store.NewArtifactRepo()
	first, err := artifactRepo.Upsert(ctx, client.Pool, tenantID, run.ProjectID, run.ID,
		model.ArtifactTypeReportMarkdown, "blob://v1", "text/markdown", 100, nil)
	require.NoError(t, err)

	second, err := artifactRepo.Upsert(ctx, client.Pool, tenantID, run.ProjectID, run.ID,
		model.ArtifactTypeReportMarkdown, "blob://v2", "text/markdown", 200, nil)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "blob://v2", second.BlobRef)

	artifacts, err := artifactRepo.ListForRun(ctx, client.Pool, tenantID, run.ID)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
}
