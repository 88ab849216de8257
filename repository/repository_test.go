package repository

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwise/capex/results"
	"github.com/gridwise/capex/solver"
)

func tempRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	return repo
}

func sampleProjection(scenario string) *results.Projection {
	return &results.Projection{
		RunID:     uuid.New(),
		Scenario:  scenario,
		SolvedAt:  time.Now().UTC(),
		Status:    solver.StatusOptimal,
		Objective: 600,
		Dispatch: []results.DispatchRecord{
			{Generator: "gas1", Zone: "z1", Period: "p1", Timestep: "t1", PowerMW: 60, EnergyMWh: 60, EmissionsT: 60},
			{Generator: "wind1", Zone: "z1", Period: "p1", Timestep: "t1", PowerMW: 20, EnergyMWh: 20},
		},
		Builds: []results.BuildRecord{
			{Generator: "wind1", Period: "p1", BuiltMW: 10, CumulativeMW: 30},
		},
		ShadowPrices: []results.ShadowPrice{
			{Constraint: "balance[z1,t1]", Value: 10},
		},
		TotalEmissionsT: 60,
	}
}

func TestAddAndGetProjection(t *testing.T) {
	repo := tempRepo(t)
	p := sampleProjection("baseline")
	require.NoError(t, repo.AddProjection(p))

	runs, err := repo.GetRuns(10, true)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, p.RunID, runs[0].ID)
	assert.Equal(t, "baseline", runs[0].Scenario)
	assert.Equal(t, 600.0, runs[0].Objective)
	assert.EqualValues(t, 0, runs[0].UploadAttemptCount)

	dispatch, err := repo.GetDispatch(p.RunID)
	require.NoError(t, err)
	require.Len(t, dispatch, 2)
	assert.Equal(t, "gas1", dispatch[0].Generator)
	assert.Equal(t, 60.0, dispatch[0].PowerMW)

	builds, err := repo.GetBuilds(p.RunID)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, 30.0, builds[0].CumulativeMW)
}

func TestNonOptimalRunsStoreSummaryOnly(t *testing.T) {
	repo := tempRepo(t)
	p := sampleProjection("tight_cap")
	p.Status = solver.StatusInfeasible
	require.NoError(t, repo.AddProjection(p))

	runs, err := repo.GetRuns(10, true)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, string(solver.StatusInfeasible), runs[0].Status)

	dispatch, err := repo.GetDispatch(p.RunID)
	require.NoError(t, err)
	assert.Empty(t, dispatch)
}

func TestAttemptCountSeparatesFreshFromRetries(t *testing.T) {
	repo := tempRepo(t)
	fresh := sampleProjection("fresh")
	failed := sampleProjection("failed")
	require.NoError(t, repo.AddProjection(fresh))
	require.NoError(t, repo.AddProjection(failed))

	runs, err := repo.GetRuns(10, true)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	var failedRun []StoredRun
	for _, r := range runs {
		if r.Scenario == "failed" {
			failedRun = append(failedRun, r)
		}
	}
	require.NoError(t, repo.IncrementUploadAttemptCount(failedRun))

	freshRuns, err := repo.GetRuns(10, true)
	require.NoError(t, err)
	require.Len(t, freshRuns, 1)
	assert.Equal(t, "fresh", freshRuns[0].Scenario)

	retryRuns, err := repo.GetRuns(10, false)
	require.NoError(t, err)
	require.Len(t, retryRuns, 1)
	assert.Equal(t, "failed", retryRuns[0].Scenario)
	assert.EqualValues(t, 1, retryRuns[0].UploadAttemptCount)
}

func TestDeleteRunsRemovesSummaries(t *testing.T) {
	repo := tempRepo(t)
	p := sampleProjection("done")
	require.NoError(t, repo.AddProjection(p))

	runs, err := repo.GetRuns(10, true)
	require.NoError(t, err)
	require.NoError(t, repo.DeleteRuns(runs))

	left, err := repo.GetRuns(10, true)
	require.NoError(t, err)
	assert.Empty(t, left)
}
