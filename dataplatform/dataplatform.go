// Package dataplatform streams solved-scenario results to Supabase. Put
// finished projections onto the Projections channel; they are buffered on
// disk in a SQLite database before being uploaded, so a flaky connection
// never loses a run.
package dataplatform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	supa "github.com/nedpals/supabase-go"

	"github.com/gridwise/capex/repository"
	"github.com/gridwise/capex/results"
)

// uploadChunkLimit defines how many runs we push in one supabase HTTP
// request batch.
const uploadChunkLimit = 20

type DataPlatform struct {
	Projections chan *results.Projection

	repository *repository.Repository
	supaClient *supa.Client
}

func New(supabaseURL, supabaseKey, schema, bufferRepositoryFilename string) (*DataPlatform, error) {
	supaClient := supa.CreateClient(supabaseURL, supabaseKey)
	supaClient.DB.AddHeader("Accept-Profile", schema)
	supaClient.DB.AddHeader("Content-Profile", schema)

	repo, err := repository.New(bufferRepositoryFilename)
	if err != nil {
		return nil, fmt.Errorf("create repository: %w", err)
	}

	return &DataPlatform{
		Projections: make(chan *results.Projection, 4),
		repository:  repo,
		supaClient:  supaClient,
	}, nil
}

// Run loops until the context is cancelled, persisting incoming projections
// and periodically attempting uploads.
func (d *DataPlatform) Run(ctx context.Context) {
	uploadTicker := time.NewTicker(time.Second * 15)
	defer uploadTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case p := <-d.Projections:
			if err := d.repository.AddProjection(p); err != nil {
				slog.Error("failed to persist projection", "scenario", p.Scenario, "error", err)
				continue
			}
			slog.Debug("Stored projection", "scenario", p.Scenario, "run_id", p.RunID)
		case <-uploadTicker.C:
			d.attemptUpload()
		}
	}
}

// attemptUpload pushes pending runs to Supabase: new runs first, then runs
// with failed upload attempts.
func (d *DataPlatform) attemptUpload() {
	for _, fresh := range []bool{true, false} {
		runs, err := d.repository.GetRuns(uploadChunkLimit, fresh)
		if err != nil {
			slog.Error("failed to query pending runs", "fresh", fresh, "error", err)
			continue
		}
		if len(runs) == 0 {
			continue
		}
		if err := d.handleRuns(runs); err != nil {
			slog.Error("failed to upload runs", "fresh", fresh, "error", err)
		}
	}
}

// handleRuns attempts to upload the given runs with their detail rows. On
// success the run summaries are deleted from the buffer; on failure the
// upload attempt count is incremented and the rows stay for another pass.
func (d *DataPlatform) handleRuns(runs []repository.StoredRun) error {
	uploadErr := d.supaClient.DB.From("scenario_runs").Insert(convertRuns(runs)).Execute(nil)
	if uploadErr == nil {
		for _, run := range runs {
			dispatch, err := d.repository.GetDispatch(run.ID)
			if err != nil {
				return fmt.Errorf("query dispatch rows: %w", err)
			}
			if len(dispatch) > 0 {
				if err := d.supaClient.DB.From("dispatch").Insert(convertDispatch(dispatch)).Execute(nil); err != nil {
					uploadErr = err
					break
				}
			}
			builds, err := d.repository.GetBuilds(run.ID)
			if err != nil {
				return fmt.Errorf("query build rows: %w", err)
			}
			if len(builds) > 0 {
				if err := d.supaClient.DB.From("builds").Insert(convertBuilds(builds)).Execute(nil); err != nil {
					uploadErr = err
					break
				}
			}
		}
	}

	if uploadErr != nil {
		uploadErr = fmt.Errorf("upload failed: %w", uploadErr)
		if errInc := d.repository.IncrementUploadAttemptCount(runs); errInc != nil {
			return fmt.Errorf("%w: increment upload attempt count: %w", uploadErr, errInc)
		}
		return uploadErr
	}

	if err := d.repository.DeleteRuns(runs); err != nil {
		return fmt.Errorf("delete uploaded runs: %w", err)
	}
	slog.Info("Uploaded scenario runs", "db_records", len(runs))
	return nil
}
