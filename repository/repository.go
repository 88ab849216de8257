// Package repository stores projected scenario results on the local file
// system (SQLite) before they are uploaded to the data platform.
package repository

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/gridwise/capex/results"
)

type Repository struct {
	db *gorm.DB
}

func New(path string) (*Repository, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	err = db.AutoMigrate(&StoredRun{}, &StoredDispatch{}, &StoredBuild{}, &StoredShadowPrice{})
	if err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Repository{
		db: db,
	}, nil
}

// AddProjection persists the run summary plus all of its per-entity records
// in one transaction.
func (r *Repository) AddProjection(p *results.Projection) error {
	dispatch, builds, prices := newStoredRecords(p)
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(newStoredRunPtr(p)).Error; err != nil {
			return err
		}
		if len(dispatch) > 0 {
			if err := tx.Create(&dispatch).Error; err != nil {
				return err
			}
		}
		if len(builds) > 0 {
			if err := tx.Create(&builds).Error; err != nil {
				return err
			}
		}
		if len(prices) > 0 {
			if err := tx.Create(&prices).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func newStoredRunPtr(p *results.Projection) *StoredRun {
	run := newStoredRun(p)
	return &run
}

// GetRuns returns run summaries that are pending upload. With fresh set it
// returns only rows that have never been attempted; otherwise only rows with
// at least one failed attempt.
func (r *Repository) GetRuns(limit int, fresh bool) ([]StoredRun, error) {
	var runs []StoredRun

	query := r.db.Limit(limit).Order("upload_attempt_count asc, solved_at desc")
	if fresh {
		query = query.Where("upload_attempt_count = ?", 0)
	} else {
		query = query.Where("upload_attempt_count > ?", 0)
	}
	result := query.Find(&runs)
	if result.Error != nil {
		return nil, result.Error
	}
	return runs, nil
}

// GetDispatch returns the dispatch rows belonging to a run.
func (r *Repository) GetDispatch(runID any) ([]StoredDispatch, error) {
	var rows []StoredDispatch
	result := r.db.Where("run_id = ?", runID).Order("generator, timestep").Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	return rows, nil
}

// GetBuilds returns the build rows belonging to a run.
func (r *Repository) GetBuilds(runID any) ([]StoredBuild, error) {
	var rows []StoredBuild
	result := r.db.Where("run_id = ?", runID).Order("generator, period").Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}
	return rows, nil
}

// DeleteRuns removes uploaded run summaries.
func (r *Repository) DeleteRuns(runs []StoredRun) error {
	result := r.db.Delete(&runs)
	return result.Error
}

// IncrementUploadAttemptCount marks a failed upload on the given runs.
func (r *Repository) IncrementUploadAttemptCount(runs []StoredRun) error {
	result := r.db.Model(&runs).UpdateColumn("upload_attempt_count", gorm.Expr("upload_attempt_count + ?", 1))
	return result.Error
}
