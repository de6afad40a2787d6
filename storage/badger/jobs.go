// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/placefinder/core"
	"github.com/poiesic/placefinder/storage"
)

// JobRepository implements storage.JobRepository for BadgerDB.
type JobRepository struct {
	backend *Backend
}

var _ storage.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository.
func NewJobRepository(backend *Backend) (*JobRepository, error) {
	return &JobRepository{backend: backend}, nil
}

// Close releases resources. JobRepository has no resources to release.
func (r *JobRepository) Close() error {
	return nil
}

// SaveJob stores a new attempt for a record. Earlier attempts are kept.
func (r *JobRepository) SaveJob(ctx context.Context, job *core.ClassificationJob) error {
	if job.Attempt < 1 {
		job.Attempt = 1
	}
	if job.Status == 0 {
		job.Status = core.ClassificationPending
	}
	now := time.Now().UTC()
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = now
	}
	job.UpdatedAt = now

	return r.backend.WithTx(func(tx *badger.Txn) error {
		current, err := currentJob(tx, job.RecordId)
		if err != nil {
			return err
		}
		if current != nil && (!current.Status.Terminal() || job.Attempt <= current.Attempt) {
			return fmt.Errorf("%w: job for record %d (attempt %d, %s)",
				storage.ErrDuplicateKey, job.RecordId, current.Attempt, current.Status)
		}
		if err := tx.Set(makeJobKey(job.RecordId, job.Attempt), storage.MarshalJob(job)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetJob returns the current job for a record.
func (r *JobRepository) GetJob(ctx context.Context, recordID core.ID) (*core.ClassificationJob, error) {
	var result *core.ClassificationJob
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = currentJob(tx, recordID)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// TransitionJob moves the current job forward.
func (r *JobRepository) TransitionJob(ctx context.Context, recordID core.ID, next core.ClassificationStatus, errMsg string) (*core.ClassificationJob, error) {
	var result *core.ClassificationJob
	var err error
	for range maxConflictRetries {
		result, err = r.transitionOnce(recordID, next, errMsg)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	return result, err
}

func (r *JobRepository) transitionOnce(recordID core.ID, next core.ClassificationStatus, errMsg string) (*core.ClassificationJob, error) {
	var result *core.ClassificationJob
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		job, err := currentJob(tx, recordID)
		if err != nil {
			return err
		}
		if job == nil {
			return storage.ErrNotFound
		}
		if err := core.ValidateTransition(job.Status, next); err != nil {
			return err
		}

		job.Status = next
		job.Error = errMsg
		job.UpdatedAt = time.Now().UTC()
		if err := tx.Set(makeJobKey(recordID, job.Attempt), storage.MarshalJob(job)); err != nil {
			return err
		}
		result = job
		return tx.Commit()
	}, true)
	return result, err
}

// ListJobs returns current jobs in the given statuses ordered by enqueue time.
func (r *JobRepository) ListJobs(ctx context.Context, statuses ...core.ClassificationStatus) ([]*core.ClassificationJob, error) {
	var current []*core.ClassificationJob
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// Attempts of one record are adjacent and ascending, so the last
		// one seen for a record is its current job.
		return scanPrefix(tx, []byte(jobPrefix), func(val []byte) error {
			job, err := storage.UnmarshalJob(val)
			if err != nil {
				return err
			}
			if n := len(current); n > 0 && current[n-1].RecordId == job.RecordId {
				current[n-1] = job
				return nil
			}
			current = append(current, job)
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}

	results := slices.DeleteFunc(current, func(job *core.ClassificationJob) bool {
		return len(statuses) > 0 && !slices.Contains(statuses, job.Status)
	})
	slices.SortStableFunc(results, func(a, b *core.ClassificationJob) int {
		return a.EnqueuedAt.Compare(b.EnqueuedAt)
	})
	return results, nil
}

// ListAttempts returns every attempt stored for a record, oldest first.
func (r *JobRepository) ListAttempts(ctx context.Context, recordID core.ID) ([]*core.ClassificationJob, error) {
	var results []*core.ClassificationJob
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, makeJobPrefix(recordID), func(val []byte) error {
			job, err := storage.UnmarshalJob(val)
			if err != nil {
				return err
			}
			results = append(results, job)
			return nil
		})
	}, false)
	return results, err
}

// currentJob reads the highest attempt for a record. Returns nil, nil when
// the record has no jobs.
func currentJob(tx *badger.Txn, recordID core.ID) (*core.ClassificationJob, error) {
	var job *core.ClassificationJob
	err := scanPrefix(tx, makeJobPrefix(recordID), func(val []byte) error {
		var err error
		job, err = storage.UnmarshalJob(val)
		return err
	})
	return job, err
}
