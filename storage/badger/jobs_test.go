package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/placefinder/core"
	"github.com/poiesic/placefinder/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveJob_Defaults(t *testing.T) {
	_, jobs := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, jobs.SaveJob(ctx, &core.ClassificationJob{RecordId: 1}))

	job, err := jobs.GetJob(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, core.ClassificationPending, job.Status)
	assert.Equal(t, 1, job.Attempt)
	assert.False(t, job.EnqueuedAt.IsZero())
}

func TestSaveJob_RejectsActiveDuplicate(t *testing.T) {
	_, jobs := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, jobs.SaveJob(ctx, &core.ClassificationJob{RecordId: 1}))
	err := jobs.SaveJob(ctx, &core.ClassificationJob{RecordId: 1, Attempt: 2})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestSaveJob_NewAttemptAfterFailure(t *testing.T) {
	_, jobs := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, jobs.SaveJob(ctx, &core.ClassificationJob{RecordId: 1}))
	_, err := jobs.TransitionJob(ctx, 1, core.ClassificationProcessing, "")
	require.NoError(t, err)
	_, err = jobs.TransitionJob(ctx, 1, core.ClassificationFailed, "timeout")
	require.NoError(t, err)

	// Same attempt number is still a duplicate.
	assert.ErrorIs(t, jobs.SaveJob(ctx, &core.ClassificationJob{RecordId: 1, Attempt: 1}), storage.ErrDuplicateKey)

	require.NoError(t, jobs.SaveJob(ctx, &core.ClassificationJob{RecordId: 1, Attempt: 2}))
	job, err := jobs.GetJob(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, job.Attempt)
	assert.Equal(t, core.ClassificationPending, job.Status)
	assert.Empty(t, job.Error)

	attempts, err := jobs.ListAttempts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, 1, attempts[0].Attempt)
	assert.Equal(t, core.ClassificationFailed, attempts[0].Status)
	assert.Equal(t, "timeout", attempts[0].Error)
	assert.Equal(t, 2, attempts[1].Attempt)

	// Transitions apply to the newest attempt only.
	_, err = jobs.TransitionJob(ctx, 1, core.ClassificationProcessing, "")
	require.NoError(t, err)
	attempts, err = jobs.ListAttempts(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, core.ClassificationFailed, attempts[0].Status)
	assert.Equal(t, core.ClassificationProcessing, attempts[1].Status)
}

func TestTransitionJob_ForwardOnly(t *testing.T) {
	_, jobs := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, jobs.SaveJob(ctx, &core.ClassificationJob{RecordId: 5}))

	job, err := jobs.TransitionJob(ctx, 5, core.ClassificationProcessing, "")
	require.NoError(t, err)
	assert.Equal(t, core.ClassificationProcessing, job.Status)

	job, err = jobs.TransitionJob(ctx, 5, core.ClassificationCompleted, "")
	require.NoError(t, err)
	assert.Equal(t, core.ClassificationCompleted, job.Status)

	for _, back := range []core.ClassificationStatus{
		core.ClassificationPending,
		core.ClassificationProcessing,
		core.ClassificationFailed,
	} {
		_, err = jobs.TransitionJob(ctx, 5, back, "")
		assert.ErrorIs(t, err, core.ErrInvalidTransition)
	}

	_, err = jobs.TransitionJob(ctx, 404, core.ClassificationProcessing, "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListJobs(t *testing.T) {
	_, jobs := newTestCatalog(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, id := range []core.ID{30, 10, 20} {
		require.NoError(t, jobs.SaveJob(ctx, &core.ClassificationJob{
			RecordId:   id,
			EnqueuedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	_, err := jobs.TransitionJob(ctx, 10, core.ClassificationFailed, "boom")
	require.NoError(t, err)

	all, err := jobs.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []core.ID{30, 10, 20}, []core.ID{all[0].RecordId, all[1].RecordId, all[2].RecordId})

	pending, err := jobs.ListJobs(ctx, core.ClassificationPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, core.ID(30), pending[0].RecordId)

	failed, err := jobs.ListJobs(ctx, core.ClassificationFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "boom", failed[0].Error)
}

func TestListJobs_CurrentAttemptOnly(t *testing.T) {
	_, jobs := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, jobs.SaveJob(ctx, &core.ClassificationJob{RecordId: 7}))
	_, err := jobs.TransitionJob(ctx, 7, core.ClassificationFailed, "boom")
	require.NoError(t, err)
	require.NoError(t, jobs.SaveJob(ctx, &core.ClassificationJob{RecordId: 7, Attempt: 2}))
	require.NoError(t, jobs.SaveJob(ctx, &core.ClassificationJob{RecordId: 8}))

	all, err := jobs.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	failed, err := jobs.ListJobs(ctx, core.ClassificationFailed)
	require.NoError(t, err)
	assert.Empty(t, failed)

	pending, err := jobs.ListJobs(ctx, core.ClassificationPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, job := range pending {
		if job.RecordId == 7 {
			assert.Equal(t, 2, job.Attempt)
		}
	}

	none, err := jobs.ListAttempts(ctx, 404)
	require.NoError(t, err)
	assert.Empty(t, none)
}
