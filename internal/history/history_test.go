package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagerun/sagerun/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	return store
}

func TestRecordAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := &Record{
		Name:   "gcn-20260829-120000-abcd1234",
		Kind:   KindTraining,
		ARN:    "arn:aws:sagemaker:us-west-2:123456789012:training-job/gcn",
		Image:  "123456789012.dkr.ecr.us-west-2.amazonaws.com/dgl-training:latest",
		Region: "us-west-2",
	}
	require.NoError(t, store.RecordSubmission(ctx, rec))

	got, err := store.Get(ctx, rec.Name)
	require.NoError(t, err)
	assert.Equal(t, KindTraining, got.Kind)
	assert.Equal(t, model.InProgressState, got.State)

	_, err = store.Get(ctx, "never-submitted")
	assert.ErrorContains(t, err, "no submission named")
}

func TestUpdateState(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := &Record{Name: "gat-tuning", Kind: KindTuning}
	require.NoError(t, store.RecordSubmission(ctx, rec))

	require.NoError(t, store.UpdateState(ctx, "gat-tuning", model.FailedState, "quota exceeded"))
	got, err := store.Get(ctx, "gat-tuning")
	require.NoError(t, err)
	assert.Equal(t, model.FailedState, got.State)
	assert.Equal(t, "quota exceeded", got.FailureReason)

	// Updating a job this machine never submitted is a no-op, not an error.
	assert.NoError(t, store.UpdateState(ctx, "unknown", model.CompletedState, ""))
}

func TestListNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"first", "second", "third"} {
		require.NoError(t, store.RecordSubmission(ctx, &Record{Name: name, Kind: KindTraining}))
	}

	recs, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	all, err := store.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDuplicateNamesAreRejected(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordSubmission(ctx, &Record{Name: "dup", Kind: KindTraining}))
	assert.Error(t, store.RecordSubmission(ctx, &Record{Name: "dup", Kind: KindTraining}))
}
