package service

import (
	"context"
	"testing"
	"time"

	"prepx_backend/internal/model"
	"prepx_backend/internal/repository"
	"prepx_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgress(t *testing.T) {
	db := setupTestDB(t)
	pathRepo := repository.NewLearningPathRepository(db)
	paths := NewLearningPathService(pathRepo, nil)
	progress := NewProgressService(repository.NewProgressRepository(db), pathRepo)
	fixed := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	progress.now = func() time.Time { return fixed }
	ctx := context.Background()

	report, err := paths.Materialize(ctx, "owner-1", sampleGeneratedPath())
	require.NoError(t, err)
	tree, err := paths.GetTree(ctx, "owner-1", report.PathID)
	require.NoError(t, err)
	topics := tree.Columns[0].Items[0].Columns[0].Items

	summary, err := progress.PathSummary(ctx, "owner-1", report.PathID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, summary.Total, "only topic items count")
	assert.EqualValues(t, 0, summary.Completed)
	assert.Empty(t, summary.CompletedItemIDs)

	p, err := progress.SetItemProgress(ctx, "owner-1", topics[0].ID, true)
	require.NoError(t, err)
	require.NotNil(t, p.CompletedAt)
	assert.Equal(t, fixed, *p.CompletedAt)
	assert.Equal(t, report.PathID, p.PathID)

	// 重复标记不会产生新行
	_, err = progress.SetItemProgress(ctx, "owner-1", topics[0].ID, true)
	require.NoError(t, err)
	_, err = progress.SetItemProgress(ctx, "owner-1", topics[1].ID, true)
	require.NoError(t, err)

	summary, err = progress.PathSummary(ctx, "owner-1", report.PathID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, summary.Completed)
	assert.InDelta(t, 66.67, summary.Percent, 0.01)
	assert.ElementsMatch(t, []string{topics[0].ID, topics[1].ID}, summary.CompletedItemIDs)

	p, err = progress.SetItemProgress(ctx, "owner-1", topics[0].ID, false)
	require.NoError(t, err)
	assert.Nil(t, p.CompletedAt)

	summary, err = progress.PathSummary(ctx, "owner-1", report.PathID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, summary.Completed)
	assert.Equal(t, []string{topics[1].ID}, summary.CompletedItemIDs)

	_, err = progress.SetItemProgress(ctx, "intruder", topics[0].ID, true)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
	_, err = progress.SetItemProgress(ctx, "owner-1", "missing", true)
	assert.ErrorIs(t, err, util.ErrItemNotFound)
	_, err = progress.PathSummary(ctx, "intruder", report.PathID)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}

func TestProgress_OnlyTopicItems(t *testing.T) {
	db := setupTestDB(t)
	pathRepo := repository.NewLearningPathRepository(db)
	paths := NewLearningPathService(pathRepo, nil)
	progress := NewProgressService(repository.NewProgressRepository(db), pathRepo)
	ctx := context.Background()

	report, err := paths.Materialize(ctx, "owner-1", sampleGeneratedPath())
	require.NoError(t, err)
	tree, err := paths.GetTree(ctx, "owner-1", report.PathID)
	require.NoError(t, err)

	for _, module := range tree.Columns[0].Items {
		_, err := progress.SetItemProgress(ctx, "owner-1", module.ID, true)
		assert.ErrorIs(t, err, util.ErrNotTopicItem, module.Title)
		for _, topic := range module.Columns[0].Items {
			_, err := progress.SetItemProgress(ctx, "owner-1", topic.ID, true)
			require.NoError(t, err)
		}
	}

	summary, err := progress.PathSummary(ctx, "owner-1", report.PathID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, summary.Completed)
	assert.EqualValues(t, 3, summary.Total)
	assert.InDelta(t, 100.0, summary.Percent, 0.001)
	assert.EqualValues(t, 3, countRows(t, db, &model.ItemProgress{}))
}
