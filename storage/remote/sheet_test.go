package remote

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/evalix/core/sheet"
	"github.com/trezcool/evalix/tests"
)

func TestSheetRepository(t *testing.T) {
	store := testutil.NewMockStore(t, "sheets")
	repo := NewSheetRepository(New(store.URL, "sheets", WithBackoffStep(time.Millisecond)))
	ctx := context.Background()

	recs, err := repo.ListSheets(ctx, sheet.Filter{})
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)

	created, err := repo.CreateSheet(ctx, sheet.NewDocument(2025, 1))
	require.NoError(t, err)
	assert.Equal(t, "1", created.ID)
	_, err = repo.CreateSheet(ctx, sheet.NewDocument(2025, 2))
	require.NoError(t, err)

	recs, err = repo.ListSheets(ctx, sheet.Filter{Year: 2025, Period: 2})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "2", recs[0].ID)
	assert.Equal(t, "period=2&year=2025", store.Requests()[3].Query)

	doc := sheet.Payload{Rows: []sheet.Row{{Name: "Ada"}}}.Document(2025, 1)
	updated, err := repo.UpdateSheet(ctx, "1", doc)
	require.NoError(t, err)
	s, err := sheet.Decode(updated)
	require.NoError(t, err)
	assert.Equal(t, []sheet.Row{{Name: "Ada"}}, s.Rows)

	got, err := repo.GetSheet(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "1", got.ID)

	require.NoError(t, repo.DeleteSheet(ctx, "1"))
	_, err = repo.GetSheet(ctx, "1")
	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.True(t, reqErr.NotFound())
}

func TestSheetRepository_ListNotAnArray(t *testing.T) {
	store := testutil.NewMockStore(t, "sheets")
	repo := NewSheetRepository(New(store.URL, "sheets", WithBackoffStep(time.Millisecond)))
	ctx := context.Background()

	for _, body := range []string{`{}`, `"nope"`, `null`, ``} {
		store.ListWith(body)
		recs, err := repo.ListSheets(ctx, sheet.Filter{Year: 2025, Period: 1})
		require.NoError(t, err, body)
		assert.NotNil(t, recs)
		assert.Empty(t, recs)
	}

	store.ListWith(`[{"id":"9","year":2025,"period":1}]`)
	recs, err := repo.ListSheets(ctx, sheet.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "9", recs[0].ID)

	svc := sheet.NewService(repo)
	store.ListWith(`{}`)
	s, err := svc.GetSheet(ctx, 2025, 1)
	require.NoError(t, err)
	assert.Equal(t, 2025, s.Year)
	assert.Len(t, store.Items(), 1)
}
