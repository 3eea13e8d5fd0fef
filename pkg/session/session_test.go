package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/mikeboe/filesearch-dashboard/pkg/filesearch"
	"github.com/mikeboe/filesearch-dashboard/pkg/filesearch/filesearchtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) (*Session, *filesearchtest.Fake) {
	t.Helper()
	fake := filesearchtest.New()
	s := New(fake, Options{UseDefaultSystemPrompt: true})
	s.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return s, fake
}

func TestNewDefaults(t *testing.T) {
	s, _ := newTestSession(t)

	assert.Equal(t, DefaultModel, s.Model)
	assert.Equal(t, DefaultStoreName, s.DefaultStoreName)
	assert.Nil(t, s.Active())
	assert.Empty(t, s.Documents())
	assert.Nil(t, s.LastExchange())

	snap := s.Snapshot()
	assert.Equal(t, s.ID, snap.ID)
	assert.NotNil(t, snap.Documents)
	assert.True(t, snap.UseDefaultSystemPrompt)
}

func TestCreateStoreActivatesAndClearsDocuments(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestSession(t)
	old := fake.AddStore(filesearch.Store{ID: "fileSearchStores/old"},
		filesearch.Document{ID: "fileSearchStores/old/documents/a"})
	require.NoError(t, s.SelectStore(ctx, old))
	require.Len(t, s.Documents(), 1)

	store, err := s.CreateStore(ctx, "  bounty-programs ")
	require.NoError(t, err)

	assert.Equal(t, "bounty-programs", store.DisplayName)
	require.NotNil(t, s.Active())
	assert.Equal(t, store.ID, s.Active().ID)
	assert.Empty(t, s.Documents())
}

func TestCreateStoreBlankNameUsesDefault(t *testing.T) {
	s, _ := newTestSession(t)

	store, err := s.CreateStore(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, DefaultStoreName, store.DisplayName)
}

func TestCreateStoreRemoteFailure(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestSession(t)
	existing := fake.AddStore(filesearch.Store{ID: "fileSearchStores/keep"})
	require.NoError(t, s.SelectStore(ctx, existing))
	fake.CreateErr = errors.New("invalid display name")

	_, err := s.CreateStore(ctx, "bad name")

	var re *filesearch.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, err.Error(), "invalid display name")
	assert.Equal(t, existing.ID, s.Active().ID)
}

func TestSelectStoreOnlyShowsItsDocuments(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestSession(t)
	a := fake.AddStore(filesearch.Store{ID: "fileSearchStores/a"},
		filesearch.Document{ID: "fileSearchStores/a/documents/1"},
		filesearch.Document{ID: "fileSearchStores/a/documents/2"})
	b := fake.AddStore(filesearch.Store{ID: "fileSearchStores/b"},
		filesearch.Document{ID: "fileSearchStores/b/documents/1"})
	c := fake.AddStore(filesearch.Store{ID: "fileSearchStores/c"})

	for _, store := range []filesearch.Store{a, b, c, a, c, b} {
		require.NoError(t, s.SelectStore(ctx, store))

		require.NotNil(t, s.Active())
		assert.Equal(t, store.ID, s.Active().ID)

		docs, err := s.RefreshDocuments(ctx)
		require.NoError(t, err)
		for _, d := range docs {
			assert.Equal(t, store.ID, d.StoreID)
		}
		assert.Equal(t, docs, s.Documents())
	}
}

func TestRefreshDocumentsDropsForeignDocuments(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestSession(t)
	store := fake.AddStore(filesearch.Store{ID: "fileSearchStores/a"},
		filesearch.Document{ID: "fileSearchStores/a/documents/1"},
		filesearch.Document{ID: "fileSearchStores/x/documents/9", StoreID: "fileSearchStores/x"})

	require.NoError(t, s.SelectStore(ctx, store))

	docs := s.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "fileSearchStores/a/documents/1", docs[0].ID)
}

func TestRefreshDocumentsEmptyStore(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestSession(t)
	store := fake.AddStore(filesearch.Store{ID: "fileSearchStores/empty"})
	require.NoError(t, s.SelectStore(ctx, store))

	docs, err := s.RefreshDocuments(ctx)
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestRefreshDocumentsWithoutActiveStore(t *testing.T) {
	s, fake := newTestSession(t)

	_, err := s.RefreshDocuments(context.Background())
	assert.ErrorIs(t, err, filesearch.ErrNoActiveStore)
	assert.Zero(t, fake.TotalCalls())
}

func TestSelectStoreRefreshFailureKeepsSelection(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestSession(t)
	store := fake.AddStore(filesearch.Store{ID: "fileSearchStores/a"})
	fake.ListDocumentsErr = errors.New("connection reset")

	err := s.SelectStore(ctx, store)

	assert.True(t, filesearch.IsRemote(err))
	require.NotNil(t, s.Active())
	assert.Equal(t, store.ID, s.Active().ID)
}

func TestSelectStoreByID(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestSession(t)
	fake.AddStore(filesearch.Store{ID: "fileSearchStores/a", DisplayName: "alpha"})

	require.NoError(t, s.SelectStoreByID(ctx, "fileSearchStores/a"))
	assert.Equal(t, "alpha", s.Active().DisplayName)

	err := s.SelectStoreByID(ctx, "fileSearchStores/missing")
	assert.ErrorIs(t, err, filesearch.ErrNotFound)
	assert.Equal(t, "fileSearchStores/a", s.Active().ID)
}

func TestDeleteDocument(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestSession(t)
	store := fake.AddStore(filesearch.Store{ID: "fileSearchStores/a"},
		filesearch.Document{ID: "fileSearchStores/a/documents/1"},
		filesearch.Document{ID: "fileSearchStores/a/documents/2"})
	require.NoError(t, s.SelectStore(ctx, store))

	require.NoError(t, s.DeleteDocument(ctx, "fileSearchStores/a/documents/1"))

	docs := s.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "fileSearchStores/a/documents/2", docs[0].ID)
	assert.Len(t, fake.StoredDocuments(store.ID), 1)
}

func TestDeleteDocumentNotFoundKeepsLocalList(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestSession(t)
	store := fake.AddStore(filesearch.Store{ID: "fileSearchStores/a"},
		filesearch.Document{ID: "fileSearchStores/a/documents/1"})
	require.NoError(t, s.SelectStore(ctx, store))
	before := s.Documents()

	err := s.DeleteDocument(ctx, "fileSearchStores/a/documents/404")

	assert.ErrorIs(t, err, filesearch.ErrNotFound)
	assert.Equal(t, before, s.Documents())
}

func TestDeleteDocumentWithoutActiveStore(t *testing.T) {
	s, fake := newTestSession(t)

	err := s.DeleteDocument(context.Background(), "anything")
	assert.ErrorIs(t, err, filesearch.ErrNoActiveStore)
	assert.Zero(t, fake.Calls("DeleteDocument"))
}

func TestDeleteDocuments(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestSession(t)
	store := fake.AddStore(filesearch.Store{ID: "fileSearchStores/a"},
		filesearch.Document{ID: "d1"},
		filesearch.Document{ID: "d2"},
		filesearch.Document{ID: "d3"})
	require.NoError(t, s.SelectStore(ctx, store))

	results, err := s.DeleteDocuments(ctx, []string{"d1", "missing", "d3"})
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.True(t, results[0].Deleted)
	assert.False(t, results[1].Deleted)
	assert.NotEmpty(t, results[1].Error)
	assert.True(t, results[2].Deleted)

	docs := s.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "d2", docs[0].ID)
}

func TestDeleteDocumentsRefreshesStaleDocument(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestSession(t)
	store := fake.AddStore(filesearch.Store{ID: "fileSearchStores/a"},
		filesearch.Document{ID: "d1"},
		filesearch.Document{ID: "d2"})
	require.NoError(t, s.SelectStore(ctx, store))

	// removed by someone else after the last refresh
	require.NoError(t, fake.DeleteDocument(ctx, store.ID, "d1"))
	require.Len(t, s.Documents(), 2)

	results, err := s.DeleteDocuments(ctx, []string{"d1"})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.False(t, results[0].Deleted)
	assert.Contains(t, results[0].Error, filesearch.ErrNotFound.Error())

	docs := s.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "d2", docs[0].ID)
}

func TestDeleteActiveStore(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestSession(t)
	store := fake.AddStore(filesearch.Store{ID: "fileSearchStores/a"}, filesearch.Document{ID: "d1"})
	require.NoError(t, s.SelectStore(ctx, store))

	require.NoError(t, s.DeleteActiveStore(ctx))

	assert.Nil(t, s.Active())
	assert.Empty(t, s.Documents())
	stores, err := s.ListStores(ctx)
	require.NoError(t, err)
	assert.Empty(t, stores)

	assert.ErrorIs(t, s.DeleteActiveStore(ctx), filesearch.ErrNoActiveStore)
}

func TestListStoresRemoteFailure(t *testing.T) {
	s, fake := newTestSession(t)
	fake.ListStoresErr = errors.New("quota exceeded")

	_, err := s.ListStores(context.Background())
	assert.True(t, filesearch.IsRemote(err))
	assert.Contains(t, err.Error(), "quota exceeded")
}
