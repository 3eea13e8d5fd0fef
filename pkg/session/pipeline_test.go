package session

import (
	"context"
	"errors"
	"testing"

	"github.com/mikeboe/filesearch-dashboard/pkg/filesearch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadAndIndexWithoutActiveStore(t *testing.T) {
	s, fake := newTestSession(t)

	_, err := s.UploadAndIndex(context.Background(), []byte("scope"), "scope.md")

	assert.ErrorIs(t, err, filesearch.ErrNoActiveStore)
	assert.Zero(t, fake.TotalCalls())
	assert.Empty(t, s.Documents())
}

func TestUploadAndIndexSuccess(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestSession(t)
	store, err := s.CreateStore(ctx, "programs")
	require.NoError(t, err)

	doc, err := s.UploadAndIndex(ctx, []byte("# Acme bug bounty"), "acme.md")
	require.NoError(t, err)

	assert.Equal(t, filesearch.StatusIndexed, doc.Status)
	assert.Equal(t, "acme.md", doc.Filename)
	assert.Equal(t, "text/markdown", doc.MIMEType)
	assert.Equal(t, store.ID, doc.StoreID)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, []filesearch.Document{doc}, s.Documents())
	assert.Equal(t, 1, fake.Calls("UploadFile"))
	assert.Equal(t, 1, fake.Calls("ImportFile"))
}

func TestUploadFailureRegistersNothing(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestSession(t)
	_, err := s.CreateStore(ctx, "programs")
	require.NoError(t, err)
	fake.UploadErr = func(string) error { return errors.New("network unreachable") }

	_, err = s.UploadAndIndex(ctx, []byte("data"), "a.txt")

	assert.True(t, filesearch.IsRemote(err))
	assert.Empty(t, s.Documents())
	assert.Zero(t, fake.Calls("ImportFile"))
}

func TestImportFailureRecordsFailedDocument(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestSession(t)
	store, err := s.CreateStore(ctx, "programs")
	require.NoError(t, err)
	fake.ImportErr = func(string) error { return errors.New("unsupported file") }

	doc, err := s.UploadAndIndex(ctx, []byte("%PDF"), "broken.pdf")

	assert.True(t, filesearch.IsRemote(err))
	assert.Equal(t, filesearch.StatusFailed, doc.Status)
	assert.Contains(t, doc.Error, "unsupported file")

	docs := s.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, filesearch.StatusFailed, docs[0].Status)
	assert.Equal(t, store.ID, docs[0].StoreID)
	assert.Equal(t, "broken.pdf", docs[0].Filename)
}

func TestUploadBatchContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestSession(t)
	_, err := s.CreateStore(ctx, "programs")
	require.NoError(t, err)
	fake.ImportErr = func(filename string) error {
		if filename == "second.csv" {
			return errors.New("import rejected")
		}
		return nil
	}

	var hooked []string
	s.OnUpload = func(_ context.Context, res FileResult) {
		hooked = append(hooked, res.Filename)
	}

	results, err := s.UploadBatch(ctx, []FileInput{
		{Filename: "first.md", Data: []byte("one")},
		{Filename: "second.csv", Data: []byte("two")},
		{Filename: "third.json", Data: []byte(`{"three":3}`)},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	docs := s.Documents()
	require.Len(t, docs, 3)
	want := []filesearch.DocumentStatus{filesearch.StatusIndexed, filesearch.StatusFailed, filesearch.StatusIndexed}
	for i, status := range want {
		assert.Equal(t, status, docs[i].Status, "document %d", i)
		require.NotNil(t, results[i].Document)
		assert.Equal(t, status, results[i].Document.Status)
	}
	assert.Equal(t, []string{"first.md", "second.csv", "third.json"}, []string{docs[0].Filename, docs[1].Filename, docs[2].Filename})

	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NotEmpty(t, results[1].Error)
	assert.Equal(t, "text/csv", results[1].MIMEType)
	assert.Equal(t, []string{"first.md", "second.csv", "third.json"}, hooked)
}

func TestUploadBatchUploadFailureHasNoDocument(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestSession(t)
	_, err := s.CreateStore(ctx, "programs")
	require.NoError(t, err)
	fake.UploadErr = func(filename string) error {
		if filename == "b.txt" {
			return errors.New("timeout")
		}
		return nil
	}

	results, err := s.UploadBatch(ctx, []FileInput{
		{Filename: "a.txt", Data: []byte("a")},
		{Filename: "b.txt", Data: []byte("b")},
	})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.NotNil(t, results[0].Document)
	assert.Nil(t, results[1].Document)
	assert.Error(t, results[1].Err)
	assert.Len(t, s.Documents(), 1)
}

func TestUploadBatchWithoutActiveStore(t *testing.T) {
	s, fake := newTestSession(t)

	results, err := s.UploadBatch(context.Background(), []FileInput{{Filename: "a.txt"}})
	assert.ErrorIs(t, err, filesearch.ErrNoActiveStore)
	assert.Nil(t, results)
	assert.Zero(t, fake.TotalCalls())
}
