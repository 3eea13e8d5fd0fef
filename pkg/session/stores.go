package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mikeboe/filesearch-dashboard/pkg/filesearch"
)

// DeleteResult reports the outcome of deleting one document.
type DeleteResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

// CreateStore creates a store on the remote service and makes it active.
// A blank name falls back to the session's default display name.
func (s *Session) CreateStore(ctx context.Context, name string) (filesearch.Store, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = s.DefaultStoreName
	}

	store, err := s.Client.CreateStore(ctx, name)
	if err != nil {
		s.Logger.Error("Failed to create store", "display_name", name, "error", err)
		return filesearch.Store{}, filesearch.WrapRemote("create store", err)
	}

	s.activate(store)
	s.Logger.Info("Store created", "store", store.ID, "display_name", store.DisplayName)
	return store, nil
}

// ListStores returns every store visible with the session's credential.
func (s *Session) ListStores(ctx context.Context) ([]filesearch.Store, error) {
	stores, err := s.Client.ListStores(ctx)
	if err != nil {
		return nil, filesearch.WrapRemote("list stores", err)
	}
	return stores, nil
}

// SelectStore makes store active and loads its documents. The store stays
// active when the refresh fails.
func (s *Session) SelectStore(ctx context.Context, store filesearch.Store) error {
	if store.ID == "" {
		return fmt.Errorf("select store: empty store id: %w", filesearch.ErrNotFound)
	}
	s.activate(store)
	s.Logger.Info("Store selected", "store", store.ID)

	if _, err := s.RefreshDocuments(ctx); err != nil {
		return err
	}
	return nil
}

// SelectStoreByID looks the store up remotely before selecting it.
func (s *Session) SelectStoreByID(ctx context.Context, storeID string) error {
	stores, err := s.ListStores(ctx)
	if err != nil {
		return err
	}
	for _, store := range stores {
		if store.ID == storeID {
			return s.SelectStore(ctx, store)
		}
	}
	return fmt.Errorf("store %s: %w", storeID, filesearch.ErrNotFound)
}

// RefreshDocuments replaces the local document list with the remote one.
func (s *Session) RefreshDocuments(ctx context.Context) ([]filesearch.Document, error) {
	store, err := s.requireActive()
	if err != nil {
		return nil, err
	}

	docs, err := s.Client.ListDocuments(ctx, store.ID)
	if err != nil {
		s.Logger.Error("Failed to list documents", "store", store.ID, "error", err)
		return nil, filesearch.WrapRemote("list documents", err)
	}

	kept := make([]filesearch.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.StoreID != store.ID {
			s.Logger.Warn("Skipping document from another store", "document", doc.ID, "store", doc.StoreID)
			continue
		}
		kept = append(kept, doc)
	}
	s.documents = kept

	s.Logger.Info("Documents refreshed", "store", store.ID, "count", len(kept))
	return s.Documents(), nil
}

// DeleteDocument deletes a document remotely and only then drops it from
// the local list. A document that no longer exists yields an error wrapping
// filesearch.ErrNotFound and leaves local state untouched; callers are
// expected to RefreshDocuments then, as DeleteDocuments does.
func (s *Session) DeleteDocument(ctx context.Context, id string) error {
	store, err := s.requireActive()
	if err != nil {
		return err
	}

	if err := s.Client.DeleteDocument(ctx, store.ID, id); err != nil {
		if errors.Is(err, filesearch.ErrNotFound) {
			s.Logger.Warn("Document not found remotely", "document", id)
			return fmt.Errorf("document %s: %w", id, err)
		}
		return filesearch.WrapRemote("delete document", err)
	}

	s.documents = slices.DeleteFunc(s.documents, func(d filesearch.Document) bool {
		return d.ID == id
	})
	s.Logger.Info("Document deleted", "store", store.ID, "document", id)
	return nil
}

// DeleteDocuments attempts every id in order, then reloads the list once.
func (s *Session) DeleteDocuments(ctx context.Context, ids []string) ([]DeleteResult, error) {
	if _, err := s.requireActive(); err != nil {
		return nil, err
	}

	results := make([]DeleteResult, 0, len(ids))
	for _, id := range ids {
		res := DeleteResult{ID: id}
		if err := s.DeleteDocument(ctx, id); err != nil {
			res.Error = err.Error()
		} else {
			res.Deleted = true
		}
		results = append(results, res)
	}

	if _, err := s.RefreshDocuments(ctx); err != nil {
		return results, err
	}
	return results, nil
}

// DeleteActiveStore force-deletes the active store and clears the selection.
func (s *Session) DeleteActiveStore(ctx context.Context) error {
	store, err := s.requireActive()
	if err != nil {
		return err
	}

	if err := s.Client.DeleteStore(ctx, store.ID); err != nil {
		if errors.Is(err, filesearch.ErrNotFound) {
			return fmt.Errorf("store %s: %w", store.ID, err)
		}
		return filesearch.WrapRemote("delete store", err)
	}

	s.deactivate()
	s.Logger.Info("Store deleted", "store", store.ID)
	return nil
}
