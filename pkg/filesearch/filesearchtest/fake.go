// Package filesearchtest provides an in-memory filesearch.Client for tests.
package filesearchtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mikeboe/filesearch-dashboard/pkg/filesearch"
)

// Fake is an in-memory filesearch.Client that counts calls and records
// answer requests. The *Err hooks inject failures.
type Fake struct {
	mu sync.Mutex

	stores    []filesearch.Store
	documents map[string][]filesearch.Document
	uploads   map[string]string
	calls     map[string]int
	requests  []filesearch.AnswerRequest
	nextID    int

	Reply string

	CreateErr        error
	ListStoresErr    error
	ListDocumentsErr error
	GenerateErr      error
	UploadErr        func(filename string) error
	ImportErr        func(filename string) error
}

func New() *Fake {
	return &Fake{
		documents: make(map[string][]filesearch.Document),
		uploads:   make(map[string]string),
		calls:     make(map[string]int),
		Reply:     `{"Found": "No", "Source": "N/A", "Rewards": "No"}`,
	}
}

// AddStore registers an existing store with the given documents.
func (f *Fake) AddStore(store filesearch.Store, docs ...filesearch.Document) filesearch.Store {
	f.mu.Lock()
	defer f.mu.Unlock()

	if store.CreateTime.IsZero() {
		store.CreateTime = time.Now()
	}
	f.stores = append(f.stores, store)
	for i := range docs {
		if docs[i].StoreID == "" {
			docs[i].StoreID = store.ID
		}
		if docs[i].Status == "" {
			docs[i].Status = filesearch.StatusIndexed
		}
	}
	f.documents[store.ID] = append(f.documents[store.ID], docs...)
	return store
}

// Calls returns how often method was invoked.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// TotalCalls returns the number of remote calls of any kind.
func (f *Fake) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// Requests returns the recorded GenerateAnswer requests.
func (f *Fake) Requests() []filesearch.AnswerRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]filesearch.AnswerRequest(nil), f.requests...)
}

// StoredDocuments returns the remote view of a store's documents.
func (f *Fake) StoredDocuments(storeID string) []filesearch.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]filesearch.Document(nil), f.documents[storeID]...)
}

func (f *Fake) record(method string) {
	f.calls[method]++
}

func (f *Fake) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *Fake) CreateStore(ctx context.Context, displayName string) (filesearch.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateStore")

	if f.CreateErr != nil {
		return filesearch.Store{}, f.CreateErr
	}
	store := filesearch.Store{
		ID:          "fileSearchStores/" + f.id("store"),
		DisplayName: displayName,
		CreateTime:  time.Now(),
	}
	f.stores = append(f.stores, store)
	return store, nil
}

func (f *Fake) ListStores(ctx context.Context) ([]filesearch.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListStores")

	if f.ListStoresErr != nil {
		return nil, f.ListStoresErr
	}
	return append([]filesearch.Store(nil), f.stores...), nil
}

func (f *Fake) DeleteStore(ctx context.Context, storeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteStore")

	for i, s := range f.stores {
		if s.ID == storeID {
			f.stores = append(f.stores[:i], f.stores[i+1:]...)
			delete(f.documents, storeID)
			return nil
		}
	}
	return filesearch.WrapRemote("delete store", fmt.Errorf("%s: %w", storeID, filesearch.ErrNotFound))
}

func (f *Fake) ListDocuments(ctx context.Context, storeID string) ([]filesearch.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListDocuments")

	if f.ListDocumentsErr != nil {
		return nil, f.ListDocumentsErr
	}
	return append([]filesearch.Document{}, f.documents[storeID]...), nil
}

func (f *Fake) DeleteDocument(ctx context.Context, storeID, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteDocument")

	docs := f.documents[storeID]
	for i, d := range docs {
		if d.ID == documentID {
			f.documents[storeID] = append(docs[:i], docs[i+1:]...)
			return nil
		}
	}
	return filesearch.WrapRemote("delete document", fmt.Errorf("%s: %w", documentID, filesearch.ErrNotFound))
}

func (f *Fake) UploadFile(ctx context.Context, data []byte, filename string) (filesearch.UploadHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UploadFile")

	if f.UploadErr != nil {
		if err := f.UploadErr(filename); err != nil {
			return filesearch.UploadHandle{}, err
		}
	}
	handle := filesearch.UploadHandle{
		Name:        "files/" + f.id("upload"),
		DisplayName: filesearch.DisplayName(filename),
		MIMEType:    filesearch.GuessMIME(filename),
		SizeBytes:   int64(len(data)),
	}
	f.uploads[handle.Name] = filename
	return handle, nil
}

func (f *Fake) ImportFile(ctx context.Context, storeID string, upload filesearch.UploadHandle) (filesearch.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ImportFile")

	filename := f.uploads[upload.Name]
	if f.ImportErr != nil {
		if err := f.ImportErr(filename); err != nil {
			return filesearch.Document{}, err
		}
	}
	now := time.Now()
	doc := filesearch.Document{
		ID:         storeID + "/documents/" + f.id("doc"),
		Filename:   upload.DisplayName,
		SizeBytes:  upload.SizeBytes,
		MIMEType:   upload.MIMEType,
		Status:     filesearch.StatusIndexed,
		StoreID:    storeID,
		CreateTime: now,
		UpdateTime: now,
	}
	f.documents[storeID] = append(f.documents[storeID], doc)
	return doc, nil
}

func (f *Fake) GenerateAnswer(ctx context.Context, req filesearch.AnswerRequest) (filesearch.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GenerateAnswer")
	f.requests = append(f.requests, req)

	if f.GenerateErr != nil {
		return filesearch.Answer{}, f.GenerateErr
	}
	raw, err := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": f.Reply}}}},
		},
	})
	if err != nil {
		return filesearch.Answer{}, err
	}
	return filesearch.Answer{Text: f.Reply, Model: req.Model, Raw: raw}, nil
}
