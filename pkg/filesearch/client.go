package filesearch

import "context"

// Client is the set of remote operations the dashboard depends on.
// Implementations convert their wire types into the structs of this package
// and report failures as RemoteError, wrapping ErrNotFound when the remote
// resource no longer exists.
type Client interface {
	CreateStore(ctx context.Context, displayName string) (Store, error)
	ListStores(ctx context.Context) ([]Store, error)
	DeleteStore(ctx context.Context, storeID string) error

	ListDocuments(ctx context.Context, storeID string) ([]Document, error)
	DeleteDocument(ctx context.Context, storeID, documentID string) error

	UploadFile(ctx context.Context, data []byte, filename string) (UploadHandle, error)
	// ImportFile blocks until the remote import operation finishes.
	ImportFile(ctx context.Context, storeID string, upload UploadHandle) (Document, error)

	GenerateAnswer(ctx context.Context, req AnswerRequest) (Answer, error)
}

// Factory opens a Client for one API key.
type Factory func(ctx context.Context, apiKey string) (Client, error)
