package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mikeboe/filesearch-dashboard/pkg/config"
	"github.com/mikeboe/filesearch-dashboard/pkg/filesearch"
	"google.golang.org/genai"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultPageSize     = 20
)

// Options tunes the File Search client.
type Options struct {
	PollInterval time.Duration
	PageSize     int
	// Whitespace chunking used on import; zero keeps the service default.
	ChunkSize    int
	ChunkOverlap int
}

// OptionsFromConfig picks the client settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PollInterval: cfg.PollInterval,
		PageSize:     cfg.PageSize,
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	}
}

// Client implements filesearch.Client on top of the Gemini API.
type Client struct {
	client  *genai.Client
	options Options

	getImport func(ctx context.Context, op *genai.ImportFileOperation) (*genai.ImportFileOperation, error)
}

var _ filesearch.Client = (*Client)(nil)

// NewClient creates a Gemini API client for apiKey
func NewClient(ctx context.Context, apiKey string, opts Options) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key required")
	}

	// Initialize Gemini API client (API Key)
	geminiConfig := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	client, err := genai.NewClient(ctx, geminiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini API client: %w", err)
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}

	c := &Client{client: client, options: opts}
	c.getImport = func(ctx context.Context, op *genai.ImportFileOperation) (*genai.ImportFileOperation, error) {
		return c.client.Operations.GetImportFileOperation(ctx, op, nil)
	}
	return c, nil
}

// NewFactory returns a filesearch.Factory creating clients with opts.
func NewFactory(opts Options) filesearch.Factory {
	return func(ctx context.Context, apiKey string) (filesearch.Client, error) {
		return NewClient(ctx, apiKey, opts)
	}
}

// CreateStore creates a File Search store with the given display name.
func (c *Client) CreateStore(ctx context.Context, displayName string) (filesearch.Store, error) {
	store, err := c.client.FileSearchStores.Create(ctx, &genai.CreateFileSearchStoreConfig{
		DisplayName: displayName,
	})
	if err != nil {
		return filesearch.Store{}, classify("create store", err)
	}
	return toStore(store), nil
}

// ListStores walks every page of stores.
func (c *Client) ListStores(ctx context.Context) ([]filesearch.Store, error) {
	page, err := c.client.FileSearchStores.List(ctx, &genai.ListFileSearchStoresConfig{
		PageSize: int32(c.options.PageSize),
	})
	if err != nil {
		return nil, classify("list stores", err)
	}

	stores := []filesearch.Store{}
	for {
		for _, s := range page.Items {
			stores = append(stores, toStore(s))
		}
		page, err = page.Next(ctx)
		if errors.Is(err, genai.ErrPageDone) {
			break
		}
		if err != nil {
			return nil, classify("list stores", err)
		}
	}
	return stores, nil
}

// DeleteStore force-deletes a store together with its documents.
func (c *Client) DeleteStore(ctx context.Context, storeID string) error {
	err := c.client.FileSearchStores.Delete(ctx, storeID, &genai.DeleteFileSearchStoreConfig{
		Force: genai.Ptr(true),
	})
	if err != nil {
		return classify("delete store", err)
	}
	return nil
}

// ListDocuments walks every page of documents in storeID.
func (c *Client) ListDocuments(ctx context.Context, storeID string) ([]filesearch.Document, error) {
	page, err := c.client.FileSearchStores.Documents.List(ctx, storeID, &genai.ListDocumentsConfig{
		PageSize: int32(c.options.PageSize),
	})
	if err != nil {
		return nil, classify("list documents", err)
	}

	docs := []filesearch.Document{}
	for {
		for _, d := range page.Items {
			docs = append(docs, toDocument(storeID, d))
		}
		page, err = page.Next(ctx)
		if errors.Is(err, genai.ErrPageDone) {
			break
		}
		if err != nil {
			return nil, classify("list documents", err)
		}
	}
	return docs, nil
}

// DeleteDocument force-deletes a document, including its chunks.
func (c *Client) DeleteDocument(ctx context.Context, storeID, documentID string) error {
	err := c.client.FileSearchStores.Documents.Delete(ctx, documentID, &genai.DeleteDocumentConfig{
		Force: genai.Ptr(true),
	})
	if err != nil {
		return classify("delete document", err)
	}
	return nil
}

// UploadFile pushes raw bytes to the Files API.
func (c *Client) UploadFile(ctx context.Context, data []byte, filename string) (filesearch.UploadHandle, error) {
	mimeType := filesearch.GuessMIME(filename)
	displayName := filesearch.DisplayName(filename)

	file, err := c.client.Files.Upload(ctx, bytes.NewReader(data), &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: displayName,
	})
	if err != nil {
		return filesearch.UploadHandle{}, classify("upload file", err)
	}

	handle := filesearch.UploadHandle{
		Name:        file.Name,
		DisplayName: displayName,
		MIMEType:    mimeType,
		SizeBytes:   int64(len(data)),
	}
	if file.SizeBytes != nil {
		handle.SizeBytes = *file.SizeBytes
	}
	return handle, nil
}

// ImportFile imports an uploaded file into storeID and polls the long
// running operation until the service reports it done.
func (c *Client) ImportFile(ctx context.Context, storeID string, upload filesearch.UploadHandle) (filesearch.Document, error) {
	op, err := c.client.FileSearchStores.ImportFile(ctx, storeID, upload.Name, c.importConfig())
	if err != nil {
		return filesearch.Document{}, classify("import file", err)
	}

	op, err = c.wait(ctx, op)
	if err != nil {
		return filesearch.Document{}, err
	}
	return finishImport(storeID, upload, op)
}

// finishImport turns a done import operation into the indexed document.
func finishImport(storeID string, upload filesearch.UploadHandle, op *genai.ImportFileOperation) (filesearch.Document, error) {
	if len(op.Error) > 0 {
		return filesearch.Document{}, &filesearch.RemoteError{Op: "import file", Err: operationError(op.Error)}
	}

	now := time.Now()
	doc := filesearch.Document{
		Filename:   upload.DisplayName,
		SizeBytes:  upload.SizeBytes,
		MIMEType:   upload.MIMEType,
		Status:     filesearch.StatusIndexed,
		StoreID:    storeID,
		CreateTime: now,
		UpdateTime: now,
	}
	if op.Response != nil {
		doc.ID = op.Response.DocumentName
	}
	return doc, nil
}

func (c *Client) importConfig() *genai.ImportFileConfig {
	cfg := &genai.ImportFileConfig{}
	if c.options.ChunkSize > 0 {
		cfg.ChunkingConfig = &genai.ChunkingConfig{
			WhiteSpaceConfig: &genai.WhiteSpaceConfig{
				MaxTokensPerChunk: genai.Ptr(int32(c.options.ChunkSize)),
				MaxOverlapTokens:  genai.Ptr(int32(c.options.ChunkOverlap)),
			},
		}
	}
	return cfg
}

func (c *Client) wait(ctx context.Context, op *genai.ImportFileOperation) (*genai.ImportFileOperation, error) {
	ticker := time.NewTicker(c.options.PollInterval)
	defer ticker.Stop()

	for !op.Done {
		select {
		case <-ctx.Done():
			return nil, classify("import file", ctx.Err())
		case <-ticker.C:
		}

		next, err := c.getImport(ctx, op)
		if err != nil {
			return nil, classify("poll import operation", err)
		}
		op = next
	}
	return op, nil
}

// GenerateAnswer asks the model with a File Search tool bound to the
// requested stores.
func (c *Client) GenerateAnswer(ctx context.Context, req filesearch.AnswerRequest) (filesearch.Answer, error) {
	resp, err := c.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Query), generateConfig(req))
	if err != nil {
		return filesearch.Answer{}, classify("generate answer", err)
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return filesearch.Answer{}, fmt.Errorf("failed to marshal response: %w", err)
	}

	return filesearch.Answer{
		Text:  resp.Text(),
		Model: req.Model,
		Raw:   raw,
	}, nil
}

func generateConfig(req filesearch.AnswerRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{
			{
				FileSearch: &genai.FileSearch{
					FileSearchStoreNames: req.StoreIDs,
				},
			},
		},
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemInstruction}},
		}
	}
	return cfg
}
