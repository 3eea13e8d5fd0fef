package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mikeboe/filesearch-dashboard/pkg/config"
	"github.com/mikeboe/filesearch-dashboard/pkg/filesearch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestResolveModel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"Empty uses default", "", "gemini-2.5-flash", false},
		{"Flash", "gemini-2.5-flash", "gemini-2.5-flash", false},
		{"Pro", "gemini-2.5-pro", "gemini-2.5-pro", false},
		{"Prefixed", "models/gemini-2.5-pro", "gemini-2.5-pro", false},
		{"Padded", "  gemini-2.5-flash ", "gemini-2.5-flash", false},
		{"Unknown", "gpt-4o", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveModel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ResolveModel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ResolveModel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDocumentStatus(t *testing.T) {
	tests := []struct {
		state genai.DocumentState
		want  filesearch.DocumentStatus
	}{
		{genai.DocumentStateActive, filesearch.StatusIndexed},
		{genai.DocumentStateFailed, filesearch.StatusFailed},
		{genai.DocumentStatePending, filesearch.StatusImporting},
		{genai.DocumentStateUnspecified, filesearch.StatusImporting},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.want, documentStatus(tt.state))
		})
	}
}

func TestToDocument(t *testing.T) {
	doc := toDocument("fileSearchStores/a", &genai.Document{
		Name:        "fileSearchStores/a/documents/acme",
		DisplayName: "acme",
		MIMEType:    "text/markdown",
		State:       genai.DocumentStateActive,
		SizeBytes:   2048,
	})

	assert.Equal(t, "fileSearchStores/a/documents/acme", doc.ID)
	assert.Equal(t, "acme", doc.Filename)
	assert.Equal(t, "fileSearchStores/a", doc.StoreID)
	assert.Equal(t, int64(2048), doc.SizeBytes)
	assert.Equal(t, filesearch.StatusIndexed, doc.Status)

	empty := toDocument("fileSearchStores/a", nil)
	assert.Equal(t, "fileSearchStores/a", empty.StoreID)
}

func TestClassify(t *testing.T) {
	notFound := classify("delete document", genai.APIError{Code: 404, Message: "Document does not exist."})
	assert.ErrorIs(t, notFound, filesearch.ErrNotFound)
	assert.True(t, filesearch.IsRemote(notFound))
	assert.Contains(t, notFound.Error(), "Document does not exist.")

	quota := classify("generate answer", genai.APIError{Code: 429, Message: "quota exceeded"})
	assert.NotErrorIs(t, quota, filesearch.ErrNotFound)
	var re *filesearch.RemoteError
	require.ErrorAs(t, quota, &re)
	assert.Equal(t, "generate answer", re.Op)

	plain := classify("upload file", errors.New("dial tcp: i/o timeout"))
	assert.True(t, filesearch.IsRemote(plain))
}

func TestOperationError(t *testing.T) {
	err := operationError(map[string]any{"code": float64(3), "message": "unsupported mime type"})
	assert.EqualError(t, err, "unsupported mime type")

	err = operationError(map[string]any{"code": float64(5), "message": "file expired"})
	assert.ErrorIs(t, err, filesearch.ErrNotFound)

	err = operationError(map[string]any{"code": 13})
	assert.Error(t, err)
}

func TestGenerateConfig(t *testing.T) {
	cfg := generateConfig(filesearch.AnswerRequest{
		Model:    "gemini-2.5-flash",
		Query:    "acme",
		StoreIDs: []string{"fileSearchStores/a"},
	})
	require.Len(t, cfg.Tools, 1)
	require.NotNil(t, cfg.Tools[0].FileSearch)
	assert.Equal(t, []string{"fileSearchStores/a"}, cfg.Tools[0].FileSearch.FileSearchStoreNames)
	assert.Nil(t, cfg.SystemInstruction)

	cfg = generateConfig(filesearch.AnswerRequest{
		Query:             "acme",
		SystemInstruction: "be strict",
		StoreIDs:          []string{"fileSearchStores/a"},
	})
	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "be strict", cfg.SystemInstruction.Parts[0].Text)
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(t.Context(), "   ", Options{})
	assert.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{PollInterval: 3 * time.Second, PageSize: 10, ChunkSize: 200, ChunkOverlap: 20}

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, Options{PollInterval: 3 * time.Second, PageSize: 10, ChunkSize: 200, ChunkOverlap: 20}, opts)

	c := &Client{options: opts}
	chunking := c.importConfig().ChunkingConfig
	require.NotNil(t, chunking)
	assert.Equal(t, int32(200), *chunking.WhiteSpaceConfig.MaxTokensPerChunk)
	assert.Equal(t, int32(20), *chunking.WhiteSpaceConfig.MaxOverlapTokens)

	assert.Nil(t, (&Client{}).importConfig().ChunkingConfig)
}

func TestWaitForImport(t *testing.T) {
	tests := []struct {
		name      string
		doneAfter int
		opError   map[string]any
		cancel    bool
		wantPolls int
		check     func(t *testing.T, doc filesearch.Document, err error)
	}{
		{
			name:      "Done after polling",
			doneAfter: 3,
			wantPolls: 3,
			check: func(t *testing.T, doc filesearch.Document, err error) {
				require.NoError(t, err)
				assert.Equal(t, "fileSearchStores/a/documents/acme", doc.ID)
				assert.Equal(t, filesearch.StatusIndexed, doc.Status)
				assert.Equal(t, "fileSearchStores/a", doc.StoreID)
				assert.Equal(t, "text/markdown", doc.MIMEType)
			},
		},
		{
			name:      "Done with not found",
			doneAfter: 1,
			opError:   map[string]any{"code": float64(5), "message": "gone"},
			wantPolls: 1,
			check: func(t *testing.T, doc filesearch.Document, err error) {
				var re *filesearch.RemoteError
				require.ErrorAs(t, err, &re)
				assert.ErrorIs(t, err, filesearch.ErrNotFound)
				assert.Contains(t, err.Error(), "gone")
				assert.Empty(t, doc.ID)
			},
		},
		{
			name:      "Done with other failure",
			doneAfter: 2,
			opError:   map[string]any{"code": float64(3), "message": "unsupported document"},
			wantPolls: 2,
			check: func(t *testing.T, doc filesearch.Document, err error) {
				var re *filesearch.RemoteError
				require.ErrorAs(t, err, &re)
				assert.NotErrorIs(t, err, filesearch.ErrNotFound)
				assert.Contains(t, err.Error(), "unsupported document")
			},
		},
		{
			name:      "Context cancelled",
			cancel:    true,
			wantPolls: 0,
			check: func(t *testing.T, doc filesearch.Document, err error) {
				var re *filesearch.RemoteError
				require.ErrorAs(t, err, &re)
				assert.ErrorIs(t, err, context.Canceled)
			},
		},
	}

	upload := filesearch.UploadHandle{Name: "files/acme", DisplayName: "acme", MIMEType: "text/markdown", SizeBytes: 12}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()
			if tt.cancel {
				cancel()
			}

			interval := time.Millisecond
			if tt.cancel {
				interval = time.Hour
			}

			polls := 0
			c := &Client{options: Options{PollInterval: interval}}
			c.getImport = func(ctx context.Context, op *genai.ImportFileOperation) (*genai.ImportFileOperation, error) {
				polls++
				next := &genai.ImportFileOperation{Name: op.Name}
				if polls >= tt.doneAfter {
					next.Done = true
					next.Error = tt.opError
					if tt.opError == nil {
						next.Response = &genai.ImportFileResponse{DocumentName: "fileSearchStores/a/documents/acme"}
					}
				}
				return next, nil
			}

			op, err := c.wait(ctx, &genai.ImportFileOperation{Name: "operations/import-1"})
			var doc filesearch.Document
			if err == nil {
				doc, err = finishImport("fileSearchStores/a", upload, op)
			}

			assert.Equal(t, tt.wantPolls, polls)
			tt.check(t, doc, err)
		})
	}
}

func TestWaitPollFailure(t *testing.T) {
	c := &Client{options: Options{PollInterval: time.Millisecond}}
	c.getImport = func(ctx context.Context, op *genai.ImportFileOperation) (*genai.ImportFileOperation, error) {
		return nil, genai.APIError{Code: 404, Message: "operation gone"}
	}

	_, err := c.wait(t.Context(), &genai.ImportFileOperation{Name: "operations/import-1"})
	assert.ErrorIs(t, err, filesearch.ErrNotFound)
	assert.True(t, filesearch.IsRemote(err))
}
