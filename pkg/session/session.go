package session

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/mikeboe/filesearch-dashboard/pkg/filesearch"
)

const (
	DefaultModel     = "gemini-2.5-flash"
	DefaultStoreName = "my-file-search-store"
)

// Options configures a new Session.
type Options struct {
	Model                  string
	DefaultStoreName       string
	UseDefaultSystemPrompt bool
}

// Exchange is one question and its answer.
type Exchange struct {
	ID               uuid.UUID         `json:"id"`
	StoreID          string            `json:"store_id"`
	Query            string            `json:"query"`
	UsedSystemPrompt bool              `json:"used_system_prompt"`
	Answer           filesearch.Answer `json:"answer"`
	AskedAt          time.Time         `json:"asked_at"`
}

// Snapshot is a read-only copy of the session state for rendering.
type Snapshot struct {
	ID                     uuid.UUID             `json:"id"`
	ActiveStore            *filesearch.Store     `json:"active_store"`
	Documents              []filesearch.Document `json:"documents"`
	LastExchange           *Exchange             `json:"last_exchange,omitempty"`
	UseDefaultSystemPrompt bool                  `json:"use_default_system_prompt"`
	Model                  string                `json:"model"`
}

// Session holds the state of one user working against the remote service:
// the active store, its documents and the last exchange. It is not safe for
// concurrent use; callers serialize actions on a session.
type Session struct {
	ID     uuid.UUID
	Client filesearch.Client
	Logger *slog.Logger

	Model                  string
	DefaultStoreName       string
	UseDefaultSystemPrompt bool

	// Optional hooks, called after the state has been updated.
	OnExchange func(ctx context.Context, ex Exchange)
	OnUpload   func(ctx context.Context, res FileResult)

	active    *filesearch.Store
	documents []filesearch.Document
	last      *Exchange
}

func New(client filesearch.Client, opts Options) *Session {
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	storeName := opts.DefaultStoreName
	if storeName == "" {
		storeName = DefaultStoreName
	}
	return &Session{
		ID:                     uuid.New(),
		Client:                 client,
		Logger:                 slog.Default(),
		Model:                  model,
		DefaultStoreName:       storeName,
		UseDefaultSystemPrompt: opts.UseDefaultSystemPrompt,
		documents:              []filesearch.Document{},
	}
}

// Active returns the active store, or nil when none is selected.
func (s *Session) Active() *filesearch.Store {
	if s.active == nil {
		return nil
	}
	store := *s.active
	return &store
}

// Documents returns a copy of the known documents of the active store.
func (s *Session) Documents() []filesearch.Document {
	return slices.Clone(s.documents)
}

func (s *Session) LastExchange() *Exchange {
	if s.last == nil {
		return nil
	}
	ex := *s.last
	return &ex
}

func (s *Session) Snapshot() Snapshot {
	docs := s.Documents()
	if docs == nil {
		docs = []filesearch.Document{}
	}
	return Snapshot{
		ID:                     s.ID,
		ActiveStore:            s.Active(),
		Documents:              docs,
		LastExchange:           s.LastExchange(),
		UseDefaultSystemPrompt: s.UseDefaultSystemPrompt,
		Model:                  s.Model,
	}
}

func (s *Session) requireActive() (filesearch.Store, error) {
	if s.active == nil {
		return filesearch.Store{}, filesearch.ErrNoActiveStore
	}
	return *s.active, nil
}

func (s *Session) activate(store filesearch.Store) {
	s.active = &store
	s.documents = []filesearch.Document{}
}

func (s *Session) deactivate() {
	s.active = nil
	s.documents = []filesearch.Document{}
}
