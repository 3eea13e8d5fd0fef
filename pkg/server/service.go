package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mikeboe/filesearch-dashboard/pkg/config"
	"github.com/mikeboe/filesearch-dashboard/pkg/database"
	"github.com/mikeboe/filesearch-dashboard/pkg/filesearch"
	"github.com/mikeboe/filesearch-dashboard/pkg/gemini"
	"github.com/mikeboe/filesearch-dashboard/pkg/session"
)

var (
	ErrNoDatabase = errors.New("history requires a database")
	ErrNoAPIKey   = errors.New("api key required")
)

type Service struct {
	DB        *database.PostgresDB
	Cfg       *config.Config
	NewClient filesearch.Factory
	Logger    *slog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*entry
}

// entry serializes the actions on one dashboard session.
type entry struct {
	mu      sync.Mutex
	session *session.Session
}

func NewService(db *database.PostgresDB, cfg *config.Config, factory filesearch.Factory) *Service {
	return &Service{
		DB:        db,
		Cfg:       cfg,
		NewClient: factory,
		Logger:    slog.Default(),
		sessions:  make(map[uuid.UUID]*entry),
	}
}

type CreateSessionRequest struct {
	APIKey                 string `json:"api_key"`
	UseDefaultSystemPrompt *bool  `json:"use_default_system_prompt,omitempty"`
	Model                  string `json:"model,omitempty"`
}

// CreateSession opens a dashboard session. A blank key falls back to the
// server key when one is configured.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*session.Session, error) {
	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		apiKey = s.Cfg.GoogleApiKey
	}
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	model := req.Model
	if model == "" {
		model = s.Cfg.Model
	}
	model, err := gemini.ResolveModel(model)
	if err != nil {
		return nil, err
	}

	useDefault := s.Cfg.UseDefaultSystemPrompt
	if req.UseDefaultSystemPrompt != nil {
		useDefault = *req.UseDefaultSystemPrompt
	}

	client, err := s.NewClient(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	sess := session.New(client, session.Options{
		Model:                  model,
		DefaultStoreName:       s.Cfg.StoreDisplayName,
		UseDefaultSystemPrompt: useDefault,
	})
	sess.Logger = s.Logger.With("session", sess.ID)

	if s.DB != nil {
		if err := s.recordSession(ctx, sess); err != nil {
			return nil, err
		}
		s.attachHistory(sess)
	}

	s.mu.Lock()
	s.sessions[sess.ID] = &entry{session: sess}
	s.mu.Unlock()

	sess.Logger.Info("Session created", "model", model, "system_prompt", useDefault)
	return sess, nil
}

// attachHistory routes the session logs to the database and persists
// exchanges and upload outcomes.
func (s *Service) attachHistory(sess *session.Session) {
	dbLogger := slog.New(NewDBLogHandler(s.DB, sess.ID, s.Logger.Handler()))
	sess.Logger = dbLogger

	sessionID := sess.ID
	sess.OnExchange = func(ctx context.Context, ex session.Exchange) {
		if err := s.SaveExchange(ctx, sessionID, ex); err != nil {
			dbLogger.Error("Failed to save exchange to DB", "error", err)
		}
	}
	sess.OnUpload = func(ctx context.Context, res session.FileResult) {
		if err := s.SaveUploadResult(ctx, sessionID, res); err != nil {
			dbLogger.Error("Failed to save upload result to DB", "error", err)
		}
	}
}

// With runs fn while holding the lock of session id.
func (s *Service) With(id uuid.UUID, fn func(sess *session.Session) error) error {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, filesearch.ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.session)
}

// CloseSession forgets the session and its credential.
func (s *Service) CloseSession(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, filesearch.ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Logger.Info("Session closed")

	if s.DB != nil {
		_, err := s.DB.Pool.Exec(ctx, "UPDATE dashboard_sessions SET closed_at = NOW() WHERE id = $1", id)
		if err != nil {
			return fmt.Errorf("failed to close session: %w", err)
		}
	}
	return nil
}

// ServerClient opens a client with the server key, used by the MCP tools.
func (s *Service) ServerClient(ctx context.Context) (filesearch.Client, error) {
	if s.Cfg.GoogleApiKey == "" {
		return nil, ErrNoAPIKey
	}
	return s.NewClient(ctx, s.Cfg.GoogleApiKey)
}
