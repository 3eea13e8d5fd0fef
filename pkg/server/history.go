package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mikeboe/filesearch-dashboard/pkg/filesearch"
	"github.com/mikeboe/filesearch-dashboard/pkg/session"
)

type ExchangeRecord struct {
	ID               uuid.UUID       `json:"id"`
	StoreID          string          `json:"store_id"`
	Model            string          `json:"model"`
	Query            string          `json:"query"`
	Answer           string          `json:"answer"`
	UsedSystemPrompt bool            `json:"used_system_prompt"`
	Raw              json.RawMessage `json:"raw_response,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

type UploadRecord struct {
	ID         uuid.UUID `json:"id"`
	StoreID    string    `json:"store_id"`
	Filename   string    `json:"filename"`
	MIMEType   string    `json:"mime_type"`
	DocumentID *string   `json:"document_id,omitempty"`
	Status     string    `json:"status"`
	Error      *string   `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

// requireKnown reports ErrNotFound for a session that is neither open nor
// recorded in the database.
// Closed sessions stay readable while the database keeps them.
func (s *Service) requireKnown(ctx context.Context, sessionID uuid.UUID) error {
	s.mu.RLock()
	_, open := s.sessions[sessionID]
	s.mu.RUnlock()
	if open {
		return nil
	}
	if s.DB == nil {
		return fmt.Errorf("session %s: %w", sessionID, filesearch.ErrNotFound)
	}

	var exists bool
	err := s.DB.Pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM dashboard_sessions WHERE id = $1)", sessionID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to look up session: %w", err)
	}
	if !exists {
		return fmt.Errorf("session %s: %w", sessionID, filesearch.ErrNotFound)
	}
	return nil
}

func (s *Service) recordSession(ctx context.Context, sess *session.Session) error {
	query := `
		INSERT INTO dashboard_sessions (id, model, use_default_system_prompt)
		VALUES ($1, $2, $3)
	`
	if _, err := s.DB.Pool.Exec(ctx, query, sess.ID, sess.Model, sess.UseDefaultSystemPrompt); err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}

func (s *Service) SaveExchange(ctx context.Context, sessionID uuid.UUID, ex session.Exchange) error {
	var raw []byte
	if len(ex.Answer.Raw) > 0 {
		raw = ex.Answer.Raw
	}

	query := `
		INSERT INTO qa_exchanges (id, session_id, store_id, model, query, answer, used_system_prompt, raw_response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.DB.Pool.Exec(ctx, query,
		ex.ID, sessionID, ex.StoreID, ex.Answer.Model, ex.Query, ex.Answer.Text, ex.UsedSystemPrompt, raw, ex.AskedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save exchange: %w", err)
	}
	return nil
}

func (s *Service) SaveUploadResult(ctx context.Context, sessionID uuid.UUID, res session.FileResult) error {
	var storeID, documentID, status string
	status = "failed"
	if res.Document != nil {
		storeID = res.Document.StoreID
		documentID = res.Document.ID
		status = string(res.Document.Status)
	}

	query := `
		INSERT INTO upload_results (session_id, store_id, filename, mime_type, document_id, status, error)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''))
	`
	_, err := s.DB.Pool.Exec(ctx, query, sessionID, storeID, res.Filename, res.MIMEType, documentID, status, res.Error)
	if err != nil {
		return fmt.Errorf("failed to save upload result: %w", err)
	}
	return nil
}

func (s *Service) ListExchanges(ctx context.Context, sessionID uuid.UUID) ([]ExchangeRecord, error) {
	if err := s.requireKnown(ctx, sessionID); err != nil {
		return nil, err
	}
	if s.DB == nil {
		return nil, ErrNoDatabase
	}

	query := `
		SELECT id, store_id, model, query, answer, used_system_prompt, raw_response, created_at
		FROM qa_exchanges
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT 50
	`
	rows, err := s.DB.Pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []ExchangeRecord
	for rows.Next() {
		var ex ExchangeRecord
		if err := rows.Scan(&ex.ID, &ex.StoreID, &ex.Model, &ex.Query, &ex.Answer, &ex.UsedSystemPrompt, &ex.Raw, &ex.CreatedAt); err != nil {
			continue
		}
		exchanges = append(exchanges, ex)
	}
	return exchanges, rows.Err()
}

func (s *Service) ListUploads(ctx context.Context, sessionID uuid.UUID) ([]UploadRecord, error) {
	if err := s.requireKnown(ctx, sessionID); err != nil {
		return nil, err
	}
	if s.DB == nil {
		return nil, ErrNoDatabase
	}

	query := `
		SELECT id, store_id, filename, mime_type, document_id, status, error, created_at
		FROM upload_results
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT 100
	`
	rows, err := s.DB.Pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	defer rows.Close()

	var uploads []UploadRecord
	for rows.Next() {
		var u UploadRecord
		if err := rows.Scan(&u.ID, &u.StoreID, &u.Filename, &u.MIMEType, &u.DocumentID, &u.Status, &u.Error, &u.CreatedAt); err != nil {
			continue
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

func (s *Service) GetSessionLogs(ctx context.Context, sessionID uuid.UUID) ([]LogEntry, error) {
	if err := s.requireKnown(ctx, sessionID); err != nil {
		return nil, err
	}
	if s.DB == nil {
		return nil, ErrNoDatabase
	}

	query := `
		SELECT id, timestamp, level, message, metadata
		FROM activity_logs
		WHERE session_id = $1
		ORDER BY id ASC
	`
	rows, err := s.DB.Pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			continue
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
