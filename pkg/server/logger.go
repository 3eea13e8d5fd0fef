package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mikeboe/filesearch-dashboard/pkg/database"
)

// DBLogHandler is a slog.Handler that writes records of one dashboard
// session to the database and forwards them to Next.
type DBLogHandler struct {
	DB        *database.PostgresDB
	SessionID uuid.UUID
	Next      slog.Handler

	attrs []slog.Attr
}

func NewDBLogHandler(db *database.PostgresDB, sessionID uuid.UUID, next slog.Handler) *DBLogHandler {
	return &DBLogHandler{
		DB:        db,
		SessionID: sessionID,
		Next:      next,
	}
}

func (h *DBLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.Next != nil {
		return h.Next.Enabled(ctx, level)
	}
	return true // Log everything
}

func (h *DBLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.Next != nil {
		if err := h.Next.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	if h.DB == nil {
		return nil
	}

	// Extract attributes to JSON
	attrs := make(map[string]interface{}, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = attrValue(a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = attrValue(a.Value)
		return true
	})

	metaJSON, err := json.Marshal(attrs)
	if err != nil {
		// Fallback for marshal error
		metaJSON = []byte("{}")
	}

	query := `
		INSERT INTO activity_logs (session_id, timestamp, level, message, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`

	// Use background context so logs persist after the request is cancelled
	_, err = h.DB.Pool.Exec(context.Background(), query, h.SessionID, r.Time, r.Level.String(), r.Message, metaJSON)
	return err
}

func (h *DBLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	if h.Next != nil {
		next.Next = h.Next.WithAttrs(attrs)
	}
	return &next
}

// WithGroup only affects the forwarded output; persisted metadata stays flat.
func (h *DBLogHandler) WithGroup(name string) slog.Handler {
	next := *h
	if h.Next != nil {
		next.Next = h.Next.WithGroup(name)
	}
	return &next
}

// errors do not marshal to anything useful
func attrValue(v slog.Value) any {
	v = v.Resolve()
	if err, ok := v.Any().(error); ok {
		return err.Error()
	}
	return v.Any()
}
