package database

import (
	"context"
	"fmt"
)

func (db *PostgresDB) InitSchema(ctx context.Context) error {
	// 1. Dashboard Sessions Table
	sessionsQuery := `
		CREATE TABLE IF NOT EXISTS dashboard_sessions (
			id UUID PRIMARY KEY,
			model TEXT NOT NULL,
			use_default_system_prompt BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			closed_at TIMESTAMP WITH TIME ZONE
		);
	`
	if _, err := db.Pool.Exec(ctx, sessionsQuery); err != nil {
		return fmt.Errorf("failed to create dashboard_sessions table: %w", err)
	}

	// 2. Activity Logs Table
	logsQuery := `
		CREATE TABLE IF NOT EXISTS activity_logs (
			id SERIAL PRIMARY KEY,
			session_id UUID NOT NULL REFERENCES dashboard_sessions(id) ON DELETE CASCADE,
			timestamp TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata JSONB
		);
	`
	if _, err := db.Pool.Exec(ctx, logsQuery); err != nil {
		return fmt.Errorf("failed to create activity_logs table: %w", err)
	}

	// 3. Question/Answer History Table
	exchangesQuery := `
		CREATE TABLE IF NOT EXISTS qa_exchanges (
			id UUID PRIMARY KEY,
			session_id UUID NOT NULL REFERENCES dashboard_sessions(id) ON DELETE CASCADE,
			store_id TEXT NOT NULL,
			model TEXT NOT NULL,
			query TEXT NOT NULL,
			answer TEXT NOT NULL,
			used_system_prompt BOOLEAN NOT NULL,
			raw_response JSONB,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`
	if _, err := db.Pool.Exec(ctx, exchangesQuery); err != nil {
		return fmt.Errorf("failed to create qa_exchanges table: %w", err)
	}

	// 4. Upload Results Table
	uploadsQuery := `
		CREATE TABLE IF NOT EXISTS upload_results (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			session_id UUID NOT NULL REFERENCES dashboard_sessions(id) ON DELETE CASCADE,
			store_id TEXT NOT NULL,
			filename TEXT NOT NULL,
			mime_type TEXT NOT NULL,
			document_id TEXT,
			status TEXT NOT NULL,
			error TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`
	if _, err := db.Pool.Exec(ctx, uploadsQuery); err != nil {
		return fmt.Errorf("failed to create upload_results table: %w", err)
	}

	// Indexes for faster querying
	if _, err := db.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_activity_logs_session_id ON activity_logs(session_id)"); err != nil {
		return fmt.Errorf("failed to create index on activity_logs: %w", err)
	}
	if _, err := db.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_qa_exchanges_session_id ON qa_exchanges(session_id, created_at DESC)"); err != nil {
		return fmt.Errorf("failed to create index on qa_exchanges: %w", err)
	}
	if _, err := db.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_upload_results_session_id ON upload_results(session_id, created_at DESC)"); err != nil {
		return fmt.Errorf("failed to create index on upload_results: %w", err)
	}

	return nil
}
