package postgres

import (
	"context"
	"fmt"
)

// Migration はスキーマ移行の1段階を表す
type Migration struct {
	Version int
	Up      string
	Down    string
}

// allMigrations は適用順のスキーマ移行一覧を返す。
// ベクトル列の次元は使用する埋め込みモデルに合わせて指定する
func allMigrations(embeddingDimension int) []Migration {
	return []Migration{
		{
			Version: 1,
			Up:      fmt.Sprintf(migrationV1Up, embeddingDimension),
			Down:    migrationV1Down,
		},
	}
}

const migrationV1Up = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS projects (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name TEXT NOT NULL UNIQUE,
    owner TEXT NOT NULL,
    repo_name TEXT NOT NULL,
    url TEXT NOT NULL,
    branch TEXT NOT NULL DEFAULT 'main',
    credential TEXT,
    status TEXT NOT NULL DEFAULT 'PENDING',
    created_at TIMESTAMP NOT NULL DEFAULT now(),
    updated_at TIMESTAMP NOT NULL DEFAULT now(),
    archived_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS source_file_embeddings (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    file_path TEXT NOT NULL,
    content TEXT NOT NULL,
    summary TEXT NOT NULL,
    embedding vector(%d),
    created_at TIMESTAMP NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_source_file_embeddings_project ON source_file_embeddings(project_id);

CREATE TABLE IF NOT EXISTS commit_logs (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    commit_hash TEXT NOT NULL,
    commit_message TEXT NOT NULL,
    commit_author_name TEXT NOT NULL,
    commit_author_avatar TEXT NOT NULL,
    commit_date TIMESTAMP NOT NULL,
    summary TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT now(),
    UNIQUE(project_id, commit_hash)
);

CREATE INDEX IF NOT EXISTS idx_commit_logs_project_date ON commit_logs(project_id, commit_date DESC);

CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    credits NUMERIC NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT now()
);
`

const migrationV1Down = `
DROP TABLE IF EXISTS users;
DROP TABLE IF EXISTS commit_logs;
DROP TABLE IF EXISTS source_file_embeddings;
DROP TABLE IF EXISTS projects;
`

// ApplyMigrations は未適用の移行を順に適用する
func ApplyMigrations(ctx context.Context, q Querier, embeddingDimension int) error {
	_, err := q.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
		    version INTEGER PRIMARY KEY,
		    applied_at TIMESTAMP NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var currentVersion int
	err = q.QueryRow(ctx, `SELECT COALESCE(max(version), 0) FROM schema_version`).Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, migration := range allMigrations(embeddingDimension) {
		if migration.Version <= currentVersion {
			continue
		}

		if _, err := q.Exec(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
		if _, err := q.Exec(ctx, `INSERT INTO schema_version (version) VALUES ($1)`, migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		currentVersion = migration.Version
	}

	return nil
}
