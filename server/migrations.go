package server

import (
	"context"
	"fmt"
)

// migrate runs database migrations
func (s *PGStore) migrate(ctx context.Context) error {
	migrations := []string{
		migrationDocuments,
		migrationDocumentIndexes,
	}

	for i, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

const migrationDocuments = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id TEXT NOT NULL,
    data JSONB NOT NULL,
    seq BIGSERIAL,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW(),
    PRIMARY KEY (collection, id)
);
`

const migrationDocumentIndexes = `
CREATE INDEX IF NOT EXISTS idx_documents_collection_seq ON documents(collection, seq);
CREATE INDEX IF NOT EXISTS idx_documents_data ON documents USING GIN (data jsonb_path_ops);
`
