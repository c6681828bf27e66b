package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/attendance-hub/attendance-tracker/internal/application/storage"
	"github.com/attendance-hub/attendance-tracker/internal/domain/document"
)

// DocumentRepository implements storage.Backend on the documents table.
type DocumentRepository struct {
	conn *Connection
}

// NewDocumentRepository creates a repository over conn.
func NewDocumentRepository(conn *Connection) *DocumentRepository {
	return &DocumentRepository{conn: conn}
}

var _ storage.Backend = (*DocumentRepository)(nil)

// Read returns the stored body or storage.ErrNotFound.
func (r *DocumentRepository) Read(ctx context.Context, name document.Name) ([]byte, error) {
	var body []byte
	err := r.conn.Pool().QueryRow(ctx, `SELECT body FROM documents WHERE name = $1`, string(name)).Scan(&body)
	if err != nil {
		if IsNoRows(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("read document %s: %w", name, err)
	}
	return body, nil
}

// Write replaces the body of name, keeping the previous one in
// document_history.
func (r *DocumentRepository) Write(ctx context.Context, name document.Name, body []byte) error {
	if !json.Valid(body) {
		return fmt.Errorf("write document %s: body is not valid JSON", name)
	}

	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO document_history (name, body)
			SELECT name, body FROM documents WHERE name = $1`, string(name))
		if err != nil {
			return fmt.Errorf("archive document %s: %w", name, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO documents (name, body, updated_at)
			VALUES ($1, $2::jsonb, NOW())
			ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
			string(name), string(body))
		if err != nil {
			return fmt.Errorf("write document %s: %w", name, err)
		}
		return nil
	})
}

// PruneHistory deletes history rows older than keep.
func (r *DocumentRepository) PruneHistory(ctx context.Context, keep time.Duration) (int64, error) {
	tag, err := r.conn.Pool().Exec(ctx,
		`DELETE FROM document_history WHERE replaced_at < $1`, time.Now().Add(-keep))
	if err != nil {
		return 0, fmt.Errorf("prune document history: %w", err)
	}
	return tag.RowsAffected(), nil
}
