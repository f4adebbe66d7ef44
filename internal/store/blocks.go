package store

import (
	"context"
	"database/sql"
	"fmt"
)

// BlockTypes lists the accepted block_type values.
var BlockTypes = map[string]struct{}{
	"text":  {},
	"image": {},
	"file":  {},
}

func (s *PostgresStore) ListBlocks(ctx context.Context, documentID string) ([]Block, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, block_type, content, metadata, sort_order, created_at
		FROM blocks
		WHERE document_id=$1
		ORDER BY sort_order ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()
	return scanBlocks(rows)
}

// replaceBlocksTx implements the full-replace write: every existing block row
// of the document is deleted and the submitted list is inserted in input
// order with sort_order assigned 1..N. No diffing, no partial updates.
func replaceBlocksTx(ctx context.Context, tx *sql.Tx, documentID string, inputs []BlockInput, newBlockID func() string) ([]Block, error) {
	if _, err := tx.ExecContext(ctx, `DELETE FROM blocks WHERE document_id=$1`, documentID); err != nil {
		return nil, fmt.Errorf("delete blocks: %w", err)
	}

	items := make([]Block, 0, len(inputs))
	for i, input := range inputs {
		metadata := input.Metadata
		if len(metadata) == 0 {
			metadata = []byte(`{}`)
		}
		var item Block
		err := tx.QueryRowContext(ctx, `
			INSERT INTO blocks (id, document_id, block_type, content, metadata, sort_order)
			VALUES ($1, $2, $3, $4, $5::jsonb, $6)
			RETURNING id, document_id, block_type, content, metadata, sort_order, created_at
		`, newBlockID(), documentID, input.BlockType, input.Content, string(metadata), i+1).Scan(
			&item.ID,
			&item.DocumentID,
			&item.BlockType,
			&item.Content,
			&item.Metadata,
			&item.SortOrder,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("insert block %d: %w", i+1, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func listBlocksTx(ctx context.Context, tx *sql.Tx, documentID string) ([]Block, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, document_id, block_type, content, metadata, sort_order, created_at
		FROM blocks
		WHERE document_id=$1
		ORDER BY sort_order ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()
	return scanBlocks(rows)
}

func scanBlocks(rows *sql.Rows) ([]Block, error) {
	items := make([]Block, 0)
	for rows.Next() {
		var item Block
		if err := rows.Scan(
			&item.ID,
			&item.DocumentID,
			&item.BlockType,
			&item.Content,
			&item.Metadata,
			&item.SortOrder,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}
	return items, nil
}

func touchDocumentTx(ctx context.Context, tx *sql.Tx, documentID string) error {
	result, err := tx.ExecContext(ctx, `UPDATE documents SET updated_at=NOW() WHERE id=$1`, documentID)
	if err != nil {
		return fmt.Errorf("touch document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch document rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
