package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) InsertDocument(ctx context.Context, item Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, category_id, title, status, visibility, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, item.ID, item.CategoryID, item.Title, item.Status, item.Visibility, item.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (Document, error) {
	var item Document
	err := s.db.QueryRowContext(ctx, `
		SELECT id, category_id, title, status, visibility, created_by, created_at, updated_at
		FROM documents
		WHERE id=$1
	`, documentID).Scan(&item.ID, &item.CategoryID, &item.Title, &item.Status, &item.Visibility, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Document{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListDocumentsByCategory(ctx context.Context, categoryID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category_id, title, status, visibility, created_by, created_at, updated_at
		FROM documents
		WHERE category_id=$1
		ORDER BY updated_at DESC
	`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list documents by category: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		var item Document
		if err := rows.Scan(&item.ID, &item.CategoryID, &item.Title, &item.Status, &item.Visibility, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateDocument(ctx context.Context, documentID, title, status, visibility string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET title=$2, status=$3, visibility=$4, updated_at=NOW()
		WHERE id=$1
	`, documentID, title, status, visibility)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id=$1`, documentID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountDocuments(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}
