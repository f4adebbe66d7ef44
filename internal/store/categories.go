package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) InsertCategory(ctx context.Context, category Category) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, workspace_id, name, sort_order)
		VALUES ($1, $2, $3, $4)
	`, category.ID, category.WorkspaceID, category.Name, category.SortOrder)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCategory(ctx context.Context, categoryID string) (Category, error) {
	var item Category
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, name, sort_order, created_at, updated_at
		FROM categories
		WHERE id=$1
	`, categoryID).Scan(&item.ID, &item.WorkspaceID, &item.Name, &item.SortOrder, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Category{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListCategories(ctx context.Context, workspaceID string) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, name, sort_order, created_at, updated_at
		FROM categories
		WHERE workspace_id=$1
		ORDER BY sort_order ASC, name ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	items := make([]Category, 0)
	for rows.Next() {
		var item Category
		if err := rows.Scan(&item.ID, &item.WorkspaceID, &item.Name, &item.SortOrder, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateCategory(ctx context.Context, categoryID, name string, sortOrder int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE categories SET name=$2, sort_order=$3, updated_at=NOW()
		WHERE id=$1
	`, categoryID, name, sortOrder)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

// DeleteCategory removes the category; documents, blocks and versions beneath
// it go with the FK cascade.
func (s *PostgresStore) DeleteCategory(ctx context.Context, categoryID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id=$1`, categoryID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}
