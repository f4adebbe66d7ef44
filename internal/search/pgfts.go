package search

import (
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
// The tsvector is computed on the fly over the document title and its text
// blocks; fallback traffic is rare enough that this stays cheap.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := "fts @@ plainto_tsquery('english', $1)"
	args := []any{q.Text}
	if q.WorkspaceID != "" {
		where += " AND workspace_id = $2"
		args = append(args, q.WorkspaceID)
	}

	query := fmt.Sprintf(`
		WITH doc_text AS (
			SELECT d.id, d.title, d.status, d.category_id, c.workspace_id,
				setweight(to_tsvector('english', d.title), 'A') ||
				setweight(to_tsvector('english', COALESCE(string_agg(b.content, ' ' ORDER BY b.sort_order), '')), 'B') AS fts,
				COALESCE(string_agg(b.content, ' ' ORDER BY b.sort_order), '') AS body
			FROM documents d
			JOIN categories c ON c.id = d.category_id
			LEFT JOIN blocks b ON b.document_id = d.id AND b.block_type = 'text'
			GROUP BY d.id, d.title, d.status, d.category_id, c.workspace_id
		)
		SELECT id, title, status, category_id, workspace_id,
			ts_headline('english', body, plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30') AS snippet,
			COUNT(*) OVER () AS total
		FROM doc_text
		WHERE %s
		ORDER BY ts_rank(fts, plainto_tsquery('english', $1)) DESC
		LIMIT %d OFFSET %d
	`, where, limit, offset)

	rows, err := p.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts search: %w", err)
	}
	defer rows.Close()

	var results []Result
	total := 0
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Status, &r.CategoryID, &r.WorkspaceID, &r.Snippet, &total); err != nil {
			return nil, 0, fmt.Errorf("scan pgfts result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate pgfts results: %w", err)
	}
	return results, total, nil
}
