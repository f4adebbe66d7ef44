package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"handbook/api/internal/util"
)

// VersionStamp carries the actor and summary recorded on a snapshot.
type VersionStamp struct {
	CreatedBy     string
	ChangeSummary string
}

// SaveResult is what a committed block save returns: the fresh block list and,
// when a snapshot was requested, the version that captured the pre-save state.
type SaveResult struct {
	Blocks  []Block
	Version *DocumentVersion
}

// SaveDocumentBlocks runs the whole save as one transaction: optional snapshot
// of the pre-replace state, full block replace, document timestamp bump.
// Either all of it commits or none of it is observable.
//
// Version numbering is serialized only by the (document_id, version_number)
// uniqueness constraint; a lost race surfaces as ErrVersionConflict, which the
// orchestrator treats as retryable.
func (s *PostgresStore) SaveDocumentBlocks(ctx context.Context, documentID string, inputs []BlockInput, stamp *VersionStamp) (SaveResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SaveResult{}, fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var result SaveResult

	if stamp != nil {
		// Snapshot reads the pre-replace state, so it must run strictly
		// before the replace.
		version, err := snapshotTx(ctx, tx, documentID, *stamp)
		if err != nil {
			return SaveResult{}, err
		}
		result.Version = &version
	}

	blocks, err := replaceBlocksTx(ctx, tx, documentID, inputs, func() string { return util.NewID("blk") })
	if err != nil {
		return SaveResult{}, err
	}
	result.Blocks = blocks

	if err := touchDocumentTx(ctx, tx, documentID); err != nil {
		return SaveResult{}, err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return SaveResult{}, ErrVersionConflict
		}
		return SaveResult{}, fmt.Errorf("commit save tx: %w", err)
	}
	return result, nil
}

// RestoreDocumentVersion reconstitutes the named snapshot and replays it
// through the same replace path a save takes, in one transaction. The version
// table is only read, never written; historical snapshots stay untouched.
// Restoring never creates a new snapshot of the overwritten state.
func (s *PostgresStore) RestoreDocumentVersion(ctx context.Context, documentID, versionID string) ([]Block, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin restore tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// A version id belonging to a different document is not-found, never a
	// silent no-op.
	var snapshot json.RawMessage
	err = tx.QueryRowContext(ctx, `
		SELECT snapshot FROM document_versions WHERE id=$1 AND document_id=$2
	`, versionID, documentID).Scan(&snapshot)
	if err != nil {
		return nil, err
	}

	inputs, err := decodeSnapshot(snapshot)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", versionID, err)
	}

	blocks, err := replaceBlocksTx(ctx, tx, documentID, inputs, func() string { return util.NewID("blk") })
	if err != nil {
		return nil, err
	}

	if err := touchDocumentTx(ctx, tx, documentID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit restore tx: %w", err)
	}
	return blocks, nil
}

func (s *PostgresStore) GetVersion(ctx context.Context, documentID, versionID string) (DocumentVersion, error) {
	var item DocumentVersion
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, version_number, snapshot, change_summary, created_by, created_at
		FROM document_versions
		WHERE id=$1 AND document_id=$2
	`, versionID, documentID).Scan(&item.ID, &item.DocumentID, &item.VersionNumber, &item.Snapshot, &item.ChangeSummary, &item.CreatedBy, &item.CreatedAt)
	if err != nil {
		return DocumentVersion{}, err
	}
	return item, nil
}

// ListVersions returns version metadata newest-first. Snapshots are omitted;
// version listings are metadata reads, not content reads.
func (s *PostgresStore) ListVersions(ctx context.Context, documentID string) ([]DocumentVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, version_number, change_summary, created_by, created_at
		FROM document_versions
		WHERE document_id=$1
		ORDER BY version_number DESC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	items := make([]DocumentVersion, 0)
	for rows.Next() {
		var item DocumentVersion
		if err := rows.Scan(&item.ID, &item.DocumentID, &item.VersionNumber, &item.ChangeSummary, &item.CreatedBy, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return items, nil
}

// snapshotTx captures the document's current block list as an immutable
// version row numbered max(existing)+1.
func snapshotTx(ctx context.Context, tx *sql.Tx, documentID string, stamp VersionStamp) (DocumentVersion, error) {
	current, err := listBlocksTx(ctx, tx, documentID)
	if err != nil {
		return DocumentVersion{}, err
	}

	snapshot, err := encodeSnapshot(current)
	if err != nil {
		return DocumentVersion{}, fmt.Errorf("encode snapshot: %w", err)
	}

	var next int
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version_number), 0) + 1 FROM document_versions WHERE document_id=$1
	`, documentID).Scan(&next); err != nil {
		return DocumentVersion{}, fmt.Errorf("next version number: %w", err)
	}

	item := DocumentVersion{
		ID:            util.NewID("ver"),
		DocumentID:    documentID,
		VersionNumber: next,
		Snapshot:      snapshot,
		ChangeSummary: stamp.ChangeSummary,
		CreatedBy:     stamp.CreatedBy,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO document_versions (id, document_id, version_number, snapshot, change_summary, created_by)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6)
		RETURNING created_at
	`, item.ID, item.DocumentID, item.VersionNumber, string(snapshot), item.ChangeSummary, item.CreatedBy).Scan(&item.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return DocumentVersion{}, ErrVersionConflict
		}
		return DocumentVersion{}, fmt.Errorf("insert version: %w", err)
	}
	return item, nil
}

// snapshotEntry is the stored shape of one block inside a snapshot. The
// payload is opaque to everything but the restore path.
type snapshotEntry struct {
	BlockType string          `json:"blockType"`
	Content   string          `json:"content"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

func encodeSnapshot(blocks []Block) (json.RawMessage, error) {
	entries := make([]snapshotEntry, 0, len(blocks))
	for _, block := range blocks {
		entries = append(entries, snapshotEntry{
			BlockType: block.BlockType,
			Content:   block.Content,
			Metadata:  block.Metadata,
		})
	}
	return json.Marshal(entries)
}

// DecodeSnapshot turns a stored snapshot payload back into the block-input
// list that produced it. Read-only consumers use it for display; the restore
// path feeds the result straight back through a full replace.
func DecodeSnapshot(snapshot json.RawMessage) ([]BlockInput, error) {
	return decodeSnapshot(snapshot)
}

func decodeSnapshot(snapshot json.RawMessage) ([]BlockInput, error) {
	var entries []snapshotEntry
	if err := json.Unmarshal(snapshot, &entries); err != nil {
		return nil, err
	}
	inputs := make([]BlockInput, 0, len(entries))
	for _, entry := range entries {
		inputs = append(inputs, BlockInput{
			BlockType: entry.BlockType,
			Content:   entry.Content,
			Metadata:  entry.Metadata,
		})
	}
	return inputs, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
