package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"handbook/api/internal/rbac"
	"handbook/api/internal/store"
)

// SaveBlocks replaces a document's full block list in one transaction,
// optionally snapshotting the pre-replace state as a new version first.
//
// Order of checks matters: access, then input validation, and only then any
// database mutation. Invalid input never leaves partial writes behind.
// A version-number race with a concurrent save is retried once; losing twice
// surfaces as a 409.
func (s *Service) SaveBlocks(ctx context.Context, sess Session, documentID string, input SaveBlocksInput) (map[string]any, error) {
	if err := s.requireRole(ctx, sess.UserID, ScopeDocument, documentID, rbac.RoleWriter); err != nil {
		return nil, err
	}

	if details := validateBlockInputs(input.Blocks); len(details) > 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid block list", details)
	}

	var stamp *store.VersionStamp
	if input.CreateVersion {
		stamp = &store.VersionStamp{
			CreatedBy:     sess.UserID,
			ChangeSummary: strings.TrimSpace(input.ChangeSummary),
		}
	}

	result, err := s.store.SaveDocumentBlocks(ctx, documentID, input.Blocks, stamp)
	if errors.Is(err, store.ErrVersionConflict) {
		// Lost the version-number race; the conflicting save has committed,
		// so a single retry re-reads the new max and should succeed.
		result, err = s.store.SaveDocumentBlocks(ctx, documentID, input.Blocks, stamp)
	}
	if errors.Is(err, store.ErrVersionConflict) {
		return nil, domainError(http.StatusConflict, "CONFLICT", "Concurrent version conflict, retry the save", nil)
	}
	if err != nil {
		return nil, err
	}

	document, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	s.reindexDocument(ctx, document, result.Blocks)

	payload := map[string]any{
		"document": documentViewOf(document),
		"blocks":   blockViews(result.Blocks),
	}
	if result.Version != nil {
		payload["version"] = versionViewOf(*result.Version)
	}
	return payload, nil
}

// RestoreVersion rewrites a document's blocks from an archived snapshot.
// The restore itself does not snapshot the state it overwrites; callers who
// want an undoable restore save with createVersion first.
func (s *Service) RestoreVersion(ctx context.Context, sess Session, documentID, versionID string) (map[string]any, error) {
	if err := s.requireRole(ctx, sess.UserID, ScopeDocument, documentID, rbac.RoleWriter); err != nil {
		return nil, err
	}

	blocks, err := s.store.RestoreDocumentVersion(ctx, documentID, versionID)
	if err != nil {
		return nil, err
	}

	document, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	s.reindexDocument(ctx, document, blocks)

	return map[string]any{
		"message":  "Version restored",
		"document": documentViewOf(document),
		"blocks":   blockViews(blocks),
	}, nil
}

// ListDocumentBlocks returns the document's current ordered block list.
func (s *Service) ListDocumentBlocks(ctx context.Context, sess Session, documentID string) (map[string]any, error) {
	if err := s.requireRole(ctx, sess.UserID, ScopeDocument, documentID, rbac.RoleViewer); err != nil {
		return nil, err
	}

	blocks, err := s.store.ListBlocks(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"blocks": blockViews(blocks)}, nil
}

// ListVersions returns a document's version history, newest first, metadata
// only.
func (s *Service) ListVersions(ctx context.Context, sess Session, documentID string) (map[string]any, error) {
	if err := s.requireRole(ctx, sess.UserID, ScopeDocument, documentID, rbac.RoleViewer); err != nil {
		return nil, err
	}

	versions, err := s.store.ListVersions(ctx, documentID)
	if err != nil {
		return nil, err
	}

	views := make([]versionView, 0, len(versions))
	for _, version := range versions {
		views = append(views, versionViewOf(version))
	}
	return map[string]any{"versions": views}, nil
}

// GetVersion returns one version's metadata together with its archived block
// list. The snapshot is decoded for display; the stored row is never touched.
func (s *Service) GetVersion(ctx context.Context, sess Session, documentID, versionID string) (map[string]any, error) {
	if err := s.requireRole(ctx, sess.UserID, ScopeDocument, documentID, rbac.RoleViewer); err != nil {
		return nil, err
	}

	version, err := s.store.GetVersion(ctx, documentID, versionID)
	if err != nil {
		return nil, err
	}

	inputs, err := store.DecodeSnapshot(version.Snapshot)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"version": versionViewOf(version),
		"blocks":  inputs,
	}, nil
}

func validateBlockInputs(inputs []store.BlockInput) []string {
	var details []string
	for i, input := range inputs {
		if input.BlockType == "" {
			details = append(details, fmt.Sprintf("blocks[%d]: blockType is required", i))
			continue
		}
		if _, ok := store.BlockTypes[input.BlockType]; !ok {
			details = append(details, fmt.Sprintf("blocks[%d]: unknown block type %q", i, input.BlockType))
		}
	}
	return details
}
