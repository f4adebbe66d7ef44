package app

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"handbook/api/internal/store"
)

// writerStore returns a fakeStore where user "writer" has writer access to
// document "doc1" inside workspace "ws1".
func writerStore() *fakeStore {
	return &fakeStore{
		workspaceForDocumentFn: func(_ context.Context, documentID string) (string, error) {
			if documentID != "doc1" {
				return "", sql.ErrNoRows
			}
			return "ws1", nil
		},
		workspaceForCategoryFn: func(context.Context, string) (string, error) {
			return "ws1", nil
		},
		getWorkspaceFn: func(_ context.Context, id string) (store.Workspace, error) {
			return store.Workspace{ID: id, OwnerID: "owner"}, nil
		},
		getMembershipRoleFn: func(_ context.Context, _, userID string) (string, error) {
			if userID == "writer" {
				return "writer", nil
			}
			if userID == "viewer" {
				return "viewer", nil
			}
			return "", nil
		},
		getDocumentFn: func(_ context.Context, documentID string) (store.Document, error) {
			return store.Document{ID: documentID, CategoryID: "cat1", Title: "Doc"}, nil
		},
	}
}

func TestSaveBlocksRejectsUnknownTypeBeforeAnyWrite(t *testing.T) {
	ctx := context.Background()
	st := writerStore()
	storeCalled := false
	st.saveDocumentBlocksFn = func(context.Context, string, []store.BlockInput, *store.VersionStamp) (store.SaveResult, error) {
		storeCalled = true
		return store.SaveResult{}, nil
	}
	svc := newTestService(st)

	_, err := svc.SaveBlocks(ctx, Session{UserID: "writer"}, "doc1", SaveBlocksInput{
		Blocks: []store.BlockInput{
			{BlockType: "text", Content: "ok"},
			{BlockType: "video", Content: "nope"},
		},
	})

	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 422 || domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected 422 VALIDATION_ERROR, got: %v", err)
	}
	if storeCalled {
		t.Fatal("invalid input must be rejected before any database mutation")
	}
}

func TestSaveBlocksRequiresWriter(t *testing.T) {
	ctx := context.Background()
	st := writerStore()
	storeCalled := false
	st.saveDocumentBlocksFn = func(context.Context, string, []store.BlockInput, *store.VersionStamp) (store.SaveResult, error) {
		storeCalled = true
		return store.SaveResult{}, nil
	}
	svc := newTestService(st)

	_, err := svc.SaveBlocks(ctx, Session{UserID: "viewer"}, "doc1", SaveBlocksInput{
		Blocks: []store.BlockInput{{BlockType: "text", Content: "A"}},
	})

	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 403 {
		t.Fatalf("expected 403, got: %v", err)
	}
	if storeCalled {
		t.Fatal("access must be checked before any database mutation")
	}
}

func TestSaveBlocksEmptyListIsValid(t *testing.T) {
	ctx := context.Background()
	st := writerStore()
	var gotInputs []store.BlockInput
	st.saveDocumentBlocksFn = func(_ context.Context, _ string, inputs []store.BlockInput, _ *store.VersionStamp) (store.SaveResult, error) {
		gotInputs = inputs
		return store.SaveResult{Blocks: []store.Block{}}, nil
	}
	svc := newTestService(st)

	payload, err := svc.SaveBlocks(ctx, Session{UserID: "writer"}, "doc1", SaveBlocksInput{Blocks: []store.BlockInput{}})
	if err != nil {
		t.Fatalf("empty block list must be a valid save: %v", err)
	}
	if len(gotInputs) != 0 {
		t.Fatalf("expected empty replace, got %d inputs", len(gotInputs))
	}
	if blocks, ok := payload["blocks"].([]blockView); !ok || len(blocks) != 0 {
		t.Fatalf("expected empty block list in payload, got %v", payload["blocks"])
	}
}

func TestSaveBlocksPassesVersionStamp(t *testing.T) {
	ctx := context.Background()
	st := writerStore()
	var gotStamp *store.VersionStamp
	st.saveDocumentBlocksFn = func(_ context.Context, _ string, inputs []store.BlockInput, stamp *store.VersionStamp) (store.SaveResult, error) {
		gotStamp = stamp
		return store.SaveResult{
			Blocks:  []store.Block{{ID: "blk1", BlockType: "text", Content: "A", SortOrder: 1}},
			Version: &store.DocumentVersion{ID: "ver1", DocumentID: "doc1", VersionNumber: 1},
		}, nil
	}
	svc := newTestService(st)

	payload, err := svc.SaveBlocks(ctx, Session{UserID: "writer"}, "doc1", SaveBlocksInput{
		Blocks:        []store.BlockInput{{BlockType: "text", Content: "A"}},
		CreateVersion: true,
		ChangeSummary: "  initial draft  ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotStamp == nil {
		t.Fatal("createVersion must request a snapshot")
	}
	if gotStamp.CreatedBy != "writer" || gotStamp.ChangeSummary != "initial draft" {
		t.Fatalf("unexpected stamp: %+v", gotStamp)
	}
	if _, ok := payload["version"]; !ok {
		t.Fatal("expected version in payload")
	}
}

func TestSaveBlocksSkipsStampWithoutCreateVersion(t *testing.T) {
	ctx := context.Background()
	st := writerStore()
	var gotStamp *store.VersionStamp
	st.saveDocumentBlocksFn = func(_ context.Context, _ string, _ []store.BlockInput, stamp *store.VersionStamp) (store.SaveResult, error) {
		gotStamp = stamp
		return store.SaveResult{Blocks: []store.Block{}}, nil
	}
	svc := newTestService(st)

	payload, err := svc.SaveBlocks(ctx, Session{UserID: "writer"}, "doc1", SaveBlocksInput{
		Blocks: []store.BlockInput{{BlockType: "text", Content: "A"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotStamp != nil {
		t.Fatal("a plain save must not snapshot")
	}
	if _, ok := payload["version"]; ok {
		t.Fatal("payload must not carry a version for a plain save")
	}
}

func TestSaveBlocksRetriesOnceOnVersionConflict(t *testing.T) {
	ctx := context.Background()
	st := writerStore()
	calls := 0
	st.saveDocumentBlocksFn = func(context.Context, string, []store.BlockInput, *store.VersionStamp) (store.SaveResult, error) {
		calls++
		if calls == 1 {
			return store.SaveResult{}, store.ErrVersionConflict
		}
		return store.SaveResult{Blocks: []store.Block{}}, nil
	}
	svc := newTestService(st)

	_, err := svc.SaveBlocks(ctx, Session{UserID: "writer"}, "doc1", SaveBlocksInput{
		Blocks:        []store.BlockInput{{BlockType: "text", Content: "A"}},
		CreateVersion: true,
	})
	if err != nil {
		t.Fatalf("a single lost race must be retried transparently: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected exactly one retry, got %d calls", calls)
	}
}

func TestSaveBlocksConflictAfterRetryIs409(t *testing.T) {
	ctx := context.Background()
	st := writerStore()
	calls := 0
	st.saveDocumentBlocksFn = func(context.Context, string, []store.BlockInput, *store.VersionStamp) (store.SaveResult, error) {
		calls++
		return store.SaveResult{}, store.ErrVersionConflict
	}
	svc := newTestService(st)

	_, err := svc.SaveBlocks(ctx, Session{UserID: "writer"}, "doc1", SaveBlocksInput{
		Blocks:        []store.BlockInput{{BlockType: "text", Content: "A"}},
		CreateVersion: true,
	})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 409 || domainErr.Code != "CONFLICT" {
		t.Fatalf("expected 409 CONFLICT, got: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected exactly two attempts, got %d", calls)
	}
}

func TestSaveBlocksMissingDocumentIsNotFound(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(writerStore())

	_, err := svc.SaveBlocks(ctx, Session{UserID: "writer"}, "doc-missing", SaveBlocksInput{
		Blocks: []store.BlockInput{{BlockType: "text", Content: "A"}},
	})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("missing document must surface as not-found, got: %v", err)
	}
}

func TestRestoreVersionCrossDocumentIsNotFound(t *testing.T) {
	ctx := context.Background()
	st := writerStore()
	st.restoreDocumentVersionFn = func(_ context.Context, documentID, versionID string) ([]store.Block, error) {
		// The store answers no-rows when the version belongs to another
		// document.
		return nil, sql.ErrNoRows
	}
	svc := newTestService(st)

	_, err := svc.RestoreVersion(ctx, Session{UserID: "writer"}, "doc1", "ver-of-other-doc")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("cross-document version must be not-found, got: %v", err)
	}
}

func TestRestoreVersionRequiresWriter(t *testing.T) {
	ctx := context.Background()
	st := writerStore()
	restoreCalled := false
	st.restoreDocumentVersionFn = func(context.Context, string, string) ([]store.Block, error) {
		restoreCalled = true
		return nil, nil
	}
	svc := newTestService(st)

	_, err := svc.RestoreVersion(ctx, Session{UserID: "viewer"}, "doc1", "ver1")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 403 {
		t.Fatalf("expected 403, got: %v", err)
	}
	if restoreCalled {
		t.Fatal("access must be checked before restoring")
	}
}

func TestRestoreVersionNeverSnapshots(t *testing.T) {
	ctx := context.Background()
	st := writerStore()
	st.restoreDocumentVersionFn = func(context.Context, string, string) ([]store.Block, error) {
		return []store.Block{{ID: "blk1", BlockType: "text", Content: "A", SortOrder: 1}}, nil
	}
	st.saveDocumentBlocksFn = func(context.Context, string, []store.BlockInput, *store.VersionStamp) (store.SaveResult, error) {
		t.Fatal("restore must not route through the snapshotting save path")
		return store.SaveResult{}, nil
	}
	svc := newTestService(st)

	payload, err := svc.RestoreVersion(ctx, Session{UserID: "writer"}, "doc1", "ver1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	blocks, ok := payload["blocks"].([]blockView)
	if !ok || len(blocks) != 1 || blocks[0].Content != "A" {
		t.Fatalf("unexpected restored blocks: %v", payload["blocks"])
	}
}

func TestListVersionsRequiresViewer(t *testing.T) {
	ctx := context.Background()
	st := writerStore()
	st.listVersionsFn = func(context.Context, string) ([]store.DocumentVersion, error) {
		return []store.DocumentVersion{{ID: "ver2", VersionNumber: 2}, {ID: "ver1", VersionNumber: 1}}, nil
	}
	svc := newTestService(st)

	if _, err := svc.ListVersions(ctx, Session{UserID: "stranger"}, "doc1"); err == nil {
		t.Fatal("expected denial for non-member")
	}

	payload, err := svc.ListVersions(ctx, Session{UserID: "viewer"}, "doc1")
	if err != nil {
		t.Fatalf("viewer must be able to read history: %v", err)
	}
	versions, ok := payload["versions"].([]versionView)
	if !ok || len(versions) != 2 {
		t.Fatalf("unexpected versions payload: %v", payload["versions"])
	}
	if versions[0].VersionNumber != 2 {
		t.Fatal("expected newest-first ordering")
	}
}
