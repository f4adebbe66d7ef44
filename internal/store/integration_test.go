package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"handbook/api/internal/util"
)

// Integration tests run against a real Postgres when TEST_DATABASE_URL is set.
func integrationStore(t *testing.T) (*PostgresStore, context.Context) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := Open(ctx, url)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := ApplyMigrations(ctx, db, "../../db/migrations"); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db), ctx
}

func seedDocument(t *testing.T, ctx context.Context, st *PostgresStore) (documentID string) {
	t.Helper()

	user := User{
		ID:          util.NewID("usr"),
		DisplayName: "Integration",
		Email:       util.NewID("it") + "@example.test",
	}
	if err := st.CreateUser(ctx, user); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	workspace := Workspace{ID: util.NewID("wsp"), Name: "IT", OwnerID: user.ID, Status: "active"}
	if err := st.InsertWorkspace(ctx, workspace); err != nil {
		t.Fatalf("seed workspace: %v", err)
	}
	t.Cleanup(func() { _ = st.DeleteWorkspace(context.Background(), workspace.ID) })

	category := Category{ID: util.NewID("cat"), WorkspaceID: workspace.ID, Name: "IT", SortOrder: 1}
	if err := st.InsertCategory(ctx, category); err != nil {
		t.Fatalf("seed category: %v", err)
	}

	document := Document{
		ID:         util.NewID("doc"),
		CategoryID: category.ID,
		Title:      "Integration",
		Status:     "draft",
		Visibility: "workspace",
		CreatedBy:  user.ID,
	}
	if err := st.InsertDocument(ctx, document); err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return document.ID
}

func TestPostgresVersionLifecycle(t *testing.T) {
	st, ctx := integrationStore(t)
	documentID := seedDocument(t, ctx, st)

	if _, err := st.SaveDocumentBlocks(ctx, documentID, []BlockInput{
		{BlockType: "text", Content: "A"},
	}, nil); err != nil {
		t.Fatalf("initial save: %v", err)
	}

	result, err := st.SaveDocumentBlocks(ctx, documentID, []BlockInput{
		{BlockType: "text", Content: "A"},
		{BlockType: "text", Content: "B"},
	}, &VersionStamp{CreatedBy: "usr_it", ChangeSummary: "expand"})
	if err != nil {
		t.Fatalf("versioned save: %v", err)
	}
	if result.Version == nil || result.Version.VersionNumber != 1 {
		t.Fatalf("expected version 1, got %+v", result.Version)
	}
	for i, block := range result.Blocks {
		if block.SortOrder != i+1 {
			t.Fatalf("expected dense sort orders, got %d at %d", block.SortOrder, i)
		}
	}

	// The snapshot holds the pre-replace state, one block of "A".
	inputs, err := DecodeSnapshot(result.Version.Snapshot)
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(inputs) != 1 || inputs[0].Content != "A" {
		t.Fatalf("expected snapshot of [A], got %+v", inputs)
	}

	restored, err := st.RestoreDocumentVersion(ctx, documentID, result.Version.ID)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(restored) != 1 || restored[0].Content != "A" {
		t.Fatalf("expected restored [A], got %+v", restored)
	}

	// Restore reads history, never appends to it.
	versions, err := st.ListVersions(ctx, documentID)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("expected 1 version after restore, got %d", len(versions))
	}

	otherDocument := seedDocument(t, ctx, st)
	if _, err := st.RestoreDocumentVersion(ctx, otherDocument, result.Version.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("cross-document restore must be not-found, got: %v", err)
	}
}
