package app

import (
	"net/http"
	"testing"
)

func blockContents(t *testing.T, body map[string]any) []string {
	t.Helper()
	raw, ok := body["blocks"].([]any)
	if !ok {
		t.Fatalf("no blocks in payload: %v", body)
	}
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		block, ok := entry.(map[string]any)
		if !ok {
			t.Fatalf("unexpected block shape: %v", entry)
		}
		content, _ := block["content"].(string)
		out = append(out, content)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestVersioningLifecycle walks the full save/snapshot/restore cycle: the
// document starts at [A], is saved to [A,B] and then [C] with versioning on,
// and is finally restored to version 1.
func TestVersioningLifecycle(t *testing.T) {
	f := newHTTPFixture(t)

	// Save [A, B] with versioning: version 1 snapshots the pre-save state [A].
	status, body := f.do(t, http.MethodPut, "/api/documents/doc1/blocks", "writer", saveBody("A", "B"))
	if status != http.StatusOK {
		t.Fatalf("first save: expected 200, got %d (%v)", status, body)
	}
	if got := blockContents(t, body); !equalStrings(got, []string{"A", "B"}) {
		t.Fatalf("after first save expected [A B], got %v", got)
	}
	version1, ok := body["version"].(map[string]any)
	if !ok {
		t.Fatalf("first save carried no version: %v", body)
	}
	if number, _ := version1["versionNumber"].(float64); number != 1 {
		t.Fatalf("expected version number 1, got %v", version1["versionNumber"])
	}
	version1ID, _ := version1["id"].(string)

	// Sort orders are the dense sequence 1..N after every save.
	raw := body["blocks"].([]any)
	for i, entry := range raw {
		block := entry.(map[string]any)
		if order, _ := block["sortOrder"].(float64); int(order) != i+1 {
			t.Fatalf("block %d has sort order %v, expected %d", i, block["sortOrder"], i+1)
		}
	}

	// Save [C]: version 2 snapshots [A, B].
	status, body = f.do(t, http.MethodPut, "/api/documents/doc1/blocks", "writer", saveBody("C"))
	if status != http.StatusOK {
		t.Fatalf("second save: expected 200, got %d (%v)", status, body)
	}
	version2, ok := body["version"].(map[string]any)
	if !ok {
		t.Fatalf("second save carried no version: %v", body)
	}
	if number, _ := version2["versionNumber"].(float64); number != 2 {
		t.Fatalf("expected version number 2, got %v", version2["versionNumber"])
	}

	// History lists both versions, newest first.
	status, body = f.do(t, http.MethodGet, "/api/documents/doc1/versions", "viewer", nil)
	if status != http.StatusOK {
		t.Fatalf("list versions: expected 200, got %d", status)
	}
	versions, ok := body["versions"].([]any)
	if !ok || len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %v", body["versions"])
	}
	newest := versions[0].(map[string]any)
	if number, _ := newest["versionNumber"].(float64); number != 2 {
		t.Fatalf("expected newest-first ordering, got %v first", newest["versionNumber"])
	}

	// Version 1's archived content is unchanged by the later save.
	status, body = f.do(t, http.MethodGet, "/api/documents/doc1/versions/"+version1ID, "viewer", nil)
	if status != http.StatusOK {
		t.Fatalf("get version: expected 200, got %d", status)
	}
	if got := blockContents(t, body); !equalStrings(got, []string{"A"}) {
		t.Fatalf("version 1 snapshot expected [A], got %v", got)
	}

	// Restore version 1: current blocks become [A] again.
	status, body = f.do(t, http.MethodPost, "/api/documents/doc1/restore/"+version1ID, "writer", nil)
	if status != http.StatusOK {
		t.Fatalf("restore: expected 200, got %d (%v)", status, body)
	}
	if got := blockContents(t, body); !equalStrings(got, []string{"A"}) {
		t.Fatalf("after restore expected [A], got %v", got)
	}

	status, body = f.do(t, http.MethodGet, "/api/documents/doc1", "viewer", nil)
	if status != http.StatusOK {
		t.Fatalf("get document: expected 200, got %d", status)
	}
	if got := blockContents(t, body); !equalStrings(got, []string{"A"}) {
		t.Fatalf("document after restore expected [A], got %v", got)
	}

	// Restore does not snapshot the state it overwrites.
	status, body = f.do(t, http.MethodGet, "/api/documents/doc1/versions", "viewer", nil)
	if status != http.StatusOK {
		t.Fatalf("list versions after restore: expected 200, got %d", status)
	}
	if versions, _ := body["versions"].([]any); len(versions) != 2 {
		t.Fatalf("restore must not add versions, got %d", len(versions))
	}
}

func TestRestoreRejectsForeignVersion(t *testing.T) {
	f := newHTTPFixture(t)

	// A second document in the same category gets its own version.
	status, body := f.do(t, http.MethodPost, "/api/categories/cat1/documents", "writer", map[string]any{"title": "Other"})
	if status != http.StatusCreated {
		t.Fatalf("create document: expected 201, got %d (%v)", status, body)
	}
	other := body["document"].(map[string]any)
	otherID, _ := other["id"].(string)

	status, body = f.do(t, http.MethodPut, "/api/documents/"+otherID+"/blocks", "writer", saveBody("X"))
	if status != http.StatusOK {
		t.Fatalf("save other document: expected 200, got %d (%v)", status, body)
	}
	foreignVersion := body["version"].(map[string]any)
	foreignVersionID, _ := foreignVersion["id"].(string)

	// Restoring doc1 from the other document's version is not-found, never a
	// silent no-op.
	status, _ = f.do(t, http.MethodPost, "/api/documents/doc1/restore/"+foreignVersionID, "writer", nil)
	if status != http.StatusNotFound {
		t.Fatalf("cross-document restore: expected 404, got %d", status)
	}

	status, _ = f.do(t, http.MethodPost, "/api/documents/doc1/restore/ver_nope", "writer", nil)
	if status != http.StatusNotFound {
		t.Fatalf("unknown version restore: expected 404, got %d", status)
	}
}

func TestSaveRejectsUnknownBlockTypeOverHTTP(t *testing.T) {
	f := newHTTPFixture(t)

	status, body := f.do(t, http.MethodPut, "/api/documents/doc1/blocks", "writer", map[string]any{
		"blocks": []map[string]any{{"blockType": "spreadsheet", "content": "x"}},
	})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (%v)", status, body)
	}
	if code, _ := body["code"].(string); code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", body["code"])
	}

	// The rejected save left the document untouched.
	status, body = f.do(t, http.MethodGet, "/api/documents/doc1", "viewer", nil)
	if status != http.StatusOK {
		t.Fatalf("get document: expected 200, got %d", status)
	}
	if got := blockContents(t, body); !equalStrings(got, []string{"A"}) {
		t.Fatalf("document must be unchanged, got %v", got)
	}
}
