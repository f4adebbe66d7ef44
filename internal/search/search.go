package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Snippet     string `json:"snippet"`
	WorkspaceID string `json:"workspaceId"`
	CategoryID  string `json:"categoryId"`
	Status      string `json:"status"`
}

// Query describes a search request scoped to one workspace.
type Query struct {
	Text        string
	WorkspaceID string
	Limit       int
	Offset      int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over documents.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// DocumentRecord is what the index holds per document: title plus the
// concatenated text of its blocks at the last committed save.
type DocumentRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	WorkspaceID string `json:"workspaceId"`
	CategoryID  string `json:"categoryId"`
	Status      string `json:"status"`
}
