package store

import (
	"encoding/json"
	"time"
)

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Workspace struct {
	ID        string
	Name      string
	OwnerID   string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Membership maps a user to a role inside one workspace. The workspace owner
// is never stored as a membership row; the owner_id column on workspaces is
// the single source of that authority.
type Membership struct {
	ID          string
	WorkspaceID string
	UserID      string
	Role        string
	CreatedAt   time.Time
	// Joined fields for API responses
	UserEmail string
	UserName  string
}

type Category struct {
	ID          string
	WorkspaceID string
	Name        string
	SortOrder   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Document struct {
	ID         string
	CategoryID string
	Title      string
	Status     string
	Visibility string
	CreatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Block is one ordered content unit of a document. Sort orders within a
// document are always the dense sequence 1..N after any successful write.
type Block struct {
	ID         string
	DocumentID string
	BlockType  string
	Content    string
	Metadata   json.RawMessage
	SortOrder  int
	CreatedAt  time.Time
}

// BlockInput is a client-submitted block in a full-replace save. Position in
// the submitted slice determines the stored sort order.
type BlockInput struct {
	BlockType string          `json:"blockType"`
	Content   string          `json:"content"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// DocumentVersion is an immutable snapshot of a document's full block list.
// Rows are only ever inserted and read; version_number is unique per document
// at the storage layer.
type DocumentVersion struct {
	ID            string
	DocumentID    string
	VersionNumber int
	Snapshot      json.RawMessage
	ChangeSummary string
	CreatedBy     string
	CreatedAt     time.Time
}
