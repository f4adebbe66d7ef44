package app

import (
	"context"
	"encoding/json"
	"time"

	"handbook/api/internal/auth"
	"handbook/api/internal/authpw"
	"handbook/api/internal/blob"
	"handbook/api/internal/config"
	"handbook/api/internal/email"
	"handbook/api/internal/logger"
	"handbook/api/internal/search"
	"handbook/api/internal/session"
	"handbook/api/internal/store"
	"handbook/api/internal/util"
)

// Session is the resolved identity attached to an authenticated request.
// Roles are not part of it: access is resolved per workspace on every call.
type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	JTI          string
	ExpiresAt    time.Time
}

// SaveBlocksInput is the body of a full-replace block save.
type SaveBlocksInput struct {
	Blocks        []store.BlockInput `json:"blocks"`
	CreateVersion bool               `json:"createVersion"`
	ChangeSummary string             `json:"changeSummary"`
}

type dataStore interface {
	CreateUser(ctx context.Context, user store.User) error
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	VerifyUserEmail(ctx context.Context, token string) error

	InsertWorkspace(ctx context.Context, workspace store.Workspace) error
	GetWorkspace(ctx context.Context, workspaceID string) (store.Workspace, error)
	ListWorkspacesForUser(ctx context.Context, userID string) ([]store.Workspace, error)
	UpdateWorkspace(ctx context.Context, workspaceID, name, status string) error
	DeleteWorkspace(ctx context.Context, workspaceID string) error
	GetMembershipRole(ctx context.Context, workspaceID, userID string) (string, error)
	UpsertMembership(ctx context.Context, membership store.Membership) error
	DeleteMembership(ctx context.Context, workspaceID, userID string) (bool, error)
	ListMemberships(ctx context.Context, workspaceID string) ([]store.Membership, error)
	WorkspaceIDForCategory(ctx context.Context, categoryID string) (string, error)
	WorkspaceIDForDocument(ctx context.Context, documentID string) (string, error)

	InsertCategory(ctx context.Context, category store.Category) error
	GetCategory(ctx context.Context, categoryID string) (store.Category, error)
	ListCategories(ctx context.Context, workspaceID string) ([]store.Category, error)
	UpdateCategory(ctx context.Context, categoryID, name string, sortOrder int) error
	DeleteCategory(ctx context.Context, categoryID string) error

	InsertDocument(ctx context.Context, item store.Document) error
	GetDocument(ctx context.Context, documentID string) (store.Document, error)
	ListDocumentsByCategory(ctx context.Context, categoryID string) ([]store.Document, error)
	UpdateDocument(ctx context.Context, documentID, title, status, visibility string) error
	DeleteDocument(ctx context.Context, documentID string) error
	CountDocuments(ctx context.Context) (int, error)

	ListBlocks(ctx context.Context, documentID string) ([]store.Block, error)
	SaveDocumentBlocks(ctx context.Context, documentID string, inputs []store.BlockInput, stamp *store.VersionStamp) (store.SaveResult, error)
	RestoreDocumentVersion(ctx context.Context, documentID, versionID string) ([]store.Block, error)
	GetVersion(ctx context.Context, documentID, versionID string) (store.DocumentVersion, error)
	ListVersions(ctx context.Context, documentID string) ([]store.DocumentVersion, error)

	Ping(ctx context.Context) error
}

type sessionStore interface {
	Save(ctx context.Context, tokenHash string, data session.TokenData, expiresAt time.Time) error
	Lookup(ctx context.Context, tokenHash string) (session.TokenData, error)
	Revoke(ctx context.Context, tokenHash string) error
	RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
	Ping(ctx context.Context) error
}

type searchIndex interface {
	Search(q search.Query) search.Response
	IndexDocument(doc search.DocumentRecord)
	DeleteDocument(id string)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	search   searchIndex
	blob     *blob.Storage
	mail     *email.Service
	authpw   *authpw.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, sessions *session.RedisStore, searchSvc *search.Service, blobStorage *blob.Storage, mail *email.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		search:   searchSvc,
		blob:     blobStorage,
		mail:     mail,
		authpw:   authpw.NewService(dataStore),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) PingSessions(ctx context.Context) error {
	return s.sessions.Ping(ctx)
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) SMTPConfigured() bool {
	return s.mail != nil && s.mail.IsConfigured()
}

// Bootstrap seeds a demo workspace on an empty database so a fresh install
// has something to click through.
func (s *Service) Bootstrap(ctx context.Context) error {
	count, err := s.store.CountDocuments(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	owner := store.User{
		ID:              util.NewID("usr"),
		DisplayName:     "Avery",
		Email:           "avery@handbook.local",
		PasswordHash:    "*",
		IsEmailVerified: true,
	}
	if existing, err := s.store.GetUserByEmail(ctx, owner.Email); err == nil {
		owner = existing
	} else if err := s.store.CreateUser(ctx, owner); err != nil {
		return err
	}

	workspace := store.Workspace{
		ID:      util.NewID("wsp"),
		Name:    "Acme Handbook",
		OwnerID: owner.ID,
		Status:  "active",
	}
	if err := s.store.InsertWorkspace(ctx, workspace); err != nil {
		return err
	}

	category := store.Category{
		ID:          util.NewID("cat"),
		WorkspaceID: workspace.ID,
		Name:        "Engineering",
		SortOrder:   1,
	}
	if err := s.store.InsertCategory(ctx, category); err != nil {
		return err
	}

	document := store.Document{
		ID:         util.NewID("doc"),
		CategoryID: category.ID,
		Title:      "Onboarding Guide",
		Status:     "published",
		Visibility: "workspace",
		CreatedBy:  owner.ID,
	}
	if err := s.store.InsertDocument(ctx, document); err != nil {
		return err
	}

	seedBlocks := []store.BlockInput{
		{BlockType: "text", Content: "Welcome to Acme. This handbook is the single source of truth for how we work."},
		{BlockType: "text", Content: "Start with the environment setup checklist, then pick up a starter task from the board."},
	}
	if _, err := s.store.SaveDocumentBlocks(ctx, document.ID, seedBlocks, nil); err != nil {
		return err
	}

	logger.Sugar.Infow("seeded demo workspace", "workspace", workspace.ID, "document", document.ID)
	return nil
}

// CreateSession mints an access/refresh token pair for a verified user.
func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	data, err := s.sessions.Lookup(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	// Rotation: the presented refresh token is spent whether or not a new
	// pair can be issued.
	if err := s.sessions.Revoke(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, data.UserID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Logout(ctx context.Context, sess Session, refreshToken string) error {
	if refreshToken != "" {
		if err := s.sessions.Revoke(ctx, auth.HashToken(refreshToken)); err != nil {
			return err
		}
	}
	if sess.JTI != "" {
		if err := s.sessions.RevokeAccessToken(ctx, sess.JTI, sess.ExpiresAt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.DisplayName, jti, expiresAt)
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.Save(ctx, auth.HashToken(refresh), session.TokenData{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
	}, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.sessions.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		JTI:       claims.JTI,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// reindexDocument refreshes the search index entry for a document from its
// current blocks. Failures are logged, never surfaced: search lags, it does
// not block saves.
func (s *Service) reindexDocument(ctx context.Context, doc store.Document, blocks []store.Block) {
	if s.search == nil {
		return
	}
	workspaceID, err := s.store.WorkspaceIDForCategory(ctx, doc.CategoryID)
	if err != nil {
		logger.Sugar.Warnw("reindex: resolve workspace", "document", doc.ID, "error", err)
		return
	}
	body := ""
	for _, block := range blocks {
		if block.BlockType != "text" {
			continue
		}
		if body != "" {
			body += "\n"
		}
		body += block.Content
	}
	s.search.IndexDocument(search.DocumentRecord{
		ID:          doc.ID,
		Title:       doc.Title,
		Body:        body,
		WorkspaceID: workspaceID,
		CategoryID:  doc.CategoryID,
		Status:      doc.Status,
	})
}

// blockView is the wire shape of a block.
type blockView struct {
	ID        string          `json:"id"`
	BlockType string          `json:"blockType"`
	Content   string          `json:"content"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	SortOrder int             `json:"sortOrder"`
	CreatedAt time.Time       `json:"createdAt"`
}

func blockViews(blocks []store.Block) []blockView {
	views := make([]blockView, 0, len(blocks))
	for _, block := range blocks {
		views = append(views, blockView{
			ID:        block.ID,
			BlockType: block.BlockType,
			Content:   block.Content,
			Metadata:  block.Metadata,
			SortOrder: block.SortOrder,
			CreatedAt: block.CreatedAt,
		})
	}
	return views
}

type versionView struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"documentId"`
	VersionNumber int       `json:"versionNumber"`
	ChangeSummary string    `json:"changeSummary,omitempty"`
	CreatedBy     string    `json:"createdBy"`
	CreatedAt     time.Time `json:"createdAt"`
}

func versionViewOf(v store.DocumentVersion) versionView {
	return versionView{
		ID:            v.ID,
		DocumentID:    v.DocumentID,
		VersionNumber: v.VersionNumber,
		ChangeSummary: v.ChangeSummary,
		CreatedBy:     v.CreatedBy,
		CreatedAt:     v.CreatedAt,
	}
}

type documentView struct {
	ID         string    `json:"id"`
	CategoryID string    `json:"categoryId"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	Visibility string    `json:"visibility"`
	CreatedBy  string    `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func documentViewOf(d store.Document) documentView {
	return documentView{
		ID:         d.ID,
		CategoryID: d.CategoryID,
		Title:      d.Title,
		Status:     d.Status,
		Visibility: d.Visibility,
		CreatedBy:  d.CreatedBy,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}
