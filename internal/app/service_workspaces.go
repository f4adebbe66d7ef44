package app

import (
	"context"
	"net/http"
	"strings"

	"handbook/api/internal/logger"
	"handbook/api/internal/rbac"
	"handbook/api/internal/search"
	"handbook/api/internal/store"
	"handbook/api/internal/util"
)

// Workspaces

func (s *Service) CreateWorkspace(ctx context.Context, sess Session, name string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	workspace := store.Workspace{
		ID:      util.NewID("wsp"),
		Name:    name,
		OwnerID: sess.UserID,
		Status:  "active",
	}
	if err := s.store.InsertWorkspace(ctx, workspace); err != nil {
		return nil, err
	}
	return map[string]any{"workspace": workspaceViewOf(workspace)}, nil
}

func (s *Service) ListWorkspaces(ctx context.Context, sess Session) (map[string]any, error) {
	workspaces, err := s.store.ListWorkspacesForUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	views := make([]workspaceView, 0, len(workspaces))
	for _, workspace := range workspaces {
		views = append(views, workspaceViewOf(workspace))
	}
	return map[string]any{"workspaces": views}, nil
}

func (s *Service) GetWorkspace(ctx context.Context, sess Session, workspaceID string) (map[string]any, error) {
	if err := s.requireRole(ctx, sess.UserID, ScopeWorkspace, workspaceID, rbac.RoleViewer); err != nil {
		return nil, err
	}
	workspace, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	role, err := s.ResolveRole(ctx, sess.UserID, ScopeWorkspace, workspaceID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"workspace": workspaceViewOf(workspace), "role": role}, nil
}

func (s *Service) UpdateWorkspace(ctx context.Context, sess Session, workspaceID, name, status string) (map[string]any, error) {
	if err := s.requireRole(ctx, sess.UserID, ScopeWorkspace, workspaceID, rbac.RoleAdmin); err != nil {
		return nil, err
	}
	current, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name == "" {
		name = current.Name
	}
	if status = strings.TrimSpace(status); status == "" {
		status = current.Status
	}
	if err := s.store.UpdateWorkspace(ctx, workspaceID, name, status); err != nil {
		return nil, err
	}
	current.Name = name
	current.Status = status
	return map[string]any{"workspace": workspaceViewOf(current)}, nil
}

// DeleteWorkspace is owner-only. Admins manage a workspace; only the owner
// can destroy it.
func (s *Service) DeleteWorkspace(ctx context.Context, sess Session, workspaceID string) error {
	if err := s.requireRole(ctx, sess.UserID, ScopeWorkspace, workspaceID, rbac.RoleOwner); err != nil {
		return err
	}
	return s.store.DeleteWorkspace(ctx, workspaceID)
}

// Memberships

func (s *Service) ListMembers(ctx context.Context, sess Session, workspaceID string) (map[string]any, error) {
	if err := s.requireRole(ctx, sess.UserID, ScopeWorkspace, workspaceID, rbac.RoleViewer); err != nil {
		return nil, err
	}
	members, err := s.store.ListMemberships(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	views := make([]memberView, 0, len(members))
	for _, member := range members {
		views = append(views, memberView{
			UserID: member.UserID,
			Email:  member.UserEmail,
			Name:   member.UserName,
			Role:   member.Role,
		})
	}
	return map[string]any{"members": views}, nil
}

// AddMember grants or changes a member's role. Adding the same user again is
// an upsert, not an error. The owner never appears as a membership row.
func (s *Service) AddMember(ctx context.Context, sess Session, workspaceID, userEmail, role string) (map[string]any, error) {
	if err := s.requireRole(ctx, sess.UserID, ScopeWorkspace, workspaceID, rbac.RoleAdmin); err != nil {
		return nil, err
	}

	normalized := rbac.Normalize(role)
	if !rbac.Valid(normalized) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "role must be one of viewer, writer, editor, admin", nil)
	}

	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(userEmail))
	if err != nil {
		return nil, domainError(http.StatusNotFound, "USER_NOT_FOUND", "No account with that email", nil)
	}

	workspace, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if workspace.OwnerID == user.ID {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "The workspace owner's role is implicit and cannot be assigned", nil)
	}

	membership := store.Membership{
		ID:          util.NewID("mbr"),
		WorkspaceID: workspaceID,
		UserID:      user.ID,
		Role:        string(normalized),
	}
	if err := s.store.UpsertMembership(ctx, membership); err != nil {
		return nil, err
	}

	if s.SMTPConfigured() {
		go func() {
			if err := s.mail.SendWorkspaceInvite(user.Email, workspace.Name, string(normalized), sess.UserName); err != nil {
				logger.Sugar.Warnw("send workspace invite", "workspace", workspaceID, "to", user.Email, "error", err)
			}
		}()
	}

	return map[string]any{"member": memberView{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.DisplayName,
		Role:   string(normalized),
	}}, nil
}

func (s *Service) RemoveMember(ctx context.Context, sess Session, workspaceID, userID string) error {
	if err := s.requireRole(ctx, sess.UserID, ScopeWorkspace, workspaceID, rbac.RoleAdmin); err != nil {
		return err
	}
	removed, err := s.store.DeleteMembership(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return domainError(http.StatusNotFound, "NOT_FOUND", "Membership not found", nil)
	}
	return nil
}

// Categories

func (s *Service) CreateCategory(ctx context.Context, sess Session, workspaceID, name string, sortOrder int) (map[string]any, error) {
	if err := s.requireRole(ctx, sess.UserID, ScopeWorkspace, workspaceID, rbac.RoleEditor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	category := store.Category{
		ID:          util.NewID("cat"),
		WorkspaceID: workspaceID,
		Name:        name,
		SortOrder:   sortOrder,
	}
	if err := s.store.InsertCategory(ctx, category); err != nil {
		return nil, err
	}
	return map[string]any{"category": categoryViewOf(category)}, nil
}

func (s *Service) ListCategories(ctx context.Context, sess Session, workspaceID string) (map[string]any, error) {
	if err := s.requireRole(ctx, sess.UserID, ScopeWorkspace, workspaceID, rbac.RoleViewer); err != nil {
		return nil, err
	}
	categories, err := s.store.ListCategories(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	views := make([]categoryView, 0, len(categories))
	for _, category := range categories {
		views = append(views, categoryViewOf(category))
	}
	return map[string]any{"categories": views}, nil
}

func (s *Service) UpdateCategory(ctx context.Context, sess Session, categoryID, name string, sortOrder *int) (map[string]any, error) {
	if err := s.requireRole(ctx, sess.UserID, ScopeCategory, categoryID, rbac.RoleEditor); err != nil {
		return nil, err
	}
	current, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name == "" {
		name = current.Name
	}
	order := current.SortOrder
	if sortOrder != nil {
		order = *sortOrder
	}
	if err := s.store.UpdateCategory(ctx, categoryID, name, order); err != nil {
		return nil, err
	}
	current.Name = name
	current.SortOrder = order
	return map[string]any{"category": categoryViewOf(current)}, nil
}

// DeleteCategory removes the category and, by cascade, every document and
// block under it. Version history of those documents goes with them.
func (s *Service) DeleteCategory(ctx context.Context, sess Session, categoryID string) error {
	if err := s.requireRole(ctx, sess.UserID, ScopeCategory, categoryID, rbac.RoleEditor); err != nil {
		return err
	}
	documents, err := s.store.ListDocumentsByCategory(ctx, categoryID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCategory(ctx, categoryID); err != nil {
		return err
	}
	if s.search != nil {
		for _, document := range documents {
			s.search.DeleteDocument(document.ID)
		}
	}
	return nil
}

// Documents

func (s *Service) CreateDocument(ctx context.Context, sess Session, categoryID, title, visibility string) (map[string]any, error) {
	if err := s.requireRole(ctx, sess.UserID, ScopeCategory, categoryID, rbac.RoleWriter); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if visibility == "" {
		visibility = "workspace"
	}
	document := store.Document{
		ID:         util.NewID("doc"),
		CategoryID: categoryID,
		Title:      title,
		Status:     "draft",
		Visibility: visibility,
		CreatedBy:  sess.UserID,
	}
	if err := s.store.InsertDocument(ctx, document); err != nil {
		return nil, err
	}
	return map[string]any{"document": documentViewOf(document)}, nil
}

func (s *Service) ListDocuments(ctx context.Context, sess Session, categoryID string) (map[string]any, error) {
	if err := s.requireRole(ctx, sess.UserID, ScopeCategory, categoryID, rbac.RoleViewer); err != nil {
		return nil, err
	}
	documents, err := s.store.ListDocumentsByCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	views := make([]documentView, 0, len(documents))
	for _, document := range documents {
		views = append(views, documentViewOf(document))
	}
	return map[string]any{"documents": views}, nil
}

func (s *Service) GetDocument(ctx context.Context, sess Session, documentID string) (map[string]any, error) {
	if err := s.requireRole(ctx, sess.UserID, ScopeDocument, documentID, rbac.RoleViewer); err != nil {
		return nil, err
	}
	document, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	blocks, err := s.store.ListBlocks(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"document": documentViewOf(document),
		"blocks":   blockViews(blocks),
	}, nil
}

func (s *Service) UpdateDocument(ctx context.Context, sess Session, documentID, title, status, visibility string) (map[string]any, error) {
	if err := s.requireRole(ctx, sess.UserID, ScopeDocument, documentID, rbac.RoleWriter); err != nil {
		return nil, err
	}
	current, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if title = strings.TrimSpace(title); title == "" {
		title = current.Title
	}
	if status == "" {
		status = current.Status
	}
	if visibility == "" {
		visibility = current.Visibility
	}
	if err := s.store.UpdateDocument(ctx, documentID, title, status, visibility); err != nil {
		return nil, err
	}
	current.Title = title
	current.Status = status
	current.Visibility = visibility

	blocks, err := s.store.ListBlocks(ctx, documentID)
	if err == nil {
		s.reindexDocument(ctx, current, blocks)
	}
	return map[string]any{"document": documentViewOf(current)}, nil
}

func (s *Service) DeleteDocument(ctx context.Context, sess Session, documentID string) error {
	if err := s.requireRole(ctx, sess.UserID, ScopeDocument, documentID, rbac.RoleEditor); err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteDocument(documentID)
	}
	return nil
}

// Search

func (s *Service) SearchDocuments(ctx context.Context, sess Session, text, workspaceID string, limit, offset int) (search.Response, error) {
	if workspaceID == "" {
		return search.Response{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "workspaceId is required", nil)
	}
	if err := s.requireRole(ctx, sess.UserID, ScopeWorkspace, workspaceID, rbac.RoleViewer); err != nil {
		return search.Response{}, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(search.Query{
		Text:        text,
		WorkspaceID: workspaceID,
		Limit:       limit,
		Offset:      offset,
	}), nil
}

type workspaceView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"ownerId"`
	Status  string `json:"status"`
}

func workspaceViewOf(w store.Workspace) workspaceView {
	return workspaceView{ID: w.ID, Name: w.Name, OwnerID: w.OwnerID, Status: w.Status}
}

type memberView struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

type categoryView struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspaceId"`
	Name        string `json:"name"`
	SortOrder   int    `json:"sortOrder"`
}

func categoryViewOf(c store.Category) categoryView {
	return categoryView{ID: c.ID, WorkspaceID: c.WorkspaceID, Name: c.Name, SortOrder: c.SortOrder}
}
