package app

import (
	"context"
	"net/http"

	"handbook/api/internal/rbac"
)

// ScopeType names the hierarchy level an access check is anchored to.
type ScopeType string

const (
	ScopeWorkspace ScopeType = "workspace"
	ScopeCategory  ScopeType = "category"
	ScopeDocument  ScopeType = "document"
)

// ResolveRole walks the scope up to its owning workspace and returns the
// caller's effective role there. The workspace owner is owner regardless of
// any membership row. A user with no relationship to the workspace gets
// RoleNone with a nil error; a scope that does not exist surfaces as
// sql.ErrNoRows from the store, which is a different condition.
func (s *Service) ResolveRole(ctx context.Context, userID string, scope ScopeType, scopeID string) (rbac.Role, error) {
	workspaceID, err := s.workspaceIDForScope(ctx, scope, scopeID)
	if err != nil {
		return rbac.RoleNone, err
	}

	workspace, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return rbac.RoleNone, err
	}
	if workspace.OwnerID == userID {
		return rbac.RoleOwner, nil
	}

	role, err := s.store.GetMembershipRole(ctx, workspaceID, userID)
	if err != nil {
		return rbac.RoleNone, err
	}
	if role == "" {
		return rbac.RoleNone, nil
	}
	return rbac.Normalize(role), nil
}

// HasAccess reports whether the caller's resolved role satisfies required.
func (s *Service) HasAccess(ctx context.Context, userID string, scope ScopeType, scopeID string, required rbac.Role) (bool, error) {
	role, err := s.ResolveRole(ctx, userID, scope, scopeID)
	if err != nil {
		return false, err
	}
	return rbac.Allows(role, required), nil
}

func (s *Service) workspaceIDForScope(ctx context.Context, scope ScopeType, scopeID string) (string, error) {
	switch scope {
	case ScopeCategory:
		return s.store.WorkspaceIDForCategory(ctx, scopeID)
	case ScopeDocument:
		return s.store.WorkspaceIDForDocument(ctx, scopeID)
	default:
		return scopeID, nil
	}
}

// requireRole turns an insufficient role into a Forbidden domain error.
// Missing scopes pass the store error through untouched so the transport
// layer can answer 404 instead of leaking whether access would have been
// granted.
func (s *Service) requireRole(ctx context.Context, userID string, scope ScopeType, scopeID string, required rbac.Role) error {
	role, err := s.ResolveRole(ctx, userID, scope, scopeID)
	if err != nil {
		return err
	}
	if !rbac.Allows(role, required) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return nil
}
