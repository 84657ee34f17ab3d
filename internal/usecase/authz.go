package usecase

import "career-advisor-platform/internal/domain/model"

// Authorizer decides administrative access for a principal.
type Authorizer interface {
	IsAdmin(p *model.Principal) bool
}

// RoleAuthorizer grants admin to principals carrying AdminRole.
type RoleAuthorizer struct {
	AdminRole string
}

func (a RoleAuthorizer) IsAdmin(p *model.Principal) bool {
	return p.HasRole(a.AdminRole)
}
