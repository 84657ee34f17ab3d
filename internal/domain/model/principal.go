package model

// Principal is the authenticated caller as asserted by the identity provider.
type Principal struct {
	UserID string
	Email  string
	Roles  []string
}

func (p *Principal) HasRole(role string) bool {
	if p == nil || role == "" {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}
