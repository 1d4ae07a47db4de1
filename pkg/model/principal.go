package model

import (
	"context"

	"github.com/openparish/backend/pkg/contextkeys"
)

// Principal is the resolved identity of a request's caller. It is
// created once per request by the auth middleware and discarded at
// response time; it must never be cached across requests.
//
// A nil *Principal means the caller is anonymous.
type Principal struct {
	ID       int64
	Role     Role
	GroupIDs []int64
}

// InGroup reports whether the principal is a member of the given group.
func (p *Principal) InGroup(groupID int64) bool {
	if p == nil {
		return false
	}
	for _, id := range p.GroupIDs {
		if id == groupID {
			return true
		}
	}
	return false
}

// roleRank maps an optional role to its ordinal. Anonymous callers and
// "no role required" both rank at -1, so a nil minimum admits everyone
// while RoleNone already requires a logged-in user.
func roleRank(p *Principal) int {
	if p == nil {
		return -1
	}
	return int(p.Role)
}

// HasRole reports whether the principal meets the given minimum role.
// A nil minimum means no role is required.
func HasRole(p *Principal, minimum *Role) bool {
	required := -1
	if minimum != nil {
		required = int(*minimum)
	}
	return roleRank(p) >= required
}

// PrincipalFromContext extracts the principal resolved by the auth
// middleware, or nil for anonymous requests.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(contextkeys.PrincipalKey).(*Principal)
	return p
}

// WithPrincipal attaches a resolved principal to the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextkeys.PrincipalKey, p)
}

// RolePtr is a convenience for building field descriptors and
// permission checks that take an optional minimum role.
func RolePtr(r Role) *Role {
	return &r
}
