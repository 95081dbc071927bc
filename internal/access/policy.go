// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package access

import (
	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/auth"
)

// Operation names guarded by the HTTP layer.
const (
	OpUsersList      = "users:list"
	OpUsersGet       = "users:get"
	OpUsersRole      = "users:role:update"
	OpUsersStatus    = "users:status:update"
	OpUsersUnlock    = "users:unlock"
	OpUsersDelete    = "users:delete"
	OpSelfUpdate     = "self:profile:update"
	OpSelfDeactivate = "self:deactivate"
	OpSelfSessions   = "self:sessions:list"
)

// Rule admits the listed roles to every operation matching Operation.
// Operation is a glob with ':' as the segment separator.
type Rule struct {
	Operation string      `koanf:"operation" json:"operation" jsonschema:"required"`
	Roles     []auth.Role `koanf:"roles" json:"roles" jsonschema:"required,minItems=1"`
}

// DefaultRules returns the built-in route table. Self-service operations
// admit every role.
func DefaultRules() []Rule {
	return []Rule{
		{Operation: "self:**", Roles: auth.Roles()},
		{Operation: OpUsersList, Roles: []auth.Role{auth.RoleAdmin, auth.RoleModerator}},
		{Operation: OpUsersGet, Roles: []auth.Role{auth.RoleAdmin, auth.RoleModerator}},
		{Operation: "users:**", Roles: []auth.Role{auth.RoleAdmin}},
	}
}

type compiledRule struct {
	Rule
	glob glob.Glob
}

// Policy maps operations to the roles allowed to perform them. The first
// matching rule wins; an operation no rule matches is denied.
type Policy struct {
	rules []compiledRule
}

// NewPolicy compiles rules in order.
func NewPolicy(rules []Rule) (*Policy, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		if len(r.Roles) == 0 {
			return nil, oops.In("access").
				Code("INVALID_ACCESS_RULE").
				With("index", i).
				With("operation", r.Operation).
				Errorf("rule admits no roles")
		}
		for _, role := range r.Roles {
			if _, err := auth.ParseRole(string(role)); err != nil {
				return nil, oops.In("access").
					Code("INVALID_ACCESS_RULE").
					With("index", i).
					With("operation", r.Operation).
					Errorf("unknown role %q", role)
			}
		}
		g, err := glob.Compile(r.Operation, ':')
		if err != nil {
			return nil, oops.In("access").
				Code("INVALID_ACCESS_RULE").
				With("index", i).
				With("pattern", r.Operation).
				Wrap(err)
		}
		compiled = append(compiled, compiledRule{Rule: r, glob: g})
	}
	return &Policy{rules: compiled}, nil
}

// DefaultPolicy returns the policy built from DefaultRules.
//
// Panics if a default pattern fails to compile (programming error).
func DefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultRules())
	if err != nil {
		panic("invalid default access rule: " + err.Error())
	}
	return p
}

// Authorize decides whether account may perform operation.
func (p *Policy) Authorize(account *auth.Account, operation string) Decision {
	d := p.decide(account, operation)
	d.Operation = operation
	recordDecision(operation, d.Reason)
	return d
}

func (p *Policy) decide(account *auth.Account, operation string) Decision {
	for _, r := range p.rules {
		if r.glob.Match(operation) {
			return Check(account, r.Roles...)
		}
	}
	// Fail closed, but an anonymous caller still learns it must authenticate.
	if d := Check(account); !d.IsAllowed() {
		return d
	}
	return Decision{Reason: DenyForbidden}
}
