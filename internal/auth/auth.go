// Package auth verifies client credentials and applies the network-level
// guards (IP allow-list, per-client rate limit) that run before them.
package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Role is the permission level of an authenticated principal.
type Role string

// Known roles. Admins may write; viewers may only read.
const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

// Allows reports whether r satisfies the required role.
func (r Role) Allows(required Role) bool {
	if required == RoleViewer {
		return r == RoleViewer || r == RoleAdmin
	}
	return r == required
}

// Authenticator verifies a principal/secret pair.
type Authenticator interface {
	Verify(principal, secret string) bool
}

// RoleResolver is implemented by authenticators that distinguish roles.
type RoleResolver interface {
	Role(principal string) (Role, bool)
}

// RoleOf returns the role of a verified principal. Authenticators without
// role support grant admin to every principal they verify.
func RoleOf(a Authenticator, principal string) Role {
	if rr, ok := a.(RoleResolver); ok {
		if role, ok := rr.Role(principal); ok {
			return role
		}
		return ""
	}
	return RoleAdmin
}

// Principal is a configured identity.
type Principal struct {
	Name   string
	Secret string
	Role   Role
}

type account struct {
	secret []byte
	hashed bool
	role   Role
}

// Static authenticates against a fixed set of principals. Secrets that look
// like bcrypt hashes ("$2a$", "$2b$", "$2y$") are compared with bcrypt; any
// other secret is compared in constant time.
type Static struct {
	accounts map[string]account
}

var (
	_ Authenticator = (*Static)(nil)
	_ RoleResolver  = (*Static)(nil)
)

// dummyHash keeps unknown principals on the same cost path as known ones.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("sensorboard"), bcrypt.MinCost)

// NewStatic builds a Static authenticator. Principals with an empty name or
// secret are skipped, so an unset viewer simply does not exist.
func NewStatic(principals ...Principal) (*Static, error) {
	s := &Static{accounts: make(map[string]account, len(principals))}
	for _, p := range principals {
		if p.Name == "" || p.Secret == "" {
			continue
		}
		if p.Role != RoleAdmin && p.Role != RoleViewer {
			return nil, fmt.Errorf("%w: %q has unknown role %q", ErrInvalidPrincipal, p.Name, p.Role)
		}
		if _, dup := s.accounts[p.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate principal %q", ErrInvalidPrincipal, p.Name)
		}
		acc := account{secret: []byte(p.Secret), role: p.Role}
		if isBcrypt(p.Secret) {
			if _, err := bcrypt.Cost(acc.secret); err != nil {
				return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPrincipal, p.Name, err)
			}
			acc.hashed = true
		}
		s.accounts[p.Name] = acc
	}
	return s, nil
}

// Verify implements Authenticator.
func (s *Static) Verify(principal, secret string) bool {
	acc, ok := s.accounts[principal]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(secret))
		return false
	}
	if acc.hashed {
		return bcrypt.CompareHashAndPassword(acc.secret, []byte(secret)) == nil
	}
	return subtle.ConstantTimeCompare(acc.secret, []byte(secret)) == 1
}

// Role implements RoleResolver.
func (s *Static) Role(principal string) (Role, bool) {
	acc, ok := s.accounts[principal]
	return acc.role, ok
}

// Len returns the number of configured principals.
func (s *Static) Len() int { return len(s.accounts) }

// HashSecret returns a bcrypt hash suitable for the password settings.
func HashSecret(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func isBcrypt(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
