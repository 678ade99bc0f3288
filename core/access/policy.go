// Package access holds the route authorization policy shared by the API and the pages.
package access

import (
	"sort"
	"strings"

	"github.com/trezcool/academia/core/user"
)

// Identity is the authenticated principal of a request, as carried by the session token.
type Identity struct {
	UserID string
	Name   string
	Role   string
}

// Level is the minimal access required by a route.
type Level int

const (
	Authenticated Level = iota // any signed in user
	Public
	AdminOnly
	TeacherOnly
	StudentOnly
)

func (l Level) String() string {
	switch l {
	case Public:
		return "public"
	case AdminOnly:
		return "admin"
	case TeacherOnly:
		return "teacher"
	case StudentOnly:
		return "student"
	default:
		return "authenticated"
	}
}

// role returns the role a Level requires; empty for Public and Authenticated.
func (l Level) role() string {
	switch l {
	case AdminOnly:
		return user.RoleAdmin
	case TeacherOnly:
		return user.RoleTeacher
	case StudentOnly:
		return user.RoleStudent
	default:
		return ""
	}
}

type Decision int

const (
	Allow Decision = iota
	Unauthenticated
	Forbidden
)

type Rule struct {
	Prefix string
	Level  Level
}

// Policy is a route prefix table, matched by longest prefix on path segment boundaries.
type Policy struct {
	rules []Rule
}

func NewPolicy(rules ...Rule) *Policy {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i].Prefix) > len(sorted[j].Prefix) })
	return &Policy{rules: sorted}
}

// DefaultPolicy is the app's authorization table.
var DefaultPolicy = NewPolicy(
	// pages
	Rule{Prefix: "/", Level: Public},
	Rule{Prefix: "/login", Level: Public},
	Rule{Prefix: "/logout", Level: Public},
	Rule{Prefix: "/static", Level: Public},
	Rule{Prefix: "/dashboard", Level: Authenticated},
	Rule{Prefix: "/messages", Level: Authenticated},
	Rule{Prefix: "/admin", Level: AdminOnly},
	Rule{Prefix: "/teacher", Level: TeacherOnly},
	Rule{Prefix: "/student", Level: StudentOnly},

	// API
	Rule{Prefix: "/api", Level: Authenticated},
	Rule{Prefix: "/api/auth", Level: Authenticated},
	Rule{Prefix: "/api/auth/login", Level: Public},
	Rule{Prefix: "/api/auth/register", Level: Public},
	Rule{Prefix: "/api/auth/password-reset", Level: Public},
	Rule{Prefix: "/api/auth/password-reset-confirm", Level: Public},
	Rule{Prefix: "/api/me", Level: Authenticated},
	Rule{Prefix: "/api/messages", Level: Authenticated},
	Rule{Prefix: "/api/admin", Level: AdminOnly},
	Rule{Prefix: "/api/teacher", Level: TeacherOnly},
	Rule{Prefix: "/api/student", Level: StudentOnly},
)

// Lookup returns the Level of the rule matching path.
// Paths no rule matches require authentication.
func (p *Policy) Lookup(path string) Level {
	path = cleanPath(path)
	for _, r := range p.rules {
		if matchPrefix(path, r.Prefix) {
			return r.Level
		}
	}
	return Authenticated
}

// Evaluate decides whether the identity may access path. A nil identity is anonymous.
func (p *Policy) Evaluate(path string, id *Identity) Decision {
	return Check(p.Lookup(path), id)
}

// Check decides whether the identity satisfies the Level.
func Check(lvl Level, id *Identity) Decision {
	if lvl == Public {
		return Allow
	}
	if id == nil || id.UserID == "" {
		return Unauthenticated
	}
	if role := lvl.role(); role != "" && id.Role != role {
		return Forbidden
	}
	return Allow
}

func cleanPath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

// matchPrefix matches whole path segments: "/admin" matches "/admin" and "/admin/users", not "/administrator".
// The root prefix only matches the root path.
func matchPrefix(path, prefix string) bool {
	if prefix == "/" {
		return path == "/"
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
