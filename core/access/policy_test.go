package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/academia/core/user"
)

func TestPolicy_Evaluate(t *testing.T) {
	admin := &Identity{UserID: "1", Role: user.RoleAdmin}
	teacher := &Identity{UserID: "2", Role: user.RoleTeacher}
	student := &Identity{UserID: "3", Role: user.RoleStudent}

	tests := []struct {
		name string
		path string
		id   *Identity
		want Decision
	}{
		{name: "public login", path: "/api/auth/login", want: Allow},
		{name: "public password reset confirm", path: "/api/auth/password-reset-confirm", want: Allow},
		{name: "token refresh needs auth", path: "/api/auth/token-refresh", want: Unauthenticated},
		{name: "root page is public", path: "/", want: Allow},
		{name: "root is not a catch-all", path: "/lol", want: Unauthenticated},
		{name: "admin api anonymous", path: "/api/admin/users", want: Unauthenticated},
		{name: "admin api student", path: "/api/admin/users", id: student, want: Forbidden},
		{name: "admin api teacher", path: "/api/admin/users/", id: teacher, want: Forbidden},
		{name: "admin api admin", path: "/api/admin/users?search=x", id: admin, want: Allow},
		{name: "segment boundary", path: "/api/administrator", id: student, want: Allow},
		{name: "teacher api admin", path: "/api/teacher/courses", id: admin, want: Forbidden},
		{name: "teacher api teacher", path: "/api/teacher/courses", id: teacher, want: Allow},
		{name: "student api", path: "/api/student/points", id: student, want: Allow},
		{name: "student page teacher", path: "/student", id: teacher, want: Forbidden},
		{name: "messages any role", path: "/api/messages/inbox", id: teacher, want: Allow},
		{name: "empty identity", path: "/api/me", id: &Identity{}, want: Unauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultPolicy.Evaluate(tt.path, tt.id))
		})
	}
}

func TestPolicy_Lookup(t *testing.T) {
	p := NewPolicy(
		Rule{Prefix: "/a", Level: AdminOnly},
		Rule{Prefix: "/a/b", Level: Public},
	)
	assert.Equal(t, AdminOnly, p.Lookup("/a"))
	assert.Equal(t, Public, p.Lookup("/a/b/c"))
	assert.Equal(t, Authenticated, p.Lookup("/c"))
	assert.Equal(t, "teacher", TeacherOnly.String())
}
