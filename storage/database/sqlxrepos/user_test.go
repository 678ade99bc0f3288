package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/user"
)

func TestUserRepository_CreateUser_unique(t *testing.T) {
	repos := openTestDB(t)
	ctx := context.Background()
	createUser(t, repos, user.RoleStudent, "kabila", nil)

	now := time.Now().UTC()
	base := user.User{
		FirstName: "Other", LastName: "Student", Role: user.RoleStudent, IsActive: true,
		PasswordHash: []byte("hash"), CreatedAt: now, UpdatedAt: now,
	}

	tests := []struct {
		name            string
		username, email string
		wantErr         error
	}{
		{"username taken", "kabila", "other@test.cd", user.ErrUsernameExists},
		{"email taken", "other", "kabila@test.cd", user.ErrEmailExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr := base
			usr.Username, usr.Email = tt.username, tt.email
			_, err := repos.Users.CreateUser(ctx, usr)
			assert.Equal(t, tt.wantErr, err)
		})
	}

	for _, uname := range []string{"noemail1", "noemail2"} {
		usr := base
		usr.Username = uname
		_, err := repos.Users.CreateUser(ctx, usr)
		assert.NoError(t, err, "empty emails do not collide")
	}
}

func TestUserRepository_SetStudentClass(t *testing.T) {
	repos := openTestDB(t)
	ctx := context.Background()
	from := createClass(t, repos, "9-A")
	to := createClass(t, repos, "9-B")
	mathsA := createCourse(t, repos, "MAT101", nil, &from.ID)
	mathsB := createCourse(t, repos, "MAT102", nil, &to.ID)
	student := createUser(t, repos, user.RoleStudent, "student", &from.ID)

	assert.ElementsMatch(t, []string{mathsA.ID}, student.CourseIDs)

	usr, err := repos.Users.SetStudentClass(ctx, student.ID, &to.ID)
	require.NoError(t, err)
	if assert.NotNil(t, usr.ClassID) {
		assert.Equal(t, to.ID, *usr.ClassID)
	}
	assert.ElementsMatch(t, []string{mathsB.ID}, usr.CourseIDs)

	usr, err = repos.Users.SetStudentClass(ctx, student.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, usr.ClassID)
	assert.Empty(t, usr.CourseIDs)

	_, err = repos.Users.SetStudentClass(ctx, "6a3c1d0e-9a55-4c2b-8d6b-4f2d0f4d2b11", &to.ID)
	assert.Equal(t, user.ErrNotFound, err)
}
