package sqlxrepos

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/class"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/storage/database"
)

// openTestDB connects to the database named by DATABASE_URL, migrates it and empties it.
// Tests are skipped when DATABASE_URL is unset.
func openTestDB(t *testing.T) Repositories {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	db, err := sqlx.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db))
	_, err = db.Exec("TRUNCATE users, branches, classes, courses, badges CASCADE")
	require.NoError(t, err)
	return New(db)
}

func createUser(t *testing.T, repos Repositories, role, uname string, classID *string) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr, err := repos.Users.CreateUser(context.Background(), user.User{
		Username:     uname,
		Email:        uname + "@test.cd",
		FirstName:    "First",
		LastName:     "Last",
		Role:         role,
		ClassID:      classID,
		IsActive:     true,
		PasswordHash: []byte("hash"),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)
	return usr
}

func createClass(t *testing.T, repos Repositories, name string) class.Class {
	t.Helper()
	now := time.Now().UTC()
	cls, err := repos.Classes.CreateClass(context.Background(), class.Class{
		Name:         name,
		AcademicYear: "2024",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)
	return cls
}

func createCourse(t *testing.T, repos Repositories, code string, teacherID, classID *string) course.Course {
	t.Helper()
	now := time.Now().UTC()
	c, err := repos.Courses.CreateCourse(context.Background(), course.Course{
		Name:      "Course " + code,
		Code:      code,
		TeacherID: teacherID,
		ClassID:   classID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)
	return c
}
