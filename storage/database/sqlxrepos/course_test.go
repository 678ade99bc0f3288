package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/assignment"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
)

func TestCourseRepository_CreateCourse_codeTaken(t *testing.T) {
	repos := openTestDB(t)
	ctx := context.Background()
	createCourse(t, repos, "MAT101", nil, nil)

	now := time.Now().UTC()
	_, err := repos.Courses.CreateCourse(ctx, course.Course{Name: "Maths", Code: "mat101", CreatedAt: now, UpdatedAt: now})
	assert.Equal(t, course.ErrCodeExists, err, "codes are unique regardless of case")

	other := createCourse(t, repos, "PHY101", nil, nil)
	other.Code = "MAT101"
	_, err = repos.Courses.UpdateCourse(ctx, other)
	assert.Equal(t, course.ErrCodeExists, err)

	assert.Equal(t, course.ErrCodeExists, repos.Courses.CheckCodeUniqueness(ctx, "Mat101"))
	assert.NoError(t, repos.Courses.CheckCodeUniqueness(ctx, "PHY101", other.ID))
}

func TestCourseRepository_UpdateCourse_classChange(t *testing.T) {
	repos := openTestDB(t)
	ctx := context.Background()
	from := createClass(t, repos, "9-A")
	to := createClass(t, repos, "9-B")
	leaving := createUser(t, repos, user.RoleStudent, "leaving", &from.ID)
	arriving := createUser(t, repos, user.RoleStudent, "arriving", &to.ID)
	extra := createUser(t, repos, user.RoleStudent, "extra", nil)
	teacher := createUser(t, repos, user.RoleTeacher, "teacher", nil)

	c := createCourse(t, repos, "MAT101", &teacher.ID, &from.ID)
	assert.ElementsMatch(t, []string{leaving.ID}, c.StudentIDs)
	c, err := repos.Courses.EnrollStudents(ctx, c.ID, extra.ID)
	require.NoError(t, err)

	now := time.Now().UTC()
	a, err := repos.Assignments.CreateAssignment(ctx, assignment.Assignment{
		Title: "Homework", DueDate: now.Add(time.Hour), TeacherID: teacher.ID, CourseID: c.ID, ClassID: &from.ID,
		PointValue: 5, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	c.ClassID = &to.ID
	c.UpdatedAt = now
	c, err = repos.Courses.UpdateCourse(ctx, c)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{arriving.ID, extra.ID}, c.StudentIDs, "individually enrolled students stay")

	a, err = repos.Assignments.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	if assert.NotNil(t, a.ClassID) {
		assert.Equal(t, to.ID, *a.ClassID)
	}
}
