package class_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/class"
	"github.com/trezcool/academia/core/user"
	emailsvc "github.com/trezcool/academia/services/email"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
	"github.com/trezcool/academia/testutil"
)

func setup(t *testing.T) (testutil.Services, inmemdb.Repositories) {
	t.Helper()
	conf := core.NewTestConfig()
	repos := inmemdb.Open().Repositories()
	return testutil.NewServices(conf, repos, emailsvc.NewConsoleServiceMock(conf, core.NewStdLogger(nil))), repos
}

func TestNewClass_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()

	tests := []struct {
		year    string
		wantErr bool
	}{
		{year: "2024"},
		{year: "2024-2025"},
		{year: "2024-2026", wantErr: true},
		{year: "24-25", wantErr: true},
		{year: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.year, func(t *testing.T) {
			nc := class.NewClass{Name: " 9-A ", AcademicYear: tt.year}
			err := nc.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, "9-A", nc.Name)
		})
	}
}

func TestService_Create(t *testing.T) {
	svcs, repos := setup(t)
	ctx := context.Background()
	teacher := testutil.CreateUser(t, repos.Users, user.RoleTeacher, "teacher")
	student := testutil.CreateUser(t, repos.Users, user.RoleStudent, "student")

	c := testutil.CreateClass(t, svcs.Classes, "9-A", "2024", &teacher.ID)
	assert.True(t, c.IsActive)
	assert.Equal(t, []string{teacher.ID}, c.TeacherIDs())

	_, err := svcs.Classes.Create(ctx, class.NewClass{Name: "9-a", AcademicYear: "2024"})
	assert.True(t, core.IsConflict(err), "name is unique per year, any case")

	_, err = svcs.Classes.Create(ctx, class.NewClass{Name: "9-A", AcademicYear: "2025"})
	assert.NoError(t, err)

	_, err = svcs.Classes.Create(ctx, class.NewClass{Name: "9-B", AcademicYear: "2024", BranchTeacherIDs: []string{teacher.ID, student.ID}})
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, class.ErrNotATeacher, vErr.Err)
	assert.Equal(t, "branch_teacher_ids", vErr.Fields[0].Field)
}

func TestService_Students(t *testing.T) {
	svcs, repos := setup(t)
	ctx := context.Background()
	teacher := testutil.CreateUser(t, repos.Users, user.RoleTeacher, "teacher")
	student := testutil.CreateUser(t, repos.Users, user.RoleStudent, "student")
	clsA := testutil.CreateClass(t, svcs.Classes, "9-A", "2024", nil)
	clsB := testutil.CreateClass(t, svcs.Classes, "9-B", "2024", nil)
	mathA := testutil.CreateCourse(t, svcs.Courses, "Maths A", "MATA", nil, &clsA.ID)
	mathB := testutil.CreateCourse(t, svcs.Courses, "Maths B", "MATB", nil, &clsB.ID)

	_, err := svcs.Classes.AddStudent(ctx, clsA.ID, teacher.ID)
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, user.ErrNotAStudent, vErr.Err)

	usr, err := svcs.Classes.AddStudent(ctx, clsA.ID, student.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{mathA.ID}, usr.CourseIDs)

	usr, err = svcs.Classes.AddStudent(ctx, clsB.ID, student.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{mathB.ID}, usr.CourseIDs, "moving class moves the enrolments")

	_, err = svcs.Classes.RemoveStudent(ctx, clsA.ID, student.ID)
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, class.ErrStudentNotInClass, vErr.Err)

	usr, err = svcs.Classes.RemoveStudent(ctx, clsB.ID, student.ID)
	require.NoError(t, err)
	assert.Nil(t, usr.ClassID)
	assert.Empty(t, usr.CourseIDs)

	_, err = svcs.Classes.AddStudent(ctx, teacher.ID, student.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestService_Delete(t *testing.T) {
	svcs, repos := setup(t)
	ctx := context.Background()
	cls := testutil.CreateClass(t, svcs.Classes, "9-A", "2024", nil)
	student := testutil.CreateUser(t, repos.Users, user.RoleStudent, "student", testutil.InClass(cls.ID))
	c := testutil.CreateCourse(t, svcs.Courses, "Maths", "MAT101", nil, &cls.ID)

	require.NoError(t, svcs.Classes.Delete(ctx, cls.ID))
	assert.True(t, core.IsNotFound(svcs.Classes.Delete(ctx, cls.ID)))

	usr, err := svcs.Users.GetByID(ctx, student.ID)
	require.NoError(t, err)
	assert.Nil(t, usr.ClassID)

	c, err = svcs.Courses.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, c.ClassID)
}
