package assignment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/assignment"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
	emailsvc "github.com/trezcool/academia/services/email"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
	"github.com/trezcool/academia/testutil"
)

type fixture struct {
	repos            inmemdb.Repositories
	svcs             testutil.Services
	teacher, student user.User
	outsider         user.User
	courseID         string
	classID          string
}

func setup(t *testing.T) fixture {
	t.Helper()
	conf := core.NewTestConfig()
	repos := inmemdb.Open().Repositories()
	svcs := testutil.NewServices(conf, repos, emailsvc.NewConsoleServiceMock(conf, core.NewStdLogger(nil)))

	teacher := testutil.CreateUser(t, repos.Users, user.RoleTeacher, "teacher")
	cls := testutil.CreateClass(t, svcs.Classes, "9-A", "2024", &teacher.ID)
	student := testutil.CreateUser(t, repos.Users, user.RoleStudent, "student", testutil.InClass(cls.ID))
	outsider := testutil.CreateUser(t, repos.Users, user.RoleStudent, "outsider")
	c := testutil.CreateCourse(t, svcs.Courses, "Maths", "MAT101", &teacher.ID, &cls.ID)

	return fixture{repos: repos, svcs: svcs, teacher: teacher, student: student, outsider: outsider, courseID: c.ID, classID: cls.ID}
}

func (f fixture) create(t *testing.T, due time.Time, pointValue *int) assignment.Assignment {
	t.Helper()
	a, err := f.svcs.Assignments.Create(context.Background(), f.teacher.ID, assignment.NewAssignment{
		Title:      "Homework",
		DueDate:    due,
		CourseID:   f.courseID,
		PointValue: pointValue,
	})
	require.NoError(t, err)
	return a
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	a := f.create(t, time.Now().Add(24*time.Hour), nil)
	assert.Equal(t, assignment.DefaultPointValue, a.PointValue)
	if assert.NotNil(t, a.ClassID) {
		assert.Equal(t, f.classID, *a.ClassID, "class taken from the course")
	}
	assert.Equal(t, f.teacher.ID, a.TeacherID)

	other := f.teacher.ID
	_, err := f.svcs.Assignments.Create(ctx, f.teacher.ID, assignment.NewAssignment{
		Title: "Homework", DueDate: time.Now(), CourseID: f.courseID, ClassID: &other,
	})
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, assignment.ErrClassMismatch, vErr.Err)

	_, err = f.svcs.Assignments.Create(ctx, f.student.ID, assignment.NewAssignment{
		Title: "Homework", DueDate: time.Now(), CourseID: f.courseID,
	})
	assert.Equal(t, core.ErrForbidden, errors.Cause(err))

	_, err = f.svcs.Assignments.Create(ctx, f.teacher.ID, assignment.NewAssignment{
		Title: "Homework", DueDate: time.Now(), CourseID: f.teacher.ID,
	})
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "course_id", vErr.Fields[0].Field)
}

func TestService_Submit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ten := 10
	open := f.create(t, time.Now().Add(24*time.Hour), &ten)
	closed := f.create(t, time.Now().Add(-time.Hour), nil)

	_, err := f.svcs.Assignments.Submit(ctx, f.outsider.ID, open.ID)
	assert.Equal(t, core.ErrForbidden, errors.Cause(err))

	_, err = f.svcs.Assignments.Submit(ctx, f.student.ID, closed.ID)
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, assignment.ErrPastDue, vErr.Err)

	sub, err := f.svcs.Assignments.Submit(ctx, f.student.ID, open.ID)
	require.NoError(t, err)
	assert.True(t, sub.IsSubmitted)
	assert.Equal(t, 10, sub.PointsEarned)
	assert.Equal(t, f.courseID, sub.CourseID)

	_, err = f.svcs.Assignments.Submit(ctx, f.student.ID, open.ID)
	assert.True(t, core.IsConflict(err))
	assert.True(t, errors.Is(err, assignment.ErrAlreadySubmitted))

	pts, err := f.svcs.Points.QueryStudent(ctx, f.student.ID)
	require.NoError(t, err)
	require.Len(t, pts, 1)
	assert.Equal(t, 10, pts[0].Points, "points awarded once")

	_, err = f.svcs.Assignments.Submit(ctx, f.student.ID, f.courseID)
	assert.True(t, core.IsNotFound(err))
}

func TestService_QueryStudent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	open := f.create(t, time.Now().Add(24*time.Hour), nil)
	closed := f.create(t, time.Now().Add(-time.Hour), nil)
	_, err := f.svcs.Assignments.Submit(ctx, f.student.ID, open.ID)
	require.NoError(t, err)

	got, err := f.svcs.Assignments.QueryStudent(ctx, f.student.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	byID := map[string]assignment.StudentAssignment{got[0].ID: got[0], got[1].ID: got[1]}
	assert.NotNil(t, byID[open.ID].Submission)
	assert.False(t, byID[open.ID].IsPastDue)
	assert.Nil(t, byID[closed.ID].Submission)
	assert.True(t, byID[closed.ID].IsPastDue)

	got, err = f.svcs.Assignments.QueryStudent(ctx, f.outsider.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestService_TeacherAccess(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.create(t, time.Now().Add(24*time.Hour), nil)

	_, err := f.svcs.Assignments.GetForTeacher(ctx, f.student.ID, a.ID)
	assert.Equal(t, core.ErrForbidden, errors.Cause(err))

	title := "Revised"
	a, err = f.svcs.Assignments.Update(ctx, f.teacher.ID, a.ID, assignment.UpdateAssignment{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Revised", a.Title)

	list, err := f.svcs.Assignments.QueryTeacher(ctx, f.teacher.ID, "")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, f.svcs.Assignments.Delete(ctx, f.teacher.ID, a.ID))
	_, err = f.svcs.Assignments.GetForTeacher(ctx, f.teacher.ID, a.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestService_QueryTeacher_followsCourseTeacher(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.create(t, time.Now().Add(24*time.Hour), nil)
	successor := testutil.CreateUser(t, f.repos.Users, user.RoleTeacher, "successor")

	_, err := f.svcs.Courses.Update(ctx, f.courseID, course.UpdateCourse{TeacherID: &successor.ID})
	require.NoError(t, err)

	list, err := f.svcs.Assignments.QueryTeacher(ctx, f.teacher.ID, "")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list, "the former teacher no longer lists the course's assignments")
	_, err = f.svcs.Assignments.GetForTeacher(ctx, f.teacher.ID, a.ID)
	assert.Equal(t, core.ErrForbidden, errors.Cause(err))

	list, err = f.svcs.Assignments.QueryTeacher(ctx, successor.ID, "")
	require.NoError(t, err)
	if assert.Len(t, list, 1) {
		assert.Equal(t, a.ID, list[0].ID)
		assert.Equal(t, f.teacher.ID, list[0].TeacherID, "the author is kept")
	}
	_, err = f.svcs.Assignments.GetForTeacher(ctx, successor.ID, a.ID)
	assert.NoError(t, err)

	list, err = f.repos.Assignments.QueryAssignments(ctx, &assignment.QueryFilter{TeacherID: successor.ID})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestService_Submit_concurrent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ten := 10
	a := f.create(t, time.Now().Add(24*time.Hour), &ten)

	const attempts = 50
	var (
		wg                 sync.WaitGroup
		mu                 sync.Mutex
		succeeded, refused int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svcs.Assignments.Submit(ctx, f.student.ID, a.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case core.IsConflict(err):
				refused++
			default:
				t.Errorf("Submit() unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, refused)
	pts, err := f.svcs.Points.QueryStudent(ctx, f.student.ID)
	require.NoError(t, err)
	require.Len(t, pts, 1)
	assert.Equal(t, 10, pts[0].Points)
}

// racedRepo reports no prior submission, then loses the race in the store.
type racedRepo struct {
	assignment.Repository
	a assignment.Assignment
}

func (r racedRepo) GetAssignment(context.Context, string) (assignment.Assignment, error) {
	return r.a, nil
}

func (r racedRepo) HasSubmitted(context.Context, string, string) (bool, error) { return false, nil }

func (r racedRepo) Submit(context.Context, assignment.SubmissionStatus) (assignment.SubmissionStatus, error) {
	return assignment.SubmissionStatus{}, errors.Wrap(assignment.ErrAlreadySubmitted, "inserting submission")
}

func TestService_Submit_storeConflict(t *testing.T) {
	f := setup(t)
	a := f.create(t, time.Now().Add(24*time.Hour), nil)

	svc := assignment.NewService(racedRepo{a: a}, f.svcs.Courses)
	_, err := svc.Submit(context.Background(), f.student.ID, a.ID)

	var cErr *core.ConflictError
	require.True(t, errors.As(err, &cErr), "got %v", err)
	assert.Equal(t, assignment.ErrAlreadySubmitted, cErr.Err)
	if assert.Len(t, cErr.Fields, 1) {
		assert.Equal(t, "assignment_id", cErr.Fields[0].Field)
	}
}
