package inmemdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/assignment"
	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/grade"
	"github.com/trezcool/academia/core/message"
	"github.com/trezcool/academia/core/points"
	"github.com/trezcool/academia/core/user"
	emailsvc "github.com/trezcool/academia/services/email"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
	"github.com/trezcool/academia/testutil"
)

type school struct {
	repos            inmemdb.Repositories
	svcs             testutil.Services
	teacher, student user.User
	courseID         string
	assignmentID     string
}

// newSchool fills a store with one of every row a student and its teacher can own.
func newSchool(t *testing.T) school {
	t.Helper()
	ctx := context.Background()
	conf := core.NewTestConfig()
	repos := inmemdb.Open().Repositories()
	svcs := testutil.NewServices(conf, repos, emailsvc.NewConsoleServiceMock(conf, core.NewStdLogger(nil)))

	teacher := testutil.CreateUser(t, repos.Users, user.RoleTeacher, "teacher")
	cls := testutil.CreateClass(t, svcs.Classes, "9-A", "2024", &teacher.ID)
	student := testutil.CreateUser(t, repos.Users, user.RoleStudent, "student", testutil.InClass(cls.ID))
	c := testutil.CreateCourse(t, svcs.Courses, "Maths", "MAT101", &teacher.ID, &cls.ID)

	a, err := svcs.Assignments.Create(ctx, teacher.ID, assignment.NewAssignment{
		Title: "Homework", DueDate: time.Now().Add(time.Hour), CourseID: c.ID,
	})
	require.NoError(t, err)
	_, err = svcs.Assignments.Submit(ctx, student.ID, a.ID)
	require.NoError(t, err)

	value := 75
	_, err = svcs.Grades.Create(ctx, teacher.ID, grade.NewGrade{StudentID: student.ID, CourseID: c.ID, Type: grade.TypeExam, Value: &value})
	require.NoError(t, err)
	_, err = svcs.Attendance.Record(ctx, teacher.ID, c.ID, attendance.Session{PresentStudentIDs: []string{student.ID}})
	require.NoError(t, err)
	_, err = svcs.Messages.Send(ctx, student.ID, message.NewMessage{RecipientID: teacher.ID, Body: "hello"})
	require.NoError(t, err)

	return school{repos: repos, svcs: svcs, teacher: teacher, student: student, courseID: c.ID, assignmentID: a.ID}
}

func TestUserRepository_DeleteUsers(t *testing.T) {
	s := newSchool(t)
	ctx := context.Background()

	require.NoError(t, s.repos.Users.DeleteUsers(ctx, s.student.ID, "unknown"))

	c, err := s.repos.Courses.GetCourse(ctx, s.courseID)
	require.NoError(t, err)
	assert.Empty(t, c.StudentIDs)

	subs, err := s.repos.Assignments.QuerySubmissions(ctx, assignment.SubmissionFilter{AssignmentID: s.assignmentID})
	require.NoError(t, err)
	assert.Empty(t, subs)
	grades, err := s.repos.Grades.QueryGrades(ctx, &grade.QueryFilter{CourseID: s.courseID})
	require.NoError(t, err)
	assert.Empty(t, grades)
	pts, err := s.repos.Points.QueryPoints(ctx, points.QueryFilter{CourseID: s.courseID})
	require.NoError(t, err)
	assert.Empty(t, pts)
	att, err := s.repos.Attendance.QueryAttendance(ctx, attendance.QueryFilter{CourseID: s.courseID})
	require.NoError(t, err)
	assert.Empty(t, att)
	msgs, err := s.repos.Messages.QueryMessages(ctx, message.QueryFilter{RecipientID: s.teacher.ID})
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.NoError(t, s.repos.Users.DeleteUsers(ctx, s.teacher.ID))
	c, err = s.repos.Courses.GetCourse(ctx, s.courseID)
	require.NoError(t, err)
	assert.Nil(t, c.TeacherID)
	a, err := s.repos.Assignments.GetAssignment(ctx, s.assignmentID)
	require.NoError(t, err)
	assert.Empty(t, a.TeacherID)
}

func TestCourseRepository_DeleteCourse(t *testing.T) {
	s := newSchool(t)
	ctx := context.Background()

	require.NoError(t, s.repos.Courses.DeleteCourse(ctx, s.courseID))
	assert.True(t, core.IsNotFound(s.repos.Courses.DeleteCourse(ctx, s.courseID)))

	_, err := s.repos.Assignments.GetAssignment(ctx, s.assignmentID)
	assert.True(t, core.IsNotFound(err))
	subs, err := s.repos.Assignments.QuerySubmissions(ctx, assignment.SubmissionFilter{StudentID: s.student.ID})
	require.NoError(t, err)
	assert.Empty(t, subs)
	pts, err := s.repos.Points.QueryPoints(ctx, points.QueryFilter{StudentID: s.student.ID})
	require.NoError(t, err)
	assert.Empty(t, pts)
	grades, err := s.repos.Grades.QueryGrades(ctx, &grade.QueryFilter{StudentID: s.student.ID})
	require.NoError(t, err)
	assert.Empty(t, grades)

	usr, err := s.svcs.Users.GetByID(ctx, s.student.ID)
	require.NoError(t, err)
	assert.Empty(t, usr.CourseIDs)
}
