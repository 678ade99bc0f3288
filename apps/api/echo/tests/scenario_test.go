package tests

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/assignment"
	"github.com/trezcool/academia/core/branch"
	"github.com/trezcool/academia/core/class"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/points"
	"github.com/trezcool/academia/core/user"
)

// Test_schoolYear walks an admin, a teacher and a student through a course.
func Test_schoolYear(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, user.RoleAdmin, "principal")
	teacher := app.createUser(t, user.RoleTeacher, "mrsmith")
	student := app.createUser(t, user.RoleStudent, "alice")
	adminToken := app.getToken(t, admin)
	teacherToken := app.getToken(t, teacher)
	studentToken := app.getToken(t, student)

	mustServe := func(wantCode int, method, path, token string, body interface{}, v interface{}) {
		t.Helper()
		var data []byte
		if body != nil {
			data = marchallObj(t, body)
		}
		rec := app.serve(method, path, token, data)
		require.Equal(t, wantCode, rec.Code, "%s %s: %s", method, path, rec.Body.String())
		if v != nil {
			unmarshal(t, rec, v)
		}
	}

	var b branch.Branch
	mustServe(http.StatusCreated, http.MethodPost, "/api/admin/branches", adminToken, branch.NewBranch{Name: "Math"}, &b)

	var c class.Class
	mustServe(http.StatusCreated, http.MethodPost, "/api/admin/classes", adminToken,
		class.NewClass{Name: "9-A", AcademicYear: "2024", ClassTeacherID: &teacher.ID}, &c)

	var crs course.Course
	mustServe(http.StatusCreated, http.MethodPost, "/api/admin/courses", adminToken,
		course.NewCourse{Name: "Mathematics", Code: "mat101", TeacherID: &teacher.ID, ClassID: &c.ID, BranchID: &b.ID}, &crs)
	assert.Equal(t, "MAT101", crs.Code)

	// same code, whatever the case
	rec := app.serve(http.MethodPost, "/api/admin/courses", adminToken, marchallObj(t, course.NewCourse{Name: "Algebra", Code: "MAT101"}))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusConflict,
		wantData: marchallObj(t, map[string]string{"code": course.ErrCodeExists.Error()}),
	}, rec)

	// joining the class enrols the student into its courses
	var usr user.User
	mustServe(http.StatusOK, http.MethodPut, fmt.Sprintf("/api/admin/classes/%s/students/%s", c.ID, student.ID), adminToken, nil, &usr)
	require.NotNil(t, usr.ClassID)
	assert.Equal(t, c.ID, *usr.ClassID)
	assert.Contains(t, usr.CourseIDs, crs.ID)

	var studentCourses []course.Course
	mustServe(http.StatusOK, http.MethodGet, "/api/student/courses", studentToken, nil, &studentCourses)
	if assert.Len(t, studentCourses, 1) {
		assert.Equal(t, crs.ID, studentCourses[0].ID)
	}

	// the teacher hands out an assignment
	ten := 10
	var a assignment.Assignment
	mustServe(http.StatusCreated, http.MethodPost, "/api/teacher/assignments", teacherToken, assignment.NewAssignment{
		Title:      "Fractions",
		DueDate:    time.Now().Add(7 * 24 * time.Hour),
		CourseID:   crs.ID,
		PointValue: &ten,
	}, &a)
	assert.Equal(t, 10, a.PointValue)
	require.NotNil(t, a.ClassID)
	assert.Equal(t, c.ID, *a.ClassID)

	var todo []assignment.StudentAssignment
	mustServe(http.StatusOK, http.MethodGet, "/api/student/assignments", studentToken, nil, &todo)
	if assert.Len(t, todo, 1) {
		assert.Nil(t, todo[0].Submission)
		assert.False(t, todo[0].IsPastDue)
	}

	// first submission wins
	submitPath := "/api/student/assignments/" + a.ID + "/submit"
	var sub assignment.SubmissionStatus
	mustServe(http.StatusCreated, http.MethodPost, submitPath, studentToken, nil, &sub)
	assert.True(t, sub.IsSubmitted)
	assert.Equal(t, 10, sub.PointsEarned)

	rec = app.serve(http.MethodPost, submitPath, studentToken)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusConflict,
		wantData: marchallObj(t, map[string]string{"assignment_id": assignment.ErrAlreadySubmitted.Error()}),
	}, rec)

	var pts []points.StudentPoint
	mustServe(http.StatusOK, http.MethodGet, "/api/student/points", studentToken, nil, &pts)
	if assert.Len(t, pts, 1) {
		assert.Equal(t, crs.ID, pts[0].CourseID)
		assert.Equal(t, 10, pts[0].Points)
	}

	var subs []assignment.SubmissionStatus
	mustServe(http.StatusOK, http.MethodGet, "/api/teacher/assignments/"+a.ID+"/submissions", teacherToken, nil, &subs)
	if assert.Len(t, subs, 1) {
		assert.Equal(t, student.ID, subs[0].StudentID)
	}

	// points never go below zero
	var pt points.StudentPoint
	mustServe(http.StatusOK, http.MethodPost, "/api/teacher/points", teacherToken,
		points.Adjustment{StudentID: student.ID, CourseID: crs.ID, Delta: -25, Reason: "late homework"}, &pt)
	assert.Equal(t, 0, pt.Points)

	// the teacher downloads the course report
	rec = app.serve(http.MethodGet, "/api/teacher/courses/"+crs.ID+"/report", teacherToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.True(t, strings.Contains(rec.Header().Get("Content-Disposition"), "MAT101"))
	assert.Equal(t, "PK", rec.Body.String()[:2], "xlsx files are zip archives")

	// other teachers cannot see it
	other := app.createUser(t, user.RoleTeacher, "mrjones")
	rec = app.serve(http.MethodGet, "/api/teacher/courses/"+crs.ID+"/report", app.getToken(t, other))
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)
}
