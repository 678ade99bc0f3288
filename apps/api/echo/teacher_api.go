package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/assignment"
	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/grade"
	"github.com/trezcool/academia/core/points"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// teacherApi serves the teacher portal. Every operation is scoped to the courses the teacher teaches.
type teacherApi struct {
	*server
}

func registerTeacherAPI(g *echo.Group, s *server) {
	api := teacherApi{server: s}

	cg := g.Group("/courses")
	cg.GET("", api.queryCourses)
	cg.GET("/:id", api.retrieveCourse)
	cg.GET("/:id/grades", api.queryGrades)
	cg.GET("/:id/points", api.queryPoints)
	cg.GET("/:id/attendance", api.queryAttendance)
	cg.POST("/:id/attendance", api.recordAttendance)
	cg.GET("/:id/report", api.courseReport)

	ag := g.Group("/assignments")
	ag.GET("", api.queryAssignments)
	ag.POST("", api.createAssignment)
	ag.GET("/:id", api.retrieveAssignment)
	ag.PUT("/:id", api.updateAssignment)
	ag.DELETE("/:id", api.destroyAssignment)
	ag.GET("/:id/submissions", api.querySubmissions)

	gg := g.Group("/grades")
	gg.POST("", api.createGrade)
	gg.PUT("/:id", api.updateGrade)
	gg.DELETE("/:id", api.destroyGrade)

	g.POST("/points", api.adjustPoints)
}

func (api *teacherApi) queryCourses(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	courses, err := api.CourseSvc.Query(ctx.Request().Context(), &course.QueryFilter{TeacherID: claims.Subject})
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *teacherApi) retrieveCourse(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	c, err := api.CourseSvc.GetTaughtBy(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "finding course")
	}
	return ctx.JSON(http.StatusOK, c)
}

// Assignments

func (api *teacherApi) queryAssignments(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	assignments, err := api.AssignmentSvc.QueryTeacher(ctx.Request().Context(), claims.Subject, ctx.QueryParam("course_id"))
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *teacherApi) createAssignment(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data assignment.NewAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err = data.Validate(api.Validate); err != nil {
		return err
	}

	a, err := api.AssignmentSvc.Create(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *teacherApi) retrieveAssignment(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	a, err := api.AssignmentSvc.GetForTeacher(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *teacherApi) updateAssignment(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data assignment.UpdateAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}
	if err = data.Validate(api.Validate); err != nil {
		return err
	}

	a, err := api.AssignmentSvc.Update(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *teacherApi) destroyAssignment(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err = api.AssignmentSvc.Delete(ctx.Request().Context(), claims.Subject, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *teacherApi) querySubmissions(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	subs, err := api.AssignmentSvc.Submissions(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

// Grades

func (api *teacherApi) queryGrades(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	grades, err := api.GradeSvc.QueryCourse(ctx.Request().Context(), claims.Subject, ctx.Param("id"), ctx.QueryParam("student_id"))
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *teacherApi) createGrade(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data grade.NewGrade
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrade")
	}
	if err = data.Validate(api.Validate); err != nil {
		return err
	}

	g, err := api.GradeSvc.Create(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating grade")
	}
	return ctx.JSON(http.StatusCreated, g)
}

func (api *teacherApi) updateGrade(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data grade.UpdateGrade
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGrade")
	}
	if err = data.Validate(api.Validate); err != nil {
		return err
	}

	g, err := api.GradeSvc.Update(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating grade")
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *teacherApi) destroyGrade(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err = api.GradeSvc.Delete(ctx.Request().Context(), claims.Subject, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting grade")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Points

func (api *teacherApi) queryPoints(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	pts, err := api.PointsSvc.QueryCourse(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying points")
	}
	return ctx.JSON(http.StatusOK, pts)
}

func (api *teacherApi) adjustPoints(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data points.Adjustment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Adjustment")
	}
	if err = data.Validate(api.Validate); err != nil {
		return err
	}

	pt, err := api.PointsSvc.Adjust(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "adjusting points")
	}
	return ctx.JSON(http.StatusOK, pt)
}

// Attendance

func (api *teacherApi) queryAttendance(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	att, err := api.AttendanceSvc.QueryCourse(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	return ctx.JSON(http.StatusOK, att)
}

func (api *teacherApi) recordAttendance(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data attendance.Session
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Session")
	}
	if err = data.Validate(api.Validate); err != nil {
		return err
	}

	att, err := api.AttendanceSvc.Record(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "recording attendance")
	}
	return ctx.JSON(http.StatusOK, att)
}

// Reports

func (api *teacherApi) courseReport(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	c, err := api.CourseSvc.GetTaughtBy(reqCtx, ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "finding course")
	}
	rows, err := api.courseReportRows(reqCtx, claims.Subject, c)
	if err != nil {
		return err
	}
	buf, err := writeCourseReport(c, rows)
	if err != nil {
		return errors.Wrap(err, "writing course report")
	}

	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+reportFilename(c)+`"`)
	return ctx.Blob(http.StatusOK, xlsxMIME, buf.Bytes())
}
