package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/course"
)

// studentApi serves the student portal, scoped to the student's own records.
type studentApi struct {
	*server
}

func registerStudentAPI(g *echo.Group, s *server) {
	api := studentApi{server: s}

	g.GET("/courses", api.queryCourses)
	g.GET("/assignments", api.queryAssignments)
	g.POST("/assignments/:id/submit", api.submitAssignment)
	g.GET("/submissions", api.querySubmissions)
	g.GET("/grades", api.gradeSummary)
	g.GET("/points", api.queryPoints)
	g.GET("/attendance", api.queryAttendance)
	g.GET("/badges", api.queryBadges)
}

func (api *studentApi) queryCourses(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	courses, err := api.CourseSvc.Query(ctx.Request().Context(), &course.QueryFilter{StudentID: claims.Subject})
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *studentApi) queryAssignments(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	assignments, err := api.AssignmentSvc.QueryStudent(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *studentApi) submitAssignment(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	sub, err := api.AssignmentSvc.Submit(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *studentApi) querySubmissions(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	subs, err := api.AssignmentSvc.StudentSubmissions(ctx.Request().Context(), claims.Subject, ctx.QueryParam("course_id"))
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *studentApi) gradeSummary(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	summary, err := api.GradeSvc.StudentSummary(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "summarizing grades")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *studentApi) queryPoints(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	pts, err := api.PointsSvc.QueryStudent(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying points")
	}
	return ctx.JSON(http.StatusOK, pts)
}

func (api *studentApi) queryAttendance(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	att, err := api.AttendanceSvc.QueryStudent(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	return ctx.JSON(http.StatusOK, att)
}

func (api *studentApi) queryBadges(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	badges, err := api.BadgeSvc.QueryStudent(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying badges")
	}
	return ctx.JSON(http.StatusOK, badges)
}
