package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/badge"
	"github.com/trezcool/academia/core/branch"
	"github.com/trezcool/academia/core/class"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
)

// adminApi serves the admin portal; the access policy restricts it to admins.
type adminApi struct {
	*server
}

func registerAdminAPI(g *echo.Group, s *server) {
	api := adminApi{server: s}

	ug := g.Group("/users")
	ug.GET("", api.queryUsers)
	ug.POST("", api.createUser)
	ug.DELETE("", api.destroyUsers)
	ug.GET("/roles", api.queryRoles)
	ug.GET("/:id", api.retrieveUser)
	ug.PUT("/:id", api.updateUser)
	ug.DELETE("/:id", api.destroyUser)

	bg := g.Group("/branches")
	bg.GET("", api.queryBranches)
	bg.POST("", api.createBranch)
	bg.GET("/:id", api.retrieveBranch)
	bg.PUT("/:id", api.updateBranch)
	bg.DELETE("/:id", api.destroyBranch)

	cg := g.Group("/classes")
	cg.GET("", api.queryClasses)
	cg.POST("", api.createClass)
	cg.GET("/:id", api.retrieveClass)
	cg.PUT("/:id", api.updateClass)
	cg.DELETE("/:id", api.destroyClass)
	cg.PUT("/:id/students/:studentId", api.addClassStudent)
	cg.DELETE("/:id/students/:studentId", api.removeClassStudent)

	crg := g.Group("/courses")
	crg.GET("", api.queryCourses)
	crg.POST("", api.createCourse)
	crg.GET("/:id", api.retrieveCourse)
	crg.PUT("/:id", api.updateCourse)
	crg.DELETE("/:id", api.destroyCourse)
	crg.POST("/:id/students", api.enrollStudents)
	crg.DELETE("/:id/students", api.unenrollStudents)

	bdg := g.Group("/badges")
	bdg.GET("", api.queryBadges)
	bdg.POST("", api.createBadge)
	bdg.GET("/:id", api.retrieveBadge)
	bdg.PUT("/:id", api.updateBadge)
	bdg.DELETE("/:id", api.destroyBadge)
	bdg.POST("/:id/awards", api.awardBadge)
	bdg.DELETE("/:id/awards/:studentId", api.revokeBadge)
}

// Users

func (api *adminApi) queryUsers(ctx echo.Context) error {
	var filter user.QueryFilter
	err := echo.QueryParamsBinder(ctx).
		String("search", &filter.Search).
		Strings("role", &filter.Roles).
		String("class_id", &filter.ClassID).
		Time("created_from", &filter.CreatedFrom, time.RFC3339).
		Time("created_to", &filter.CreatedTo, time.RFC3339).
		BindError()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	filter.IsActive = queryBool(ctx, "is_active")
	filter.Clean()

	var ord Ordering
	ord.Bind(ctx)

	users, err := api.UserSvc.Query(ctx.Request().Context(), &filter, ord.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *adminApi) createUser(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.Validate, api.UserSvc); err != nil {
		return err
	}

	usr, err := api.UserSvc.Create(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *adminApi) retrieveUser(ctx echo.Context) error {
	usr, err := api.UserSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *adminApi) updateUser(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	usr, err := api.UserSvc.GetByID(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	if err = data.Validate(reqCtx, usr, api.Validate, api.UserSvc); err != nil {
		return err
	}

	usr, err = api.UserSvc.Update(reqCtx, usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *adminApi) destroyUser(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	usr, err := api.UserSvc.GetByID(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	if err = api.UserSvc.Delete(reqCtx, usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adminApi) destroyUsers(ctx echo.Context) error {
	var data DestroyMultipleRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	if err := api.UserSvc.Delete(ctx.Request().Context(), data.IDs...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adminApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

// Branches

func (api *adminApi) queryBranches(ctx echo.Context) error {
	branches, err := api.BranchSvc.Query(ctx.Request().Context(), ctx.QueryParam("search"))
	if err != nil {
		return errors.Wrap(err, "querying branches")
	}
	return ctx.JSON(http.StatusOK, branches)
}

func (api *adminApi) createBranch(ctx echo.Context) error {
	var data branch.NewBranch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBranch")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	b, err := api.BranchSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating branch")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *adminApi) retrieveBranch(ctx echo.Context) error {
	b, err := api.BranchSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding branch by ID")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *adminApi) updateBranch(ctx echo.Context) error {
	var data branch.UpdateBranch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBranch")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	b, err := api.BranchSvc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating branch")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *adminApi) destroyBranch(ctx echo.Context) error {
	if err := api.BranchSvc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting branch")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Classes

func (api *adminApi) queryClasses(ctx echo.Context) error {
	var filter class.QueryFilter
	err := echo.QueryParamsBinder(ctx).
		String("search", &filter.Search).
		String("academic_year", &filter.AcademicYear).
		String("teacher_id", &filter.TeacherID).
		BindError()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	filter.IsActive = queryBool(ctx, "is_active")
	filter.Clean()

	classes, err := api.ClassSvc.Query(ctx.Request().Context(), &filter)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *adminApi) createClass(ctx echo.Context) error {
	var data class.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	c, err := api.ClassSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *adminApi) retrieveClass(ctx echo.Context) error {
	c, err := api.ClassSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding class by ID")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *adminApi) updateClass(ctx echo.Context) error {
	var data class.UpdateClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClass")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	c, err := api.ClassSvc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *adminApi) destroyClass(ctx echo.Context) error {
	if err := api.ClassSvc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adminApi) addClassStudent(ctx echo.Context) error {
	usr, err := api.ClassSvc.AddStudent(ctx.Request().Context(), ctx.Param("id"), ctx.Param("studentId"))
	if err != nil {
		return errors.Wrap(err, "adding student to class")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *adminApi) removeClassStudent(ctx echo.Context) error {
	usr, err := api.ClassSvc.RemoveStudent(ctx.Request().Context(), ctx.Param("id"), ctx.Param("studentId"))
	if err != nil {
		return errors.Wrap(err, "removing student from class")
	}
	return ctx.JSON(http.StatusOK, usr)
}

// Courses

func (api *adminApi) queryCourses(ctx echo.Context) error {
	var filter course.QueryFilter
	err := echo.QueryParamsBinder(ctx).
		String("search", &filter.Search).
		String("teacher_id", &filter.TeacherID).
		String("class_id", &filter.ClassID).
		String("branch_id", &filter.BranchID).
		String("student_id", &filter.StudentID).
		BindError()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	filter.Clean()

	courses, err := api.CourseSvc.Query(ctx.Request().Context(), &filter)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *adminApi) createCourse(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	c, err := api.CourseSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *adminApi) retrieveCourse(ctx echo.Context) error {
	c, err := api.CourseSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding course by ID")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *adminApi) updateCourse(ctx echo.Context) error {
	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	c, err := api.CourseSvc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *adminApi) destroyCourse(ctx echo.Context) error {
	if err := api.CourseSvc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adminApi) enrollStudents(ctx echo.Context) error {
	var data course.Enrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Enrollment")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	c, err := api.CourseSvc.Enroll(ctx.Request().Context(), ctx.Param("id"), data.StudentIDs...)
	if err != nil {
		return errors.Wrap(err, "enrolling students")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *adminApi) unenrollStudents(ctx echo.Context) error {
	var data course.Enrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Enrollment")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	c, err := api.CourseSvc.Unenroll(ctx.Request().Context(), ctx.Param("id"), data.StudentIDs...)
	if err != nil {
		return errors.Wrap(err, "unenrolling students")
	}
	return ctx.JSON(http.StatusOK, c)
}

// Badges

func (api *adminApi) queryBadges(ctx echo.Context) error {
	badges, err := api.BadgeSvc.Query(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying badges")
	}
	return ctx.JSON(http.StatusOK, badges)
}

func (api *adminApi) createBadge(ctx echo.Context) error {
	var data badge.NewBadge
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBadge")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	b, err := api.BadgeSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating badge")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *adminApi) retrieveBadge(ctx echo.Context) error {
	b, err := api.BadgeSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding badge by ID")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *adminApi) updateBadge(ctx echo.Context) error {
	var data badge.UpdateBadge
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBadge")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	b, err := api.BadgeSvc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating badge")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *adminApi) destroyBadge(ctx echo.Context) error {
	if err := api.BadgeSvc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting badge")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adminApi) awardBadge(ctx echo.Context) error {
	var data badge.Award
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Award")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	sb, err := api.BadgeSvc.Award(ctx.Request().Context(), ctx.Param("id"), data.StudentID)
	if err != nil {
		return errors.Wrap(err, "awarding badge")
	}
	return ctx.JSON(http.StatusCreated, sb)
}

func (api *adminApi) revokeBadge(ctx echo.Context) error {
	if err := api.BadgeSvc.Revoke(ctx.Request().Context(), ctx.Param("id"), ctx.Param("studentId")); err != nil {
		return errors.Wrap(err, "revoking badge")
	}
	return ctx.NoContent(http.StatusNoContent)
}
