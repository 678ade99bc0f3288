package echoapi

import (
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/assignment"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/message"
	"github.com/trezcool/academia/core/user"
	appfs "github.com/trezcool/academia/fs"
)

const (
	pagesDir   = "templates/pages"
	layoutName = "_layout.gohtml"

	loginPath     = "/login"
	dashboardPath = "/dashboard"
)

var pageNames = []string{"login", "admin", "teacher", "student", "messages"}

// PageData is what every page template is rendered with.
type PageData struct {
	Title string
	User  *access.Identity
	Error string
	Data  interface{}
}

type pageRenderer struct {
	pages map[string]*template.Template
}

// newPageRenderer parses every page along with the layout it is rendered in.
func newPageRenderer() *pageRenderer {
	r := &pageRenderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		r.pages[name] = template.Must(
			template.New(layoutName).ParseFS(appfs.FS, pagesDir+"/"+layoutName, pagesDir+"/"+name+".gohtml"),
		)
	}
	return r
}

func (r *pageRenderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return errors.Errorf("page %q not found", name)
	}
	return tmpl.ExecuteTemplate(w, layoutName, data)
}

type (
	adminPage struct {
		UserCount   int
		BranchCount int
		ClassCount  int
		CourseCount int
		Users       []user.User
	}

	teacherPage struct {
		Courses []course.Course
	}

	studentPage struct {
		Courses     []course.Course
		Assignments []assignment.StudentAssignment
		TotalPoints int
	}

	messagesPage struct {
		Unread   int
		Messages []message.Message
	}
)

type pages struct {
	*server
}

func registerPages(e *echo.Echo, s *server, rateLimit echo.MiddlewareFunc) {
	p := pages{server: s}

	e.GET("/", p.home)
	e.GET(loginPath, p.loginForm)
	e.POST(loginPath, p.login, rateLimit)
	e.GET("/logout", p.logout)
	e.GET(dashboardPath, p.dashboard)
	e.GET("/admin", p.admin)
	e.GET("/teacher", p.teacher)
	e.GET("/student", p.student)
	e.GET("/messages", p.messages)
}

func (p *pages) render(ctx echo.Context, code int, name, title string, data interface{}) error {
	return ctx.Render(code, name, PageData{Title: title, User: getContextIdentity(ctx), Data: data})
}

func (p *pages) home(ctx echo.Context) error {
	if getContextIdentity(ctx) != nil {
		return ctx.Redirect(http.StatusSeeOther, dashboardPath)
	}
	return ctx.Redirect(http.StatusSeeOther, loginPath)
}

func (p *pages) loginForm(ctx echo.Context) error {
	if getContextIdentity(ctx) != nil {
		return ctx.Redirect(http.StatusSeeOther, dashboardPath)
	}
	return p.render(ctx, http.StatusOK, "login", "Log in", "")
}

func (p *pages) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}

	loginFailed := func(code int, msg string) error {
		return ctx.Render(code, "login", PageData{Title: "Log in", Error: msg, Data: data.Username})
	}
	if err := data.Validate(p.Validate); err != nil {
		return loginFailed(http.StatusBadRequest, "Username and password are required.")
	}

	usr, err := p.UserSvc.Authenticate(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		switch errors.Cause(err) {
		case core.ErrInvalidCredentials:
			return loginFailed(http.StatusUnauthorized, "Invalid username or password.")
		case user.ErrAccountDeactivated:
			return loginFailed(http.StatusForbidden, "This account is deactivated.")
		}
		return errors.Wrap(err, "authenticating")
	}

	token, claims, err := p.issueToken(usr)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	ctx.SetCookie(&http.Cookie{
		Name:     tokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt.Time,
		HttpOnly: true,
		Secure:   !(p.Conf.Debug || p.Conf.TestMode),
		SameSite: http.SameSiteLaxMode,
	})
	return ctx.Redirect(http.StatusSeeOther, dashboardPath)
}

func (p *pages) logout(ctx echo.Context) error {
	if claims, err := getContextClaims(ctx); err == nil {
		if err = p.revokeToken(ctx, claims); err != nil {
			return err
		}
	}
	ctx.SetCookie(&http.Cookie{
		Name:     tokenCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
	})
	return ctx.Redirect(http.StatusSeeOther, loginPath)
}

// dashboard redirects to the portal of the user's role.
func (p *pages) dashboard(ctx echo.Context) error {
	id := getContextIdentity(ctx)
	if id == nil {
		return ctx.Redirect(http.StatusSeeOther, loginPath)
	}
	switch id.Role {
	case user.RoleAdmin:
		return ctx.Redirect(http.StatusSeeOther, "/admin")
	case user.RoleTeacher:
		return ctx.Redirect(http.StatusSeeOther, "/teacher")
	default:
		return ctx.Redirect(http.StatusSeeOther, "/student")
	}
}

func (p *pages) admin(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	users, err := p.UserSvc.Query(reqCtx, nil)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	branches, err := p.BranchSvc.Query(reqCtx, "")
	if err != nil {
		return errors.Wrap(err, "querying branches")
	}
	classes, err := p.ClassSvc.Query(reqCtx, nil)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	courses, err := p.CourseSvc.Query(reqCtx, nil)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}

	return p.render(ctx, http.StatusOK, "admin", "Administration", adminPage{
		UserCount:   len(users),
		BranchCount: len(branches),
		ClassCount:  len(classes),
		CourseCount: len(courses),
		Users:       users,
	})
}

func (p *pages) teacher(ctx echo.Context) error {
	id := getContextIdentity(ctx)
	courses, err := p.CourseSvc.Query(ctx.Request().Context(), &course.QueryFilter{TeacherID: id.UserID})
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return p.render(ctx, http.StatusOK, "teacher", "Teacher portal", teacherPage{Courses: courses})
}

func (p *pages) student(ctx echo.Context) error {
	id := getContextIdentity(ctx)
	reqCtx := ctx.Request().Context()

	courses, err := p.CourseSvc.Query(reqCtx, &course.QueryFilter{StudentID: id.UserID})
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	assignments, err := p.AssignmentSvc.QueryStudent(reqCtx, id.UserID)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	pts, err := p.PointsSvc.QueryStudent(reqCtx, id.UserID)
	if err != nil {
		return errors.Wrap(err, "querying points")
	}

	data := studentPage{Courses: courses, Assignments: assignments}
	for _, pt := range pts {
		data.TotalPoints += pt.Points
	}
	return p.render(ctx, http.StatusOK, "student", "Student portal", data)
}

func (p *pages) messages(ctx echo.Context) error {
	id := getContextIdentity(ctx)
	reqCtx := ctx.Request().Context()

	msgs, err := p.MessageSvc.Inbox(reqCtx, id.UserID, false)
	if err != nil {
		return errors.Wrap(err, "querying inbox")
	}
	unread, err := p.MessageSvc.UnreadCount(reqCtx, id.UserID)
	if err != nil {
		return errors.Wrap(err, "counting unread messages")
	}
	return p.render(ctx, http.StatusOK, "messages", "Messages", messagesPage{Unread: unread, Messages: msgs})
}
