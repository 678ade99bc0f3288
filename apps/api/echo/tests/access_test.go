package tests

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/testutil"
)

func Test_apiAccess(t *testing.T) {
	app := setup(t)
	adminToken := app.getToken(t, app.createUser(t, user.RoleAdmin, "admin"))
	teacherToken := app.getToken(t, app.createUser(t, user.RoleTeacher, "teacher"))
	studentToken := app.getToken(t, app.createUser(t, user.RoleStudent, "student"))

	forbidden := marchallObj(t, errForbidden)
	tests := []httpTest{
		{name: "admin: no token", path: "/api/admin/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "admin: bad token", path: "/api/admin/users", token: "lol", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errInvalidToken)},
		{name: "admin: teacher", path: "/api/admin/users", token: teacherToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "admin: student", path: "/api/admin/courses", token: studentToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "admin: admin", path: "/api/admin/users", token: adminToken},
		{name: "admin: trailing slash", path: "/api/admin/users/", token: teacherToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "teacher: admin", path: "/api/teacher/courses", token: adminToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "teacher: student", path: "/api/teacher/courses", token: studentToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "teacher: teacher", path: "/api/teacher/courses", token: teacherToken, wantData: []byte("[]")},
		{name: "student: teacher", path: "/api/student/courses", token: teacherToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "student: student", path: "/api/student/courses", token: studentToken, wantData: []byte("[]")},
		{name: "messages: anyone", path: "/api/messages/unread-count", token: teacherToken, wantData: []byte(`{"unread": 0}`)},
		{name: "messages: no token", path: "/api/messages", wantCode: http.StatusUnauthorized},
		{name: "unknown API path", path: "/api/lol", wantCode: http.StatusUnauthorized},
		{name: "login is public", method: http.MethodPost, path: "/api/auth/login", body: []byte("{}"), wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		tt.run(t, app)
	}
}

var routeParam = regexp.MustCompile(`:[^/]+|\*`)

func Test_adminRoutesAccess(t *testing.T) {
	app := setup(t)
	teacherToken := app.getToken(t, app.createUser(t, user.RoleTeacher, "teacher"))
	studentToken := app.getToken(t, app.createUser(t, user.RoleStudent, "student"))

	var checked int
	for _, r := range app.server.Routes() {
		if !strings.HasPrefix(r.Path, "/api/admin") || !strings.Contains(httpMethods, r.Method+" ") {
			continue
		}
		checked++
		path := routeParam.ReplaceAllString(r.Path, uuid.NewString())

		for _, tt := range []struct {
			who      string
			token    string
			wantCode int
		}{
			{"anonymous", "", http.StatusUnauthorized},
			{"student", studentToken, http.StatusForbidden},
			{"teacher", teacherToken, http.StatusForbidden},
		} {
			t.Run(fmt.Sprintf("%s %s: %s", r.Method, r.Path, tt.who), func(t *testing.T) {
				rec := app.serve(r.Method, path, tt.token, []byte("{}"))
				assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			})
		}
	}
	assert.NotZero(t, checked, "no admin route registered")
}

const httpMethods = "GET POST PUT PATCH DELETE "

// brokenStore fails every lookup, like a token store that lost its backend.
type brokenStore struct{}

var errStoreDown = errors.New("token store unreachable")

func (brokenStore) Revoke(context.Context, string, time.Time) error { return errStoreDown }

func (brokenStore) IsRevoked(context.Context, string) (bool, error) { return false, errStoreDown }

func Test_accessWithBrokenTokenStore(t *testing.T) {
	app := setup(t, func(deps *ServerDeps) { deps.Tokens = brokenStore{} })
	admin := app.createUser(t, user.RoleAdmin, "admin")
	token := app.getToken(t, admin)

	t.Run("public API route", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"username": "admin", "password": testutil.Password})
		rec := app.serve(http.MethodPost, "/api/auth/login", token, body)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})
	t.Run("public page", func(t *testing.T) {
		rec := pageRequest(app, http.MethodGet, "/login", token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
	t.Run("protected route", func(t *testing.T) {
		rec := app.serve(http.MethodGet, "/api/admin/users", token)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

// pageRequest requests a page, authenticated with the access_token cookie when token is set.
func pageRequest(app *testApp, method, path, token string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
	}
	rec := httptest.NewRecorder()
	app.server.ServeHTTP(rec, req)
	return rec
}

func Test_pagesAccess(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, user.RoleAdmin, "admin")
	teacherToken := app.getToken(t, app.createUser(t, user.RoleTeacher, "teacher"))
	studentToken := app.getToken(t, app.createUser(t, user.RoleStudent, "student"))
	adminToken := app.getToken(t, admin)

	tests := []struct {
		name         string
		path         string
		token        string
		wantCode     int
		wantLocation string
	}{
		{name: "login form", path: "/login", wantCode: http.StatusOK},
		{name: "dashboard: anonymous", path: "/dashboard", wantCode: http.StatusSeeOther, wantLocation: "/login"},
		{name: "dashboard: admin", path: "/dashboard", token: adminToken, wantCode: http.StatusSeeOther, wantLocation: "/admin"},
		{name: "dashboard: teacher", path: "/dashboard", token: teacherToken, wantCode: http.StatusSeeOther, wantLocation: "/teacher"},
		{name: "dashboard: student", path: "/dashboard", token: studentToken, wantCode: http.StatusSeeOther, wantLocation: "/student"},
		{name: "admin: anonymous", path: "/admin", wantCode: http.StatusSeeOther, wantLocation: "/login"},
		{name: "admin: student", path: "/admin", token: studentToken, wantCode: http.StatusSeeOther, wantLocation: "/dashboard"},
		{name: "admin: admin", path: "/admin", token: adminToken, wantCode: http.StatusOK},
		{name: "teacher: teacher", path: "/teacher", token: teacherToken, wantCode: http.StatusOK},
		{name: "teacher: student", path: "/teacher", token: studentToken, wantCode: http.StatusSeeOther, wantLocation: "/dashboard"},
		{name: "student: student", path: "/student", token: studentToken, wantCode: http.StatusOK},
		{name: "messages: teacher", path: "/messages", token: teacherToken, wantCode: http.StatusOK},
		{name: "messages: expired cookie", path: "/messages", token: "lol", wantCode: http.StatusSeeOther, wantLocation: "/login"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := pageRequest(app, http.MethodGet, tt.path, tt.token, nil)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
		})
	}

	t.Run("login then logout", func(t *testing.T) {
		rec := pageRequest(app, http.MethodPost, "/login", "", url.Values{"username": {"admin"}, "password": {"wrong"}})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = pageRequest(app, http.MethodPost, "/login", "", url.Values{"username": {"admin"}, "password": {testutil.Password}})
		require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
		assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

		var token string
		for _, c := range rec.Result().Cookies() {
			if c.Name == "access_token" {
				token = c.Value
				assert.True(t, c.HttpOnly)
			}
		}
		require.NotEmpty(t, token)
		assert.Equal(t, http.StatusOK, pageRequest(app, http.MethodGet, "/admin", token, nil).Code)

		rec = pageRequest(app, http.MethodGet, "/logout", token, nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code)

		// the cookie token is revoked
		rec = pageRequest(app, http.MethodGet, "/admin", token, nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})
}

func Test_metrics(t *testing.T) {
	app := setup(t)
	app.serve(http.MethodGet, "/api/me", "")

	rec := httptest.NewRecorder()
	app.server.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "academia_http_requests_total")
	assert.Contains(t, rec.Body.String(), `status="401"`)
}
