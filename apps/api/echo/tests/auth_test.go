package tests

import (
	"net/http"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core/user"
	emailsvc "github.com/trezcool/academia/services/email"
	"github.com/trezcool/academia/testutil"
)

func Test_authApi_login(t *testing.T) {
	app := setup(t)
	teacher := app.createUser(t, user.RoleTeacher, "teacher")
	app.createUser(t, user.RoleStudent, "naughty", testutil.Inactive)

	login := func(uname, pwd string) []byte {
		return marchallObj(t, LoginRequest{Username: uname, Password: pwd})
	}

	tests := []httpTest{
		{name: "no data", method: http.MethodPost, path: "/api/auth/login", body: []byte("{}"), wantCode: http.StatusBadRequest},
		{
			name: "unknown user", method: http.MethodPost, path: "/api/auth/login", body: login("lol", testutil.Password),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/api/auth/login", body: login("teacher", "wrong"),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name: "deactivated account", method: http.MethodPost, path: "/api/auth/login", body: login("naughty", testutil.Password),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: user.ErrAccountDeactivated.Error()}),
		},
	}
	for _, tt := range tests {
		tt.run(t, app)
	}

	for _, uname := range []string{"teacher", " TEACHER ", "teacher@test.cd"} {
		t.Run("login with "+uname, func(t *testing.T) {
			rec := app.serve(http.MethodPost, "/api/auth/login", "", login(uname, testutil.Password))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp LoginResponse
			unmarshal(t, rec, &resp)
			claims := new(Claims)
			_, err := jwt.ParseWithClaims(resp.Token, claims, func(token *jwt.Token) (interface{}, error) {
				return []byte(app.conf.SecretKey), nil
			})
			require.NoError(t, err)
			assert.Equal(t, teacher.ID, claims.Subject)
			assert.Equal(t, user.RoleTeacher, claims.Role)
			assert.Equal(t, teacher.Username, claims.Username)
			assert.Equal(t, teacher.FullName(), claims.Name)
			assert.NotEmpty(t, claims.ID)
			assert.NotZero(t, claims.OrigIssuedAt)
		})
	}
}

func Test_authApi_register(t *testing.T) {
	app := setup(t)
	app.createUser(t, user.RoleStudent, "taken")

	newUser := func(uname, role string) []byte {
		return marchallObj(t, user.NewUser{
			Username:        uname,
			Email:           uname + "@test.cd",
			FirstName:       "New",
			LastName:        "Comer",
			Password:        testutil.Password,
			PasswordConfirm: testutil.Password,
			Role:            role,
		})
	}

	rec := app.serve(http.MethodPost, "/api/auth/register", "", newUser("taken", user.RoleStudent))
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = app.serve(http.MethodPost, "/api/auth/register", "", newUser("hacker", user.RoleAdmin))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var usr user.User
	unmarshal(t, rec, &usr)
	assert.Equal(t, user.RoleStudent, usr.Role, "registration may only create students")
	assert.True(t, usr.IsActive)
}

func Test_authApi_logout(t *testing.T) {
	app := setup(t)
	student := app.createUser(t, user.RoleStudent, "student")
	token := app.getToken(t, student)

	tests := []httpTest{
		{name: "me", path: "/api/me", token: token},
		{name: "logout", method: http.MethodPost, path: "/api/auth/logout", token: token, wantCode: http.StatusNoContent},
		{name: "revoked token", path: "/api/me", token: token, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errInvalidToken)},
		{name: "logout again", method: http.MethodPost, path: "/api/auth/logout", token: token, wantCode: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		tt.run(t, app)
	}
}

func Test_authApi_refreshToken(t *testing.T) {
	app := setup(t)
	student := app.createUser(t, user.RoleStudent, "student")
	token := app.getToken(t, student)

	rec := app.serve(http.MethodPost, "/api/auth/token-refresh", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	unmarshal(t, rec, &resp)
	assert.NotEqual(t, token, resp.Token)

	// the refreshed token replaces the old one
	assert.Equal(t, http.StatusUnauthorized, app.serve(http.MethodGet, "/api/me", token).Code)
	assert.Equal(t, http.StatusOK, app.serve(http.MethodGet, "/api/me", resp.Token).Code)

	// refresh window elapsed
	claims := NewClaims(app.conf, student, 1)
	old, err := GenerateToken(app.conf, claims)
	require.NoError(t, err)
	rec = app.serve(http.MethodPost, "/api/auth/token-refresh", old)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func Test_authApi_me(t *testing.T) {
	app := setup(t)
	student := app.createUser(t, user.RoleStudent, "student")
	token := app.getToken(t, student)

	rec := app.serve(http.MethodGet, "/api/me", "")
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)

	rec = app.serve(http.MethodPut, "/api/me", token, []byte(`{"first_name": "Renamed"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var usr user.User
	unmarshal(t, rec, &usr)
	assert.Equal(t, "Renamed", usr.FirstName)
	assert.Equal(t, user.RoleStudent, usr.Role)
}

func Test_authApi_passwordReset(t *testing.T) {
	app := setup(t)
	student := app.createUser(t, user.RoleStudent, "student")
	emailsvc.ResetSentMessages()

	rec := app.serve(http.MethodPost, "/api/auth/password-reset", "", []byte(`{"email": "nobody@test.cd"}`))
	assert.Equal(t, http.StatusOK, rec.Code, "unknown emails are not disclosed")
	_, sent := emailsvc.LastSentMessage()
	assert.False(t, sent)

	rec = app.serve(http.MethodPost, "/api/auth/password-reset", "", []byte(`{"email": "`+student.Email+`"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	msg, sent := emailsvc.LastSentMessage()
	require.True(t, sent)
	assert.Equal(t, student.Email, msg.To[0].Address)

	data, ok := msg.TemplateData.(map[string]interface{})
	require.True(t, ok)
	uid, _ := data["UID"].(string)
	token, _ := data["Token"].(string)
	newPwd := "N3w$ecret!"
	confirm := marchallObj(t, user.ResetUserPassword{UID: uid, Token: token, Password: newPwd, PasswordConfirm: newPwd})

	rec = app.serve(http.MethodPost, "/api/auth/password-reset-confirm", "", confirm)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.serve(http.MethodPost, "/api/auth/login", "", marchallObj(t, LoginRequest{Username: student.Username, Password: newPwd}))
	assert.Equal(t, http.StatusOK, rec.Code)

	// a used token is invalid: the password changed
	rec = app.serve(http.MethodPost, "/api/auth/password-reset-confirm", "", confirm)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
