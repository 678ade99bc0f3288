package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
	appfs "github.com/trezcool/academia/fs"
	emailsvc "github.com/trezcool/academia/services/email"
	"github.com/trezcool/academia/services/tokenstore"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
	"github.com/trezcool/academia/testutil"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errInvalidToken = httpErr{Error: "invalid or expired jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

type testApp struct {
	server Server
	conf   *core.Config
	repos  inmemdb.Repositories
	svcs   testutil.Services
}

// setup returns an app backed by the in-memory store; opts adjust the server dependencies.
func setup(t *testing.T, opts ...func(*ServerDeps)) *testApp {
	t.Helper()

	conf := core.NewTestConfig()
	logger := core.NewStdLogger(nil)
	core.ParseEmailTemplates(appfs.FS, conf, logger)
	repos := inmemdb.Open().Repositories()
	svcs := testutil.NewServices(conf, repos, emailsvc.NewConsoleServiceMock(conf, logger))
	validate, translator := testutil.NewValidator()

	deps := ServerDeps{
		Conf:          conf,
		Logger:        logger,
		Validate:      validate,
		Translator:    translator,
		Tokens:        tokenstore.NewMemoryStore(),
		UserSvc:       svcs.Users,
		BranchSvc:     svcs.Branches,
		ClassSvc:      svcs.Classes,
		CourseSvc:     svcs.Courses,
		AssignmentSvc: svcs.Assignments,
		GradeSvc:      svcs.Grades,
		PointsSvc:     svcs.Points,
		AttendanceSvc: svcs.Attendance,
		MessageSvc:    svcs.Messages,
		BadgeSvc:      svcs.Badges,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	server := NewServer(deps)
	return &testApp{server: server, conf: conf, repos: repos, svcs: svcs}
}

func (app *testApp) createUser(t *testing.T, role, uname string, opts ...func(*user.User)) user.User {
	return testutil.CreateUser(t, app.repos.Users, role, uname, opts...)
}

func (app *testApp) getToken(t *testing.T, usr user.User) string {
	token, err := GenerateToken(app.conf, NewClaims(app.conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

// serve sends the request to the server and returns the recorded response.
func (app *testApp) serve(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.server.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func (tt httpTest) run(t *testing.T, app *testApp) {
	t.Run(tt.name, func(t *testing.T) {
		method := tt.method
		if method == "" {
			method = http.MethodGet
		}
		wantCode := tt.wantCode
		if wantCode == 0 {
			wantCode = http.StatusOK
		}
		rec := app.serve(method, tt.path, tt.token, tt.body)
		tt.wantCode = wantCode
		checkCodeAndData(t, tt, rec)
	})
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

// checkCodeAndData checks the response code, and the JSON body when tt.wantData is set.
func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, "code; body %s", rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
