package user_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
	appfs "github.com/trezcool/academia/fs"
	emailsvc "github.com/trezcool/academia/services/email"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
	"github.com/trezcool/academia/testutil"
)

func setup(t *testing.T) (user.Service, user.Repository, *validator.Validate) {
	t.Helper()
	conf := core.NewTestConfig()
	repo := inmemdb.Open().Repositories().Users
	validate, _ := testutil.NewValidator()
	return user.NewService(repo, emailsvc.NewConsoleServiceMock(conf, core.NewStdLogger(nil)), conf), repo, validate
}

func TestService_Authenticate(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, repo, user.RoleTeacher, "teacher")
	testutil.CreateUser(t, repo, user.RoleStudent, "naughty", testutil.Inactive)

	tests := []struct {
		name    string
		uname   string
		pwd     string
		wantErr error
	}{
		{name: "unknown user", uname: "lol", pwd: testutil.Password, wantErr: core.ErrInvalidCredentials},
		{name: "wrong password", uname: "teacher", pwd: "lol", wantErr: core.ErrInvalidCredentials},
		{name: "deactivated", uname: "naughty", pwd: testutil.Password, wantErr: user.ErrAccountDeactivated},
		{name: "username", uname: "teacher", pwd: testutil.Password},
		{name: "username, any case", uname: "  TeAcHeR ", pwd: testutil.Password},
		{name: "email", uname: "teacher@test.cd", pwd: testutil.Password},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Authenticate(ctx, tt.uname, tt.pwd)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, usr.ID, got.ID)
			assert.False(t, got.LastLogin.IsZero(), "the login is recorded")
		})
	}
}

func TestNewUser_Validate(t *testing.T) {
	svc, repo, validate := setup(t)
	ctx := context.Background()
	testutil.CreateUser(t, repo, user.RoleStudent, "taken")

	valid := func() user.NewUser {
		return user.NewUser{
			Username:        "newbie",
			Email:           "newbie@test.cd",
			FirstName:       "New",
			LastName:        "Bie",
			Password:        testutil.Password,
			PasswordConfirm: testutil.Password,
			Role:            user.RoleStudent,
		}
	}

	tests := []struct {
		name      string
		modify    func(nu *user.NewUser)
		wantField string
		conflict  bool
	}{
		{name: "valid", modify: func(nu *user.NewUser) {}},
		{name: "no identifier", modify: func(nu *user.NewUser) { nu.Username, nu.Email = "", "" }, wantField: "username"},
		{name: "bad role", modify: func(nu *user.NewUser) { nu.Role = "king" }, wantField: "role"},
		{name: "short password", modify: func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "S$1s", "S$1s" }, wantField: "password"},
		{name: "numeric password", modify: func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "12345678", "12345678" }, wantField: "password"},
		{name: "simple password", modify: func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "abcdefgh", "abcdefgh" }, wantField: "password"},
		{name: "password like username", modify: func(nu *user.NewUser) { nu.Password, nu.PasswordConfirm = "Newbie1!", "Newbie1!" }, wantField: "password"},
		{name: "confirmation mismatch", modify: func(nu *user.NewUser) { nu.PasswordConfirm = "lol" }, wantField: "password_confirm"},
		{name: "teacher in a class", modify: func(nu *user.NewUser) { nu.Role = user.RoleTeacher; nu.ClassID = testutil.StrPtr("8f0dd3e4-8c83-4c4b-9a0a-2f6f3c1d9e11") }, wantField: "class_id"},
		{name: "username taken", modify: func(nu *user.NewUser) { nu.Username = " TAKEN " }, wantField: "username", conflict: true},
		{name: "email taken", modify: func(nu *user.NewUser) { nu.Email = "taken@test.cd" }, wantField: "email", conflict: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := valid()
			tt.modify(&nu)
			err := nu.Validate(ctx, validate, svc)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)

			var fields []string
			switch e := errors.Cause(err).(type) {
			case validator.ValidationErrors:
				for _, fe := range e {
					fields = append(fields, fe.Field())
				}
			case *core.ValidationError:
				for _, fe := range e.Fields {
					fields = append(fields, fe.Field)
				}
			case *core.ConflictError:
				assert.True(t, tt.conflict, "unexpected conflict: %v", err)
				for _, fe := range e.Fields {
					fields = append(fields, fe.Field)
				}
			default:
				t.Fatalf("unexpected error type %T: %v", err, err)
			}
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestService_Register(t *testing.T) {
	svc, _, _ := setup(t)

	usr, err := svc.Register(context.Background(), user.NewUser{
		Username:  "sneaky",
		FirstName: "Sneaky",
		LastName:  "Pete",
		Password:  testutil.Password,
		Role:      user.RoleAdmin,
		BranchIDs: []string{"8f0dd3e4-8c83-4c4b-9a0a-2f6f3c1d9e11"},
	})
	require.NoError(t, err)
	assert.Equal(t, user.RoleStudent, usr.Role)
	assert.Empty(t, usr.BranchIDs)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword(testutil.Password))
}

func TestService_Update(t *testing.T) {
	svc, repo, validate := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, repo, user.RoleStudent, "student")
	testutil.CreateUser(t, repo, user.RoleStudent, "other")

	uu := user.UpdateUser{Username: testutil.StrPtr("other")}
	err := uu.Validate(ctx, usr, validate, svc)
	var conflict *core.ConflictError
	assert.True(t, errors.As(err, &conflict), "got %v", err)

	role := user.RoleTeacher
	active := false
	uu = user.UpdateUser{Role: &role, IsActive: &active}
	require.NoError(t, uu.Validate(ctx, usr, validate, svc))
	updated, err := svc.Update(ctx, usr.ID, uu)
	require.NoError(t, err)
	assert.Equal(t, user.RoleTeacher, updated.Role)
	assert.False(t, updated.IsActive)
	assert.Equal(t, usr.PasswordHash, updated.PasswordHash, "password unchanged")

	_, err = svc.Update(ctx, "8f0dd3e4-8c83-4c4b-9a0a-2f6f3c1d9e11", uu)
	assert.True(t, core.IsNotFound(err))
}

func TestUpdateProfile_Validate(t *testing.T) {
	_, repo, validate := setup(t)
	usr := testutil.CreateUser(t, repo, user.RoleStudent, "kabasele")

	tests := []struct {
		name    string
		pwd     string
		wantTag string
	}{
		{name: "like the stored username", pwd: "Kabasele#1", wantTag: "pwdtoosim"},
		{name: "unrelated", pwd: "Tr0pical!Sun"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := user.UpdateProfile{
				FirstName:       testutil.StrPtr("Grace"),
				LastName:        testutil.StrPtr("Hopper"),
				Password:        tt.pwd,
				PasswordConfirm: tt.pwd,
			}
			err := up.Validate(validate, usr)
			if tt.wantTag == "" {
				assert.NoError(t, err)
				return
			}
			var vErrs validator.ValidationErrors
			require.True(t, errors.As(err, &vErrs), "got %v", err)
			assert.Equal(t, "Password", vErrs[0].Field())
			assert.Equal(t, tt.wantTag, vErrs[0].Tag())
		})
	}

	t.Run("admin update, like the stored username", func(t *testing.T) {
		uu := user.UpdateUser{FirstName: testutil.StrPtr("Grace"), Password: "Kabasele#1", PasswordConfirm: "Kabasele#1"}
		err := uu.Validate(context.Background(), usr, validate, nil)
		var vErrs validator.ValidationErrors
		require.True(t, errors.As(err, &vErrs), "got %v", err)
		assert.Equal(t, "pwdtoosim", vErrs[0].Tag())
	})
}

func TestService_SetClass(t *testing.T) {
	svc, repo, _ := setup(t)
	teacher := testutil.CreateUser(t, repo, user.RoleTeacher, "teacher")

	_, err := svc.SetClass(context.Background(), teacher.ID, nil)
	var vErr *core.ValidationError
	if assert.True(t, errors.As(err, &vErr)) {
		assert.Equal(t, user.ErrNotAStudent, vErr.Err)
	}
}

func TestService_PasswordReset(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()
	core.ParseEmailTemplates(appfs.FS, core.NewTestConfig(), core.NewStdLogger(nil))
	usr := testutil.CreateUser(t, repo, user.RoleStudent, "forgetful")
	naughty := testutil.CreateUser(t, repo, user.RoleStudent, "naughty", testutil.Inactive)
	emailsvc.ResetSentMessages()

	assert.True(t, core.IsNotFound(svc.RequestPasswordReset(ctx, "nobody@test.cd")))
	assert.True(t, core.IsNotFound(svc.RequestPasswordReset(ctx, naughty.Email)))

	require.NoError(t, svc.RequestPasswordReset(ctx, " FORGETFUL@test.cd"))
	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok)
	data := msg.TemplateData.(map[string]interface{})

	newPwd := "N3w$ecret!"
	_, err := svc.ResetPassword(ctx, user.ResetUserPassword{UID: data["UID"].(string), Token: "lol", Password: newPwd})
	var vErr *core.ValidationError
	assert.True(t, errors.As(err, &vErr))

	updated, err := svc.ResetPassword(ctx, user.ResetUserPassword{UID: data["UID"].(string), Token: data["Token"].(string), Password: newPwd})
	require.NoError(t, err)
	assert.Equal(t, usr.ID, updated.ID)
	assert.NoError(t, updated.CheckPassword(newPwd))
}
