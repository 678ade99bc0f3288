package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
	emailsvc "github.com/trezcool/academia/services/email"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
	"github.com/trezcool/academia/testutil"
)

const newPassword = "N3w$ecret!"

var usrRepo user.Repository

func setup(t *testing.T) *commandLine {
	conf := core.NewTestConfig()
	usrRepo = inmemdb.Open().Repositories().Users
	validate, _ := testutil.NewValidator()

	return &commandLine{
		db:       new(sql.DB), // never dialed: goose runs are mocked
		usrSvc:   user.NewService(usrRepo, emailsvc.NewConsoleServiceMock(conf, core.NewStdLogger(nil)), conf),
		validate: validate,
		out:      io.Discard,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), tt.wantErrStr)
		}
	default:
		assert.NoError(t, err)
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(pwd), nil }
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	origRunFunc := gooseRunFunc
	defer func() { gooseRunFunc = origRunFunc }()
	gooseRunFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	t.Run("no database", func(t *testing.T) {
		cli.db = nil
		assert.Equal(t, errNoDatabase, cli.run([]string{"admin", "migrate", "up"}))
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, user.RoleTeacher, "awe")

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErrStr: "unknown command"},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "--username", "awe"}, wantErr: errNoPassword},
		{name: "user not found", args: []string{"resetpassword", "--username", "lol"}, extra: extra{pwd: newPassword}, wantErr: user.ErrNotFound},
		{name: "weak password", args: []string{"resetpassword", "--username", "awe"}, extra: extra{pwd: "weak"}, wantErrStr: "pwdminlen"},
		{name: "reset with username", args: []string{"resetpassword", "--username", usr.Username}, extra: extra{pwd: newPassword}},
		{name: "reset with email", args: []string{"resetpassword", "--username", usr.Email}, extra: extra{pwd: "An0ther$ecret"}},
	}
	for _, tt := range tests {
		pwd := ""
		if e, ok := tt.extra.(extra); ok {
			pwd = e.pwd
		}
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(append([]string{"admin"}, tt.args...))
			tt.check(t, err)
			if err == nil && len(tt.args) > 0 {
				refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				require.NoError(t, err)
				assert.False(t, bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash), "failed to update new password")
				assert.NoError(t, refreshedUsr.CheckPassword(pwd))
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	student := testutil.CreateUser(t, usrRepo, user.RoleStudent, "kid", testutil.Inactive)

	tests := []cliTest{
		{name: "no identifier", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "--username", "boss"}, wantErr: errNoPassword},
		{name: "invalid role", args: []string{"adduser", "--username", "boss", "--role", "king"}, extra: newPassword, wantErrStr: "role"},
		{name: "create admin", args: []string{"adduser", "--username", "boss", "--email", "boss@test.cd"}, extra: newPassword},
		{name: "promote existing student", args: []string{"adduser", "--username", "kid", "--role", "teacher"}, extra: newPassword},
	}
	for _, tt := range tests {
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	boss, err := usrRepo.GetUser(ctx, user.GetFilter{Username: "boss"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, boss.Role)
	assert.True(t, boss.IsActive)
	assert.NoError(t, boss.CheckPassword(newPassword))

	kid, err := usrRepo.GetUser(ctx, user.GetFilter{ID: student.ID})
	require.NoError(t, err)
	assert.Equal(t, user.RoleTeacher, kid.Role)
	assert.True(t, kid.IsActive)
	assert.NoError(t, kid.CheckPassword(newPassword))
}
