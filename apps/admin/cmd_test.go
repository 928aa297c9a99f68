package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/academics"
	"github.com/trezcool/shule/core/library"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/services/email"
	"github.com/trezcool/shule/storage/database/sqlxrepos"
	"github.com/trezcool/shule/tests"
)

var (
	usrRepo user.Repository
	acaRepo academics.Repository
)

func setup(t *testing.T) *commandLine {
	// set up DB & repos
	conf := testutil.NewConfig()
	db := testutil.PrepareDB(t)
	usrRepo = sqlxrepos.NewUserRepository(db)
	acaRepo = sqlxrepos.NewAcademicsRepository(db)

	// start CLI
	return &commandLine{
		conf:    conf,
		db:      db,
		usrRepo: usrRepo,
		acaSvc:  academics.NewService(db, acaRepo),
		libSvc:  library.NewService(db, sqlxrepos.NewLibraryRepository(db), emailsvc.NewConsoleServiceMock(conf), conf),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		if pwd == "" {
			return nil, nil
		}
		return []byte(pwd), nil
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "timetable", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	mockPassword("")
	assert.Equal(t, errHelp, cli.run([]string{"admin", "adduser"}))
	assert.Equal(t, errHelp, cli.run([]string{"admin", "adduser", "-username", "boss", "-email", "boss@test.cd"}))

	mockPassword("LolC@t123")
	err := cli.run([]string{"admin", "adduser", "-username", "boss", "-email", "boss@test.cd", "-roles", "lol:"})
	assert.Equal(t, errUnknownRole, errors.Cause(err))

	require.NoError(t, cli.run([]string{"admin", "adduser", "-username", "Boss", "-email", "boss@test.cd", "-name", "The Boss"}))
	usr, err := usrRepo.GetUser(ctx, user.GetFilter{Username: "boss"})
	require.NoError(t, err)
	assert.Equal(t, "The Boss", usr.Name)
	assert.Equal(t, []string{user.RoleAdminOwner}, usr.Roles)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("LolC@t123"))

	// existing users are updated
	mockPassword("N3wC@t123")
	require.NoError(t, cli.run([]string{"admin", "adduser", "-username", "boss", "-email", "boss@test.cd", "-roles", "admin:,teacher:"}))
	updated, err := usrRepo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{user.RoleAdmin, user.RoleTeacher}, updated.Roles)
	assert.Equal(t, "The Boss", updated.Name)
	assert.NoError(t, updated.CheckPassword("N3wC@t123"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		if e, ok := tt.extra.(extra); ok {
			mockPassword(e.pwd)
		} else {
			mockPassword("")
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
			require.NoError(t, err)
			if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
				t.Error("failed to update new password")
			}
		})
	}
}

func Test_commandLine_setCurrent(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()
	sess := testutil.CreateSession(t, acaRepo, "2024/2025")
	term := testutil.CreateTerm(t, acaRepo, "First Term")

	tests := []cliTest{
		{name: "no flags", args: []string{"setcurrent"}, wantErr: errHelp},
		{name: "both flags", args: []string{"setcurrent", "-session", sess.Name, "-term", term.Name}, wantErr: errHelp},
		{name: "unknown session", args: []string{"setcurrent", "-session", "1999/2000"}, wantErr: academics.ErrSessionNotFound},
		{name: "session", args: []string{"setcurrent", "-session", sess.Name}},
		{name: "term", args: []string{"setcurrent", "-term", term.Name}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			assert.NoError(t, err)
		})
	}

	current, err := cli.acaSvc.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, current.ID)
	currentTerm, err := cli.acaSvc.CurrentTerm(ctx)
	require.NoError(t, err)
	assert.Equal(t, term.ID, currentTerm.ID)
}

func Test_commandLine_notifyOverdue(t *testing.T) {
	cli := setup(t)
	assert.NoError(t, cli.run([]string{"admin", "notifyoverdue"}))
}
