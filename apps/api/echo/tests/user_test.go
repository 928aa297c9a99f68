package tests

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/services/email"
	"github.com/trezcool/shule/tests"
)

func userIDs(users []user.User) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

func Test_userApi_login(t *testing.T) {
	e := setup(t)
	testutil.CreateUser(t, e.usrRepo, "Hero", "hero", "hero@test.cd", "LolC@t123", []string{user.RoleStudent}, true)
	testutil.CreateUser(t, e.usrRepo, "N Dog", "ndog", "ndog@test.cd", "LolC@t123", []string{user.RoleStudent}, false)

	authFailed := marchallObj(t, httpErr{Error: "authentication failed"})
	tests := []struct {
		name     string
		body     echoapi.LoginRequest
		wantCode int
		wantData []byte
	}{
		{name: "required fields", wantCode: http.StatusBadRequest},
		{name: "unknown user", body: echoapi.LoginRequest{Username: "lol", Password: "LolC@t123"}, wantCode: http.StatusBadRequest, wantData: authFailed},
		{name: "wrong password", body: echoapi.LoginRequest{Username: "hero", Password: "lol"}, wantCode: http.StatusBadRequest, wantData: authFailed},
		{
			name: "inactive user", body: echoapi.LoginRequest{Username: "ndog", Password: "LolC@t123"},
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "by username", body: echoapi.LoginRequest{Username: "HERO", Password: "LolC@t123"}, wantCode: http.StatusOK},
		{name: "by email", body: echoapi.LoginRequest{Username: "hero@test.cd", Password: "LolC@t123"}, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", marchallObj(t, tt.body))
			e.app.ServeHTTP(rec, req)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			if tt.wantCode == http.StatusOK {
				var resp echoapi.LoginResponse
				unmarshal(t, rec, &resp)
				assert.NotEmpty(t, resp.Token)
				return
			}
			checkCodeAndData(t, httpTest{wantCode: tt.wantCode, wantData: tt.wantData}, rec)
		})
	}
}

func Test_userApi_me(t *testing.T) {
	e := setup(t)
	student := testutil.CreateUser(t, e.usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	naughty := testutil.CreateUser(t, e.usrRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleStudent}, false)
	ghost := user.User{ID: "4b1e5b7e-0000-4000-8000-000000000000", Username: "ghost"}

	e.runTests(t, []httpTest{
		{name: "Auth required", path: "/v1/users/me", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Deleted user", path: "/v1/users/me", token: getToken(t, e.conf, ghost),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "user not authenticated"}),
		},
		{
			name: "Inactive user", path: "/v1/users/me", token: getToken(t, e.conf, naughty),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	rec := e.do(http.MethodGet, "/v1/users/me", getToken(t, e.conf, student))
	require.Equal(t, http.StatusOK, rec.Code)
	var got user.User
	unmarshal(t, rec, &got)
	assert.Equal(t, student.ID, got.ID)
	assert.Equal(t, student.Username, got.Username)
}

func Test_userApi_userQuery(t *testing.T) {
	e := setup(t)

	path := func(search, ordering string, isActive *bool, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if isActive != nil {
			if *isActive {
				v.Add("is_active", "true")
			} else {
				v.Add("is_active", "false")
			}
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/v1/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	now := time.Now()
	student := testutil.CreateUser(t, e.usrRepo, "Hero", "hero", "user3@test.cd", "", []string{user.RoleStudent}, true, now)
	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true, now.Add(time.Hour))
	teacher := testutil.CreateUser(t, e.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true, now.Add(2*time.Hour))
	librarian := testutil.CreateUser(t, e.usrRepo, "Librarian", "librarian", "library@test.cd", "", []string{user.RoleLibrarian}, true, now.Add(3*time.Hour))
	naughty := testutil.CreateUser(t, e.usrRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleStudent}, false, now.Add(4*time.Hour))

	adminToken := getToken(t, e.conf, admin)

	e.runTests(t, []httpTest{
		{name: "Auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/v1/users", token: getToken(t, e.conf, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "search (unknown)", path: path("lol", "", nil), token: adminToken, wantData: marchallList(t)},
	})

	tests := []struct {
		name string
		path string
		want []user.User
	}{
		{name: "Get all", path: "/v1/users", want: []user.User{naughty, librarian, teacher, admin, student}},
		{name: "role=admin:", path: path("", "", nil, user.RoleAdmin), want: []user.User{admin}},
		{name: "role=teacher:,librarian:", path: path("", "", nil, user.RoleTeacher, user.RoleLibrarian), want: []user.User{librarian, teacher}},
		{name: "is_active=false", path: path("", "", bPtr(false)), want: []user.User{naughty}},
		{name: "search=lib", path: path("lib", "", nil), want: []user.User{librarian}},
		{name: "order by created_at", path: path("", "created_at", nil), want: []user.User{student, admin, teacher, librarian, naughty}},
		{name: "order by -is_active,name", path: path("", "-is_active,name", nil), want: []user.User{admin, student, librarian, teacher, naughty}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodGet, tt.path, adminToken)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var got []user.User
			unmarshal(t, rec, &got)
			assert.Equal(t, userIDs(tt.want), userIDs(got))
		})
	}
}

func Test_userApi_userRefreshToken(t *testing.T) {
	e := setup(t)
	naughty := testutil.CreateUser(t, e.usrRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleStudent}, false)
	student := testutil.CreateUser(t, e.usrRepo, "Hero", "hero", "user3@test.cd", "", []string{user.RoleStudent}, true)

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    e.conf.AppName,
			Subject:   student.ID,
			Audience:  "Shule",
			ExpiresAt: now.Add(e.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * e.conf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		IsStudent:    student.IsStudent(),
		Roles:        student.Roles,
	}
	unrefreshableToken, err := echoapi.GenerateToken(e.conf, unrefreshableClaims)
	require.NoError(t, err)

	path := "/v1/users/token-refresh"
	e.runTests(t, []httpTest{
		{name: "Auth required", method: http.MethodPost, path: path, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Inactive user not allowed", method: http.MethodPost, path: path, token: getToken(t, e.conf, naughty),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "Refresh period expired", method: http.MethodPost, path: path, token: unrefreshableToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
	})

	// cannot guess new token.. just check that it's not empty
	rec := e.do(http.MethodPost, path, getToken(t, e.conf, student))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp echoapi.LoginResponse
	unmarshal(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
}

func Test_userApi_passwordReset(t *testing.T) {
	e := setup(t)
	student := testutil.CreateUser(t, e.usrRepo, "Hero", "hero", "user3@test.cd", "lol", []string{user.RoleStudent}, true)
	successData := marchallObj(t, echoapi.SuccessResponse{Success: "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."})

	e.runTests(t, []httpTest{
		{
			name: "invalid email", method: http.MethodPost, path: "/v1/users/password-reset", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.PasswordResetRequest{Email: "lol"}),
			wantData: marchallObj(t, echoapi.PasswordResetRequest{Email: "email must be a valid email address"}),
		},
		{
			name: "unknown email", method: http.MethodPost, path: "/v1/users/password-reset",
			body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol@test.com"}), wantData: successData,
		},
	})
	assert.Empty(t, emailsvc.SentMessages)

	rec := e.do(http.MethodPost, "/v1/users/password-reset", "", marchallObj(t, echoapi.PasswordResetRequest{Email: student.Email}))
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: successData}, rec)

	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok)
	require.Len(t, msg.To, 1)
	assert.Equal(t, student.Email, msg.To[0].Address)
	assert.Contains(t, msg.TextContent, student.Name)
	data, ok := msg.TemplateData.(map[string]interface{})
	require.True(t, ok)

	valid := user.ResetUserPassword{
		Token:           data["Token"].(string),
		UID:             data["UID"].(string),
		Password:        "LolC@t123",
		PasswordConfirm: "LolC@t123",
	}
	badToken := valid
	badToken.Token = "HE4TS-sigsig-sig"
	mismatch := valid
	mismatch.PasswordConfirm = "lol"

	confirmPath := "/v1/users/password-reset-confirm"
	e.runTests(t, []httpTest{
		{
			name: "invalid pwd: too common", method: http.MethodPost, path: confirmPath, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "P@$$w0rd", PasswordConfirm: "P@$$w0rd"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password is too common"}),
		},
		{
			name: "PasswordConfirm must = Password", method: http.MethodPost, path: confirmPath, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, mismatch),
			wantData: marchallObj(t, user.ResetUserPassword{PasswordConfirm: "password_confirm must be equal to Password"}),
		},
		{name: "invalid token", method: http.MethodPost, path: confirmPath, wantCode: http.StatusBadRequest, body: marchallObj(t, badToken)},
		{
			name: "valid token", method: http.MethodPost, path: confirmPath, body: marchallObj(t, valid),
			wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been reset with the new password."}),
		},
	})

	refreshed, err := e.usrRepo.GetUser(context.Background(), user.GetFilter{ID: student.ID})
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("LolC@t123"))
}

func Test_userApi_destroy(t *testing.T) {
	e := setup(t)
	owner := testutil.CreateUser(t, e.usrRepo, "Owner", "owner", "owner@test.cd", "", []string{user.RoleAdminOwner}, true)
	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	student := testutil.CreateUser(t, e.usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	adminToken := getToken(t, e.conf, admin)

	e.runTests(t, []httpTest{
		{name: "Admin required", method: http.MethodDelete, path: "/v1/users/" + admin.ID, token: getToken(t, e.conf, student), wantCode: http.StatusNotFound},
		{name: "Higher role", method: http.MethodDelete, path: "/v1/users/" + owner.ID, token: adminToken, wantCode: http.StatusForbidden},
		{name: "Deleted", method: http.MethodDelete, path: "/v1/users/" + student.ID, token: adminToken, wantCode: http.StatusNoContent},
		{name: "Already deleted", method: http.MethodDelete, path: "/v1/users/" + student.ID, token: adminToken, wantCode: http.StatusNotFound},
	})
}
