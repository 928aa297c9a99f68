package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActorFor(t *testing.T) {
	tests := []struct {
		name           string
		roles          []string
		wantOk         bool
		wantKind       Kind
		wantPrivileged bool
	}{
		{name: "no roles"},
		{name: "admin", roles: []string{RoleAdmin}, wantOk: true, wantKind: KindAdmin, wantPrivileged: true},
		{name: "admin owner", roles: []string{RoleAdminOwner}, wantOk: true, wantKind: KindAdmin, wantPrivileged: true},
		{name: "teacher", roles: []string{RoleTeacher}, wantOk: true, wantKind: KindTeacher},
		{name: "librarian", roles: []string{RoleLibrarian}, wantOk: true, wantKind: KindLibrarian},
		{name: "student", roles: []string{RoleStudent}, wantOk: true, wantKind: KindStudent},
		{name: "teacher & admin", roles: []string{RoleTeacher, RoleAdminPrincipal}, wantOk: true, wantKind: KindAdmin, wantPrivileged: true},
		{name: "student & librarian", roles: []string{RoleStudent, RoleLibrarian}, wantOk: true, wantKind: KindLibrarian},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr := User{ID: "1", Roles: tt.roles}
			act, ok := ActorFor(usr)
			assert.Equal(t, tt.wantOk, ok)
			if !tt.wantOk {
				assert.Nil(t, act)
				return
			}
			assert.Equal(t, tt.wantKind, act.Kind())
			assert.Equal(t, tt.wantPrivileged, act.Privileged())
			assert.Equal(t, usr.ID, act.User().ID)
			assert.True(t, HasKind(act, tt.wantKind))
		})
	}
	assert.False(t, HasKind(nil, KindAdmin))
}

func TestMaxRolePriority(t *testing.T) {
	assert.Equal(t, 0, MaxRolePriority(nil))
	assert.Equal(t, 30, MaxRolePriority([]string{RoleStudent, RoleAdminOwner}))
	assert.Equal(t, 12, MaxRolePriority([]string{RoleLibrarian, RoleTeacher}))
	assert.Equal(t, 0, MaxRolePriority([]string{"lol"}))
}
