package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasRole(t *testing.T) {
	editor := &Principal{ID: 1, Role: RoleEditor}
	admin := &Principal{ID: 2, Role: RoleAdministrator}
	member := &Principal{ID: 3, Role: RoleNone}

	tests := []struct {
		name      string
		principal *Principal
		minimum   *Role
		want      bool
	}{
		{"anonymous passes when no role required", nil, nil, true},
		{"anonymous fails NONE", nil, RolePtr(RoleNone), false},
		{"member passes NONE", member, RolePtr(RoleNone), true},
		{"member fails EDITOR", member, RolePtr(RoleEditor), false},
		{"editor passes EDITOR", editor, RolePtr(RoleEditor), true},
		{"editor fails ADMINISTRATOR", editor, RolePtr(RoleAdministrator), false},
		{"admin passes EDITOR", admin, RolePtr(RoleEditor), true},
		{"admin passes ADMINISTRATOR", admin, RolePtr(RoleAdministrator), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasRole(tt.principal, tt.minimum))
		})
	}
}

func TestInGroup(t *testing.T) {
	p := &Principal{ID: 1, Role: RoleNone, GroupIDs: []int64{4, 9}}
	assert.True(t, p.InGroup(4))
	assert.False(t, p.InGroup(5))

	var anon *Principal
	assert.False(t, anon.InGroup(4))
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	p := &Principal{ID: 7, Role: RoleEditor}
	ctx := WithPrincipal(context.Background(), p)
	assert.Same(t, p, PrincipalFromContext(ctx))
	assert.Nil(t, PrincipalFromContext(context.Background()))
}

func TestRoleParsing(t *testing.T) {
	r, err := ParseRole("ADMINISTRATOR")
	require.NoError(t, err)
	assert.Equal(t, RoleAdministrator, r)

	_, err = ParseRole("SUPERUSER")
	assert.Error(t, err)
}

func TestRoleScan(t *testing.T) {
	var r Role
	require.NoError(t, r.Scan("EDITOR"))
	assert.Equal(t, RoleEditor, r)

	require.NoError(t, r.Scan([]byte("NONE")))
	assert.Equal(t, RoleNone, r)

	assert.Error(t, r.Scan(42))
}
