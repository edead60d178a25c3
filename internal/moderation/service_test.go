package moderation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStaffConfig = `{
	"roles": {
		"admin": {
			"description": "Full server control",
			"permissions": ["ban_members", "kick_members", "timeout_members", "manage_messages", "mass_ban", "warn_members", "manage_notes", "view_records", "configure_logs", "view_audit_log"]
		},
		"moderator": {
			"description": "Day to day moderation",
			"permissions": ["kick_members", "timeout_members", "manage_messages", "warn_members", "view_records"]
		}
	},
	"users": [
		{"id": "100", "handle": "owner", "role": "admin", "note": "Server owner"},
		{"id": "200", "handle": "helper", "role": "moderator"}
	],
	"platform_roles": [
		{"id": "900", "role": "moderator"}
	]
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "staff.json")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func createTestService(t *testing.T) *Service {
	svc, err := NewService(writeConfig(t, testStaffConfig))
	require.NoError(t, err)
	return svc
}

func TestNewService_NoConfig(t *testing.T) {
	// Service should work in disabled mode with empty config path
	svc, err := NewService("")
	require.NoError(t, err)
	assert.NotNil(t, svc)
	assert.False(t, svc.IsEnabled())
	assert.False(t, svc.HasPermission("1", nil, PermissionBanMembers))
}

func TestNewService_MissingFile(t *testing.T) {
	svc, err := NewService("/nonexistent/path/staff.json")
	require.NoError(t, err)
	assert.False(t, svc.IsEnabled())
}

func TestNewService_InvalidJSON(t *testing.T) {
	_, err := NewService(writeConfig(t, "not valid json"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestNewService_InvalidRole(t *testing.T) {
	config := `{
		"roles": {"admin": {"description": "Admin", "permissions": ["ban_members"]}},
		"users": [{"id": "1", "role": "nonexistent"}]
	}`
	_, err := NewService(writeConfig(t, config))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestNewService_InvalidPlatformRole(t *testing.T) {
	config := `{
		"roles": {"admin": {"description": "Admin", "permissions": ["ban_members"]}},
		"platform_roles": [{"id": "55", "role": "janitor"}]
	}`
	_, err := NewService(writeConfig(t, config))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "platform role 55")
}

func TestHasPermission(t *testing.T) {
	svc := createTestService(t)
	assert.True(t, svc.IsEnabled())

	assert.True(t, svc.HasPermission("100", nil, PermissionBanMembers))
	assert.True(t, svc.HasPermission("100", nil, PermissionMassBan))

	assert.True(t, svc.HasPermission("200", nil, PermissionKickMembers))
	assert.False(t, svc.HasPermission("200", nil, PermissionBanMembers))

	assert.True(t, svc.HasPermission("300", []string{"900"}, PermissionManageMessages))
	assert.False(t, svc.HasPermission("300", []string{"900"}, PermissionConfigureLogs))

	// A platform role can add to a direct grant
	assert.True(t, svc.HasPermission("200", []string{"900"}, PermissionWarnMembers))
	assert.False(t, svc.HasPermission("unknown", nil, PermissionKickMembers))
}

func TestReload(t *testing.T) {
	configPath := writeConfig(t, `{
		"roles": {"admin": {"description": "Admin", "permissions": ["ban_members"]}},
		"users": [{"id": "1", "role": "admin"}]
	}`)

	svc, err := NewService(configPath)
	require.NoError(t, err)
	assert.True(t, svc.HasPermission("1", nil, PermissionBanMembers))
	assert.False(t, svc.HasPermission("2", nil, PermissionBanMembers))

	err = os.WriteFile(configPath, []byte(`{
		"roles": {"admin": {"description": "Admin", "permissions": ["ban_members"]}},
		"users": [{"id": "1", "role": "admin"}, {"id": "2", "role": "admin"}]
	}`), 0644)
	require.NoError(t, err)

	require.NoError(t, svc.Reload())
	assert.True(t, svc.HasPermission("2", nil, PermissionBanMembers))
}

func TestRole_HasPermission(t *testing.T) {
	role := &Role{
		Name:        "moderator",
		Permissions: []Permission{PermissionKickMembers, PermissionViewRecords},
	}

	assert.True(t, role.HasPermission(PermissionKickMembers))
	assert.False(t, role.HasPermission(PermissionBanMembers))
}

func TestConfig_Validate(t *testing.T) {
	t.Run("nil roles map", func(t *testing.T) {
		config := &Config{}
		assert.NoError(t, config.Validate())
		assert.NotNil(t, config.Roles)
	})

	t.Run("valid config sets role names", func(t *testing.T) {
		config := &Config{
			Roles: map[RoleName]*Role{"admin": {Description: "Admin"}},
			Users: []StaffUser{{ID: "1", Role: "admin"}},
		}
		assert.NoError(t, config.Validate())
		assert.Equal(t, RoleName("admin"), config.Roles[RoleName("admin")].Name)
	})

	t.Run("every known permission is accepted", func(t *testing.T) {
		config := &Config{Roles: map[RoleName]*Role{"admin": {Permissions: AllPermissions()}}}
		assert.NoError(t, config.Validate())
	})

	t.Run("unknown permission", func(t *testing.T) {
		config := &Config{Roles: map[RoleName]*Role{"janitor": {Permissions: []Permission{"mop_floors"}}}}
		err := config.Validate()
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "roles", cfgErr.Field)
		assert.Contains(t, err.Error(), "mop_floors")
	})

	t.Run("empty role", func(t *testing.T) {
		config := &Config{Roles: map[RoleName]*Role{"ghost": nil}}
		assert.Error(t, config.Validate())
	})
}

func TestNewService_UnknownPermission(t *testing.T) {
	_, err := NewService(writeConfig(t, `{
		"roles": {"moderator": {"permissions": ["kick_members", "ban_everyone"]}}
	}`))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown permission: ban_everyone")
}

func TestDisabledService(t *testing.T) {
	svc, err := NewService("")
	require.NoError(t, err)

	assert.False(t, svc.HasPermission("1", []string{"900"}, PermissionKickMembers))

	// Reload should be a no-op
	assert.NoError(t, svc.Reload())
}
