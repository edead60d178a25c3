package moderation

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a record does not exist
var ErrNotFound = errors.New("moderation: record not found")

// Permission represents a moderation action that can be performed
type Permission string

const (
	PermissionBanMembers     Permission = "ban_members"
	PermissionKickMembers    Permission = "kick_members"
	PermissionTimeoutMembers Permission = "timeout_members"
	PermissionManageMessages Permission = "manage_messages"
	PermissionMassBan        Permission = "mass_ban"
	PermissionWarnMembers    Permission = "warn_members"
	PermissionManageNotes    Permission = "manage_notes"
	PermissionViewRecords    Permission = "view_records"
	PermissionConfigureLogs  Permission = "configure_logs"
	PermissionViewAuditLog   Permission = "view_audit_log"
	PermissionManageNicks    Permission = "manage_nicknames"
)

// AllPermissions returns all available permissions
func AllPermissions() []Permission {
	return []Permission{
		PermissionBanMembers,
		PermissionKickMembers,
		PermissionTimeoutMembers,
		PermissionManageMessages,
		PermissionMassBan,
		PermissionWarnMembers,
		PermissionManageNotes,
		PermissionViewRecords,
		PermissionConfigureLogs,
		PermissionViewAuditLog,
		PermissionManageNicks,
	}
}

// RoleName represents the name of a moderation role
type RoleName string

// Role defines a set of permissions for staff members
type Role struct {
	Name        RoleName     `json:"-"` // Set from map key during loading
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
}

// HasPermission checks if this role has the given permission
func (r *Role) HasPermission(perm Permission) bool {
	for _, p := range r.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// StaffUser grants a moderation role to a single platform user
type StaffUser struct {
	ID     string   `json:"id"`
	Handle string   `json:"handle,omitempty"`
	Role   RoleName `json:"role"`
	Note   string   `json:"note,omitempty"`
}

// StaffRole grants a moderation role to everyone holding a platform role
type StaffRole struct {
	ID   string   `json:"id"`
	Role RoleName `json:"role"`
}

// Config represents the staff configuration loaded from JSON
type Config struct {
	Roles         map[RoleName]*Role `json:"roles"`
	Users         []StaffUser        `json:"users"`
	PlatformRoles []StaffRole        `json:"platform_roles"`
}

// Validate checks that the config is valid
func (c *Config) Validate() error {
	if c.Roles == nil {
		c.Roles = make(map[RoleName]*Role)
	}

	for _, user := range c.Users {
		if _, ok := c.Roles[user.Role]; !ok {
			return &ConfigError{
				Field:   "users",
				Message: "user " + user.ID + " references unknown role: " + string(user.Role),
			}
		}
	}

	for _, pr := range c.PlatformRoles {
		if _, ok := c.Roles[pr.Role]; !ok {
			return &ConfigError{
				Field:   "platform_roles",
				Message: "platform role " + pr.ID + " references unknown role: " + string(pr.Role),
			}
		}
	}

	known := make(map[Permission]struct{}, len(AllPermissions()))
	for _, p := range AllPermissions() {
		known[p] = struct{}{}
	}

	// Set role names from map keys
	for name, role := range c.Roles {
		if role == nil {
			return &ConfigError{Field: "roles", Message: "role " + string(name) + " is empty"}
		}
		for _, p := range role.Permissions {
			if _, ok := known[p]; !ok {
				return &ConfigError{
					Field:   "roles",
					Message: "role " + string(name) + " grants unknown permission: " + string(p),
				}
			}
		}
		role.Name = name
	}

	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "moderation config error in " + e.Field + ": " + e.Message
}

// Warning is a durable strike recorded against a member
type Warning struct {
	ID          int64     `json:"id"`
	GuildID     string    `json:"guild_id"`
	UserID      string    `json:"user_id"`
	ModeratorID string    `json:"moderator_id"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}

// Note is a private staff annotation on a member
type Note struct {
	ID        int64     `json:"id"`
	GuildID   string    `json:"guild_id"`
	UserID    string    `json:"user_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditAction represents a type of moderation action
type AuditAction string

const (
	AuditActionBan          AuditAction = "ban"
	AuditActionUnban        AuditAction = "unban"
	AuditActionKick         AuditAction = "kick"
	AuditActionMute         AuditAction = "mute"
	AuditActionUnmute       AuditAction = "unmute"
	AuditActionClear        AuditAction = "clear"
	AuditActionPurge        AuditAction = "purge"
	AuditActionMassBan      AuditAction = "massban"
	AuditActionWarn         AuditAction = "warn"
	AuditActionDeleteWarn   AuditAction = "delete_warning"
	AuditActionClearWarns   AuditAction = "clear_warnings"
	AuditActionNote         AuditAction = "note"
	AuditActionDeleteNote   AuditAction = "delete_note"
	AuditActionClearNotes   AuditAction = "clear_notes"
	AuditActionNickname     AuditAction = "nickname"
	AuditActionConfigureLog AuditAction = "configure_log"
)

// AuditEntry represents a logged moderation action
type AuditEntry struct {
	ID        string            `json:"id"`
	GuildID   string            `json:"guild_id"`
	Action    AuditAction       `json:"action"`
	ActorID   string            `json:"actor_id"`
	TargetID  string            `json:"target_id"` // member, channel or comma-joined member IDs
	Reason    string            `json:"reason"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
