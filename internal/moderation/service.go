package moderation

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// Service resolves staff permissions from the staff config file.
// Members can be granted a role directly by user ID or through a platform role.
type Service struct {
	mu         sync.RWMutex
	config     *Config
	configPath string

	// Quick lookup maps built from config
	userRoles     map[string]*Role // user ID -> Role
	platformRoles map[string]*Role // platform role ID -> Role
}

// NewService creates a new staff permission service.
// If configPath is empty, the service will be in "disabled" mode
// where all permission checks return false and only platform
// permission bits authorize commands.
func NewService(configPath string) (*Service, error) {
	s := &Service{
		configPath:    configPath,
		userRoles:     make(map[string]*Role),
		platformRoles: make(map[string]*Role),
	}

	if configPath == "" {
		log.Info().Msg("moderation: no staff config path provided, service disabled")
		return s, nil
	}

	if err := s.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load staff config: %w", err)
	}

	return s, nil
}

// loadConfig reads and parses the config file
func (s *Service) loadConfig() error {
	data, err := os.ReadFile(s.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", s.configPath).Msg("moderation: staff config file not found, service disabled")
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.config = &config
	s.rebuildLookupMaps()

	log.Info().
		Int("roles", len(config.Roles)).
		Int("users", len(config.Users)).
		Int("platform_roles", len(config.PlatformRoles)).
		Str("path", s.configPath).
		Msg("moderation: staff config loaded")

	return nil
}

// rebuildLookupMaps rebuilds the quick lookup maps from config
// Caller must hold the write lock
func (s *Service) rebuildLookupMaps() {
	s.userRoles = make(map[string]*Role)
	s.platformRoles = make(map[string]*Role)

	if s.config == nil {
		return
	}

	for _, user := range s.config.Users {
		if role, ok := s.config.Roles[user.Role]; ok {
			s.userRoles[user.ID] = role
		}
	}

	for _, pr := range s.config.PlatformRoles {
		if role, ok := s.config.Roles[pr.Role]; ok {
			s.platformRoles[pr.ID] = role
		}
	}
}

// Reload reloads the configuration from disk
func (s *Service) Reload() error {
	if s.configPath == "" {
		return nil
	}
	return s.loadConfig()
}

// IsEnabled returns true if a staff config is loaded and grants at least one role
func (s *Service) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config != nil && (len(s.config.Users) > 0 || len(s.config.PlatformRoles) > 0)
}

// roles returns every role granted to the member, directly or via platform roles.
// Caller must hold the read lock.
func (s *Service) roles(userID string, roleIDs []string) []*Role {
	var out []*Role
	if role, ok := s.userRoles[userID]; ok {
		out = append(out, role)
	}
	for _, id := range roleIDs {
		if role, ok := s.platformRoles[id]; ok {
			out = append(out, role)
		}
	}
	return out
}

// HasPermission returns true if any of the member's staff roles grants permission
func (s *Service) HasPermission(userID string, roleIDs []string, permission Permission) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, role := range s.roles(userID, roleIDs) {
		if role.HasPermission(permission) {
			return true
		}
	}
	return false
}
