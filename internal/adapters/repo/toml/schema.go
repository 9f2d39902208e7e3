package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version int          `toml:"version"`
	Users   []userSchema `toml:"users"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported users schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type userSchema struct {
	ID           string        `toml:"id"`
	Login        string        `toml:"login"`
	PasswordHash string        `toml:"password_hash"`
	Profile      profileSchema `toml:"profile"`
}

type profileSchema struct {
	FullName string `toml:"full_name,omitempty"`
	Color    string `toml:"color,omitempty"`
	ImageURL string `toml:"image_url,omitempty"`
}
