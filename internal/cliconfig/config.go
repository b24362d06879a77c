// Package cliconfig loads and saves the knot CLI's on-disk state: the
// registry URL and the saved session token, TOML-encoded in the teacher's
// pelletier/go-toml/v2 style (tools/si's Settings).
package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config is the knot CLI's persisted settings file, ~/.config/knot/config.toml.
type Config struct {
	RegistryURL string `toml:"registry_url,omitempty"`
}

// Session is the knot CLI's persisted session file, ~/.config/knot/session.toml.
// Kept separate from Config so `knot logout` can drop credentials without
// touching the registry URL a user configured.
type Session struct {
	Username string `toml:"username,omitempty"`
	Token    string `toml:"token,omitempty"`
}

func dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "knot"), nil
}

func configPath() (string, error) {
	d, err := dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "config.toml"), nil
}

func sessionPath() (string, error) {
	d, err := dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "session.toml"), nil
}

// LoadConfig reads the CLI config, returning a zero-value Config if the file
// does not exist yet.
func LoadConfig() (Config, error) {
	path, err := configPath()
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, err
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes the CLI config, creating its directory if needed.
func SaveConfig(cfg Config) error {
	d, err := dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d, 0o700); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	path, err := configPath()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadSession reads the saved session, returning a zero-value Session if the
// user has never logged in.
func LoadSession() (Session, error) {
	path, err := sessionPath()
	if err != nil {
		return Session{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Session{}, nil
		}
		return Session{}, err
	}
	var sess Session
	if err := toml.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return sess, nil
}

// SaveSession persists a session after a successful login.
func SaveSession(sess Session) error {
	d, err := dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d, 0o700); err != nil {
		return err
	}
	data, err := toml.Marshal(sess)
	if err != nil {
		return err
	}
	path, err := sessionPath()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// ClearSession removes the session file, used by `knot logout`.
func ClearSession() error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
