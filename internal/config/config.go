package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Backends understood by the daemon.
const (
	BackendLoopback = "loopback"
	BackendWhatsApp = "whatsapp"
)

// Config represents the global ~/.wgram/config.toml.
type Config struct {
	DefaultSession string              `toml:"default_session"`
	Backend        string              `toml:"backend"`
	LogLevel       string              `toml:"log_level"`
	History        HistoryConfig       `toml:"history"`
	Chats          ChatsConfig         `toml:"chats"`
	Notifications  NotificationsConfig `toml:"notifications"`
}

type HistoryConfig struct {
	PageSize int32 `toml:"page_size"`
}

type ChatsConfig struct {
	LoadLimit int32 `toml:"load_limit"`
}

type NotificationsConfig struct {
	// GroupCountMax caps how many notifications each group keeps.
	GroupCountMax int64 `toml:"group_count_max"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Backend:       BackendWhatsApp,
		LogLevel:      "info",
		History:       HistoryConfig{PageSize: 50},
		Chats:         ChatsConfig{LoadLimit: 100},
		Notifications: NotificationsConfig{GroupCountMax: 10},
	}
}

// Load reads config from the given path on top of Default. Returns nil and the
// error if the file is missing or malformed.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load that falls back to Default when the file is missing.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
