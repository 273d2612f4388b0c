package session

import "github.com/matheus3301/wgram/internal/config"

const DefaultSessionName = "main"

// Resolve determines the active session name using precedence:
// 1. flagOverride (--session flag)
// 2. config.toml default_session
// 3. "main"
func Resolve(flagOverride string) string {
	name, _ := ResolveWith(flagOverride)
	return name
}

// ResolveWith is Resolve that also returns the loaded configuration, or the
// defaults when config.toml is missing or unreadable.
func ResolveWith(flagOverride string) (string, *config.Config) {
	cfg, err := config.LoadOrDefault(ConfigPath())
	if err != nil {
		cfg = config.Default()
	}
	switch {
	case flagOverride != "":
		return flagOverride, cfg
	case cfg.DefaultSession != "":
		return cfg.DefaultSession, cfg
	default:
		return DefaultSessionName, cfg
	}
}
