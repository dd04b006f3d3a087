package session

import "github.com/matheus3301/clinicsync/internal/config"

const DefaultSessionName = "main"

// Resolve picks the session name: the --session flag wins, then the
// config's default_session, then "main". cfg may be nil.
func Resolve(flagOverride string, cfg *config.Config) string {
	if flagOverride != "" {
		return flagOverride
	}
	if cfg != nil && cfg.DefaultSession != "" {
		return cfg.DefaultSession
	}
	return DefaultSessionName
}
