package config

import "time"

// loadDevelopmentConfig applies local overrides when ENVIRONMENT=development.
// Sweeps are checked every few seconds so reminders can be tried by hand.
func loadDevelopmentConfig(cfg *Config) {
	cfg.DatabaseDebug = true
	cfg.ServerHost = "127.0.0.1"
	cfg.SchedulerInterval = 5 * time.Second
	if cfg.DatabaseFilePath == "" {
		cfg.DatabaseFilePath = "./tmp/serenity.sqlite"
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "development-only-secret"
	}
}
