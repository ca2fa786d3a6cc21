package config

import "time"

// InstallerConfig holds runtime configuration for the installer service.
type InstallerConfig struct {
	Environment      string
	Addr             string
	AppURL           string
	LogLevel         string
	EnvFilePath      string
	EnvExamplePath   string
	LicenseAPIURL    string
	LicenseTimeout   time.Duration
	ProbeTimeout     time.Duration
	DatabaseSSLMode  string
	MigrationsDir    string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	NoticeChannel    string
	RateLimit        int
	RateLimitWindow  time.Duration
	ShutdownTimeout  time.Duration
	MigrationTimeout time.Duration
}

// LoadInstallerConfig constructs an InstallerConfig from environment variables.
func LoadInstallerConfig() InstallerConfig {
	return InstallerConfig{
		Environment:      GetString("APP_ENV", "production"),
		Addr:             GetString("INSTALLER_ADDR", ":8080"),
		AppURL:           GetString("APP_URL", "http://localhost"),
		LogLevel:         GetString("LOG_LEVEL", "info"),
		EnvFilePath:      GetString("INSTALLER_ENV_FILE", ".env"),
		EnvExamplePath:   GetString("INSTALLER_ENV_EXAMPLE", ".env.example"),
		LicenseAPIURL:    GetString("LICENSE_API_URL", "https://license.devjamv.com/api/verify"),
		LicenseTimeout:   GetSeconds("LICENSE_TIMEOUT_SECONDS", 15*time.Second),
		ProbeTimeout:     GetSeconds("DB_PROBE_TIMEOUT_SECONDS", 5*time.Second),
		DatabaseSSLMode:  GetString("DB_SSLMODE", "prefer"),
		MigrationsDir:    GetString("INSTALLER_MIGRATIONS_DIR", "db/migrations"),
		RedisAddr:        GetString("REDIS_ADDR", ""),
		RedisPassword:    GetString("REDIS_PASSWORD", ""),
		RedisDB:          GetInt("REDIS_DB", 0),
		NoticeChannel:    GetString("INSTALLER_NOTICE_CHANNEL", "installer:notices"),
		RateLimit:        GetInt("INSTALLER_RATE_LIMIT", 10),
		RateLimitWindow:  GetSeconds("INSTALLER_RATE_WINDOW_SECONDS", time.Minute),
		ShutdownTimeout:  GetSeconds("INSTALLER_SHUTDOWN_SECONDS", 10*time.Second),
		MigrationTimeout: GetSeconds("INSTALLER_MIGRATION_TIMEOUT_SECONDS", time.Minute),
	}
}
