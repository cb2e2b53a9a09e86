package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	Session  SessionConfig
	CORS     CORSConfig
	Log      LogConfig
	Enrol    EnrolConfig
	Sync     SyncConfig
	Roster   RosterConfig
	Mail     MailConfig
}

// MailConfig selects the welcome-mail transport and tunes the background
// delivery queue.
type MailConfig struct {
	Provider       string
	SendGridAPIKey string
	FromName       string
	FromEmail      string
	QueueWorkers   int
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// SessionConfig holds the secret for verifying host-issued session tokens
// and the signing secret for unenrol confirmation tokens.
type SessionConfig struct {
	TokenSecret   string
	ConfirmSecret string
	ConfirmTTL    time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EnrolConfig carries the site-wide defaults seeded into new enrolment
// instances, mirroring the plugin's admin settings.
type EnrolConfig struct {
	DefaultStatusEnabled   bool
	DefaultRoleID          int64
	ParentRoleID           int64
	DefaultEnrolPeriod     time.Duration
	DefaultMaxEnrolled     int
	DefaultGroupKey        bool
	DefaultNewEnrols       bool
	DefaultSendWelcome     bool
	ParentsCanEnrol        bool
	ParentsCanUnenrol      bool
	ParentsCountedInMax    bool
	DefaultExpiryThreshold time.Duration
	DefaultExpiryNotify    int
	RequirePassword        bool
	ShowKeyHint            bool
	GuestUserID            int64
	SupportEmail           string
	SiteURL                string
}

// SyncConfig controls the inactivity sync job.
type SyncConfig struct {
	Enabled bool
	Cron    string
}

// RosterConfig tunes roster export caching and the on-disk archive. An
// empty ArchiveDir disables archiving.
type RosterConfig struct {
	CacheTTL   time.Duration
	ArchiveDir string
	ArchiveTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Session = SessionConfig{
		TokenSecret:   v.GetString("SESSION_TOKEN_SECRET"),
		ConfirmSecret: v.GetString("CONFIRM_TOKEN_SECRET"),
		ConfirmTTL:    parseDuration(v.GetString("CONFIRM_TOKEN_TTL"), 15*time.Minute),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Enrol = EnrolConfig{
		DefaultStatusEnabled:   v.GetBool("ENROL_DEFAULT_ENABLED"),
		DefaultRoleID:          v.GetInt64("ENROL_DEFAULT_ROLE_ID"),
		ParentRoleID:           v.GetInt64("ENROL_PARENT_ROLE_ID"),
		DefaultEnrolPeriod:     parseDuration(v.GetString("ENROL_DEFAULT_PERIOD"), 0),
		DefaultMaxEnrolled:     v.GetInt("ENROL_DEFAULT_MAX_ENROLLED"),
		DefaultGroupKey:        v.GetBool("ENROL_DEFAULT_GROUP_KEY"),
		DefaultNewEnrols:       v.GetBool("ENROL_DEFAULT_NEW_ENROLS"),
		DefaultSendWelcome:     v.GetBool("ENROL_DEFAULT_SEND_WELCOME"),
		ParentsCanEnrol:        v.GetBool("ENROL_PARENTS_CAN_ENROL"),
		ParentsCanUnenrol:      v.GetBool("ENROL_PARENTS_CAN_UNENROL"),
		ParentsCountedInMax:    v.GetBool("ENROL_PARENTS_COUNTED_IN_MAX"),
		DefaultExpiryThreshold: parseDuration(v.GetString("ENROL_DEFAULT_EXPIRY_THRESHOLD"), 0),
		DefaultExpiryNotify:    v.GetInt("ENROL_DEFAULT_EXPIRY_NOTIFY"),
		RequirePassword:        v.GetBool("ENROL_REQUIRE_PASSWORD"),
		ShowKeyHint:            v.GetBool("ENROL_SHOW_KEY_HINT"),
		GuestUserID:            v.GetInt64("ENROL_GUEST_USER_ID"),
		SupportEmail:           v.GetString("ENROL_SUPPORT_EMAIL"),
		SiteURL:                v.GetString("SITE_URL"),
	}

	cfg.Sync = SyncConfig{
		Enabled: v.GetBool("ENROL_SYNC_ENABLED"),
		Cron:    v.GetString("ENROL_SYNC_CRON"),
	}

	cfg.Roster = RosterConfig{
		CacheTTL:   parseDuration(v.GetString("ROSTER_CACHE_TTL"), 5*time.Minute),
		ArchiveDir: v.GetString("ROSTER_ARCHIVE_DIR"),
		ArchiveTTL: parseDuration(v.GetString("ROSTER_ARCHIVE_TTL"), 720*time.Hour),
	}

	cfg.Mail = MailConfig{
		Provider:       v.GetString("MAIL_PROVIDER"),
		SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),
		FromName:       v.GetString("MAIL_FROM_NAME"),
		FromEmail:      v.GetString("MAIL_FROM_EMAIL"),
		QueueWorkers:   v.GetInt("MAIL_QUEUE_WORKERS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "lms")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENROL_DEFAULT_ENABLED", true)
	v.SetDefault("ENROL_DEFAULT_ROLE_ID", 5)
	v.SetDefault("ENROL_PARENT_ROLE_ID", 9)
	v.SetDefault("ENROL_DEFAULT_NEW_ENROLS", true)
	v.SetDefault("ENROL_DEFAULT_SEND_WELCOME", true)
	v.SetDefault("ENROL_PARENTS_CAN_ENROL", true)
	v.SetDefault("ENROL_PARENTS_CAN_UNENROL", true)
	v.SetDefault("ENROL_SYNC_ENABLED", true)
	v.SetDefault("ENROL_SYNC_CRON", "0 * * * *")

	v.SetDefault("MAIL_PROVIDER", "console")
	v.SetDefault("MAIL_QUEUE_WORKERS", 2)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
