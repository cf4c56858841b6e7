package utils

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Email        EmailConfig
	Token        TokenConfig
	Verification VerificationConfig
	Login        LoginConfig
	Password     PasswordPolicy
	Session      SessionConfig
	Upload       UploadConfig
	Access       AccessConfig
	Admin        AdminConfig
}

type AppConfig struct {
	Name            string
	Port            string
	Debug           bool
	LogPath         string
	BaseURL         string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Driver      string // postgres | memory
	Host        string
	Port        string
	Name        string
	User        string
	Password    string
	MaxConns    int32
	AutoMigrate bool
	// SeedRegions names the regions created by the memory driver.
	SeedRegions []string
}

// RedisConfig holds the rate-limit store connection. An empty Addr selects
// the in-process store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	TLS      bool
}

// TokenConfig holds one TTL per token purpose.
type TokenConfig struct {
	EmailVerifyTTL time.Duration
	ActivationTTL  time.Duration
	ProfileTTL     time.Duration
}

type VerificationConfig struct {
	ResendCooldown       time.Duration
	RequireVerifiedEmail bool
}

type LoginConfig struct {
	MaxAttempts   int
	AttemptWindow time.Duration
	LockoutPeriod time.Duration
}

type PasswordPolicy struct {
	MinLength     int
	MaxLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
}

type SessionConfig struct {
	TTL time.Duration
}

type UploadConfig struct {
	Dir          string
	MaxBytes     int64
	AllowedTypes []string
}

// AccessConfig holds the role levels used by region-scoped authorization.
type AccessConfig struct {
	RegionWideLevel   int
	RegionScopedLevel int
}

// AdminConfig names the first super admin created on an empty store.
// An empty Email disables the bootstrap.
type AdminConfig struct {
	Email    string
	Password string
	FullName string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "member-onboarding")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DEBUG", false)
	v.SetDefault("LOG_PATH", "logs/")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("SHUTDOWN_TIMEOUT_SECONDS", 10)

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_AUTO_MIGRATE", false)
	v.SetDefault("DB_SEED_REGIONS", "")

	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_TLS", true)

	v.SetDefault("TOKEN_EMAIL_VERIFY_TTL_MINUTES", 60)
	v.SetDefault("TOKEN_ACTIVATION_TTL_HOURS", 72)
	v.SetDefault("TOKEN_PROFILE_TTL_HOURS", 24)

	v.SetDefault("RESEND_COOLDOWN_SECONDS", 60)
	v.SetDefault("REQUIRE_VERIFIED_EMAIL", true)

	v.SetDefault("LOGIN_MAX_ATTEMPTS", 5)
	v.SetDefault("LOGIN_ATTEMPT_WINDOW_MINUTES", 15)
	v.SetDefault("LOGIN_LOCKOUT_MINUTES", 15)

	v.SetDefault("PASSWORD_MIN_LENGTH", 8)
	v.SetDefault("PASSWORD_MAX_LENGTH", 72)
	v.SetDefault("PASSWORD_REQUIRE_UPPER", true)
	v.SetDefault("PASSWORD_REQUIRE_LOWER", true)
	v.SetDefault("PASSWORD_REQUIRE_DIGIT", true)
	v.SetDefault("PASSWORD_REQUIRE_SYMBOL", false)

	v.SetDefault("SESSION_TTL_HOURS", 24)

	v.SetDefault("UPLOAD_DIR", "uploads/")
	v.SetDefault("UPLOAD_MAX_BYTES", 2<<20)
	v.SetDefault("UPLOAD_ALLOWED_TYPES", "image/jpeg,image/png,image/webp")

	v.SetDefault("ACCESS_REGION_WIDE_LEVEL", 3)
	v.SetDefault("ACCESS_REGION_SCOPED_LEVEL", 2)

	v.SetDefault("ADMIN_FULL_NAME", "Administrator")
}

// LoadConfig reads .env from the working directory (when present) and the
// process environment.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(".env")
}

func LoadConfigFrom(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")

	// Set defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	v.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:            v.GetString("APP_NAME"),
			Port:            v.GetString("PORT"),
			Debug:           v.GetBool("DEBUG"),
			LogPath:         v.GetString("LOG_PATH"),
			BaseURL:         strings.TrimRight(v.GetString("BASE_URL"), "/"),
			ShutdownTimeout: time.Duration(v.GetInt("SHUTDOWN_TIMEOUT_SECONDS")) * time.Second,
		},
		Database: DatabaseConfig{
			Driver:      strings.ToLower(v.GetString("DB_DRIVER")),
			Host:        v.GetString("DB_HOST"),
			Port:        v.GetString("DB_PORT"),
			Name:        v.GetString("DB_NAME"),
			User:        v.GetString("DB_USER"),
			Password:    v.GetString("DB_PASS"),
			MaxConns:    v.GetInt32("DB_MAX_CONNS"),
			AutoMigrate: v.GetBool("DB_AUTO_MIGRATE"),
			SeedRegions: splitList(v.GetString("DB_SEED_REGIONS")),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Email: EmailConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			User:     v.GetString("SMTP_USER"),
			Password: v.GetString("SMTP_PASS"),
			From:     v.GetString("EMAIL_FROM"),
			TLS:      v.GetBool("SMTP_TLS"),
		},
		Token: TokenConfig{
			EmailVerifyTTL: time.Duration(v.GetInt("TOKEN_EMAIL_VERIFY_TTL_MINUTES")) * time.Minute,
			ActivationTTL:  time.Duration(v.GetInt("TOKEN_ACTIVATION_TTL_HOURS")) * time.Hour,
			ProfileTTL:     time.Duration(v.GetInt("TOKEN_PROFILE_TTL_HOURS")) * time.Hour,
		},
		Verification: VerificationConfig{
			ResendCooldown:       time.Duration(v.GetInt("RESEND_COOLDOWN_SECONDS")) * time.Second,
			RequireVerifiedEmail: v.GetBool("REQUIRE_VERIFIED_EMAIL"),
		},
		Login: LoginConfig{
			MaxAttempts:   v.GetInt("LOGIN_MAX_ATTEMPTS"),
			AttemptWindow: time.Duration(v.GetInt("LOGIN_ATTEMPT_WINDOW_MINUTES")) * time.Minute,
			LockoutPeriod: time.Duration(v.GetInt("LOGIN_LOCKOUT_MINUTES")) * time.Minute,
		},
		Password: PasswordPolicy{
			MinLength:     v.GetInt("PASSWORD_MIN_LENGTH"),
			MaxLength:     v.GetInt("PASSWORD_MAX_LENGTH"),
			RequireUpper:  v.GetBool("PASSWORD_REQUIRE_UPPER"),
			RequireLower:  v.GetBool("PASSWORD_REQUIRE_LOWER"),
			RequireDigit:  v.GetBool("PASSWORD_REQUIRE_DIGIT"),
			RequireSymbol: v.GetBool("PASSWORD_REQUIRE_SYMBOL"),
		},
		Session: SessionConfig{
			TTL: time.Duration(v.GetInt("SESSION_TTL_HOURS")) * time.Hour,
		},
		Upload: UploadConfig{
			Dir:          v.GetString("UPLOAD_DIR"),
			MaxBytes:     v.GetInt64("UPLOAD_MAX_BYTES"),
			AllowedTypes: splitList(v.GetString("UPLOAD_ALLOWED_TYPES")),
		},
		Access: AccessConfig{
			RegionWideLevel:   v.GetInt("ACCESS_REGION_WIDE_LEVEL"),
			RegionScopedLevel: v.GetInt("ACCESS_REGION_SCOPED_LEVEL"),
		},
		Admin: AdminConfig{
			Email:    strings.ToLower(strings.TrimSpace(v.GetString("ADMIN_EMAIL"))),
			Password: v.GetString("ADMIN_PASSWORD"),
			FullName: v.GetString("ADMIN_FULL_NAME"),
		},
	}

	return config, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
