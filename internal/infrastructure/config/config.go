package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Store    StoreConfig
	Database DatabaseConfig
	Media    MediaConfig
	Policy   PolicyConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

type ServerConfig struct {
	Port int
}

type AuthConfig struct {
	Mode              string
	APIKey            string
	CognitoUserPoolID string
	CognitoClientID   string
	Region            string
	SuperuserIDs      []string
}

type StoreConfig struct {
	Backend   string
	TableName string
	Region    string
}

// DatabaseConfig is used by the postgres backend and the migrate command.
// URL wins over the individual DB_* settings.
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// MediaConfig selects MinIO when Endpoint is set; otherwise media content stays in memory.
type MediaConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

type PolicyConfig struct {
	File             string
	GroupNamesUnique bool
}

type LoggingConfig struct {
	Level string
}

type MetricsConfig struct {
	Enabled bool
}

const (
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}

func newViper(env string) (*viper.Viper, error) {
	if env == "" {
		env = "dev"
	}
	v := viper.New()

	// A missing project root is normal inside a Lambda bundle; run on env vars only.
	if root, err := findProjectRoot(); err == nil {
		v.SetConfigName(fmt.Sprintf(".env.%s", env))
		v.SetConfigType("env")
		v.AddConfigPath(root)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read .env.%s: %w", env, err)
			}
		}
	}

	v.AutomaticEnv()

	v.SetDefault("PORT", 8080)
	v.SetDefault("AUTH_MODE", "none")
	v.SetDefault("AWS_REGION", "eu-central-1")
	v.SetDefault("STORE_BACKEND", BackendMemory)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "accountx")
	v.SetDefault("DB_NAME", "accountx")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("MINIO_BUCKET", "accountx-media")
	v.SetDefault("MINIO_USE_SSL", true)
	v.SetDefault("GROUP_NAMES_UNIQUE", true)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("METRICS_ENABLED", true)
	return v, nil
}

// Load reads .env.<env> from the project root, if present, and lets environment
// variables override it.
func Load(env string) (*Config, error) {
	v, err := newViper(env)
	if err != nil {
		return nil, err
	}

	region := v.GetString("AWS_REGION")
	cfg := &Config{
		Server: ServerConfig{Port: v.GetInt("PORT")},
		Auth: AuthConfig{
			Mode:              strings.ToLower(v.GetString("AUTH_MODE")),
			APIKey:            v.GetString("API_KEY"),
			CognitoUserPoolID: v.GetString("COGNITO_USER_POOL_ID"),
			CognitoClientID:   v.GetString("COGNITO_CLIENT_ID"),
			Region:            region,
			SuperuserIDs:      splitList(v.GetString("SUPERUSER_IDS")),
		},
		Store: StoreConfig{
			Backend:   strings.ToLower(v.GetString("STORE_BACKEND")),
			TableName: v.GetString("TABLE_NAME"),
			Region:    region,
		},
		Database: DatabaseConfig{
			URL:      v.GetString("DATABASE_URL"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Database: v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Media: MediaConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			Region:    region,
		},
		Policy: PolicyConfig{
			File:             v.GetString("POLICY_FILE"),
			GroupNamesUnique: v.GetBool("GROUP_NAMES_UNIQUE"),
		},
		Logging: LoggingConfig{Level: v.GetString("LOG_LEVEL")},
		Metrics: MetricsConfig{Enabled: v.GetBool("METRICS_ENABLED")},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Auth.Mode {
	case "none":
	case "api_key":
		if c.Auth.APIKey == "" {
			return errors.New("API_KEY is required when AUTH_MODE=api_key")
		}
	case "cognito":
		if c.Auth.CognitoUserPoolID == "" {
			return errors.New("COGNITO_USER_POOL_ID is required when AUTH_MODE=cognito")
		}
	default:
		return fmt.Errorf("invalid AUTH_MODE %q", c.Auth.Mode)
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendDynamoDB:
		if c.Store.TableName == "" {
			return errors.New("TABLE_NAME is required when STORE_BACKEND=dynamodb")
		}
	case BackendPostgres:
		if c.Database.URL == "" && c.Database.Password == "" {
			return errors.New("DATABASE_URL or DB_PASSWORD is required when STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q", c.Store.Backend)
	}

	if c.Media.Endpoint != "" && (c.Media.AccessKey == "" || c.Media.SecretKey == "") {
		return errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required with MINIO_ENDPOINT")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q", c.Logging.Level)
	}

	// Provisioning resolves existing company groups by name, so names must stay unique.
	if !c.Policy.GroupNamesUnique {
		return errors.New("GROUP_NAMES_UNIQUE=false is not supported")
	}
	return nil
}

// ConnectionString returns the DSN for pgx and golang-migrate.
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
		c.SSLMode,
	)
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
