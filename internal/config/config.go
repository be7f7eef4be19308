package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Cache     CacheConfig     `json:"cache"`
	Worker    WorkerConfig    `json:"worker"`
	Auth      AuthConfig      `json:"auth"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Log       LogConfig       `json:"log"`
	SMTP      SMTPConfig      `json:"smtp"`
}

type ServerConfig struct {
	Host         string        `json:"host"`
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	Environment  string        `json:"environment"`
	CORSOrigins  []string      `json:"cors_origins"`
}

type DatabaseConfig struct {
	Driver          string        `json:"driver"`
	Path            string        `json:"path"`
	Host            string        `json:"host"`
	Port            string        `json:"port"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	Name            string        `json:"name"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
}

type RedisConfig struct {
	Host         string        `json:"host"`
	Port         string        `json:"port"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns"`
	MaxRetries   int           `json:"max_retries"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

type CacheConfig struct {
	Enabled bool          `json:"enabled"`
	TTL     time.Duration `json:"ttl"`
}

type WorkerConfig struct {
	Enabled      bool          `json:"enabled"`
	Concurrency  int           `json:"concurrency"`
	PollInterval time.Duration `json:"poll_interval"`
	MaxTries     int           `json:"max_tries"`
	Queues       []string      `json:"queues"`
}

type AuthConfig struct {
	JWTSecret  string `json:"jwt_secret"`
	CookieName string `json:"cookie_name"`
}

type RateLimitConfig struct {
	Enabled         bool          `json:"enabled"`
	RequestsPerMin  int           `json:"requests_per_minute"`
	BurstSize       int           `json:"burst_size"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	From     string `json:"from"`
}

const defaultJWTSecret = "your-secret-key"

// LoadConfig reads settings from the environment. When CONFIG_FILE points to a
// YAML file its keys (same names as the variables) are used as a base layer.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Host:         getEnv(v, "HOST", "localhost"),
			Port:         getEnv(v, "PORT", "8080"),
			ReadTimeout:  getEnvAsDuration(v, "READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvAsDuration(v, "WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvAsDuration(v, "IDLE_TIMEOUT", 60*time.Second),
			Environment:  getEnv(v, "ENVIRONMENT", "development"),
			CORSOrigins:  getEnvAsList(v, "CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:3001"}),
		},
		Database: DatabaseConfig{
			Driver:          getEnv(v, "DB_DRIVER", "postgres"),
			Path:            getEnv(v, "DB_PATH", "teamtasks.db"),
			Host:            getEnv(v, "DB_HOST", "localhost"),
			Port:            getEnv(v, "DB_PORT", "5432"),
			User:            getEnv(v, "DB_USER", "postgres"),
			Password:        getEnv(v, "DB_PASSWORD", ""),
			Name:            getEnv(v, "DB_NAME", "team_tasks"),
			SSLMode:         getEnv(v, "DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt(v, "DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt(v, "DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvAsDuration(v, "DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: getEnvAsDuration(v, "DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Host:         getEnv(v, "REDIS_HOST", "localhost"),
			Port:         getEnv(v, "REDIS_PORT", "6379"),
			Password:     getEnv(v, "REDIS_PASSWORD", ""),
			DB:           getEnvAsInt(v, "REDIS_DB", 0),
			PoolSize:     getEnvAsInt(v, "REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt(v, "REDIS_MIN_IDLE_CONNS", 5),
			MaxRetries:   getEnvAsInt(v, "REDIS_MAX_RETRIES", 3),
			DialTimeout:  getEnvAsDuration(v, "REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvAsDuration(v, "REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvAsDuration(v, "REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Cache: CacheConfig{
			Enabled: getEnvAsBool(v, "CACHE_ENABLED", true),
			TTL:     getEnvAsDuration(v, "CACHE_TTL", time.Minute),
		},
		Worker: WorkerConfig{
			Enabled:      getEnvAsBool(v, "WORKER_ENABLED", true),
			Concurrency:  getEnvAsInt(v, "WORKER_CONCURRENCY", 4),
			PollInterval: getEnvAsDuration(v, "WORKER_POLL_INTERVAL", 5*time.Second),
			MaxTries:     getEnvAsInt(v, "WORKER_MAX_TRIES", 3),
			Queues:       getEnvAsList(v, "WORKER_QUEUES", []string{"notifications"}),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv(v, "JWT_SECRET", defaultJWTSecret),
			CookieName: getEnv(v, "AUTH_COOKIE", "token"),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getEnvAsBool(v, "RATE_LIMIT_ENABLED", true),
			RequestsPerMin:  getEnvAsInt(v, "RATE_LIMIT_RPM", 100),
			BurstSize:       getEnvAsInt(v, "RATE_LIMIT_BURST", 10),
			CleanupInterval: getEnvAsDuration(v, "RATE_LIMIT_CLEANUP", 10*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv(v, "LOG_LEVEL", "info"),
			Format: getEnv(v, "LOG_FORMAT", "json"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv(v, "SMTP_HOST", ""),
			Port:     getEnvAsInt(v, "SMTP_PORT", 587),
			User:     getEnv(v, "SMTP_USER", ""),
			Password: getEnv(v, "SMTP_PASSWORD", ""),
			From:     getEnv(v, "SMTP_FROM", "noreply@teamtasks.local"),
		},
	}

	if config.Database.Driver != "postgres" && config.Database.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported database driver %q", config.Database.Driver)
	}

	if config.Database.Password == "" && config.Database.Driver == "postgres" && config.IsProduction() {
		return nil, fmt.Errorf("database password is required in production")
	}

	if config.Auth.JWTSecret == defaultJWTSecret && config.IsProduction() {
		return nil, fmt.Errorf("JWT secret must be set in production")
	}

	return config, nil
}

func (c *Config) GetDatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.Path
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func getEnv(v *viper.Viper, key, defaultValue string) string {
	if value := v.GetString(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(v *viper.Viper, key string, defaultValue int) int {
	if value := v.GetString(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(v *viper.Viper, key string, defaultValue bool) bool {
	if value := v.GetString(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(v *viper.Viper, key string, defaultValue time.Duration) time.Duration {
	if value := v.GetString(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(v *viper.Viper, key string, defaultValue []string) []string {
	value := v.GetString(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
