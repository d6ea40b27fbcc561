package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config stores the player configuration.
// Values come from defaults, then the YAML file, then the environment.
type Config struct {
	ConfigDir string `yaml:"-"`

	// 日志配置
	LogLevel      string `yaml:"log_level"`
	LogPath       string `yaml:"log_path"`
	LogMaxSize    int    `yaml:"log_max_size"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAge     int    `yaml:"log_max_age"`
	LogCompress   bool   `yaml:"log_compress"`
	LogConsole    bool   `yaml:"log_console"`

	// Preferences and saved sessions
	DBDriver   string `yaml:"db_driver"` // sqlite or mysql
	DBPath     string `yaml:"db_path"`   // sqlite file
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`
	DBDebug    bool   `yaml:"db_debug"`

	SessionBackend string        `yaml:"session_backend"` // db, redis or none
	SessionName    string        `yaml:"session_name"`
	SessionTTL     time.Duration `yaml:"session_ttl"` // redis only, 0 keeps forever

	// Redis配置
	RedisHost     string `yaml:"redis_host"`
	RedisPort     string `yaml:"redis_port"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// Playback
	FFplayPath  string        `yaml:"ffplay_path"`
	FFprobePath string        `yaml:"ffprobe_path"`
	NearEnd     time.Duration `yaml:"near_end"` // how long before the end the next track is buffered

	// Remote control, empty disables it
	RemoteAddr string `yaml:"remote_addr"`

	NotifyAppName string `yaml:"notify_app_name"`
}

const (
	SessionBackendDB    = "db"
	SessionBackendRedis = "redis"
	SessionBackendNone  = "none"
)

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("5s") or plain seconds ("5").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func defaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "decibel")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "decibel")
}

// Defaults returns the configuration used when nothing is set.
func Defaults(configDir string) *Config {
	return &Config{
		ConfigDir:      configDir,
		LogLevel:       "info",
		LogPath:        filepath.Join(configDir, "Logs", "log"),
		LogMaxSize:     10,
		LogMaxBackups:  3,
		LogMaxAge:      30,
		LogConsole:     true,
		DBDriver:       "sqlite",
		DBPath:         filepath.Join(configDir, "decibel.db"),
		DBHost:         "127.0.0.1",
		DBPort:         "3306",
		DBUser:         "root",
		DBName:         "decibel",
		SessionBackend: SessionBackendDB,
		SessionName:    "default",
		RedisHost:      "127.0.0.1",
		RedisPort:      "6379",
		FFplayPath:     "ffplay",
		FFprobePath:    "ffprobe",
		NearEnd:        5 * time.Second,
		NotifyAppName:  "Decibel Audio Player",
	}
}

// Load reads .env, the optional YAML file and the environment.
func Load() (*Config, error) {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	cfg := Defaults(getEnv("DECIBEL_CONFIG_DIR", defaultConfigDir()))

	path := getEnv("DECIBEL_CONFIG", filepath.Join(cfg.ConfigDir, "config.yaml"))
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays the YAML file on cfg. A missing file is not an error.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogPath = getEnv("LOG_PATH", c.LogPath)
	c.LogMaxSize = getEnvInt("LOG_MAX_SIZE", c.LogMaxSize)
	c.LogMaxBackups = getEnvInt("LOG_MAX_BACKUPS", c.LogMaxBackups)
	c.LogMaxAge = getEnvInt("LOG_MAX_AGE", c.LogMaxAge)
	c.LogCompress = getEnvBool("LOG_COMPRESS", c.LogCompress)
	c.LogConsole = getEnvBool("LOG_CONSOLE", c.LogConsole)

	c.DBDriver = getEnv("DB_DRIVER", c.DBDriver)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.DBHost = getEnv("DB_HOST", c.DBHost)
	c.DBPort = getEnv("DB_PORT", c.DBPort)
	c.DBUser = getEnv("DB_USER", c.DBUser)
	c.DBPassword = getEnv("DB_PASSWORD", c.DBPassword)
	c.DBName = getEnv("DB_NAME", c.DBName)
	c.DBDebug = getEnvBool("DB_DEBUG", c.DBDebug)

	c.SessionBackend = getEnv("SESSION_BACKEND", c.SessionBackend)
	c.SessionName = getEnv("SESSION_NAME", c.SessionName)
	c.SessionTTL = getEnvDuration("SESSION_TTL", c.SessionTTL)

	c.RedisHost = getEnv("REDIS_HOST", c.RedisHost)
	c.RedisPort = getEnv("REDIS_PORT", c.RedisPort)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)

	c.FFplayPath = getEnv("FFPLAY_PATH", c.FFplayPath)
	c.FFprobePath = getEnv("FFPROBE_PATH", c.FFprobePath)
	c.NearEnd = getEnvDuration("NEAR_END", c.NearEnd)

	c.RemoteAddr = getEnv("REMOTE_ADDR", c.RemoteAddr)
	c.NotifyAppName = getEnv("NOTIFY_APP_NAME", c.NotifyAppName)
}

// Validate rejects settings the player cannot start with.
func (c *Config) Validate() error {
	c.DBDriver = strings.ToLower(c.DBDriver)
	switch c.DBDriver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported db driver %q", c.DBDriver)
	}

	c.SessionBackend = strings.ToLower(c.SessionBackend)
	switch c.SessionBackend {
	case SessionBackendDB, SessionBackendRedis, SessionBackendNone:
	default:
		return fmt.Errorf("unsupported session backend %q", c.SessionBackend)
	}

	if c.NearEnd < 0 {
		return fmt.Errorf("near_end must not be negative, got %s", c.NearEnd)
	}
	return nil
}

// MySQLDSN builds the data source name for the mysql driver.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// RedisAddr returns host:port of the Redis server.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}
