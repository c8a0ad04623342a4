package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store and round-history backends.
const (
	StoreRedis  = "redis"
	StoreMemory = "memory"

	RoundsMongo  = "mongo"
	RoundsSQLite = "sqlite"
	RoundsNone   = "none"
)

// Config holds the application's configuration values.
type Config struct {
	HostIP          string // Host IP for the server
	RESTPort        int    // Port for the REST API
	GinMode         string // Mode for the Gin framework (e.g., release, debug, test)
	MazeWidth       int    // Number of maze columns
	MazeHeight      int    // Number of maze rows
	StoreBackend    string // redis or memory
	RedisAddr       string // host:port of the Redis server
	RedisPassword   string // Password for Redis
	RedisDB         int    // Redis logical database
	StorePrefix     string // Prefix for every shared key
	RoundBackend    string // mongo, sqlite or none
	DBHost          string // Hostname or IP address for the database
	DBPort          int    // Port number for the database
	DBUser          string // Username for the database
	DBPassword      string // Password for the database
	DBName          string // Name of the database
	SQLitePath      string // Path of the SQLite round history
	JWTSecret       string // Secret key for JWT signing
	JWTIssuer       string // Issuer claim for JWTs
	TokenTTLMinutes int    // Lifetime of player tokens
	OtelEnabled     bool   // Export traces over OTLP/HTTP
	Debug           bool   // Verbose logging
}

// Envs holds the configuration of the running server. It is populated by MustLoad.
var Envs Config

// source resolves keys from the environment first and the optional YAML
// file second.
type source struct {
	file map[string]string
}

// Load reads .env (if present), the YAML file named by CONFIG_FILE (if set)
// and the environment, in increasing order of precedence.
func Load() (Config, error) {
	// Load .env file if available
	if err := godotenv.Load(); err != nil {
		log.Debug("[APP] .env file not found or could not be loaded", "err", err)
	}

	src := source{file: map[string]string{}}
	if path, ok := os.LookupEnv("CONFIG_FILE"); ok && path != "" {
		file, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		src.file = file
	}
	return src.config()
}

// MustLoad loads the configuration and stores it in Envs, exiting on error.
func MustLoad() Config {
	c, err := Load()
	if err != nil {
		log.Fatalf("[APP] [FATAL] %v", err)
	}
	Envs = c
	return c
}

func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}

func (s source) config() (Config, error) {
	var errs []string
	c := Config{
		HostIP:          s.getEnvWithDefault("HOST_IP", "0.0.0.0"),
		RESTPort:        s.getEnvAsIntWithDefault("REST_PORT", 8080, &errs),
		GinMode:         s.getEnvWithDefault("GIN_MODE", "release"),
		MazeWidth:       s.getEnvAsIntWithDefault("MAZE_WIDTH", 15, &errs),
		MazeHeight:      s.getEnvAsIntWithDefault("MAZE_HEIGHT", 15, &errs),
		StoreBackend:    strings.ToLower(s.getEnvWithDefault("STORE_BACKEND", StoreMemory)),
		RedisAddr:       s.getEnvWithDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   s.getEnvWithDefault("REDIS_PASSWORD", ""),
		RedisDB:         s.getEnvAsIntWithDefault("REDIS_DB", 0, &errs),
		StorePrefix:     s.getEnvWithDefault("STORE_PREFIX", "mazesync"),
		RoundBackend:    strings.ToLower(s.getEnvWithDefault("ROUND_BACKEND", RoundsNone)),
		DBHost:          s.getEnvWithDefault("DB_HOST", "localhost"),
		DBPort:          s.getEnvAsIntWithDefault("DB_PORT", 27017, &errs),
		DBUser:          s.getEnvWithDefault("DB_USER", ""),
		DBPassword:      s.getEnvWithDefault("DB_PASS", ""),
		DBName:          s.getEnvWithDefault("DB_NAME", "mazesync"),
		SQLitePath:      s.getEnvWithDefault("SQLITE_PATH", "~/.mazesync/rounds.db"),
		JWTSecret:       s.mustGetEnv("JWT_SECRET", &errs),
		JWTIssuer:       s.getEnvWithDefault("JWT_ISSUER", "mazesync"),
		TokenTTLMinutes: s.getEnvAsIntWithDefault("TOKEN_TTL_MINUTES", 24*60, &errs),
		OtelEnabled:     s.getEnvAsBool("OTEL_ENABLED", &errs),
		Debug:           s.getEnvAsBool("DEBUG", &errs),
	}

	if c.MazeWidth <= 0 || c.MazeHeight <= 0 {
		errs = append(errs, fmt.Sprintf("maze dimensions must be positive, got %dx%d", c.MazeWidth, c.MazeHeight))
	}
	switch c.StoreBackend {
	case StoreRedis, StoreMemory:
	default:
		errs = append(errs, fmt.Sprintf("STORE_BACKEND must be %q or %q, got %q", StoreRedis, StoreMemory, c.StoreBackend))
	}
	switch c.RoundBackend {
	case RoundsMongo, RoundsSQLite, RoundsNone:
	default:
		errs = append(errs, fmt.Sprintf("ROUND_BACKEND must be %q, %q or %q, got %q", RoundsMongo, RoundsSQLite, RoundsNone, c.RoundBackend))
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return c, nil
}

func (s source) lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok {
		return v, true
	}
	v, ok := s.file[key]
	return v, ok
}

// mustGetEnv retrieves a required value, recording an error if it is not set.
func (s source) mustGetEnv(key string, errs *[]string) string {
	value, exists := s.lookup(key)
	if !exists || value == "" {
		*errs = append(*errs, fmt.Sprintf("%s is not set", key))
	}
	return value
}

// getEnvWithDefault retrieves a value or returns a default value if not set.
func (s source) getEnvWithDefault(key, defaultValue string) string {
	if value, exists := s.lookup(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsIntWithDefault retrieves an integer value, recording an error if it cannot be parsed.
func (s source) getEnvAsIntWithDefault(key string, defaultValue int, errs *[]string) int {
	valueStr, exists := s.lookup(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.Atoi(strings.TrimSpace(valueStr))
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s must be an integer: %v", key, err))
	}
	return value
}

// getEnvAsBool retrieves a boolean value; unset means false.
func (s source) getEnvAsBool(key string, errs *[]string) bool {
	valueStr, exists := s.lookup(key)
	if !exists || valueStr == "" {
		return false
	}
	value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s must be a boolean: %v", key, err))
	}
	return value
}
