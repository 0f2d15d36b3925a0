package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      int
	SecretKey string // signs sessions and tokens, seals the store at rest
	Store     StoreConfig
	Log       LogConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig

	StrictSchema bool
}

type StoreConfig struct {
	Driver        string // sqlite, postgres, mysql, sqlserver, odbc, redis, memory
	DSN           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SealAtRest    bool
}

type LogConfig struct {
	Dir       string
	MaxSizeKB int64
	MaxFiles  int
	Level     string
}

type AuthConfig struct {
	BcryptCost int
	TokenTTL   time.Duration
}

type RateLimitConfig struct {
	APIPerMinute   float64
	APIBurst       int
	LoginPerMinute float64
	LoginBurst     int
}

var storeDrivers = map[string]bool{
	"sqlite": true, "postgres": true, "mysql": true, "sqlserver": true,
	"odbc": true, "redis": true, "memory": true,
}

func Load() (*Config, error) {
	// Try loading .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	key := os.Getenv("CLOUDDB_KEY")
	if len(key) < 32 {
		fmt.Println("CLOUDDB_KEY not found or too short. Generating a new secure key...")
		newKey, err := generateRandomKey(32)
		if err != nil {
			return nil, fmt.Errorf("failed to generate key: %w", err)
		}

		if err := saveKeyToEnv(".env", newKey); err != nil {
			fmt.Printf("Warning: Failed to save generated key to .env: %v\n", err)
		} else {
			fmt.Println("New CLOUDDB_KEY saved to .env file.")
		}
		key = newKey
	}

	var errs []string
	num := func(name string, fallback int) int {
		v, err := getEnvInt(name, fallback)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		}
		return v
	}
	flt := func(name string, fallback float64) float64 {
		v, err := getEnvFloat(name, fallback)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		}
		return v
	}
	flag := func(name string) bool {
		v, err := getEnvBool(name)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		}
		return v
	}

	ttl, err := time.ParseDuration(getEnv("TOKEN_TTL", "168h"))
	if err != nil {
		errs = append(errs, fmt.Sprintf("TOKEN_TTL: %v", err))
	}

	cfg := &Config{
		Port:      num("PORT", 8080),
		SecretKey: key,
		Store: StoreConfig{
			Driver:        strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
			DSN:           getEnv("STORE_DSN", ""),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       num("REDIS_DB", 0),
			SealAtRest:    flag("SEAL_AT_REST"),
		},
		Log: LogConfig{
			Dir:       getEnv("LOG_DIR", "logs"),
			MaxSizeKB: int64(num("LOG_MAX_SIZE_KB", 10*1024)),
			MaxFiles:  num("LOG_MAX_FILES", 3),
			Level:     getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			BcryptCost: num("BCRYPT_COST", 10),
			TokenTTL:   ttl,
		},
		RateLimit: RateLimitConfig{
			APIPerMinute:   flt("API_RATE_PER_MIN", 60),
			APIBurst:       num("API_BURST", 10),
			LoginPerMinute: flt("LOGIN_RATE_PER_MIN", 5),
			LoginBurst:     num("LOGIN_BURST", 3),
		},
		StrictSchema: flag("STRICT_SCHEMA"),
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that parse but make no sense.
func (c *Config) Validate() error {
	var problems []string
	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT out of range: %d", c.Port))
	}
	if !storeDrivers[c.Store.Driver] {
		problems = append(problems, fmt.Sprintf("unsupported STORE_DRIVER %q", c.Store.Driver))
	}
	if c.Store.Driver != "sqlite" && c.Store.Driver != "redis" && c.Store.Driver != "memory" && c.Store.DSN == "" {
		problems = append(problems, fmt.Sprintf("STORE_DSN is required for driver %q", c.Store.Driver))
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		problems = append(problems, fmt.Sprintf("BCRYPT_COST out of range: %d", c.Auth.BcryptCost))
	}
	if c.Auth.TokenTTL <= 0 {
		problems = append(problems, "TOKEN_TTL must be positive")
	}
	if c.RateLimit.APIPerMinute <= 0 || c.RateLimit.LoginPerMinute <= 0 {
		problems = append(problems, "rate limits must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvBool(key string) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

func generateRandomKey(length int) (string, error) {
	b := make([]byte, length)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	// Return base64 encoded string to ensure it's printable and handles bytes correctly
	return base64.StdEncoding.EncodeToString(b), nil
}

// saveKeyToEnv replaces or appends CLOUDDB_KEY in the env file, keeping the
// other lines.
func saveKeyToEnv(filename, key string) error {
	content, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return os.WriteFile(filename, []byte(fmt.Sprintf("CLOUDDB_KEY=%s\nPORT=8080\n", key)), 0600)
	} else if err != nil {
		return err
	}

	lines := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")
	found := false
	newLines := []string{}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "CLOUDDB_KEY=") {
			newLines = append(newLines, fmt.Sprintf("CLOUDDB_KEY=%s", key))
			found = true
			continue
		}
		newLines = append(newLines, trimmed)
	}

	if !found {
		newLines = append(newLines, fmt.Sprintf("CLOUDDB_KEY=%s", key))
	}

	return os.WriteFile(filename, []byte(strings.Join(newLines, "\n")+"\n"), 0600)
}
