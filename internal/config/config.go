// Package config resolves the service configuration from an optional .env
// file and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	ConfigPath string
	Profile    string
	ApiGinMode string

	Port      string
	LogLevel  string
	LogFormat string

	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string

	// local tokens
	JWTSecret string `secret:"true"`
	JWTIssuer string
	TokenTTL  time.Duration

	// external OpenID issuer, optional
	JWKSURL      string
	JWKSIssuer   string
	JWKSAudience string

	StoreDriver string

	// postgres
	DBAddress  string
	DBUser     string
	DBPassword string `secret:"true"`
	DBName     string

	// mongo
	MongoURI string `secret:"true"`
	MongoDB  string

	// redis, optional
	RedisAddress  string
	RedisPassword string `secret:"true"`
	RedisDB       int
	CacheTTL      time.Duration
	ListCacheTTL  time.Duration

	// smtp, optional
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string `secret:"true"`
	MailFrom     string

	NotifyWorkers int
	NotifyQueue   int
	NotifyTimeout time.Duration

	RevocationPurgeSpec string

	OTelEndpoint   string
	MetricsEnabled bool
}

// Load reads path into the environment when it exists and resolves every
// key with its default. A missing file is not an error.
func Load(path string, log *logrus.Logger) Config {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			log.Infof("no config file at %s, using the environment and defaults", path)
		}
	}

	s := strings.Split(path, "/")
	cfg := Config{
		ConfigPath: s[len(s)-1],
		Profile:    getEnv("PROFILE", "baremetal"),
		ApiGinMode: getEnv("GIN_MODE", "debug"),

		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		AllowedOrigins: getEnvFields("ALLOW_ORIGINS", []string{"*"}),
		AllowedMethods: getEnvFields("ALLOW_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		AllowedHeaders: getEnvFields("ALLOW_HEADERS", []string{"Origin", "Content-Type", "Authorization"}),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "taskhub"),
		TokenTTL:  getDurationEnv("TOKEN_TTL", 24*time.Hour),

		JWKSURL:      getEnv("JWKS_URL", ""),
		JWKSIssuer:   getEnv("JWKS_ISSUER", ""),
		JWKSAudience: getEnv("JWKS_AUDIENCE", ""),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", DriverMemory)),

		DBAddress:  getEnv("DB_ADDRESS", "localhost:5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "taskhub"),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getEnv("MONGO_DB", "taskhub"),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		CacheTTL:      getDurationEnv("CACHE_TTL", 5*time.Minute),
		ListCacheTTL:  getDurationEnv("LIST_CACHE_TTL", time.Minute),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		MailFrom:     getEnv("MAIL_FROM", ""),

		NotifyWorkers: getIntEnv("NOTIFY_WORKERS", 2),
		NotifyQueue:   getIntEnv("NOTIFY_QUEUE", 256),
		NotifyTimeout: getDurationEnv("NOTIFY_TIMEOUT", 10*time.Second),

		RevocationPurgeSpec: getEnv("REVOCATION_PURGE_SPEC", "@every 1h"),

		OTelEndpoint:   getEnv("OTEL_ENDPOINT", ""),
		MetricsEnabled: getBoolEnv("METRICS_ENABLED", "true"),
	}

	log.Debug(cfg.String())
	return cfg
}

// Validate reports settings the server cannot start with.
func (cfg *Config) Validate() error {
	var errs []error
	if len(cfg.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be set to at least 16 bytes"))
	}
	switch cfg.StoreDriver {
	case DriverMemory, DriverPostgres, DriverMongo:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q is not one of memory, postgres, mongo", cfg.StoreDriver))
	}
	if cfg.JWKSURL != "" && cfg.JWKSIssuer == "" {
		errs = append(errs, errors.New("JWKS_ISSUER is required with JWKS_URL"))
	}
	return errors.Join(errs...)
}

func getEnv(env, fallback string) string {
	if value, exists := os.LookupEnv(env); exists {
		return value
	}

	return fallback
}

func getEnvFields(env string, fallback []string) []string {
	if value, exists := os.LookupEnv(env); exists {
		fields := strings.Split(strings.TrimSpace(value), ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		return fields
	}

	return fallback
}

func getBoolEnv(env, fallback string) bool {
	if value, exists := os.LookupEnv(env); exists {
		return strings.ToLower(value) == "true"
	}

	return strings.ToLower(fallback) == "true"
}

func getIntEnv(env string, fallback int) int {
	if value, exists := os.LookupEnv(env); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}

	return fallback
}

func getDurationEnv(env string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(env); exists {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}

	return fallback
}

// String dumps every field, one per line, with secrets masked.
func (cfg *Config) String() string {
	var strBuilder strings.Builder

	reflectedValues := reflect.ValueOf(cfg).Elem()
	reflectedTypes := reflect.TypeOf(cfg).Elem()

	strBuilder.WriteString(fmt.Sprintf("[CFG]CONFIGURATION: %s\n", cfg.ConfigPath))

	for i := range reflectedValues.NumField() {
		field := reflectedTypes.Field(i)
		fieldValue := reflectedValues.Field(i).Interface()

		if field.Tag.Get("secret") == "true" {
			fieldValue = mask(fmt.Sprint(fieldValue))
		}

		strBuilder.WriteString(fmt.Sprintf("[CFG]%2d. %-20s -> %v\n", i+1, field.Name, fieldValue))
	}

	return strBuilder.String()
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}
