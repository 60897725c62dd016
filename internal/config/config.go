// Package config loads runtime settings from the environment.
//
// A .env file in the working directory is read first when present; values
// already set in the real environment win over it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"

	MediaCloudinary = "cloudinary"
	MediaS3         = "s3"
)

type Config struct {
	Port int
	Env  string // "production" switches to JSON logs at info level

	Store    string
	MongoURI string
	MongoDB  string

	Identity IdentityConfig
	Media    MediaConfig

	CORSOrigins []string

	RedisAddr         string
	RateLimitRequests int
	RateLimitWindow   time.Duration

	KafkaBrokers string
	KafkaTopic   string

	OTELEndpoint string
	ServiceName  string
}

type IdentityConfig struct {
	JWTKey    string // PEM public key, RS256
	JWTSecret string // shared secret, HS256
	Issuer    string
	APIURL    string // empty selects auth.DefaultProviderURL
	SecretKey string
}

type MediaConfig struct {
	Driver string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
	S3PublicURL string
}

// Configured reports whether the selected driver has credentials. Uploads
// are disabled when it does not.
func (m MediaConfig) Configured() bool {
	switch m.Driver {
	case MediaCloudinary:
		return m.CloudinaryCloudName != "" && m.CloudinaryAPIKey != "" && m.CloudinaryAPISecret != ""
	case MediaS3:
		return m.S3Endpoint != "" && m.S3Bucket != ""
	}
	return false
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads the .env file (if any) and the environment, applies defaults
// and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	var errs []error
	p := parser{errs: &errs}

	cfg := &Config{
		Port:     p.getInt("PORT", 5001),
		Env:      env("APP_ENV", "development"),
		Store:    env("STORE", StoreMongo),
		MongoURI: os.Getenv("MONGO_URI"),
		MongoDB:  env("MONGO_DB", "social"),
		Identity: IdentityConfig{
			JWTKey:    strings.ReplaceAll(os.Getenv("IDENTITY_JWT_KEY"), `\n`, "\n"),
			JWTSecret: os.Getenv("IDENTITY_JWT_SECRET"),
			Issuer:    os.Getenv("IDENTITY_ISSUER"),
			APIURL:    os.Getenv("IDENTITY_API_URL"),
			SecretKey: os.Getenv("IDENTITY_SECRET_KEY"),
		},
		Media: MediaConfig{
			Driver:              env("MEDIA_DRIVER", MediaCloudinary),
			CloudinaryCloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
			CloudinaryAPIKey:    os.Getenv("CLOUDINARY_API_KEY"),
			CloudinaryAPISecret: os.Getenv("CLOUDINARY_API_SECRET"),
			S3Endpoint:          os.Getenv("S3_ENDPOINT"),
			S3AccessKey:         os.Getenv("S3_ACCESS_KEY"),
			S3SecretKey:         os.Getenv("S3_SECRET_KEY"),
			S3Bucket:            env("S3_BUCKET", "social-media-posts"),
			S3UseSSL:            p.getBool("S3_USE_SSL", false),
			S3PublicURL:         os.Getenv("S3_PUBLIC_URL"),
		},
		CORSOrigins:       list(env("CORS_ALLOWED_ORIGINS", "*")),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RateLimitRequests: p.getInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   p.getDuration("RATE_LIMIT_WINDOW", time.Minute),
		KafkaBrokers:      os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:        env("KAFKA_NOTIFICATIONS_TOPIC", "notifications.created"),
		OTELEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:       env("OTEL_SERVICE_NAME", "social-backend"),
	}

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	switch c.Store {
	case StoreMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required when STORE=mongo"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE must be %q or %q, got %q", StoreMongo, StoreMemory, c.Store))
	}
	if c.Identity.JWTKey == "" && c.Identity.JWTSecret == "" {
		errs = append(errs, errors.New("one of IDENTITY_JWT_KEY or IDENTITY_JWT_SECRET is required"))
	}
	if c.Media.Driver != MediaCloudinary && c.Media.Driver != MediaS3 {
		errs = append(errs, fmt.Errorf("MEDIA_DRIVER must be %q or %q, got %q", MediaCloudinary, MediaS3, c.Media.Driver))
	}
	if c.RateLimitRequests <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must be positive"))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	return errs
}

// list splits a comma-separated value, dropping blanks.
func list(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// parser collects conversion errors so Load reports every bad key at once.
type parser struct {
	errs *[]error
}

func (p parser) getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (p parser) getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

func (p parser) getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}
