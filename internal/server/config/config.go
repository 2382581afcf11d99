// Package config собирает настройки сервера: значения по умолчанию,
// YAML файл, переменные окружения и флаги командной строки, именно в этом порядке.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/supwarden/internal/crypto"
	"github.com/iudanet/supwarden/internal/server/events"
	"github.com/iudanet/supwarden/internal/server/middleware"
	"github.com/iudanet/supwarden/internal/server/storage/blob"
	"github.com/iudanet/supwarden/internal/server/storage/sqldb"
)

const (
	// BlobBolt - вложения в локальном bbolt файле
	BlobBolt = "bolt"
	// BlobS3 - вложения в S3 совместимом хранилище
	BlobS3 = "s3"
	// BlobGridFS - вложения в MongoDB GridFS
	BlobGridFS = "gridfs"

	// EventsNone - события не публикуются
	EventsNone = "none"
	// EventsNATS - события публикуются в NATS
	EventsNATS = "nats"
)

// Config holds runtime settings for the supwarden server.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Database    DatabaseConfig    `yaml:"database"`
	Blob        BlobConfig        `yaml:"blob"`
	Events      EventsConfig      `yaml:"events"`
	Auth        AuthConfig        `yaml:"auth"`
	Encryption  EncryptionConfig  `yaml:"encryption"`
	Attachments AttachmentsConfig `yaml:"attachments"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
}

// ServerConfig - HTTP listener
type ServerConfig struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig - уровень и формат slog
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig - реляционное хранилище
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// BlobConfig - хранилище вложений
type BlobConfig struct {
	Driver   string             `yaml:"driver"`
	BoltPath string             `yaml:"bolt_path"`
	S3       blob.S3Options     `yaml:"s3"`
	GridFS   blob.GridFSOptions `yaml:"gridfs"`
}

// EventsConfig - публикация событий о приглашениях и удалениях
type EventsConfig struct {
	Driver string             `yaml:"driver"`
	NATS   events.NATSOptions `yaml:"nats"`
}

// AuthConfig - токены, хеширование и вход через Google
type AuthConfig struct {
	JWTSecret               string        `yaml:"jwt_secret"`
	TokenTTL                time.Duration `yaml:"token_ttl"`
	BcryptCost              int           `yaml:"bcrypt_cost"`
	GoogleClientID          string        `yaml:"google_client_id"`
	RequireAcceptedForWrite bool          `yaml:"require_accepted_for_write"`
}

// EncryptionConfig - ключи шифрования паролей элементов, hex
type EncryptionConfig struct {
	Key          string         `yaml:"key"`
	KeyVersion   int            `yaml:"key_version"`
	PreviousKeys map[int]string `yaml:"previous_keys"`
}

// AttachmentsConfig - ограничения на вложения
type AttachmentsConfig struct {
	MaxSize int64 `yaml:"max_size"`
}

// RateLimitConfig - лимиты по IP. Strict применяется к входу, проверке PIN и reveal.
// TrustedProxies - IP или CIDR прокси, которым разрешено передавать X-Forwarded-For.
type RateLimitConfig struct {
	TrustedProxies []string      `yaml:"trusted_proxies"`
	Requests       int           `yaml:"requests"`
	Window         time.Duration `yaml:"window"`
	StrictRequests int           `yaml:"strict_requests"`
	StrictWindow   time.Duration `yaml:"strict_window"`
}

// Default returns settings suitable for local development.
// JWT secret and encryption key have no defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			Driver: sqldb.DriverSQLite,
			DSN:    "supwarden.db",
		},
		Blob: BlobConfig{
			Driver:   BlobBolt,
			BoltPath: "supwarden-blobs.db",
			S3: blob.S3Options{
				Region: "us-east-1",
				Bucket: "supwarden",
			},
			GridFS: blob.GridFSOptions{
				URI:      "mongodb://localhost:27017",
				Database: "supwarden",
				Bucket:   blob.DefaultGridFSBucket,
				Timeout:  10 * time.Second,
			},
		},
		Events: EventsConfig{
			Driver: EventsNone,
			NATS: events.NATSOptions{
				URL:           "nats://localhost:4222",
				ReconnectWait: 2 * time.Second,
				MaxReconnects: 60,
			},
		},
		Auth: AuthConfig{
			TokenTTL:   5 * time.Hour,
			BcryptCost: crypto.DefaultHashCost,
		},
		Attachments: AttachmentsConfig{
			MaxSize: 10 << 20,
		},
		RateLimit: RateLimitConfig{
			Requests:       300,
			Window:         time.Minute,
			StrictRequests: 10,
			StrictWindow:   time.Minute,
		},
	}
}

// Validate проверяет обязательные поля и допустимые значения
func (c Config) Validate() error {
	var errs []error

	if c.Server.Address == "" {
		errs = append(errs, errors.New("server address is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("jwt secret is required (JWT_KEY)"))
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("bcrypt cost must be between 4 and 31, got %d", c.Auth.BcryptCost))
	}
	if c.Encryption.KeyVersion < 0 {
		errs = append(errs, fmt.Errorf("encryption key version must not be negative, got %d", c.Encryption.KeyVersion))
	}
	if _, err := c.EncryptionKeys(); err != nil {
		errs = append(errs, err)
	}

	switch c.Database.Driver {
	case sqldb.DriverSQLite, sqldb.DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}

	switch c.Blob.Driver {
	case BlobBolt:
		if c.Blob.BoltPath == "" {
			errs = append(errs, errors.New("blob bolt path is required"))
		}
	case BlobS3:
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("blob s3 bucket is required"))
		}
	case BlobGridFS:
		if c.Blob.GridFS.URI == "" {
			errs = append(errs, errors.New("blob gridfs uri is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}

	switch c.Events.Driver {
	case EventsNone:
	case EventsNATS:
		if c.Events.NATS.URL == "" {
			errs = append(errs, errors.New("nats url is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown events driver %q", c.Events.Driver))
	}

	if c.Attachments.MaxSize <= 0 {
		errs = append(errs, errors.New("attachment max size must be positive"))
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.StrictRequests <= 0 ||
		c.RateLimit.Window <= 0 || c.RateLimit.StrictWindow <= 0 {
		errs = append(errs, errors.New("rate limits must be positive"))
	}
	for _, proxy := range c.RateLimit.TrustedProxies {
		if _, err := middleware.ParseTrustedProxy(proxy); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// EncryptionKeys декодирует текущий и предыдущие ключи по версиям
func (c Config) EncryptionKeys() (map[int][]byte, error) {
	if c.Encryption.Key == "" {
		return nil, errors.New("encryption key is required (ENCRYPTION_KEY)")
	}

	keys := make(map[int][]byte, len(c.Encryption.PreviousKeys)+1)
	for version, encoded := range c.Encryption.PreviousKeys {
		key, err := decodeKey(encoded)
		if err != nil {
			return nil, fmt.Errorf("previous encryption key v%d: %w", version, err)
		}
		keys[version] = key
	}

	key, err := decodeKey(c.Encryption.Key)
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}
	keys[c.Encryption.KeyVersion] = key

	return keys, nil
}

func decodeKey(encoded string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("must be hex: %w", err)
	}
	if len(key) != crypto.KeySize {
		return nil, fmt.Errorf("must be %d bytes, got %d", crypto.KeySize, len(key))
	}
	return key, nil
}
