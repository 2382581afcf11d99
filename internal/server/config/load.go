package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Flags - флаги командной строки, перекрывающие остальные источники
type Flags struct {
	fs          *flag.FlagSet
	configPath  string
	address     string
	dbDriver    string
	dsn         string
	blobDriver  string
	eventDriver string
	logLevel    string
	logFormat   string
}

// RegisterFlags добавляет флаги сервера в fs. Значения применяются в Load.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.configPath, "config", "", "path to YAML config file")
	fs.StringVar(&f.address, "addr", "", "HTTP listen address")
	fs.StringVar(&f.dbDriver, "db-driver", "", "database driver: sqlite or postgres")
	fs.StringVar(&f.dsn, "dsn", "", "database DSN (sqlite file path or postgres URL)")
	fs.StringVar(&f.blobDriver, "blob", "", "attachment storage: bolt, s3 or gridfs")
	fs.StringVar(&f.eventDriver, "events", "", "event publisher: none or nats")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", "", "log format: json or text")
	return f
}

// apply копирует в cfg только явно заданные флаги
func (f *Flags) apply(cfg *Config) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "addr":
			cfg.Server.Address = f.address
		case "db-driver":
			cfg.Database.Driver = f.dbDriver
		case "dsn":
			cfg.Database.DSN = f.dsn
		case "blob":
			cfg.Blob.Driver = f.blobDriver
		case "events":
			cfg.Events.Driver = f.eventDriver
		case "log-level":
			cfg.Log.Level = f.logLevel
		case "log-format":
			cfg.Log.Format = f.logFormat
		}
	})
}

// LookupEnv совпадает по сигнатуре с os.LookupEnv
type LookupEnv func(key string) (string, bool)

// Load builds the final Config: defaults, YAML file, environment, flags.
// flags may be nil. The result is validated.
func Load(flags *Flags, lookup LookupEnv) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg := Default()

	path, _ := lookup("SUPWARDEN_CONFIG")
	if flags != nil && flags.configPath != "" {
		path = flags.configPath
	}
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}

	if flags != nil {
		flags.apply(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFile накладывает YAML файл поверх cfg. Отсутствующие в файле поля не меняются.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func applyEnv(cfg *Config, lookup LookupEnv) error {
	strs := map[string]*string{
		"JWT_KEY":                        &cfg.Auth.JWTSecret,
		"ENCRYPTION_KEY":                 &cfg.Encryption.Key,
		"GOOGLE_CLIENT_ID":               &cfg.Auth.GoogleClientID,
		"DATABASE_DSN":                   &cfg.Database.DSN,
		"SUPWARDEN_ADDRESS":              &cfg.Server.Address,
		"SUPWARDEN_DB_DRIVER":            &cfg.Database.Driver,
		"SUPWARDEN_LOG_LEVEL":            &cfg.Log.Level,
		"SUPWARDEN_LOG_FORMAT":           &cfg.Log.Format,
		"SUPWARDEN_BLOB_DRIVER":          &cfg.Blob.Driver,
		"SUPWARDEN_BOLT_PATH":            &cfg.Blob.BoltPath,
		"SUPWARDEN_S3_ENDPOINT":          &cfg.Blob.S3.Endpoint,
		"SUPWARDEN_S3_REGION":            &cfg.Blob.S3.Region,
		"SUPWARDEN_S3_BUCKET":            &cfg.Blob.S3.Bucket,
		"SUPWARDEN_S3_ACCESS_KEY_ID":     &cfg.Blob.S3.AccessKeyID,
		"SUPWARDEN_S3_SECRET_ACCESS_KEY": &cfg.Blob.S3.SecretAccessKey,
		"SUPWARDEN_MONGO_URI":            &cfg.Blob.GridFS.URI,
		"SUPWARDEN_EVENTS_DRIVER":        &cfg.Events.Driver,
		"SUPWARDEN_NATS_URL":             &cfg.Events.NATS.URL,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	var errs []error
	ints := map[string]*int{
		"ENCRYPTION_KEY_VERSION": &cfg.Encryption.KeyVersion,
		"SUPWARDEN_BCRYPT_COST":  &cfg.Auth.BcryptCost,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		*dst = n
	}

	if v, ok := lookup("SUPWARDEN_MAX_ATTACHMENT_SIZE"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("SUPWARDEN_MAX_ATTACHMENT_SIZE: %w", err))
		} else {
			cfg.Attachments.MaxSize = n
		}
	}

	if v, ok := lookup("SUPWARDEN_TOKEN_TTL"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("SUPWARDEN_TOKEN_TTL: %w", err))
		} else {
			cfg.Auth.TokenTTL = d
		}
	}

	if v, ok := lookup("SUPWARDEN_TRUSTED_PROXIES"); ok {
		cfg.RateLimit.TrustedProxies = splitList(v)
	}

	if v, ok := lookup("ENCRYPTION_PREVIOUS_KEYS"); ok {
		keys, err := parsePreviousKeys(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ENCRYPTION_PREVIOUS_KEYS: %w", err))
		} else {
			cfg.Encryption.PreviousKeys = keys
		}
	}

	return errors.Join(errs...)
}

// splitList разбирает список через запятую, пустые элементы отбрасываются
func splitList(v string) []string {
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// parsePreviousKeys разбирает список вида "0:hexkey,1:hexkey"
func parsePreviousKeys(v string) (map[int]string, error) {
	keys := make(map[int]string)
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		version, key, ok := strings.Cut(item, ":")
		if !ok {
			return nil, fmt.Errorf("entry %q must be version:hexkey", item)
		}
		n, err := strconv.Atoi(strings.TrimSpace(version))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("entry %q has invalid version", item)
		}
		keys[n] = strings.TrimSpace(key)
	}
	return keys, nil
}
