package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKeyHex  = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	testPrevHex = "1f1e1d1c1b1a191817161514131211100f0e0d0c0b0a09080706050403020100"
)

func envMap(m map[string]string) LookupEnv {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func validConfig() Config {
	cfg := Default()
	cfg.Auth.JWTSecret = "jwt-secret"
	cfg.Encryption.Key = testKeyHex
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, BlobBolt, cfg.Blob.Driver)
	assert.Equal(t, EventsNone, cfg.Events.Driver)
	assert.Equal(t, 5*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, int64(10<<20), cfg.Attachments.MaxSize)
	assert.Equal(t, "uploads", cfg.Blob.GridFS.Bucket)

	// секреты не имеют значений по умолчанию
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt secret is required")
	assert.Contains(t, err.Error(), "encryption key is required")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		modify  func(*Config)
		name    string
		wantErr string
	}{
		{
			name:   "valid",
			modify: func(*Config) {},
		},
		{
			name:    "short key",
			modify:  func(c *Config) { c.Encryption.Key = "abcd" },
			wantErr: "must be 32 bytes",
		},
		{
			name:    "non hex key",
			modify:  func(c *Config) { c.Encryption.Key = strings.Repeat("zz", 32) },
			wantErr: "must be hex",
		},
		{
			name:    "bad previous key",
			modify:  func(c *Config) { c.Encryption.PreviousKeys = map[int]string{0: "ff"} },
			wantErr: "previous encryption key v0",
		},
		{
			name:    "bcrypt cost too low",
			modify:  func(c *Config) { c.Auth.BcryptCost = 3 },
			wantErr: "bcrypt cost",
		},
		{
			name:    "bcrypt cost too high",
			modify:  func(c *Config) { c.Auth.BcryptCost = 32 },
			wantErr: "bcrypt cost",
		},
		{
			name:    "unknown database driver",
			modify:  func(c *Config) { c.Database.Driver = "mysql" },
			wantErr: `unknown database driver "mysql"`,
		},
		{
			name:    "unknown blob driver",
			modify:  func(c *Config) { c.Blob.Driver = "ftp" },
			wantErr: `unknown blob driver "ftp"`,
		},
		{
			name:    "s3 without bucket",
			modify:  func(c *Config) { c.Blob.Driver = BlobS3; c.Blob.S3.Bucket = "" },
			wantErr: "s3 bucket is required",
		},
		{
			name:    "unknown events driver",
			modify:  func(c *Config) { c.Events.Driver = "kafka" },
			wantErr: `unknown events driver "kafka"`,
		},
		{
			name:    "zero rate limit",
			modify:  func(c *Config) { c.RateLimit.StrictRequests = 0 },
			wantErr: "rate limits must be positive",
		},
		{
			name:    "trusted proxy cidr",
			modify:  func(c *Config) { c.RateLimit.TrustedProxies = []string{"10.0.0.0/8", "127.0.0.1", "::1"} },
			wantErr: "",
		},
		{
			name:    "bad trusted proxy",
			modify:  func(c *Config) { c.RateLimit.TrustedProxies = []string{"proxy.local"} },
			wantErr: `invalid trusted proxy "proxy.local"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_EncryptionKeys(t *testing.T) {
	cfg := validConfig()
	cfg.Encryption.KeyVersion = 2
	cfg.Encryption.PreviousKeys = map[int]string{1: testPrevHex}

	keys, err := cfg.EncryptionKeys()
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, byte(0x00), keys[2][0])
	assert.Equal(t, byte(0x1f), keys[1][0])
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	cfg, err := Load(nil, envMap(map[string]string{
		"JWT_KEY":                       "from-env",
		"ENCRYPTION_KEY":                testKeyHex,
		"ENCRYPTION_KEY_VERSION":        "3",
		"ENCRYPTION_PREVIOUS_KEYS":      "2:" + testPrevHex,
		"GOOGLE_CLIENT_ID":              "client.apps.googleusercontent.com",
		"DATABASE_DSN":                  "postgres://localhost/supwarden",
		"SUPWARDEN_DB_DRIVER":           "postgres",
		"SUPWARDEN_MAX_ATTACHMENT_SIZE": "2048",
		"SUPWARDEN_TOKEN_TTL":           "1h",
		"SUPWARDEN_TRUSTED_PROXIES":     "10.0.0.1, 172.16.0.0/12,",
	}))
	require.NoError(t, err)

	want := Default()
	want.Auth.JWTSecret = "from-env"
	want.Auth.GoogleClientID = "client.apps.googleusercontent.com"
	want.Auth.TokenTTL = time.Hour
	want.Encryption = EncryptionConfig{
		Key:          testKeyHex,
		KeyVersion:   3,
		PreviousKeys: map[int]string{2: testPrevHex},
	}
	want.Database = DatabaseConfig{Driver: "postgres", DSN: "postgres://localhost/supwarden"}
	want.Attachments.MaxSize = 2048
	want.RateLimit.TrustedProxies = []string{"10.0.0.1", "172.16.0.0/12"}

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_BadEnv(t *testing.T) {
	tests := []struct {
		env     map[string]string
		name    string
		wantErr string
	}{
		{
			name:    "non numeric key version",
			env:     map[string]string{"ENCRYPTION_KEY_VERSION": "two"},
			wantErr: "ENCRYPTION_KEY_VERSION",
		},
		{
			name:    "malformed previous keys",
			env:     map[string]string{"ENCRYPTION_PREVIOUS_KEYS": "nocolon"},
			wantErr: "version:hexkey",
		},
		{
			name:    "bad ttl",
			env:     map[string]string{"SUPWARDEN_TOKEN_TTL": "soon"},
			wantErr: "SUPWARDEN_TOKEN_TTL",
		},
		{
			name:    "missing secrets",
			env:     map[string]string{},
			wantErr: "jwt secret is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(nil, envMap(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_Layering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supwarden.yaml")
	yamlConfig := `
server:
  address: ":9000"
  request_timeout: 5s
log:
  level: debug
blob:
  driver: s3
  s3:
    endpoint: http://127.0.0.1:9000
    bucket: attachments
    use_path_style: true
events:
  driver: nats
  nats:
    url: nats://broker:4222
auth:
  jwt_secret: from-file
  require_accepted_for_write: true
encryption:
  key: ` + testKeyHex + `
  previous_keys:
    0: ` + testPrevHex + `
`
	require.NoError(t, os.WriteFile(path, []byte(yamlConfig), 0o600))

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	flags := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-config", path, "-addr", ":9100", "-log-format", "text"}))

	cfg, err := Load(flags, envMap(map[string]string{
		"JWT_KEY":           "from-env",
		"SUPWARDEN_ADDRESS": ":9050",
	}))
	require.NoError(t, err)

	want := Default()
	want.Server.Address = ":9100" // флаг сильнее env и файла
	want.Server.RequestTimeout = 5 * time.Second
	want.Log = LogConfig{Level: "debug", Format: "text"}
	want.Blob.Driver = BlobS3
	want.Blob.S3.Endpoint = "http://127.0.0.1:9000"
	want.Blob.S3.Bucket = "attachments"
	want.Blob.S3.UsePathStyle = true
	want.Events.Driver = EventsNATS
	want.Events.NATS.URL = "nats://broker:4222"
	want.Auth.JWTSecret = "from-env" // env сильнее файла
	want.Auth.RequireAcceptedForWrite = true
	want.Encryption = EncryptionConfig{
		Key:          testKeyHex,
		PreviousKeys: map[int]string{0: testPrevHex},
	}

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_ConfigFromEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supwarden.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth:\n  jwt_secret: file\nencryption:\n  key: "+testKeyHex+"\n"), 0o600))

	cfg, err := Load(nil, envMap(map[string]string{"SUPWARDEN_CONFIG": path}))
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Auth.JWTSecret)
}

func TestLoadFile_Errors(t *testing.T) {
	cfg := Default()

	err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), &cfg)
	assert.ErrorContains(t, err, "failed to read config file")

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
	err = LoadFile(path, &cfg)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestParsePreviousKeys(t *testing.T) {
	keys, err := parsePreviousKeys(" 0:aa , 1:bb,")
	require.NoError(t, err)
	assert.Equal(t, map[int]string{0: "aa", 1: "bb"}, keys)

	_, err = parsePreviousKeys("-1:aa")
	assert.Error(t, err)
}
