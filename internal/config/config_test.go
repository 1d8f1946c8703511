package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

// isolate runs the test from an empty directory so no stray .env or
// prepper.yaml is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("PREPPER_CONFIG", "")
	t.Setenv("PREPPER_DEV", "")
	return dir
}

func TestLoadDefaultsInDevMode(t *testing.T) {
	isolate(t)
	t.Setenv("PREPPER_DEV", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.DBPath != "prepper.db" || cfg.TokenTTL != 24*time.Hour {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.JWTSecret != devSecret {
		t.Errorf("jwt secret = %q, want dev secret", cfg.JWTSecret)
	}
	if !slices.Equal(cfg.CORSOrigins, []string{"http://localhost:3000"}) {
		t.Errorf("cors origins = %v", cfg.CORSOrigins)
	}
	if cfg.BackupEnabled() {
		t.Error("backup should be disabled without S3 credentials")
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	isolate(t)
	t.Setenv("PREPPER_JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without a JWT secret")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := isolate(t)
	yaml := `
port: "9000"
db_path: /data/prepper.db
jwt_secret: from-file
token_ttl: 2h
cors_origins: ["https://a.example", "https://b.example"]
s3:
  bucket: backups
  access_key: ak
  secret_key: sk
backup:
  retention_days: 7
`
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PREPPER_CONFIG", path)
	t.Setenv("PREPPER_PORT", "9100")
	t.Setenv("PREPPER_CORS_ORIGINS", "https://c.example, https://d.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9100" {
		t.Errorf("port = %q, env should win", cfg.Port)
	}
	if cfg.DBPath != "/data/prepper.db" || cfg.JWTSecret != "from-file" || cfg.TokenTTL != 2*time.Hour {
		t.Errorf("file values = %+v", cfg)
	}
	if !slices.Equal(cfg.CORSOrigins, []string{"https://c.example", "https://d.example"}) {
		t.Errorf("cors origins = %v", cfg.CORSOrigins)
	}
	if !cfg.BackupEnabled() || cfg.Backup.RetentionDays != 7 || cfg.Backup.Prefix != "prepper" {
		t.Errorf("backup = %+v, s3 = %+v", cfg.Backup, cfg.S3)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	t.Setenv("PREPPER_CONFIG", "/does/not/exist.yaml")
	t.Setenv("PREPPER_JWT_SECRET", "x")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PREPPER_JWT_SECRET=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("PREPPER_JWT_SECRET", "")
	os.Unsetenv("PREPPER_JWT_SECRET")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.JWTSecret != "from-dotenv" {
		t.Errorf("jwt secret = %q", cfg.JWTSecret)
	}
}

func TestLoadBadEnv(t *testing.T) {
	isolate(t)
	t.Setenv("PREPPER_JWT_SECRET", "x")
	t.Setenv("PREPPER_TOKEN_TTL", "forever")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for an unparsable duration")
	}
}

func TestReadSkipsValidation(t *testing.T) {
	isolate(t)
	t.Setenv("PREPPER_JWT_SECRET", "")

	cfg, err := Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if cfg.JWTSecret != "" {
		t.Errorf("jwt secret = %q, want empty", cfg.JWTSecret)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validate to reject the empty secret")
	}
}

func TestTrustedProxies(t *testing.T) {
	isolate(t)
	t.Setenv("PREPPER_JWT_SECRET", "x")
	t.Setenv("PREPPER_TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1,fd00::/8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	prefixes, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		t.Fatalf("prefixes: %v", err)
	}
	var got []string
	for _, p := range prefixes {
		got = append(got, p.String())
	}
	if want := []string{"10.0.0.0/8", "192.0.2.1/32", "fd00::/8"}; !slices.Equal(got, want) {
		t.Errorf("prefixes = %v, want %v", got, want)
	}

	t.Setenv("PREPPER_TRUSTED_PROXIES", "10.0.0.0/8,proxy.local")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for a hostname in trusted proxies")
	}
}
