package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadInto_MergesEnvAndSecrets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
server:
  port: ":8080"
db:
  host: localhost
  port: 5432
  password: ${DB_SECRET}
`)
	writeFile(t, dir, "production.yaml", `
db:
  host: db.internal
`)
	writeFile(t, dir, "secrets.env", `
# comment
DB_SECRET="s3cret"
`)

	var out struct {
		Server ServerConfig `yaml:"server"`
		DB     DBConfig     `yaml:"db"`
	}
	if err := LoadInto("production", dir, &out); err != nil {
		t.Fatalf("LoadInto: %v", err)
	}
	if out.DB.Host != "db.internal" {
		t.Errorf("db.host = %q, want env override", out.DB.Host)
	}
	if out.DB.Port != 5432 {
		t.Errorf("db.port = %d, want base value", out.DB.Port)
	}
	if out.DB.Password != "s3cret" {
		t.Errorf("db.password = %q, want substituted secret", out.DB.Password)
	}
	if out.Server.Port != ":8080" {
		t.Errorf("server.port = %q", out.Server.Port)
	}
}

func TestLoadInto_MissingBase(t *testing.T) {
	var out struct{}
	if err := LoadInto("local", t.TempDir(), &out); err == nil {
		t.Fatal("expected error when base.yaml is missing")
	}
}

func TestLoadInto_PlaceholdersAndPresetFields(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
jwt:
  secret: ${LOADER_TEST_SECRET}
redis:
  password: pre-${LOADER_TEST_UNSET}-post
`)
	t.Setenv("LOADER_TEST_SECRET", "from-env")

	out := struct {
		JWT    JWTConfig    `yaml:"jwt"`
		Redis  RedisConfig  `yaml:"redis"`
		Server ServerConfig `yaml:"server"`
	}{Server: ServerConfig{Port: ":9000"}}
	if err := LoadInto("", dir, &out); err != nil {
		t.Fatalf("LoadInto: %v", err)
	}
	if out.JWT.Secret != "from-env" {
		t.Errorf("jwt.secret = %q", out.JWT.Secret)
	}
	if out.Redis.Password != "pre--post" {
		t.Errorf("redis.password = %q, want unresolved placeholder dropped", out.Redis.Password)
	}
	if out.Server.Port != ":9000" {
		t.Errorf("server.port = %q, want preset value kept", out.Server.Port)
	}
}

func TestOverrideDBFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "envhost")
	t.Setenv("DB_PORT", "6543")
	cfg := DBConfig{Host: "x", Port: 1}
	OverrideDBFromEnv(&cfg)
	if cfg.Host != "envhost" || cfg.Port != 6543 {
		t.Fatalf("got %+v", cfg)
	}
}
