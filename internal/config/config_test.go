package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "abcdefghijklmnopqrstuvwxyz123456"

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv(envPrefix+"ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv(envPrefix+"CONFIG_FILE", "")
	t.Setenv(envPrefix+"JWT_ACCESS_SECRET", testSecret)
}

func TestLoadDefaultsCarrySecurityPolicy(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	p := cfg.Security
	if p.Lockout.MaxFailedAttempts != 5 || p.Lockout.Duration != 15*time.Minute {
		t.Fatalf("unexpected lockout policy: %+v", p.Lockout)
	}
	if p.Session.MaxConcurrent != 5 || p.Session.NormalTTL != 8*time.Hour {
		t.Fatalf("unexpected session policy: %+v", p.Session)
	}
	if p.Token.RefreshTTL != 30*24*time.Hour {
		t.Fatalf("unexpected refresh ttl: %s", p.Token.RefreshTTL)
	}
	if p.Device.MaxDevicesPerUser != 10 || p.Device.InitialTrustScore != 20 || p.Device.TrustIncrement != 5 {
		t.Fatalf("unexpected device policy: %+v", p.Device)
	}
	if p.Audit.BruteForceThreshold != 5 || p.Audit.BruteForceWindow != 15*time.Minute {
		t.Fatalf("unexpected audit policy: %+v", p.Audit)
	}
}

func TestLoadFileThenEnvPrecedence(t *testing.T) {
	isolateEnv(t)
	file := filepath.Join(t.TempDir(), "authcore.yaml")
	content := `
app_env: staging
http_addr: ":9090"
security:
  lockout:
    max_failed_attempts: 3
  session:
    max_concurrent: 2
  device:
    trust_bump_interval: 1h
`
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(envPrefix+"CONFIG_FILE", file)
	t.Setenv(envPrefix+"HTTP_ADDR", ":7070")
	t.Setenv(envPrefix+"KAFKA_BROKERS", "k1:9092, k2:9092,,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AppEnv != "staging" {
		t.Fatalf("expected file app_env, got %q", cfg.AppEnv)
	}
	if cfg.HTTPAddr != ":7070" {
		t.Fatalf("expected env to override file http_addr, got %q", cfg.HTTPAddr)
	}
	if cfg.Security.Lockout.MaxFailedAttempts != 3 || cfg.Security.Lockout.Duration != 15*time.Minute {
		t.Fatalf("expected partial lockout override, got %+v", cfg.Security.Lockout)
	}
	if cfg.Security.Session.MaxConcurrent != 2 {
		t.Fatalf("expected session override, got %d", cfg.Security.Session.MaxConcurrent)
	}
	if cfg.Security.Device.TrustBumpInterval != time.Hour {
		t.Fatalf("expected trust bump interval from file, got %s", cfg.Security.Device.TrustBumpInterval)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers: %#v", cfg.KafkaBrokers)
	}
}

func TestLoadRejectsBadEnvValue(t *testing.T) {
	isolateEnv(t)
	t.Setenv(envPrefix+"LOCKOUT_DURATION", "fifteen")

	_, err := Load()
	if err == nil {
		t.Fatal("expected parse error")
	}
	if got := loadErrorClass(err); got != "parse" {
		t.Fatalf("expected parse error class, got %q (%v)", got, err)
	}
}

func TestLoadValidationFailure(t *testing.T) {
	isolateEnv(t)
	t.Setenv(envPrefix+"JWT_ACCESS_SECRET", "short")
	t.Setenv(envPrefix+"SESSION_MAX_CONCURRENT", "0")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "jwt access secret") || !strings.Contains(err.Error(), "session max concurrent") {
		t.Fatalf("expected both problems reported, got %v", err)
	}
	if got := loadErrorClass(err); got != "validation" {
		t.Fatalf("expected validation error class, got %q", got)
	}
}

func TestLoadEnvFilePreservesExisting(t *testing.T) {
	t.Setenv("AUTHCORE_TEST_EXISTING", "from-env")
	file := filepath.Join(t.TempDir(), "test.env")
	content := "# comment\nAUTHCORE_TEST_EXISTING=from-file\nAUTHCORE_TEST_NEW=hello\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("AUTHCORE_TEST_NEW") })

	if err := LoadEnvFile(file); err != nil {
		t.Fatalf("load env file: %v", err)
	}
	if got := os.Getenv("AUTHCORE_TEST_EXISTING"); got != "from-env" {
		t.Fatalf("expected existing var preserved, got %q", got)
	}
	if got := os.Getenv("AUTHCORE_TEST_NEW"); got != "hello" {
		t.Fatalf("unexpected AUTHCORE_TEST_NEW=%q", got)
	}
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing env file should be ignored: %v", err)
	}
}
