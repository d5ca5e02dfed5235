package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir keeps a stray config.yaml or .env in the package dir out of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadConfig_DefaultsAndEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CLINIC_JWT_SECRET", "from-env")
	t.Setenv("CLINIC_DATABASE_HOST", "db.internal")
	t.Setenv("CLINIC_OUTBOX_BATCH_SIZE", "25")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 25, cfg.Outbox.BatchSize)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Catalog.CacheTTL)
	assert.Equal(t, 10*time.Second, cfg.Scheduling.ConsultationLockTTL)
	assert.Equal(t, "clinic.events", cfg.Redis.Channel)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  port: 9090
jwt:
  secret: file-secret
  expiry: 30m
rate_limit:
  rps: 1.5
  burst: 3
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	chdir(t, t.TempDir())

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "file-secret", cfg.JWT.Secret)
	assert.Equal(t, 30*time.Minute, cfg.JWT.Expiry)
	assert.Equal(t, 1.5, cfg.RateLimit.RPS)
	assert.Equal(t, 3, cfg.RateLimit.Burst)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Server: ServerConfig{Port: 8080},
		JWT:    JWTConfig{Secret: "s"},
		Outbox: OutboxConfig{BatchSize: 1},
	}
	require.NoError(t, valid.Validate())

	noSecret := valid
	noSecret.JWT.Secret = ""
	assert.Error(t, noSecret.Validate())

	badSMTP := valid
	badSMTP.SMTP = SMTPConfig{Enabled: true}
	assert.Error(t, badSMTP.Validate())

	badPort := valid
	badPort.Server.Port = 0
	assert.Error(t, badPort.Validate())
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "p", Name: "clinic", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=clinic sslmode=disable", c.DSN())
}
