package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiredFieldMissing(t *testing.T) {
	t.Setenv("DATABASE_FILE_PATH", "")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	cfg, err := New()
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required config")
	assert.Contains(t, err.Error(), "DATABASE_FILE_PATH")
	assert.Contains(t, err.Error(), "database_file_path")
}

func TestNew_JWTSecretMissing(t *testing.T) {
	t.Setenv("DATABASE_FILE_PATH", "/tmp/test.db")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestNew_WithEnvVar(t *testing.T) {
	t.Setenv("DATABASE_FILE_PATH", "/tmp/test.db")
	t.Setenv("JWT_SECRET", "test-secret-key")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test.db", cfg.DatabaseFilePath)
	assert.Equal(t, "test-secret-key", cfg.JWTSecret)
}

func TestNew_WithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database_file_path: /data/serenity.db
server_port: 8080
database_debug: true
jwt_secret: test-secret-from-file
fine_rate_per_day: "7.5"
otp_ttl: 5m
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	t.Setenv("CONFIG_FILE", configPath)

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "/data/serenity.db", cfg.DatabaseFilePath)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.True(t, cfg.DatabaseDebug)
	assert.Equal(t, "7.5", cfg.FineRatePerDay)
	assert.Equal(t, 5*time.Minute, cfg.OTPTTL)
}

func TestNew_EnvVarOverridesConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database_file_path: /data/from-file.db
server_port: 8080
jwt_secret: test-secret-from-file
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	t.Setenv("CONFIG_FILE", configPath)
	t.Setenv("DATABASE_FILE_PATH", "/data/from-env.db")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "/data/from-env.db", cfg.DatabaseFilePath)
	assert.Equal(t, 9090, cfg.ServerPort)
}

func TestNew_Defaults(t *testing.T) {
	t.Setenv("DATABASE_FILE_PATH", "/tmp/test.db")
	t.Setenv("JWT_SECRET", "test-secret-key")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.DatabaseConnectRetryCount)
	assert.Equal(t, 2*time.Second, cfg.DatabaseConnectRetryDelay)
	assert.False(t, cfg.DatabaseDebug)
	assert.Equal(t, "0.0.0.0", cfg.ServerHost)
	assert.Equal(t, 3689, cfg.ServerPort)
	assert.Equal(t, 2, cfg.WorkerProcesses)
	assert.Equal(t, "5", cfg.FineRatePerDay)
	assert.Equal(t, 10, cfg.LoanPeriodDays)
	assert.Equal(t, 5, cfg.MaxBooksPerUser)
	assert.Equal(t, 2, cfg.PrebookingPickupDays)
	assert.Equal(t, 10*time.Minute, cfg.OTPTTL)
}

func TestNew_DevelopmentEnvironment(t *testing.T) {
	t.Setenv("DATABASE_FILE_PATH", "/tmp/test.db")
	t.Setenv("JWT_SECRET", "test-secret-key")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")
	t.Setenv("ENVIRONMENT", "development")

	cfg, err := New()
	require.NoError(t, err)
	assert.True(t, cfg.DatabaseDebug)
	assert.Equal(t, "127.0.0.1", cfg.ServerHost)
	assert.Equal(t, 5*time.Second, cfg.SchedulerInterval)
	assert.Equal(t, "test-secret-key", cfg.JWTSecret, "an explicit secret is kept")
}

func TestNew_RejectsNonPositiveRules(t *testing.T) {
	cases := map[string]string{
		"LOAN_PERIOD_DAYS":       "loan_period_days",
		"MAX_BOOKS_PER_USER":     "max_books_per_user",
		"PREBOOKING_PICKUP_DAYS": "prebooking_pickup_days",
		"WORKER_PROCESSES":       "worker_processes",
	}
	for env, key := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv("DATABASE_FILE_PATH", "/tmp/test.db")
			t.Setenv("JWT_SECRET", "test-secret-key")
			t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")
			t.Setenv(env, "0")

			_, err := New()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key+" must be at least 1")
		})
	}
}

func TestNewForTest(t *testing.T) {
	cfg := NewForTest()
	assert.Equal(t, ":memory:", cfg.DatabaseFilePath)
	assert.Equal(t, "127.0.0.1", cfg.ServerHost)
	assert.Equal(t, 5, cfg.MaxBooksPerUser)
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "database_file_path", toSnakeCase("DatabaseFilePath"))
	assert.Equal(t, "server_port", toSnakeCase("ServerPort"))
	assert.Equal(t, "fine_rate_per_day", toSnakeCase("FineRatePerDay"))
}
