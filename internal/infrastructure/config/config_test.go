package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"POS_APP_NAME",
	"POS_APP_ENV",
	"POS_APP_PORT",
	"POS_DATABASE_DRIVER",
	"POS_DATABASE_HOST",
	"POS_DATABASE_PORT",
	"POS_DATABASE_USER",
	"POS_DATABASE_PASSWORD",
	"POS_DATABASE_DBNAME",
	"POS_DATABASE_SSLMODE",
	"POS_DATABASE_MAX_OPEN_CONNS",
	"POS_DATABASE_MAX_IDLE_CONNS",
	"POS_DATABASE_AUTO_MIGRATE",
	"POS_REPORT_TIMEZONE",
	"POS_REPORT_LOCK_BACKEND",
	"POS_REPORT_LOCK_WAIT",
	"POS_HTTP_CORS_ALLOW_ORIGINS",
}

// withCleanEnv clears the config env vars for the test and restores them afterwards
func withCleanEnv(t *testing.T) {
	t.Helper()
	original := make(map[string]string, len(configEnvKeys))
	for _, k := range configEnvKeys {
		original[k] = os.Getenv(k)
		os.Unsetenv(k)
	}
	t.Cleanup(func() {
		for k, v := range original {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		withCleanEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "pos-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, DriverPostgres, cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "postgres", cfg.Database.User)
		assert.Equal(t, "", cfg.Database.Password)
		assert.Equal(t, "pos", cfg.Database.DBName)
		assert.Equal(t, "disable", cfg.Database.SSLMode)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Equal(t, "UTC", cfg.Report.Timezone)
		assert.Equal(t, "UTC", cfg.Database.TimeZone)
		assert.Equal(t, LockBackendMemory, cfg.Report.LockBackend)
		assert.Equal(t, 10*time.Second, cfg.Report.LockWait)
		assert.Equal(t, 2*time.Minute, cfg.Report.LockTTL)
		assert.Equal(t, "/metrics", cfg.Metrics.Path)
	})

	t.Run("loads values from environment variables with POS prefix", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("POS_APP_NAME", "test-app")
		os.Setenv("POS_APP_ENV", "testing")
		os.Setenv("POS_APP_PORT", "9000")
		os.Setenv("POS_DATABASE_HOST", "testdb.local")
		os.Setenv("POS_DATABASE_PORT", "5433")
		os.Setenv("POS_DATABASE_USER", "testuser")
		os.Setenv("POS_DATABASE_PASSWORD", "testpass")
		os.Setenv("POS_DATABASE_DBNAME", "testdb")
		os.Setenv("POS_DATABASE_SSLMODE", "require")
		os.Setenv("POS_DATABASE_MAX_OPEN_CONNS", "50")
		os.Setenv("POS_DATABASE_MAX_IDLE_CONNS", "10")
		os.Setenv("POS_REPORT_TIMEZONE", "Asia/Dhaka")
		os.Setenv("POS_REPORT_LOCK_BACKEND", "redis")
		os.Setenv("POS_REPORT_LOCK_WAIT", "3s")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "testing", cfg.App.Env)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "testuser", cfg.Database.User)
		assert.Equal(t, "testpass", cfg.Database.Password)
		assert.Equal(t, "testdb", cfg.Database.DBName)
		assert.Equal(t, "require", cfg.Database.SSLMode)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.Equal(t, "Asia/Dhaka", cfg.Report.Timezone)
		assert.Equal(t, "Asia/Dhaka", cfg.Database.TimeZone)
		assert.Equal(t, LockBackendRedis, cfg.Report.LockBackend)
		assert.Equal(t, 3*time.Second, cfg.Report.LockWait)
	})

	t.Run("mysql driver defaults to port 3306", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("POS_DATABASE_DRIVER", "mysql")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 3306, cfg.Database.Port)
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("POS_DATABASE_DRIVER", "oracle")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("POS_DATABASE_MAX_OPEN_CONNS", "10")
		os.Setenv("POS_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns")
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("zero MaxOpenConns uses default", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("POS_DATABASE_MAX_OPEN_CONNS", "0")

		cfg, err := Load()
		require.NoError(t, err)
		// 0 is treated as "not set", so default (25) is used
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	})

	t.Run("rejects unknown report time zone", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("POS_REPORT_TIMEZONE", "Mars/Olympus")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "report.timezone")
	})

	t.Run("rejects unknown lock backend", func(t *testing.T) {
		withCleanEnv(t)
		os.Setenv("POS_REPORT_LOCK_BACKEND", "etcd")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "report.lock_backend")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	productionEnv := func() {
		os.Setenv("POS_APP_ENV", "production")
		os.Setenv("POS_DATABASE_PASSWORD", "secret")
		os.Setenv("POS_DATABASE_SSLMODE", "require")
	}

	t.Run("accepts a complete production config", func(t *testing.T) {
		withCleanEnv(t)
		productionEnv()

		_, err := Load()
		assert.NoError(t, err)
	})

	t.Run("requires database password", func(t *testing.T) {
		withCleanEnv(t)
		productionEnv()
		os.Unsetenv("POS_DATABASE_PASSWORD")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required")
	})

	t.Run("rejects disabled sslmode", func(t *testing.T) {
		withCleanEnv(t)
		productionEnv()
		os.Setenv("POS_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sslmode")
	})

	t.Run("rejects sqlite", func(t *testing.T) {
		withCleanEnv(t)
		productionEnv()
		os.Setenv("POS_DATABASE_DRIVER", "sqlite")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sqlite")
	})

	t.Run("rejects auto migrate", func(t *testing.T) {
		withCleanEnv(t)
		productionEnv()
		os.Setenv("POS_DATABASE_AUTO_MIGRATE", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "auto_migrate")
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid postgres DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Driver:   DriverPostgres,
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
			TimeZone: "Asia/Dhaka",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "postgres://")
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
		assert.Contains(t, dsn, "timezone=Asia%2FDhaka")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Driver:   DriverPostgres,
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		// URL-encoded password should be in the DSN
		assert.Contains(t, dsn, "pass%40word%23123")
	})

	t.Run("generates mysql DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Driver:   DriverMySQL,
			Host:     "db",
			Port:     3306,
			User:     "pos",
			Password: "pw",
			DBName:   "pos",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "pos:pw@tcp(db:3306)/pos?")
		assert.Contains(t, dsn, "parseTime=True")
		assert.Contains(t, dsn, "loc=UTC")
		assert.Contains(t, dsn, "time_zone=%27UTC%27")
	})

	t.Run("sqlite DSN is the file path", func(t *testing.T) {
		cfg := DatabaseConfig{Driver: DriverSQLite, Path: "data/pos.db"}
		assert.Equal(t, "data/pos.db", cfg.DSN())
	})
}

func TestReportConfig_Location(t *testing.T) {
	loc, err := ReportConfig{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = ReportConfig{Timezone: "Europe/Berlin"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}
