package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"maps"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// baseEnv is the smallest environment Load accepts: a database and nothing else.
func baseEnv() map[string]string {
	return map[string]string{
		"ACCOLADE_DB_HOST":     "localhost",
		"ACCOLADE_DB_PORT":     "5432",
		"ACCOLADE_DB_NAME":     "accolade_test",
		"ACCOLADE_DB_USER":     "test_user",
		"ACCOLADE_DB_PASSWORD": "test_pass",
	}
}

// mergeEnvVars overlays extra on baseEnv.
func mergeEnvVars(extra map[string]string) map[string]string {
	env := baseEnv()
	maps.Copy(env, extra)
	return env
}

// productionEnv satisfies every production-only rule.
func productionEnv() map[string]string {
	return map[string]string{
		"ACCOLADE_APP_ENV": "production",

		"ACCOLADE_DB_HOST":     "prod-db.example.com",
		"ACCOLADE_DB_PORT":     "5432",
		"ACCOLADE_DB_NAME":     "accolade_prod",
		"ACCOLADE_DB_USER":     "prod_user",
		"ACCOLADE_DB_PASSWORD": "SuperSecure123!",
		"ACCOLADE_DB_SSL_MODE": "require",

		"ACCOLADE_REDIS_HOST":        "prod-redis.example.com",
		"ACCOLADE_REDIS_PORT":        "6379",
		"ACCOLADE_REDIS_PASSWORD":    "RedisSecure123!",
		"ACCOLADE_REDIS_TLS_ENABLED": "true",

		"ACCOLADE_SERVER_CONTROL_API_KEY_HASH":  "5dec7e1c36e8ec7f526cfa8ff6dc788daad76f6dd34467662eb47990dca6b55d",
		"ACCOLADE_SERVER_CONTROL_TLS_ENABLED":   "true",
		"ACCOLADE_SERVER_CONTROL_TLS_CERT_FILE": "/certs/control-cert.pem",
		"ACCOLADE_SERVER_CONTROL_TLS_KEY_FILE":  "/certs/control-key.pem",
	}
}

func withProduction(extra map[string]string) map[string]string {
	env := productionEnv()
	maps.Copy(env, extra)
	return env
}

// loadCase drives Load from a set of environment variables.
type loadCase struct {
	name    string
	envVars map[string]string
	want    func(t *testing.T, cfg *Config)
	wantErr bool
	// errContains, when set, must appear in the error.
	errContains string
}

// runLoadCases runs each case sequentially; t.Setenv rules out t.Parallel.
func runLoadCases(t *testing.T, cases []loadCase) {
	t.Helper()

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.envVars {
				t.Setenv(k, v)
			}

			cfg, err := Load()

			if tc.wantErr || tc.errContains != "" {
				require.Error(t, err)
				if tc.errContains != "" {
					assert.Contains(t, err.Error(), tc.errContains)
				}
				return
			}
			require.NoError(t, err)
			if tc.want != nil {
				tc.want(t, cfg)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	runLoadCases(t, []loadCase{
		{
			name:    "Should apply defaults on top of a database",
			envVars: baseEnv(),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "accolade", cfg.App.Name)
				assert.Equal(t, "dev", cfg.App.Version)
				assert.Equal(t, "development", cfg.App.Environment)
				assert.Equal(t, "info", cfg.App.LogLevel)
				assert.Equal(t, "text", cfg.App.LogFormat)
				assert.Equal(t, 30*time.Second, cfg.App.ShutdownTimeout)
				assert.Equal(t, "8080", cfg.Server.Control.Port)
				assert.Equal(t, "50051", cfg.Server.Data.Port)
				assert.Equal(t, "9090", cfg.Observability.Port)
				assert.True(t, cfg.Database.AutoMigrate)
				assert.Equal(t, CatalogSourcePostgres, cfg.Catalog.Source)
			},
		},
		{
			name: "Should load application settings",
			envVars: mergeEnvVars(map[string]string{
				"ACCOLADE_APP_NAME":             "accolade-worker",
				"ACCOLADE_APP_VERSION":          "1.4.0",
				"ACCOLADE_APP_ENV":              "staging",
				"ACCOLADE_APP_LOG_LEVEL":        "debug",
				"ACCOLADE_APP_LOG_FORMAT":       "json",
				"ACCOLADE_APP_SHUTDOWN_TIMEOUT": "45s",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "accolade-worker", cfg.App.Name)
				assert.Equal(t, "1.4.0", cfg.App.Version)
				assert.Equal(t, "staging", cfg.App.Environment)
				assert.Equal(t, "debug", cfg.App.LogLevel)
				assert.Equal(t, "json", cfg.App.LogFormat)
				assert.Equal(t, 45*time.Second, cfg.App.ShutdownTimeout)
			},
		},
		{
			name:    "Should reject an unknown environment",
			envVars: mergeEnvVars(map[string]string{"ACCOLADE_APP_ENV": "qa"}),
			wantErr: true,
		},
		{
			name:    "Should reject an unknown log level",
			envVars: mergeEnvVars(map[string]string{"ACCOLADE_APP_LOG_LEVEL": "trace"}),
			wantErr: true,
		},
		{
			name:    "Should reject an unknown log format",
			envVars: mergeEnvVars(map[string]string{"ACCOLADE_APP_LOG_FORMAT": "logfmt"}),
			wantErr: true,
		},
		{
			name:        "Should report malformed durations",
			envVars:     mergeEnvVars(map[string]string{"ACCOLADE_APP_SHUTDOWN_TIMEOUT": "soon"}),
			errContains: "failed to process environment variables",
		},
		{
			name:    "Should accept a complete production setup",
			envVars: productionEnv(),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, EnvironmentProduction, cfg.App.Environment)
				assert.True(t, cfg.NeedsRedis())
			},
		},
	})
}

func TestConfig_NeedsRedis(t *testing.T) {
	runLoadCases(t, []loadCase{
		{
			name:    "Should not need redis in sync mode without redis settings",
			envVars: baseEnv(),
			want: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.NeedsRedis())
				assert.False(t, cfg.Redis.IsConfigured())
			},
		},
		{
			name:        "Should require redis in async mode",
			envVars:     mergeEnvVars(map[string]string{"ACCOLADE_ENGINE_DISPATCH_MODE": "async"}),
			errContains: "redis host cannot be empty",
		},
		{
			name: "Should validate redis settings whenever they are present",
			envVars: mergeEnvVars(map[string]string{
				"ACCOLADE_REDIS_HOST": "localhost",
				"ACCOLADE_REDIS_PORT": "99999",
			}),
			errContains: "redis port must be between 1 and 65535",
		},
		{
			name: "Should accept async mode with redis",
			envVars: mergeEnvVars(map[string]string{
				"ACCOLADE_ENGINE_DISPATCH_MODE": "async",
				"ACCOLADE_REDIS_URL":            "redis://localhost:6379/2",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.NeedsRedis())
				assert.Equal(t, "redis://localhost:6379/2", cfg.Redis.Address())
			},
		},
	})
}

func TestConfig_LogConfig(t *testing.T) {
	for k, v := range withProduction(map[string]string{"ACCOLADE_DB_METRICS_VIEW": "reporting.user_badge_metrics"}) {
		t.Setenv(k, v)
	}
	cfg, err := Load()
	require.NoError(t, err)

	var buf bytes.Buffer
	cfg.LogConfig(slog.New(slog.NewJSONHandler(&buf, nil)))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "configuration loaded", line["msg"])

	storage, ok := line["storage"].(map[string]any)
	require.True(t, ok, "storage group missing")
	assert.Equal(t, "reporting.user_badge_metrics", storage["metrics_view"])

	server, ok := line["server"].(map[string]any)
	require.True(t, ok, "server group missing")
	assert.Equal(t, true, server["control_auth"])

	// Secrets never reach the log.
	out := buf.String()
	assert.NotContains(t, out, "SuperSecure123!")
	assert.NotContains(t, out, "RedisSecure123!")
	assert.NotContains(t, out, "5dec7e1c36e8ec7f")
}
