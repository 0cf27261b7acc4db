package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	testCases := []struct {
		name        string
		content     string
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name: "Scenario 1: Missing file gives defaults",
			check: func(t *testing.T, cfg *Config) {
				require.Equal(t, defaultListen, cfg.Listen)
				require.Equal(t, LogLevelInfo, cfg.LogLevel)
				require.Equal(t, []string{"active", "completed", "inactive"}, cfg.LMSConfig.EnrollmentStates)
				require.Equal(t, 100, cfg.LMSConfig.PerPage)
				require.False(t, cfg.ExportConfig.Manifest)
			},
		},
		{
			name: "Scenario 2: Overrides",
			content: `listen: ":9090"
log_level: debug
redis_url: redis://localhost:6379/0
lms:
  timeout: 5s
  per_page: 50
  requests_per_second: 0
export:
  archive_name: courses.zip
  manifest: true
  keep_alive: 1m
handler:
  static_dir: /srv/ui
`,
			check: func(t *testing.T, cfg *Config) {
				require.Equal(t, ":9090", cfg.Listen)
				require.Equal(t, LogLevelDebug, cfg.LogLevel)
				require.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
				require.Equal(t, 5*time.Second, cfg.LMSConfig.Timeout)
				require.Equal(t, 50, cfg.LMSConfig.PerPage)
				require.Zero(t, cfg.LMSConfig.RequestsPerSecond)
				require.Equal(t, "courses.zip", cfg.ExportConfig.ArchiveName)
				require.True(t, cfg.ExportConfig.Manifest)
				require.Equal(t, time.Minute, cfg.ExportConfig.KeepAlive)
				require.Equal(t, "/srv/ui", cfg.HandlerConfig.StaticDir)
			},
		},
		{
			name:        "Scenario 3: Unknown log level",
			content:     "log_level: loud\n",
			expectError: true,
		},
		{
			name:        "Scenario 4: Broken yaml",
			content:     "listen: [\n",
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			if tc.content != "" {
				require.NoError(t, afero.WriteFile(fs, "/etc/lmsexport.yml", []byte(tc.content), 0o644))
			}

			cfg, err := Load(fs, "/etc/lmsexport.yml")
			if tc.expectError {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			tc.check(t, cfg)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	env := map[string]string{
		"LMSEXPORT_LISTEN":    ":7000",
		"LMSEXPORT_LOG_LEVEL": "WARN",
		"LMSEXPORT_REDIS_URL": "redis://cache:6379/1",
	}
	cfg.applyEnv(func(k string) string { return env[k] })

	require.Equal(t, ":7000", cfg.Listen)
	require.Equal(t, LogLevelWarn, cfg.LogLevel)
	require.Equal(t, "redis://cache:6379/1", cfg.RedisURL)
	require.NoError(t, cfg.Validate())
}
