package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const settingsFile = `
[mylife]
EMAIL = "me@example.com"
PASSWORD = "hunter2"
TIMEZONE = "UTC"

[nightscout]
URL = "https://ns.example.com"
API_SECRET = "secret"
`

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSettingsFile(t *testing.T) {
	cfg, err := Load(writeSettings(t, settingsFile))
	require.NoError(t, err)

	assert.Equal(t, "me@example.com", cfg.Mylife.Email)
	assert.Equal(t, "hunter2", cfg.Mylife.Password)
	assert.Equal(t, "UTC", cfg.Mylife.Timezone)
	assert.Equal(t, "https://ns.example.com", cfg.Nightscout.URL)
	assert.Equal(t, "secret", cfg.Nightscout.APISecret)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeSettings(t, settingsFile))
	require.NoError(t, err)

	assert.Equal(t, "https://uk.mylife-software.net", cfg.Mylife.BaseURL)
	assert.Empty(t, cfg.Mylife.Timespan)
	assert.Equal(t, 5, cfg.Sync.IntervalMinutes)
	assert.Equal(t, 5*time.Minute, cfg.Interval())
	assert.False(t, cfg.Sync.SetID)
	assert.False(t, cfg.Sync.DryRun)
	assert.Equal(t, "mylife uploader", cfg.Sync.EnteredBy)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "mylife-sync.db", cfg.Store.Path)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoadOptionalSections(t *testing.T) {
	cfg, err := Load(writeSettings(t, settingsFile+`
[sync]
interval_minutes = 10
set_id = true

[log]
level = "debug"
format = "json"
`))
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.Interval())
	assert.True(t, cfg.Sync.SetID)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MYLIFE_NIGHTSCOUT__URL", "https://other.example.com")
	t.Setenv("MYLIFE_NIGHTSCOUT__API_SECRET", "env-secret")
	t.Setenv("MYLIFE_SYNC__DRY_RUN", "true")
	t.Setenv("MYLIFE_SYNC__INTERVAL_MINUTES", "15")

	cfg, err := Load(writeSettings(t, settingsFile))
	require.NoError(t, err)

	assert.Equal(t, "https://other.example.com", cfg.Nightscout.URL)
	assert.Equal(t, "env-secret", cfg.Nightscout.APISecret)
	assert.True(t, cfg.Sync.DryRun)
	assert.Equal(t, 15, cfg.Sync.IntervalMinutes)
	assert.Equal(t, "me@example.com", cfg.Mylife.Email, "file values survive")
}

func TestLoadDotEnv(t *testing.T) {
	path := writeSettings(t, settingsFile)
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), ".env"),
		[]byte("MYLIFE_MYLIFE__PASSWORD=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("MYLIFE_MYLIFE__PASSWORD") })

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-dotenv", cfg.Mylife.Password)
}

func TestLoadMissingFileUsesEnvironment(t *testing.T) {
	t.Setenv("MYLIFE_MYLIFE__EMAIL", "env@example.com")
	t.Setenv("MYLIFE_MYLIFE__PASSWORD", "pw")
	t.Setenv("MYLIFE_MYLIFE__TIMEZONE", "UTC")
	t.Setenv("MYLIFE_NIGHTSCOUT__URL", "https://ns.example.com")
	t.Setenv("MYLIFE_NIGHTSCOUT__API_SECRET", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "env@example.com", cfg.Mylife.Email)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "missing nightscout section",
			content: "[mylife]\nEMAIL = \"me@example.com\"\nPASSWORD = \"pw\"\nTIMEZONE = \"UTC\"\n",
			errMsg:  "APISecret",
		},
		{
			name:    "bad email",
			content: "[mylife]\nEMAIL = \"nope\"\nPASSWORD = \"pw\"\nTIMEZONE = \"UTC\"\n[nightscout]\nURL = \"https://ns.example.com\"\nAPI_SECRET = \"s\"\n",
			errMsg:  "Email",
		},
		{
			name:    "unknown timezone",
			content: "[mylife]\nEMAIL = \"me@example.com\"\nPASSWORD = \"pw\"\nTIMEZONE = \"Mars/Olympus\"\n[nightscout]\nURL = \"https://ns.example.com\"\nAPI_SECRET = \"s\"\n",
			errMsg:  "mylife.timezone",
		},
		{
			name:    "interval out of range",
			content: settingsFile + "[sync]\ninterval_minutes = 0\n",
			errMsg:  "IntervalMinutes",
		},
		{
			name:    "unknown log format",
			content: settingsFile + "[log]\nformat = \"xml\"\n",
			errMsg:  "Format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeSettings(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadMalformedFile(t *testing.T) {
	_, err := Load(writeSettings(t, "[mylife\nEMAIL = "))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load")
}

func TestLowerMap(t *testing.T) {
	got := lowerMap(map[string]any{
		"MyLife": map[string]any{"EMAIL": "a"},
		"TOP":    1,
	})

	assert.Equal(t, map[string]any{
		"mylife": map[string]any{"email": "a"},
		"top":    1,
	}, got)
}
