package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "okinoko.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
	assert.Same(t, cfg, GetConfig())
	assert.Equal(t, filepath.Join(DefaultDataDir, "index"), cfg.IndexDir())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
dataDir: /var/lib/okinoko
logLevel: warn
metricsAddr: ":9000"
summon:
  salt: first
  name: moloch
  symbol: MOL
  quorumBps: 4000
  ragequittable: true
  holders:
    - address: hive:alice
      shares: 60
    - address: hive:bob
      shares: 40
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	expected := defaultConfig()
	expected.DataDir = "/var/lib/okinoko"
	expected.LogLevel = "warn"
	expected.MetricsAddr = ":9000"
	expected.Summon = SummonConfig{
		Salt:          "first",
		Name:          "moloch",
		Symbol:        "MOL",
		QuorumBps:     4000,
		Ragequittable: true,
		Holders:       Holders{{"hive:alice", 60}, {"hive:bob", 40}},
	}
	assert.Equal(t, expected, cfg)
	assert.Equal(t, "/var/lib/okinoko/index", cfg.IndexDir())

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "dataDir: /from/file\nsummon:\n  name: file\n")
	t.Setenv("OKINOKO_DATA_DIR", "/from/env")
	t.Setenv("OKINOKO_DEBUG", "true")
	t.Setenv("OKINOKO_INDEXER_PATH", "/tmp/index")
	t.Setenv("OKINOKO_SUMMON_QUORUM_BPS", "2500")
	t.Setenv("OKINOKO_SUMMON_HOLDERS", "hive:alice=7, hive:bob=3")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.DataDir)
	assert.Equal(t, "file", cfg.Summon.Name)
	assert.Equal(t, uint16(2500), cfg.Summon.QuorumBps)
	assert.Equal(t, Holders{{"hive:alice", 7}, {"hive:bob", 3}}, cfg.Summon.Holders)
	assert.Equal(t, "/tmp/index", cfg.IndexDir())

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"quorum":       "summon:\n  quorumBps: 10001\n",
		"factory":      "factory: hive:someone\n",
		"log level":    "logLevel: loud\n",
		"twice listed": "summon:\n  holders:\n    - {address: \"hive:a\", shares: 1}\n    - {address: \"hive:a\", shares: 2}\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, content))
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := LoadConfig(writeConfig(t, "dataDir: [broken"))
	require.Error(t, err)
	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestHoldersDecode(t *testing.T) {
	var h Holders
	require.NoError(t, h.Decode(""))
	assert.Empty(t, h)
	require.Error(t, h.Decode("hive:alice"))
	require.Error(t, h.Decode("hive:alice=many"))
	require.Error(t, h.Decode("=5"))
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	cfg := defaultConfig()
	assert.Same(t, cfg, FromContext(WithContext(context.Background(), cfg)))
}
