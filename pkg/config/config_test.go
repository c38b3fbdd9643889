package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, "0.0.0.0:8081", cfg.WebhookAddr())
	assert.Equal(t, 3*time.Second, cfg.SuggestTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.DispatchBackoffBase())
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: 127.0.0.1
  port: 9090
storage:
  db_path: /tmp/inboxd-test
security:
  api_keys:
    secret-1: acme
  rate_limit:
    rps: 10
    burst: 20
dispatch:
  archived_reply_policy: reject
  backoff_base: 250ms
suggest:
  timeout: 5s
  context_window: 6
archiver:
  enabled: true
  cron: "0 4 * * *"
  idle_after: 240h
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.Addr())
	assert.Equal(t, "/tmp/inboxd-test", cfg.Storage.DBPath)
	assert.Equal(t, "acme", cfg.Security.APIKeys["secret-1"])
	assert.Equal(t, "reject", cfg.Dispatch.ArchivedReplyPolicy)
	assert.Equal(t, 250*time.Millisecond, cfg.DispatchBackoffBase())
	assert.Equal(t, 5*time.Second, cfg.SuggestTimeout())
	assert.Equal(t, 6, cfg.Suggest.ContextWindow)
	assert.Equal(t, 240*time.Hour, cfg.ArchiverIdleAfter())
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("INBOXD_SERVER_PORT", "7070")
	t.Setenv("INBOXD_DB_PATH", "/data/inboxd")
	t.Setenv("INBOXD_API_KEYS", "k1=biz-a, k2=biz-b")
	t.Setenv("INBOXD_ALLOW_UNAUTH", "true")

	var c Config
	ApplyEnv(&c)
	assert.Equal(t, "0.0.0.0:7070", c.Addr())
	assert.Equal(t, "/data/inboxd", c.Storage.DBPath)
	assert.Equal(t, "biz-a", c.Security.APIKeys["k1"])
	assert.Equal(t, "biz-b", c.Security.APIKeys["k2"])
	assert.True(t, c.Security.AllowUnauth)
}
