package config

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "ft_irc", cfg.Server.Name)
	assert.Equal(t, 6667, cfg.Server.Port)
	assert.Equal(t, 9, cfg.Limits.NickLength)
	assert.Equal(t, 50, cfg.Limits.ChannelLength)
	assert.Equal(t, 10*time.Second, cfg.Limits.WriteTimeout)
	assert.Equal(t, "0.0.0.0:6667", cfg.GetListenAddress())
	assert.Equal(t, "127.0.0.1:8080", cfg.GetAdminListenAddress())

	// password is mandatory
	assert.Error(t, cfg.Validate())
	cfg.Server.Password = "secret"
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ircd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  name: irc.example.org
  port: 7000
  password: hunter2
limits:
  max_sendq: 2048
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "irc.example.org", cfg.Server.Name)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "hunter2", cfg.Server.Password)
	assert.Equal(t, 2048, cfg.Limits.MaxSendQ)
	// untouched fields keep defaults
	assert.Equal(t, 9, cfg.Limits.NickLength)
	assert.Equal(t, path, cfg.Source)
	assert.NoError(t, cfg.Validate())
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ircd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
name = "toml.example.org"
password = "pw"

[admin]
enabled = true
port = 9090
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "toml.example.org", cfg.Server.Name)
	assert.True(t, cfg.Admin.Enabled)
	assert.Equal(t, 9090, cfg.Admin.Port)
}

func TestLoadJSONFromURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"server":{"name":"json.example.org","password":"pw","port":6697}}`))
	}))
	defer ts.Close()

	cfg, err := Load(ts.URL + "/ircd.json")
	require.NoError(t, err)
	assert.Equal(t, "json.example.org", cfg.Server.Name)
	assert.Equal(t, 6697, cfg.Server.Port)
}

func TestLoadURLStatus(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	_, err := Load(ts.URL + "/missing.yaml")
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("IRCD_PORT", "6999")
	t.Setenv("IRCD_PASSWORD", "fromenv")
	t.Setenv("IRCD_WRITE_TIMEOUT", "3s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 6999, cfg.Server.Port)
	assert.Equal(t, "fromenv", cfg.Server.Password)
	assert.Equal(t, 3*time.Second, cfg.Limits.WriteTimeout)
}

func TestValidateRanges(t *testing.T) {
	cfg := Default()
	cfg.Server.Password = "pw"
	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Server.Password = "pw"
	cfg.Log.Level = "loud"
	assert.Error(t, cfg.Validate())
}

func TestCheckPassword(t *testing.T) {
	cfg := Default()
	cfg.Server.Password = "plain"
	assert.True(t, cfg.CheckPassword("plain"))
	assert.False(t, cfg.CheckPassword("Plain"))
	assert.False(t, cfg.CheckPassword(""))

	hash, err := bcrypt.GenerateFromPassword([]byte("hashed"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg.Server.Password = string(hash)
	assert.True(t, cfg.CheckPassword("hashed"))
	assert.False(t, cfg.CheckPassword(string(hash)))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("IRCD_TEST_DOTENV=loaded\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)
	defer os.Unsetenv("IRCD_TEST_DOTENV")

	files, err := LoadDotEnv()
	require.NoError(t, err)
	assert.NotEmpty(t, files)
	assert.Equal(t, "loaded", os.Getenv("IRCD_TEST_DOTENV"))
}
