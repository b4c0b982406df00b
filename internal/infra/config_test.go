package infra

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/admin/selected-agents?email={email}", cfg.Admin.Routes.DirectAgents)
	assert.Equal(t, "/admin/groups/{id}/agents", cfg.Admin.Routes.GroupAgents)
	assert.Equal(t, 5*time.Second, cfg.Admin.RequestTimeout)
	assert.Equal(t, RedisChanEntitlementsReload, cfg.Redis.ReloadChannel)
	assert.Equal(t, 100, cfg.Audit.BatchSize)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, 30*time.Second, cfg.Auth.Leeway)
	assert.Empty(t, cfg.Auth.Issuer)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ADMIN_BASE_URL", "https://admin.internal:9443")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("ADMIN_REQUEST_TIMEOUT", "750ms")
	t.Setenv("AUTH_PUBLIC_KEY_DATA", "-----BEGIN PUBLIC KEY-----")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://admin.internal:9443", cfg.Admin.BaseURL)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 750*time.Millisecond, cfg.Admin.RequestTimeout)
	assert.Equal(t, []byte("-----BEGIN PUBLIC KEY-----"), cfg.Auth.PublicKey)
}

func TestDecode_Validation(t *testing.T) {
	cases := map[string]func(v *viper.Viper){
		"bad base url":  func(v *viper.Viper) { v.Set("admin.base_url", "not a url") },
		"bad log level": func(v *viper.Viper) { v.Set("logger.level", "verbose") },
		"zero timeout":  func(v *viper.Viper) { v.Set("admin.request_timeout", 0) },
		"bad port":      func(v *viper.Viper) { v.Set("server.port", 70000) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			v := viper.New()
			setDefaults(v)
			mutate(v)

			_, err := decode(v)
			assert.ErrorContains(t, err, "config validation failed")
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	_, err = NewLogger(LoggerConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)
}
