package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_parseFlags_OverridesDefaults(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{
		"testbin",
		"-a", ":9999",
		"-d", "postgres://flags/auth",
		"-s", "flag_secret",
		"-t", "90",
		"-r", "2880",
		"-k", "11",
		"-i",
	}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)

	assert.Equal(t, ":9999", cfg.EndpointAddr)
	assert.Equal(t, "postgres://flags/auth", cfg.DatabaseDSN)
	assert.Equal(t, "flag_secret", cfg.SecretKey)
	assert.Equal(t, 90*time.Minute, cfg.AccessTokenValidity)
	assert.Equal(t, 48*time.Hour, cfg.RefreshTokenValidity)
	assert.Equal(t, 11, cfg.BcryptCost)
	assert.False(t, cfg.SecureCookies)
}

func Test_parseFlags_NoFlagsKeepsDefaults(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"testbin"}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)

	assert.Equal(t, ":8080", cfg.EndpointAddr)
	assert.Equal(t, 1*time.Hour, cfg.AccessTokenValidity)
	assert.Equal(t, 24*time.Hour, cfg.RefreshTokenValidity)
	assert.True(t, cfg.SecureCookies)
}
