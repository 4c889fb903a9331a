package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "zelenza.com", cfg.Org.EmailDomain)
	assert.Equal(t, "/v1", cfg.Server.BasePath)
	assert.Equal(t, "Media", cfg.Defaults.Priority)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name  string
		mutil func(*Config)
	}{
		{"empty domain", func(c *Config) { c.Org.EmailDomain = "" }},
		{"domain with at", func(c *Config) { c.Org.EmailDomain = "@zelenza.com" }},
		{"domain with space", func(c *Config) { c.Org.EmailDomain = "zelenza .com" }},
		{"relative base path", func(c *Config) { c.Server.BasePath = "v1" }},
		{"unknown priority", func(c *Config) { c.Defaults.Priority = "Critical" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutil(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestFromYAML(t *testing.T) {
	cfg, err := FromYAML([]byte("org:\n  email_domain: example.org\n"))
	require.NoError(t, err)
	assert.Equal(t, "example.org", cfg.Org.EmailDomain)

	_, err = FromYAML([]byte(":::"))
	assert.Error(t, err)
}
