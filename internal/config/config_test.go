package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesDefaultsAndOverrides(t *testing.T) {
	v := viper.New()
	v.Set("rendezvous-path", "/tmp/tfs-rendezvous")
	v.Set("log.severity", "DEBUG")

	cfg, err := Load(v)

	require.NoError(t, err)
	assert.Equal(t, "/tmp/tfs-rendezvous", cfg.RendezvousPath)
	assert.Equal(t, "DEBUG", cfg.Log.Severity)
	assert.Equal(t, "text", cfg.Log.Format, "unset fields keep their default")
}

func TestLoad_MissingRendezvousPath(t *testing.T) {
	v := viper.New()

	_, err := Load(v)

	assert.Error(t, err)
}

func TestValidate_RejectsBadLogFormat(t *testing.T) {
	cfg := Defaults()
	cfg.RendezvousPath = "/tmp/x"
	cfg.Log.Format = "xml"

	err := cfg.Validate()

	assert.Error(t, err)
}

func TestValidate_AcceptsKnownFormats(t *testing.T) {
	for _, format := range []string{"", "text", "json"} {
		cfg := Defaults()
		cfg.RendezvousPath = "/tmp/x"
		cfg.Log.Format = format

		assert.NoError(t, cfg.Validate())
	}
}
