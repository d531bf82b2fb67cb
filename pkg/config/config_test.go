package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulcerts/entitlement/pkg/config"
)

type testConfig struct {
	Addr    string        `env:"TEST_ADDR" envDefault:":8080"`
	Secret  string        `env:"TEST_SECRET,required"`
	Timeout time.Duration `env:"TEST_TIMEOUT" envDefault:"5s"`
	Debug   bool          `env:"TEST_DEBUG" envDefault:"false"`
}

func TestLoad(t *testing.T) {
	t.Run("reads values and defaults", func(t *testing.T) {
		t.Setenv("TEST_SECRET", "s3cret")
		t.Setenv("TEST_DEBUG", "true")

		var cfg testConfig
		require.NoError(t, config.Load(&cfg))

		assert.Equal(t, ":8080", cfg.Addr)
		assert.Equal(t, "s3cret", cfg.Secret)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
		assert.True(t, cfg.Debug)
	})

	t.Run("missing required variable", func(t *testing.T) {
		var cfg testConfig
		err := config.Load(&cfg)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("unparseable value", func(t *testing.T) {
		t.Setenv("TEST_SECRET", "s3cret")
		t.Setenv("TEST_TIMEOUT", "not-a-duration")

		var cfg testConfig
		err := config.Load(&cfg)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("nil pointer", func(t *testing.T) {
		err := config.Load[testConfig](nil)
		assert.ErrorIs(t, err, config.ErrNilPointer)
	})
}

func TestMustLoad(t *testing.T) {
	t.Run("panics on missing required variable", func(t *testing.T) {
		var cfg testConfig
		assert.Panics(t, func() { config.MustLoad(&cfg) })
	})

	t.Run("succeeds with required variable set", func(t *testing.T) {
		t.Setenv("TEST_SECRET", "s3cret")
		var cfg testConfig
		assert.NotPanics(t, func() { config.MustLoad(&cfg) })
		assert.Equal(t, "s3cret", cfg.Secret)
	})
}
