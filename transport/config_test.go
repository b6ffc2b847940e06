package transport

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, time.Duration(0), cfg.NegotiationTimeout())
	assert.Equal(t, time.Duration(0), cfg.ReadTimeout())
	assert.Equal(t, 1, cfg.MaxAttempts())
	assert.Empty(t, cfg.Headers())
	assert.False(t, cfg.IgnoreCertVerify())
	assert.Nil(t, cfg.BasicAuth())
	assert.True(t, cfg.Snapshot().VerifyTLS)
}

func TestZeroConfigIsUsable(t *testing.T) {
	var cfg Config

	assert.Equal(t, 1, cfg.MaxAttempts())
	assert.NotNil(t, cfg.Headers())
	assert.Equal(t, 1, cfg.Snapshot().MaxAttempts)

	assert.NotPanics(t, func() {
		require.NoError(t, cfg.SetHeader("X-A", "1"))
	})
	v, ok := cfg.Header("X-A")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, map[string]string{"X-A": "1"}, cfg.Snapshot().Headers)
}

func TestNewConfigOptions(t *testing.T) {
	cfg, err := NewConfig(
		WithNegotiationTimeout(5*time.Second),
		WithReadTimeout(7*time.Second),
		WithMaxAttempts(3),
		WithHeaders(map[string]string{"X-Tenant": "acme"}),
		WithHeader("X-Trace", "on"),
		WithIgnoreCertVerify(true),
		WithBasicAuth("user", "pass"),
	)
	require.NoError(t, err)

	s := cfg.Snapshot()
	assert.Equal(t, 5*time.Second, s.NegotiationTimeout)
	assert.Equal(t, 7*time.Second, s.ReadTimeout)
	assert.Equal(t, 3, s.MaxAttempts)
	assert.Equal(t, map[string]string{"X-Tenant": "acme", "X-Trace": "on"}, s.Headers)
	assert.False(t, s.VerifyTLS)
	require.NotNil(t, s.Auth)
	assert.Equal(t, "user:pass", s.Auth.credentials())
}

func TestNewConfigRejectsInvalidOption(t *testing.T) {
	cfg, err := NewConfig(WithMaxAttempts(0))
	assert.Nil(t, cfg)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestTimeoutSetters(t *testing.T) {
	tests := []struct {
		name string
		set  func(*Config, time.Duration) error
		get  func(*Config) time.Duration
	}{
		{name: "negotiation", set: (*Config).SetNegotiationTimeout, get: (*Config).NegotiationTimeout},
		{name: "read", set: (*Config).SetReadTimeout, get: (*Config).ReadTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewConfig()
			require.NoError(t, err)

			for _, d := range []time.Duration{0, time.Millisecond, 5 * time.Second, time.Hour} {
				require.NoError(t, tt.set(cfg, d))
				assert.Equal(t, d, tt.get(cfg))
			}

			require.NoError(t, tt.set(cfg, 3*time.Second))
			err = tt.set(cfg, -time.Second)
			assert.ErrorIs(t, err, ErrInvalidArgument)

			var argErr *ArgumentError
			require.True(t, errors.As(err, &argErr))
			assert.Contains(t, argErr.Field, tt.name)
			assert.Equal(t, 3*time.Second, tt.get(cfg), "rejected value must leave the prior one")
		})
	}
}

func TestSetMaxAttempts(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	for _, n := range []int{1, 2, 10, 1000} {
		require.NoError(t, cfg.SetMaxAttempts(n))
		assert.Equal(t, n, cfg.MaxAttempts())
	}

	for _, n := range []int{0, -1, -100} {
		assert.ErrorIs(t, cfg.SetMaxAttempts(n), ErrInvalidArgument)
		assert.Equal(t, 1000, cfg.MaxAttempts())
	}
}

func TestHeaders(t *testing.T) {
	t.Run("empty name is rejected", func(t *testing.T) {
		cfg, err := NewConfig()
		require.NoError(t, err)

		assert.ErrorIs(t, cfg.SetHeader("", "value"), ErrInvalidArgument)
		_, ok := cfg.Header("")
		assert.False(t, ok)
	})

	t.Run("set header upserts", func(t *testing.T) {
		cfg, err := NewConfig()
		require.NoError(t, err)

		require.NoError(t, cfg.SetHeader("X-Key", "one"))
		require.NoError(t, cfg.SetHeader("X-Key", "two"))

		v, ok := cfg.Header("X-Key")
		assert.True(t, ok)
		assert.Equal(t, "two", v)
	})

	t.Run("set headers replaces the whole map", func(t *testing.T) {
		cfg, err := NewConfig(WithHeader("X-Old", "gone"))
		require.NoError(t, err)

		in := map[string]string{"B": "2", "A": "1", "C": "3"}
		require.NoError(t, cfg.SetHeaders(in))
		assert.Equal(t, map[string]string{"A": "1", "B": "2", "C": "3"}, cfg.Headers())

		in["D"] = "4"
		assert.NotContains(t, cfg.Headers(), "D", "config must keep its own copy")

		out := cfg.Headers()
		out["E"] = "5"
		_, ok := cfg.Header("E")
		assert.False(t, ok, "getter must return a copy")
	})

	t.Run("set headers rejects empty names", func(t *testing.T) {
		cfg, err := NewConfig(WithHeader("X-Keep", "1"))
		require.NoError(t, err)

		assert.ErrorIs(t, cfg.SetHeaders(map[string]string{"": "x"}), ErrInvalidArgument)
		assert.Equal(t, map[string]string{"X-Keep": "1"}, cfg.Headers())
	})

	t.Run("nil map clears headers", func(t *testing.T) {
		cfg, err := NewConfig(WithHeader("X-Keep", "1"))
		require.NoError(t, err)

		require.NoError(t, cfg.SetHeaders(nil))
		assert.Empty(t, cfg.Headers())
		require.NoError(t, cfg.SetHeader("X-After", "ok"))
	})
}

func TestBasicAuth(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.ErrorIs(t, cfg.SetBasicAuth(&BasicAuth{}), ErrInvalidArgument)

	require.NoError(t, cfg.SetBasicAuth(&BasicAuth{Login: "alice"}))
	assert.Equal(t, "alice", cfg.BasicAuth().credentials())

	require.NoError(t, cfg.SetBasicAuth(NewBasicAuth("alice", "")))
	assert.Equal(t, "alice:", cfg.BasicAuth().credentials())

	require.NoError(t, cfg.SetBasicAuth(NewBasicAuth("alice", "secret")))
	assert.Equal(t, "alice:secret", cfg.BasicAuth().credentials())

	require.NoError(t, cfg.SetBasicAuth(nil))
	assert.Nil(t, cfg.BasicAuth())
}

func TestIgnoreCertVerify(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	cfg.SetIgnoreCertVerify(true)
	assert.True(t, cfg.IgnoreCertVerify())
	assert.False(t, cfg.Snapshot().VerifyTLS)

	cfg.SetIgnoreCertVerify(false)
	assert.True(t, cfg.Snapshot().VerifyTLS)
}

func TestSnapshotIsIsolated(t *testing.T) {
	cfg, err := NewConfig(WithHeader("X-A", "1"), WithBasicAuth("u", "p"), WithMaxAttempts(2))
	require.NoError(t, err)

	s := cfg.Snapshot()

	require.NoError(t, cfg.SetHeader("X-A", "changed"))
	require.NoError(t, cfg.SetMaxAttempts(9))
	require.NoError(t, cfg.SetBasicAuth(nil))

	assert.Equal(t, "1", s.Headers["X-A"])
	assert.Equal(t, 2, s.MaxAttempts)
	require.NotNil(t, s.Auth)
	assert.Equal(t, "u:p", s.Auth.credentials())
}

func TestConfigConcurrentAccess(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = cfg.SetMaxAttempts(n + 1)
			_ = cfg.SetHeader("X-N", "v")
		}(i)
		go func() {
			defer wg.Done()
			_ = cfg.Snapshot()
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, cfg.MaxAttempts(), 1)
}
