package redis

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if cfg.Address != "localhost:6379" {
		t.Errorf("Address = %s, want localhost:6379", cfg.Address)
	}
	if cfg.DialTimeout != 5*time.Second {
		t.Errorf("DialTimeout = %v, want 5s", cfg.DialTimeout)
	}
	if cfg.PoolSize != 10 || cfg.MinIdleConns != 2 {
		t.Errorf("pool = %d/%d, want 10/2", cfg.PoolSize, cfg.MinIdleConns)
	}
	if cfg.KeyPrefix != "tracetm:" {
		t.Errorf("KeyPrefix = %s, want tracetm:", cfg.KeyPrefix)
	}
}

func TestConfigOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		opt   ConfigOption
		check func(Config) bool
	}{
		{"address", WithAddress("redis:6380"), func(c Config) bool { return c.Address == "redis:6380" }},
		{"password", WithPassword("s3cret"), func(c Config) bool { return c.Password == "s3cret" }},
		{"db", WithDB(4), func(c Config) bool { return c.DB == 4 }},
		{"prefix", WithKeyPrefix("ci:"), func(c Config) bool { return c.KeyPrefix == "ci:" }},
		{"pool", WithPoolSize(32), func(c Config) bool { return c.PoolSize == 32 }},
		{"timeouts", WithTimeouts(time.Second, 2*time.Second, 3*time.Second), func(c Config) bool {
			return c.DialTimeout == time.Second && c.ReadTimeout == 2*time.Second && c.WriteTimeout == 3*time.Second
		}},
		{"url", WithURL("redis://:pw@cache.internal:6390/2"), func(c Config) bool {
			return c.Address == "cache.internal:6390" && c.Password == "pw" && c.DB == 2
		}},
		{"bad url", WithURL("cache.internal:6390"), func(c Config) bool { return c.Address == "cache.internal:6390" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.opt(&cfg)
			if !tt.check(cfg) {
				t.Errorf("config after option = %+v", cfg)
			}
		})
	}
}

func TestConfig_options(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.DB = 3
	opts := cfg.options()

	if opts.Addr != cfg.Address || opts.DB != 3 || opts.MaxRetries != 3 {
		t.Errorf("options() = %+v", opts)
	}
}
