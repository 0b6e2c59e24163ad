package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// validConfig returns a config that passes validation, for mutation in tests.
func validConfig() *Config {
	cfg := NewConfig()
	cfg.Seeds = []string{"https://realgrouplinks.com"}
	return cfg
}

// TestNewConfig tests that defaults are sensible.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	if cfg.PolitenessInterval != time.Second {
		t.Errorf("expected 1s politeness interval, got %v", cfg.PolitenessInterval)
	}
	if cfg.Workers != DefaultWorkers {
		t.Errorf("expected %d workers, got %d", DefaultWorkers, cfg.Workers)
	}
	if cfg.MaxDepth != UnlimitedDepth {
		t.Errorf("expected unlimited depth, got %d", cfg.MaxDepth)
	}
	if cfg.MaxPages != 0 {
		t.Errorf("expected unlimited pages, got %d", cfg.MaxPages)
	}
	if cfg.RetryCount != 2 {
		t.Errorf("expected 2 retries, got %d", cfg.RetryCount)
	}
	if !cfg.ResolveGateways {
		t.Error("expected gateway resolution enabled by default")
	}
}

// TestConfigValidate tests the fail-fast validation of each field.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: nil,
		},
		{
			name:    "no seed",
			mutate:  func(c *Config) { c.Seeds = nil },
			wantErr: ErrNoSeed,
		},
		{
			name:    "depth below unlimited marker",
			mutate:  func(c *Config) { c.MaxDepth = -2 },
			wantErr: ErrInvalidDepth,
		},
		{
			name:    "depth zero is valid",
			mutate:  func(c *Config) { c.MaxDepth = 0 },
			wantErr: nil,
		},
		{
			name:    "negative max pages",
			mutate:  func(c *Config) { c.MaxPages = -1 },
			wantErr: ErrInvalidMaxPages,
		},
		{
			name:    "negative politeness",
			mutate:  func(c *Config) { c.PolitenessInterval = -time.Second },
			wantErr: ErrInvalidPoliteness,
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Workers = 0 },
			wantErr: ErrInvalidWorkers,
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.FetchTimeout = 0 },
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.RetryCount = -1 },
			wantErr: ErrInvalidRetryCount,
		},
		{
			name: "wait deferred without delay",
			mutate: func(c *Config) {
				c.WaitDeferred = true
				c.DeferredWait = 0
			},
			wantErr: ErrInvalidDeferredWait,
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.BatchSize = 0 },
			wantErr: ErrInvalidBatchSize,
		},
		{
			name:    "negative max body size",
			mutate:  func(c *Config) { c.MaxBodySize = -1 },
			wantErr: ErrInvalidMaxBodySize,
		},
		{
			name: "conflicting report formats",
			mutate: func(c *Config) {
				c.JSONReport = true
				c.CSVReport = true
			},
			wantErr: ErrConflictingReportFormats,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestConfigValidateSeedURLs tests seed URL validation.
func TestConfigValidateSeedURLs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		seed  string
		valid bool
	}{
		{name: "https seed", seed: "https://realgrouplinks.com", valid: true},
		{name: "http seed with path", seed: "http://example.com/category/tamil/", valid: true},
		{name: "relative path", seed: "/category/tamil/", valid: false},
		{name: "missing scheme", seed: "realgrouplinks.com", valid: false},
		{name: "ftp scheme", seed: "ftp://example.com", valid: false},
		{name: "garbage", seed: "http://exa mple.com/%zz", valid: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			cfg.Seeds = []string{tt.seed}

			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("expected %q to validate, got %v", tt.seed, err)
			}
			if !tt.valid {
				var seedErr *InvalidSeedError
				if !errors.As(err, &seedErr) {
					t.Errorf("expected InvalidSeedError for %q, got %v", tt.seed, err)
				}
			}
		})
	}
}

// TestLoadConfigFile tests YAML config file loading.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("loads site profiles", func(t *testing.T) {
		t.Parallel()

		content := `
defaults:
  targetPattern: 'https?://chat\.example\.com/[^\s"]+'
sites:
  grouplinks.example:
    handlerName: opengroup
    cookie: "session=abc"
    endpoints:
      - path: /more.php
        countParam: offset
        start: 10
        stride: 10
`
		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		profile := cf.GetProfile("grouplinks.example")
		if profile.HandlerName != "opengroup" {
			t.Errorf("expected handler name from site entry, got %q", profile.HandlerName)
		}
		if profile.TargetPattern != `https?://chat\.example\.com/[^\s"]+` {
			t.Errorf("expected target pattern from defaults, got %q", profile.TargetPattern)
		}
		if profile.Cookie != "session=abc" {
			t.Errorf("expected cookie from site entry, got %q", profile.Cookie)
		}
		if len(profile.Endpoints) != 1 || profile.Endpoints[0].Path != "/more.php" {
			t.Errorf("expected site endpoints to replace defaults, got %+v", profile.Endpoints)
		}
	})

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid yaml returns error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte("sites: [unclosed"), 0600); err != nil {
			t.Fatal(err)
		}

		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected error for invalid yaml")
		}
	})
}

// TestGetProfile tests profile layering.
func TestGetProfile(t *testing.T) {
	t.Parallel()

	t.Run("nil file returns built-in defaults", func(t *testing.T) {
		t.Parallel()

		var cf *File
		profile := cf.GetProfile("anything.example")
		if profile.TargetPattern != DefaultTargetPattern {
			t.Errorf("expected built-in target pattern, got %q", profile.TargetPattern)
		}
		if profile.HandlerName != DefaultHandlerName {
			t.Errorf("expected built-in handler name, got %q", profile.HandlerName)
		}
		if len(profile.Endpoints) != 2 {
			t.Errorf("expected 2 default endpoints, got %d", len(profile.Endpoints))
		}
	})

	t.Run("unknown host gets file defaults", func(t *testing.T) {
		t.Parallel()

		cf := &File{
			Defaults: Profile{HandlerName: "showgroup"},
			Sites:    map[string]Profile{},
		}

		profile := cf.GetProfile("unknown.example")
		if profile.HandlerName != "showgroup" {
			t.Errorf("expected file-level default handler, got %q", profile.HandlerName)
		}
		if profile.GatewayPath != DefaultGatewayPath {
			t.Errorf("expected built-in gateway path to survive, got %q", profile.GatewayPath)
		}
	})

	t.Run("site headers merge over defaults", func(t *testing.T) {
		t.Parallel()

		cf := &File{
			Defaults: Profile{Headers: map[string]string{"Accept-Language": "en"}},
			Sites: map[string]Profile{
				"a.example": {Headers: map[string]string{"Authorization": "Bearer x"}},
			},
		}

		profile := cf.GetProfile("a.example")
		if profile.Headers["Accept-Language"] != "en" {
			t.Error("expected default header to survive merge")
		}
		if profile.Headers["Authorization"] != "Bearer x" {
			t.Error("expected site header to be merged in")
		}
	})
}

// TestFindConfigFile tests explicit-path resolution.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit existing path", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("sites: {}"), 0600); err != nil {
			t.Fatal(err)
		}

		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
	})

	t.Run("explicit missing path returns empty", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}
