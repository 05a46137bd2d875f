package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, _, exists, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file")
	}
	if cfg.Limits.DailyCourseCap != defaultDailyCourseCap {
		t.Fatalf("unexpected daily cap: %d", cfg.Limits.DailyCourseCap)
	}
	if cfg.Tools.YtDlp != defaultYtDlpBinary {
		t.Fatalf("unexpected ytdlp binary: %q", cfg.Tools.YtDlp)
	}
	if cfg.Paths.WorkDir == "" {
		t.Fatal("work dir should default to the system temp dir")
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[paths]",
		`output_dir = "` + filepath.Join(dir, "out") + `"`,
		`state_dir = "` + filepath.Join(dir, "state") + `"`,
		"[auth]",
		`bearer_token = "\"quoted-token\""`,
		"[portal]",
		`base_url = "https://www.udemy.com/"`,
		"[limits]",
		"max_quality = 720",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %s, got %s exists=%v", path, resolved, exists)
	}
	if cfg.Auth.BearerToken != "quoted-token" {
		t.Fatalf("bearer token not unquoted: %q", cfg.Auth.BearerToken)
	}
	if strings.HasSuffix(cfg.Portal.BaseURL, "/") {
		t.Fatalf("base url should be trimmed: %q", cfg.Portal.BaseURL)
	}
	if cfg.Limits.MaxQuality != 720 {
		t.Fatalf("unexpected quality ceiling: %d", cfg.Limits.MaxQuality)
	}
	if cfg.Limits.RunLectureCap != defaultRunLectureCap {
		t.Fatalf("unset limits should keep defaults: %d", cfg.Limits.RunLectureCap)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero daily cap", func(c *Config) { c.Limits.DailyCourseCap = 0 }},
		{"zero lecture cap", func(c *Config) { c.Limits.RunLectureCap = 0 }},
		{"negative delay", func(c *Config) { c.Delays.APIMinMS = -1 }},
		{"inverted delay range", func(c *Config) { c.Delays.LectureMinMS = 500; c.Delays.LectureMaxMS = 100 }},
		{"bad log format", func(c *Config) { c.Logging.Format = "yaml" }},
		{"bad license url", func(c *Config) { c.Portal.LicenseURL = "not a url" }},
	}
	for _, tc := range cases {
		cfg := Default()
		if err := cfg.normalize(); err != nil {
			t.Fatalf("%s: normalize: %v", tc.name, err)
		}
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestStateAndLockPaths(t *testing.T) {
	cfg := Default()
	cfg.Paths.StateDir = "/var/lib/udl"
	if got := cfg.StatePath(); got != filepath.Join("/var/lib/udl", "download_state.json") {
		t.Fatalf("unexpected state path: %s", got)
	}
	if got := cfg.LockPath(); got != filepath.Join("/var/lib/udl", "udl.lock") {
		t.Fatalf("unexpected lock path: %s", got)
	}
}
