package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"yanderss/internal/config"
	"yanderss/internal/feed"
)

func TestLoadDefaults(t *testing.T) {
	cfg, opts, err := config.Load(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.SaveDir != "save_folder" || cfg.ConfigDir != "config_folder" {
		t.Fatalf("unexpected dirs: %q %q", cfg.SaveDir, cfg.ConfigDir)
	}

	if cfg.IndexPath != filepath.Join("config_folder", "index.csv") {
		t.Fatalf("unexpected index path: %q", cfg.IndexPath)
	}

	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %s", cfg.RequestTimeout)
	}

	if cfg.PollInterval != 6*time.Hour || cfg.Cooldown != time.Minute {
		t.Fatalf("unexpected interval %s or cooldown %s", cfg.PollInterval, cfg.Cooldown)
	}

	if opts.Command() {
		t.Fatalf("expected no keyword command")
	}

	tiers, err := cfg.BuildTiers()
	if err != nil {
		t.Fatalf("build tiers: %v", err)
	}

	if len(tiers) != 3 || tiers[0].Label != feed.TierOriginal {
		t.Fatalf("expected built-in tiers, got %+v", tiers)
	}
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("SAVE_DIR", "/env/save")
	t.Setenv("REQUEST_TIMEOUT", "5s")

	cfg, opts, err := config.Load([]string{
		"-d", "/flag/save",
		"-c", "/flag/config",
		"-i", "60",
		"-a", "landscape",
		"-a", "sky",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.SaveDir != "/flag/save" {
		t.Fatalf("expected flag to override env, got %q", cfg.SaveDir)
	}

	if cfg.DBPath != filepath.Join("/flag/config", "keywords.sqlite") {
		t.Fatalf("unexpected db path: %q", cfg.DBPath)
	}

	if cfg.RequestTimeout != 5*time.Second {
		t.Fatalf("expected env timeout, got %s", cfg.RequestTimeout)
	}

	if cfg.PollInterval != time.Minute {
		t.Fatalf("expected 60s interval, got %s", cfg.PollInterval)
	}

	if !opts.Command() || len(opts.Add) != 2 || opts.Add[1] != "sky" {
		t.Fatalf("unexpected add keywords: %v", opts.Add)
	}
}

func TestLoadTiersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	content := `
tiers:
  - label: png
    selector: "a.original-file-unchanged#png"
  - label: jpg
    pattern: '<a class="original-file-changed" id="highres"[^>]*>'
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, _, err := config.Load([]string{"--tiers", path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tiers, err := cfg.BuildTiers()
	if err != nil {
		t.Fatalf("build tiers: %v", err)
	}

	if len(tiers) != 2 || tiers[0].Label != "png" || tiers[1].Label != "jpg" {
		t.Fatalf("unexpected tiers: %+v", tiers)
	}

	if _, ok := tiers[0].Matcher.(*feed.SelectorMatcher); !ok {
		t.Fatalf("expected selector matcher, got %T", tiers[0].Matcher)
	}
}

func TestValidateRejectsInvalidConfig(t *testing.T) {
	base, _, err := config.Load(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero timeout", func(c *config.Config) { c.RequestTimeout = 0 }},
		{"bad schedule", func(c *config.Config) { c.Schedule = "every tuesday" }},
		{"tier without matcher", func(c *config.Config) { c.Tiers = []config.TierConfig{{Label: "x"}} }},
		{"tier with both matchers", func(c *config.Config) {
			c.Tiers = []config.TierConfig{{Label: "x", Pattern: "a", Selector: "a"}}
		}},
		{"bad pattern", func(c *config.Config) { c.Tiers = []config.TierConfig{{Label: "x", Pattern: "("}} }},
		{"token without chat", func(c *config.Config) { c.TelegramToken = "123:abc" }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := base
			test.mutate(&cfg)

			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestCronSchedule(t *testing.T) {
	cfg := config.Config{PollInterval: time.Hour}
	start := time.Date(2025, 2, 9, 10, 0, 0, 0, time.UTC)

	s, err := cfg.CronSchedule()
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if next := s.Next(start); !next.Equal(start.Add(time.Hour)) {
		t.Fatalf("unexpected next activation: %v", next)
	}

	cfg.Schedule = "30 */6 * * *"
	if s, err = cfg.CronSchedule(); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if next := s.Next(start); !next.Equal(time.Date(2025, 2, 9, 12, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next cron activation: %v", next)
	}
}

func TestLoadHelp(t *testing.T) {
	if _, _, err := config.Load([]string{"--help"}); !errors.Is(err, config.ErrHelp) {
		t.Fatalf("expected ErrHelp, got %v", err)
	}
}
