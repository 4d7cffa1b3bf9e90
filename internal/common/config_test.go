package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefaultConfig_Validates(t *testing.T) {
	config := NewDefaultConfig()
	if err := config.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if config.PollInterval() != 2*time.Second {
		t.Errorf("unexpected default poll interval %s", config.PollInterval())
	}
	if config.RetentionMaxAge() != 720*time.Hour {
		t.Errorf("unexpected default retention %s", config.RetentionMaxAge())
	}
}

func TestLoadFromFiles_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devtrail.toml")
	content := `
[worker]
poll_interval = "10s"
process_mode = "immediate"

[agent]
max_steps = 50
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	config, err := LoadFromFiles(path)
	if err != nil {
		t.Fatalf("LoadFromFiles failed: %v", err)
	}
	if config.Worker.PollInterval != "10s" || config.Worker.ProcessMode != "immediate" {
		t.Errorf("file values not applied: %+v", config.Worker)
	}
	if config.Agent.MaxSteps != 50 {
		t.Errorf("agent.max_steps not applied: %d", config.Agent.MaxSteps)
	}
	// Untouched sections keep defaults
	if config.Criteria.RubricPath != "./criteria/rubric.yaml" {
		t.Errorf("default rubric path lost: %s", config.Criteria.RubricPath)
	}
}

func TestLoadFromFiles_EnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devtrail.toml")
	if err := os.WriteFile(path, []byte("[worker]\npoll_interval = \"10s\"\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("DEVTRAIL_POLL_INTERVAL", "30s")

	config, err := LoadFromFiles(path)
	if err != nil {
		t.Fatalf("LoadFromFiles failed: %v", err)
	}
	if config.Worker.PollInterval != "30s" {
		t.Errorf("env override lost: %s", config.Worker.PollInterval)
	}
}

func TestConfig_ValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad poll interval", func(c *Config) { c.Worker.PollInterval = "soon" }},
		{"bad process mode", func(c *Config) { c.Worker.ProcessMode = "eventually" }},
		{"bad retention age", func(c *Config) { c.Retention.MaxAge = "a month" }},
		{"bad schedule", func(c *Config) { c.Retention.Schedule = "every day at 3" }},
		{"max below base steps", func(c *Config) { c.Agent.BaseSteps = 100; c.Agent.MaxSteps = 10 }},
		{"confidence above one", func(c *Config) { c.Criteria.MinConfidence = 1.5 }},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "gpt" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tc.mutate(config)
			if err := config.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateSchedule(t *testing.T) {
	if err := ValidateSchedule("0 3 * * *"); err != nil {
		t.Errorf("standard five-field schedule rejected: %v", err)
	}
	if err := ValidateSchedule("not cron"); err == nil {
		t.Error("expected error for malformed schedule")
	}
}
