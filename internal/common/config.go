package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Worker      WorkerConfig    `toml:"worker"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Retention   RetentionConfig `toml:"retention"`
	Criteria    CriteriaConfig  `toml:"criteria"`
	Agent       AgentConfig     `toml:"agent"`
	GitHub      GitHubConfig    `toml:"github"`
	Jira        JiraConfig      `toml:"jira"`
	LLM         LLMConfig       `toml:"llm"`
	Claude      ClaudeConfig    `toml:"claude"`
	Gemini      GeminiConfig    `toml:"gemini"`
}

// WorkerConfig controls the polling job worker
type WorkerConfig struct {
	PollInterval string `toml:"poll_interval" validate:"required"` // e.g. "2s" - how often the worker polls for pending jobs
	ProcessMode  string `toml:"process_mode" validate:"oneof=queued immediate"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
}

// RetentionConfig controls age-based cleanup of terminal jobs
type RetentionConfig struct {
	MaxAge   string `toml:"max_age"`  // e.g. "168h" - terminal jobs older than this are deleted
	Schedule string `toml:"schedule"` // Cron schedule for the sweep
}

// CriteriaConfig controls rubric loading and match filtering
type CriteriaConfig struct {
	RubricPath    string  `toml:"rubric_path" validate:"required"` // YAML rubric file
	MinConfidence float64 `toml:"min_confidence" validate:"gte=0,lte=1"`
	MaxMatches    int     `toml:"max_matches" validate:"gte=1"`
}

// AgentConfig bounds the planner tool-calling loop
type AgentConfig struct {
	BaseSteps    int `toml:"base_steps" validate:"gte=1"`     // Steps granted before item scaling
	StepsPerItem int `toml:"steps_per_item" validate:"gte=1"` // Additional steps per discovered item
	MaxSteps     int `toml:"max_steps" validate:"gte=1"`      // Hard ceiling regardless of item count
}

type GitHubConfig struct {
	Token   string  `toml:"token"`
	BaseURL string  `toml:"base_url"` // Override for GitHub Enterprise
	RPS     float64 `toml:"rps"`      // Requests per second for the rate limiter
}

type JiraConfig struct {
	BaseURL  string  `toml:"base_url"`
	Email    string  `toml:"email"`
	APIToken string  `toml:"api_token"`
	RPS      float64 `toml:"rps"`
}

type LLMProvider string

const (
	LLMProviderClaude LLMProvider = "claude"
	LLMProviderGemini LLMProvider = "gemini"
)

type LLMConfig struct {
	Provider LLMProvider `toml:"provider" validate:"oneof=claude gemini"`
}

type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
	Timeout     string  `toml:"timeout"`
}

type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Temperature float32 `toml:"temperature"`
	Timeout     string  `toml:"timeout"`
}

// NewDefaultConfig returns a config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Worker: WorkerConfig{
			PollInterval: "2s",
			ProcessMode:  "queued",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/devtrail",
				ResetOnStartup: false,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
		},
		Retention: RetentionConfig{
			MaxAge:   "720h",
			Schedule: "0 3 * * *",
		},
		Criteria: CriteriaConfig{
			RubricPath:    "./criteria/rubric.yaml",
			MinConfidence: 0.5,
			MaxMatches:    5,
		},
		Agent: AgentConfig{
			BaseSteps:    10,
			StepsPerItem: 4,
			MaxSteps:     200,
		},
		GitHub: GitHubConfig{
			RPS: 2,
		},
		Jira: JiraConfig{
			RPS: 2,
		},
		LLM: LLMConfig{
			Provider: LLMProviderClaude,
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   8192,
			Temperature: 0,
			Timeout:     "120s",
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.0-flash",
			Temperature: 0,
			Timeout:     "120s",
		},
	}
}

// LoadFromFiles loads configuration with precedence: defaults -> files (in order) -> env
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration for structural problems
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := time.ParseDuration(c.Worker.PollInterval); err != nil {
		return fmt.Errorf("invalid worker.poll_interval %q: %w", c.Worker.PollInterval, err)
	}
	if c.Retention.MaxAge != "" {
		if _, err := time.ParseDuration(c.Retention.MaxAge); err != nil {
			return fmt.Errorf("invalid retention.max_age %q: %w", c.Retention.MaxAge, err)
		}
	}
	if c.Retention.Schedule != "" {
		if err := ValidateSchedule(c.Retention.Schedule); err != nil {
			return fmt.Errorf("invalid retention.schedule %q: %w", c.Retention.Schedule, err)
		}
	}
	if c.Agent.MaxSteps < c.Agent.BaseSteps {
		return fmt.Errorf("agent.max_steps (%d) must be >= agent.base_steps (%d)", c.Agent.MaxSteps, c.Agent.BaseSteps)
	}

	return nil
}

// ValidateSchedule validates a cron schedule expression
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser.Parse(schedule)
	return err
}

// PollInterval returns the parsed worker poll interval
func (c *Config) PollInterval() time.Duration {
	d, err := time.ParseDuration(c.Worker.PollInterval)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// RetentionMaxAge returns the parsed retention window
func (c *Config) RetentionMaxAge() time.Duration {
	d, err := time.ParseDuration(c.Retention.MaxAge)
	if err != nil {
		return 30 * 24 * time.Hour
	}
	return d
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func applyEnvOverrides(config *Config) {
	if env := os.Getenv("DEVTRAIL_ENVIRONMENT"); env != "" {
		config.Environment = env
	}
	if v := os.Getenv("DEVTRAIL_POLL_INTERVAL"); v != "" {
		config.Worker.PollInterval = v
	}
	if v := os.Getenv("DEVTRAIL_PROCESS_MODE"); v != "" {
		config.Worker.ProcessMode = v
	}
	if v := os.Getenv("DEVTRAIL_BADGER_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("DEVTRAIL_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("DEVTRAIL_RETENTION_MAX_AGE"); v != "" {
		config.Retention.MaxAge = v
	}
	if v := os.Getenv("DEVTRAIL_RUBRIC_PATH"); v != "" {
		config.Criteria.RubricPath = v
	}
	if v := os.Getenv("DEVTRAIL_AGENT_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Agent.MaxSteps = n
		}
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		config.GitHub.Token = v
	}
	if v := os.Getenv("JIRA_BASE_URL"); v != "" {
		config.Jira.BaseURL = v
	}
	if v := os.Getenv("JIRA_EMAIL"); v != "" {
		config.Jira.Email = v
	}
	if v := os.Getenv("JIRA_API_TOKEN"); v != "" {
		config.Jira.APIToken = v
	}
	if v := os.Getenv("DEVTRAIL_LLM_PROVIDER"); v != "" {
		config.LLM.Provider = LLMProvider(v)
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		config.Claude.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		config.Gemini.APIKey = v
	}
}
