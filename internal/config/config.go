package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// API auth
	StoryforgeAPIKey string

	// Jira connection
	JiraBaseURL    string
	JiraEmail      string
	JiraAPIToken   string
	JiraProjectKey string

	// Figma connection
	FigmaBaseURL string
	FigmaToken   string

	// Claude drafting
	AnthropicAPIKey string
	AnthropicModel  string

	// Shell-story section
	SectionLabel string

	// Worker pool
	WorkerCount           int
	MaxQueueSize          int
	MaxConcurrentGenerate int

	// Artifact cache
	ArtifactDBPath string

	// Job state
	JobTTL time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8091"),

		StoryforgeAPIKey: os.Getenv("STORYFORGE_API_KEY"),

		JiraBaseURL:    os.Getenv("JIRA_BASE_URL"),
		JiraEmail:      os.Getenv("JIRA_EMAIL"),
		JiraAPIToken:   os.Getenv("JIRA_API_TOKEN"),
		JiraProjectKey: os.Getenv("JIRA_PROJECT_KEY"),

		FigmaBaseURL: envOr("FIGMA_BASE_URL", "https://api.figma.com"),
		FigmaToken:   os.Getenv("FIGMA_TOKEN"),

		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),

		SectionLabel: envOr("SECTION_LABEL", "Shell Stories"),

		WorkerCount:           envInt("WORKER_COUNT", 2),
		MaxQueueSize:          envInt("MAX_QUEUE_SIZE", 50),
		MaxConcurrentGenerate: envInt("MAX_CONCURRENT_GENERATE", 3),

		ArtifactDBPath: envOr("ARTIFACT_DB_PATH", "storyforge.db"),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 50
	}
	if cfg.MaxConcurrentGenerate <= 0 {
		cfg.MaxConcurrentGenerate = 3
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.StoryforgeAPIKey == "" {
		return fmt.Errorf("STORYFORGE_API_KEY is required")
	}
	if c.JiraBaseURL == "" {
		return fmt.Errorf("JIRA_BASE_URL is required")
	}
	if c.JiraEmail == "" || c.JiraAPIToken == "" {
		return fmt.Errorf("JIRA_EMAIL and JIRA_API_TOKEN are required")
	}
	if c.JiraProjectKey == "" {
		return fmt.Errorf("JIRA_PROJECT_KEY is required")
	}
	if c.FigmaToken == "" {
		return fmt.Errorf("FIGMA_TOKEN is required")
	}
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
