package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config carries everything the server reads from the environment. Every key
// has a default, so a bare environment still produces a runnable config.
type Config struct {
	Port      string `mapstructure:"port"`
	AWSRegion string `mapstructure:"aws_region"`
	Debug     bool   `mapstructure:"debug"`
	JSONLog   bool   `mapstructure:"json_log"`

	App       AppConfig       `mapstructure:"app"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Email     EmailConfig     `mapstructure:"email"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type AppConfig struct {
	URL  string `mapstructure:"url"`
	Name string `mapstructure:"name"`
}

type AdminConfig struct {
	UserIDs []string `mapstructure:"user_ids"`
}

type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
}

// MatchingConfig holds the scoring and lifecycle knobs. Env names and
// defaults are the recognized configuration surface of the engine.
type MatchingConfig struct {
	ScoreThreshold int           `mapstructure:"score_threshold"`
	CooldownDays   int           `mapstructure:"cooldown_days"`
	ExpiryDays     int           `mapstructure:"expiry_days"`
	Scoring        ScoringConfig `mapstructure:"scoring"`

	// RetryDelay defers the post-decline rematch so the decline commits
	// before the retry reads match state.
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds"`
	// SweepDelay throttles system-wide sweeps between requests.
	SweepDelayMillis int `mapstructure:"sweep_delay_millis"`
}

type ScoringConfig struct {
	KnowledgeTag       int `mapstructure:"knowledge_tag"`
	CuriosityTag       int `mapstructure:"curiosity_tag"`
	FacultyBonus       int `mapstructure:"faculty_bonus"`
	SameProgramPenalty int `mapstructure:"same_program_penalty"`
}

type RateLimitConfig struct {
	MatchRequestsPerHour int `mapstructure:"match_requests_per_hour"`
	RetriesPerHour       int `mapstructure:"retries_per_hour"`
}

func (m MatchingConfig) Cooldown() time.Duration {
	return time.Duration(m.CooldownDays) * 24 * time.Hour
}

func (m MatchingConfig) Expiry() time.Duration {
	return time.Duration(m.ExpiryDays) * 24 * time.Hour
}

func (m MatchingConfig) RetryDelay() time.Duration {
	return time.Duration(m.RetryDelaySeconds) * time.Second
}

func (m MatchingConfig) SweepDelay() time.Duration {
	return time.Duration(m.SweepDelayMillis) * time.Millisecond
}

var envBindings = map[string]string{
	"port":                              "PORT",
	"aws_region":                        "AWS_REGION",
	"debug":                             "DEBUG",
	"json_log":                          "JSON_LOG",
	"app.url":                           "APP_URL",
	"app.name":                          "APP_NAME",
	"admin.user_ids":                    "ADMIN_USER_IDS",
	"email.enabled":                     "ENABLE_EMAIL_NOTIFICATIONS",
	"email.from":                        "EMAIL_FROM_ADDRESS",
	"email.from_name":                   "EMAIL_FROM_NAME",
	"matching.score_threshold":          "MATCH_SCORE_THRESHOLD",
	"matching.cooldown_days":            "MATCH_COOLDOWN_DAYS",
	"matching.expiry_days":              "MATCH_EXPIRY_DAYS",
	"matching.retry_delay_seconds":      "MATCH_RETRY_DELAY_SECONDS",
	"matching.sweep_delay_millis":       "MATCH_SWEEP_DELAY_MILLIS",
	"matching.scoring.knowledge_tag":    "MATCH_SCORE_KNOWLEDGE_TAG",
	"matching.scoring.curiosity_tag":    "MATCH_SCORE_CURIOSITY_TAG",
	"matching.scoring.faculty_bonus":    "MATCH_SCORE_FACULTY_BONUS",
	"matching.scoring.same_program_penalty": "MATCH_SCORE_SAME_PROGRAM_PENALTY",
	"rate_limit.match_requests_per_hour":    "RATE_LIMIT_MATCH_REQUESTS_PER_HOUR",
	"rate_limit.retries_per_hour":           "RATE_LIMIT_RETRIES_PER_HOUR",
}

// Load reads configuration from the environment with defaults applied.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("port", "8080")
	v.SetDefault("aws_region", "us-east-1")
	v.SetDefault("debug", false)
	v.SetDefault("json_log", false)

	v.SetDefault("app.url", "http://localhost:3000")
	v.SetDefault("app.name", "Synapse")
	v.SetDefault("admin.user_ids", []string{})

	v.SetDefault("email.enabled", true)
	v.SetDefault("email.from", "noreply@synapse.mcgill.ca")
	v.SetDefault("email.from_name", "Synapse Platform")

	v.SetDefault("matching.score_threshold", 10)
	v.SetDefault("matching.cooldown_days", 30)
	v.SetDefault("matching.expiry_days", 7)
	v.SetDefault("matching.retry_delay_seconds", 5)
	v.SetDefault("matching.sweep_delay_millis", 100)
	v.SetDefault("matching.scoring.knowledge_tag", 15)
	v.SetDefault("matching.scoring.curiosity_tag", 5)
	v.SetDefault("matching.scoring.faculty_bonus", 25)
	v.SetDefault("matching.scoring.same_program_penalty", 50)

	v.SetDefault("rate_limit.match_requests_per_hour", 5)
	v.SetDefault("rate_limit.retries_per_hour", 3)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Matching.ScoreThreshold < 0 {
		return fmt.Errorf("MATCH_SCORE_THRESHOLD must not be negative, got %d", c.Matching.ScoreThreshold)
	}
	if c.Matching.ExpiryDays <= 0 {
		return fmt.Errorf("MATCH_EXPIRY_DAYS must be positive, got %d", c.Matching.ExpiryDays)
	}
	if c.Matching.CooldownDays < 0 {
		return fmt.Errorf("MATCH_COOLDOWN_DAYS must not be negative, got %d", c.Matching.CooldownDays)
	}
	return nil
}

// IsAdmin reports whether the given user ID is configured as an admin.
func (c *Config) IsAdmin(userID string) bool {
	for _, id := range c.Admin.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
