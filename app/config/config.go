package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const (
	defaultPath = "config.yaml"
	pathEnv     = "PAIRTALK_CONFIG"
)

type Config struct {
	Log       Log       `yaml:"log"`
	HTTP      HTTP      `yaml:"http"`
	Storage   Storage   `yaml:"storage"`
	LLM       LLM       `yaml:"llm"`
	Mediation Mediation `yaml:"mediation"`
}

type Log struct {
	// Minimum level: debug, info, warn, error
	Level string `yaml:"level" example:"debug" validate:"omitempty,oneof=debug info warn error"`
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890" validate:"required_with=Token"`
}

type HTTP struct {
	// Address to listen on
	Listen string `yaml:"listen" example:":8080" validate:"required"`
	// Maximum request body size in bytes
	BodyLimit int `yaml:"body_limit" example:"65536" validate:"gte=1024"`
	// Upper bound for long-poll requests on the events endpoint
	MaxWait time.Duration `yaml:"max_wait" example:"30s" validate:"gt=0"`
}

type Storage struct {
	// Storage backend: memory or badger
	Backend string `yaml:"backend" example:"badger" validate:"oneof=memory badger"`
	// Badger data directory
	Path string `yaml:"path" example:"data/pairtalk" validate:"required_if=Backend badger InMemory false"`
	// Run badger without touching disk
	InMemory bool `yaml:"in_memory" example:"false"`
	// fsync every badger write
	SyncWrites bool `yaml:"sync_writes" example:"true"`
}

type LLM struct {
	// Completion provider: openai, langchain or scripted
	Provider string `yaml:"provider" example:"openai" validate:"oneof=openai langchain scripted"`
	// OpenAI compatible base url
	BaseURL string `yaml:"base_url" example:"https://openrouter.ai/api/v1" validate:"required_unless=Provider scripted"`
	// API token
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX" validate:"required_unless=Provider scripted"`
	// Model name
	Model string `yaml:"model" example:"gpt-4o-mini" validate:"required_unless=Provider scripted"`
	// Sampling temperature, 0 is a valid setting
	Temperature *float32 `yaml:"temperature" example:"0.7" validate:"omitnil,gte=0,lte=2"`
	// Completion token limit
	MaxTokens int `yaml:"max_tokens" example:"800" validate:"gte=1"`
	// Per-call timeout
	Timeout time.Duration `yaml:"timeout" example:"60s" validate:"gt=0"`
	// Number of user turns after which the scripted provider replies with a summary
	ScriptedTurns int `yaml:"scripted_turns" example:"2" validate:"gte=1"`
}

// SamplingTemperature falls back to DefaultTemperature when unset.
func (l LLM) SamplingTemperature() float32 {
	if l.Temperature == nil {
		return DefaultTemperature
	}

	return *l.Temperature
}

type Mediation struct {
	// Type discriminator stored on every session
	SessionType string `yaml:"session_type" example:"couple" validate:"required"`
	// Separator between the two partner names when a session is created
	NameSeparator string `yaml:"name_separator" example:"&" validate:"required"`
	// Author label of the shared solution entry
	SharedAuthor string `yaml:"shared_author" example:"__shared__" validate:"required"`
	// Turn text that asks for a conversation opener instead of a user message
	StartSentinel string `yaml:"start_sentinel" example:"__start__" validate:"required,nefield=SharedAuthor"`
	// Phrases that mark an assistant reply as a perspective summary
	SummaryMarkers []string `yaml:"summary_markers" validate:"min=1,dive,required"`
	// Opener attribution: own (author must match or be empty) or any (first assistant entry is always taken)
	OpenerRule string `yaml:"opener_rule" example:"own" validate:"oneof=any own"`
	// How often the finalizer sweeps every session
	SweepInterval time.Duration `yaml:"sweep_interval" example:"15s" validate:"gt=0"`
	// Capacity of the finalize queue
	QueueSize int `yaml:"queue_size" example:"64" validate:"gte=1"`
}

const DefaultTemperature float32 = 0.7

var DefaultSummaryMarkers = []string{
	"here's what i have understood so far from your perspective",
	"here is what i have understood so far from your perspective",
	"summary of your perspective",
}

func Load() (*Config, error) {
	path := os.Getenv(pathEnv)
	if path == "" {
		path = defaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var result Config

	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	result.applyDefaults()

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "debug"
	}

	if c.HTTP.Listen == "" {
		c.HTTP.Listen = ":8080"
	}
	if c.HTTP.BodyLimit == 0 {
		c.HTTP.BodyLimit = 64 * 1024
	}
	if c.HTTP.MaxWait == 0 {
		c.HTTP.MaxWait = 30 * time.Second
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}
	if c.Storage.Backend == "badger" && c.Storage.Path == "" && !c.Storage.InMemory {
		c.Storage.Path = "data/pairtalk"
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "scripted"
	}
	if c.LLM.Temperature == nil {
		temperature := DefaultTemperature
		c.LLM.Temperature = &temperature
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 800
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 60 * time.Second
	}
	if c.LLM.ScriptedTurns == 0 {
		c.LLM.ScriptedTurns = 2
	}

	if c.Mediation.SessionType == "" {
		c.Mediation.SessionType = "couple"
	}
	if c.Mediation.NameSeparator == "" {
		c.Mediation.NameSeparator = "&"
	}
	if c.Mediation.SharedAuthor == "" {
		c.Mediation.SharedAuthor = "__shared__"
	}
	if c.Mediation.StartSentinel == "" {
		c.Mediation.StartSentinel = "__start__"
	}
	if len(c.Mediation.SummaryMarkers) == 0 {
		c.Mediation.SummaryMarkers = append([]string(nil), DefaultSummaryMarkers...)
	}
	if c.Mediation.OpenerRule == "" {
		c.Mediation.OpenerRule = "own"
	}
	if c.Mediation.SweepInterval == 0 {
		c.Mediation.SweepInterval = 15 * time.Second
	}
	if c.Mediation.QueueSize == 0 {
		c.Mediation.QueueSize = 64
	}
}
