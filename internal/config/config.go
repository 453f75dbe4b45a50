package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultModel           = "claude-sonnet-4-5-20250929"
	DefaultMaxTokens       = 2048
	DefaultTemperature     = 0.8
	DefaultCadenceSeconds  = 20
	DefaultDequeueMs       = 200
	DefaultLLMTimeout      = 45
	DefaultSpeakTimeout    = 120
	DefaultFarewellTimeout = 90
	DefaultSummaryTimeout  = 60
	DefaultCommentBurst    = 3
	DefaultCooldownTicks   = 5
	DefaultFailureLimit    = 5
	DefaultVoiceURL        = "http://127.0.0.1:10101"
	DefaultSpeakerStyle    = 0
	DefaultPlayerCommand   = "ffplay -autoexit -nodisp -loglevel quiet -"
	DefaultOBSPort         = 4455
	DefaultCaptionInput    = "Answer"
	DefaultSummaryCron     = "0 55 23 * * *"
)

type Config struct {
	Agent    AgentConfig    `json:"agent"`
	Provider ProviderConfig `json:"provider"`
	Stream   StreamConfig   `json:"stream"`
	Modes    ModesConfig    `json:"modes"`
	Chat     ChatConfig     `json:"chat"`
	Voice    VoiceConfig    `json:"voice"`
	Caption  CaptionConfig  `json:"caption"`
	Summary  SummaryConfig  `json:"summary"`
}

type AgentConfig struct {
	Name        string  `json:"name"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
	PromptsDir  string  `json:"promptsDir"`
}

type ProviderConfig struct {
	Type    string `json:"type,omitempty"` // "anthropic" (default) or "openai"
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl,omitempty"`
}

type StreamConfig struct {
	DataDir             string `json:"dataDir"`
	ThemeFile           string `json:"themeFile,omitempty"`
	CadenceSeconds      int    `json:"cadenceSeconds"`
	DequeueTimeoutMs    int    `json:"dequeueTimeoutMs"`
	LLMTimeoutSeconds   int    `json:"llmTimeoutSeconds"`
	SpeakTimeoutSeconds int    `json:"speakTimeoutSeconds"`
	// Bounded waits for the graceful shutdown phases. A stalled farewell
	// must never block process exit indefinitely.
	FarewellTimeoutSeconds int  `json:"farewellTimeoutSeconds"`
	SummaryTimeoutSeconds  int  `json:"summaryTimeoutSeconds"`
	FillerEnabled          bool `json:"fillerEnabled"`
	// Cool-down parameters for handlers whose collaborator keeps failing.
	FailureLimit  int `json:"failureLimit"`
	CooldownTicks int `json:"cooldownTicks"`
}

// ModesConfig is the selection weight table plus eligibility knobs. The
// original values are heuristic, so they live here rather than in code.
type ModesConfig struct {
	Weights       map[string]float64 `json:"weights"`
	MinUtterances map[string]int     `json:"minUtterances"`
	MaxUtterances map[string]int     `json:"maxUtterances"`
	// CommentBurst pending comments trigger an immediate integrated
	// response instead of waiting for the next idle window.
	CommentBurst int `json:"commentBurst"`
}

type ChatConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Filter   FilterConfig   `json:"filter"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  int64  `json:"chatId"`
}

type FilterConfig struct {
	NGWordFile   string   `json:"ngWordFile,omitempty"`
	NGWords      []string `json:"ngWords,omitempty"`
	BlockedUsers []string `json:"blockedUsers,omitempty"`
	MinLength    int      `json:"minLength"`
	MaxLength    int      `json:"maxLength"`
}

type VoiceConfig struct {
	Enabled        bool    `json:"enabled"`
	EngineURL      string  `json:"engineUrl"`
	StyleID        int     `json:"styleId"`
	SpeedScale     float64 `json:"speedScale"`
	PlayerCommand  string  `json:"playerCommand"`
	TimeoutSeconds int     `json:"timeoutSeconds"`
}

type CaptionConfig struct {
	Enabled   bool   `json:"enabled"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Password  string `json:"password,omitempty"`
	InputName string `json:"inputName"`
}

type SummaryConfig struct {
	Dir        string `json:"dir"`
	BackupCron string `json:"backupCron"`
}

func DefaultConfig() *Config {
	dataDir := filepath.Join(ConfigDir(), "data")
	return &Config{
		Agent: AgentConfig{
			Name:        "aituber",
			Model:       DefaultModel,
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
			PromptsDir:  filepath.Join(ConfigDir(), "prompts"),
		},
		Provider: ProviderConfig{},
		Stream: StreamConfig{
			DataDir:                dataDir,
			CadenceSeconds:         DefaultCadenceSeconds,
			DequeueTimeoutMs:       DefaultDequeueMs,
			LLMTimeoutSeconds:      DefaultLLMTimeout,
			SpeakTimeoutSeconds:    DefaultSpeakTimeout,
			FarewellTimeoutSeconds: DefaultFarewellTimeout,
			SummaryTimeoutSeconds:  DefaultSummaryTimeout,
			FillerEnabled:          true,
			FailureLimit:           DefaultFailureLimit,
			CooldownTicks:          DefaultCooldownTicks,
		},
		Modes: ModesConfig{
			Weights: map[string]float64{
				"normal":              0.6,
				"theme-continuation":  0.2,
				"deep-dive":           0.05,
				"chill-chat":          0.6,
				"viewer-consultation": 0.4,
			},
			MinUtterances: map[string]int{
				"normal":              2,
				"theme-continuation":  3,
				"deep-dive":           3,
				"chill-chat":          2,
				"viewer-consultation": 2,
			},
			MaxUtterances: map[string]int{
				"normal":              4,
				"theme-continuation":  7,
				"deep-dive":           6,
				"chill-chat":          3,
				"viewer-consultation": 4,
			},
			CommentBurst: DefaultCommentBurst,
		},
		Chat: ChatConfig{
			Filter: FilterConfig{
				MinLength: 1,
				MaxLength: 200,
			},
		},
		Voice: VoiceConfig{
			EngineURL:      DefaultVoiceURL,
			StyleID:        DefaultSpeakerStyle,
			SpeedScale:     1.0,
			PlayerCommand:  DefaultPlayerCommand,
			TimeoutSeconds: 30,
		},
		Caption: CaptionConfig{
			Host:      "127.0.0.1",
			Port:      DefaultOBSPort,
			InputName: DefaultCaptionInput,
		},
		Summary: SummaryConfig{
			Dir:        filepath.Join(dataDir, "summaries"),
			BackupCron: DefaultSummaryCron,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".aituber")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// ShutdownMarkerPath is the file an external controller creates to request
// a graceful shutdown. The dispatch loop consumes it exactly once.
func (c *Config) ShutdownMarkerPath() string {
	return filepath.Join(c.Stream.DataDir, "shutdown_request.txt")
}

func LoadConfig() (*Config, error) {
	return LoadConfigFrom(ConfigPath())
}

func LoadConfigFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("AITUBER_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
		if cfg.Provider.Type == "" {
			cfg.Provider.Type = "openai"
		}
	}
	if url := os.Getenv("AITUBER_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if token := os.Getenv("AITUBER_TELEGRAM_TOKEN"); token != "" {
		cfg.Chat.Telegram.Token = token
	}
	if pw := os.Getenv("AITUBER_OBS_PASSWORD"); pw != "" {
		cfg.Caption.Password = pw
	}
	if url := os.Getenv("AITUBER_VOICE_URL"); url != "" {
		cfg.Voice.EngineURL = url
	}
}

// Validate catches config that would put the core into an inconsistent
// state at runtime (spec: missing config value drops to an error here, not
// a crash later).
func (c *Config) Validate() error {
	if c.Stream.CadenceSeconds <= 0 {
		return fmt.Errorf("config: stream.cadenceSeconds must be positive, got %d", c.Stream.CadenceSeconds)
	}
	if c.Stream.DequeueTimeoutMs <= 0 {
		return fmt.Errorf("config: stream.dequeueTimeoutMs must be positive, got %d", c.Stream.DequeueTimeoutMs)
	}
	if w, ok := c.Modes.Weights["normal"]; !ok || w <= 0 {
		return fmt.Errorf("config: modes.weights must give \"normal\" a positive weight")
	}
	for name, w := range c.Modes.Weights {
		if w < 0 {
			return fmt.Errorf("config: negative weight %v for mode %q", w, name)
		}
	}
	if c.Modes.CommentBurst <= 0 {
		return fmt.Errorf("config: modes.commentBurst must be positive, got %d", c.Modes.CommentBurst)
	}
	return nil
}

func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) Cadence() time.Duration {
	return time.Duration(c.Stream.CadenceSeconds) * time.Second
}

func (c *Config) DequeueTimeout() time.Duration {
	return time.Duration(c.Stream.DequeueTimeoutMs) * time.Millisecond
}

func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.Stream.LLMTimeoutSeconds) * time.Second
}

func (c *Config) SpeakTimeout() time.Duration {
	return time.Duration(c.Stream.SpeakTimeoutSeconds) * time.Second
}

func (c *Config) FarewellTimeout() time.Duration {
	return time.Duration(c.Stream.FarewellTimeoutSeconds) * time.Second
}

func (c *Config) SummaryTimeout() time.Duration {
	return time.Duration(c.Stream.SummaryTimeoutSeconds) * time.Second
}
