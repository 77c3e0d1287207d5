package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

const (
	DirName         = "jobpilot"
	ConfigFileName  = "config.json"
	ProxiesFileName = "proxies.txt"
)

// Config contains the defaults for every pipeline stage.
type Config struct {
	Query          string  `json:"query" validate:"required"`
	Limit          int     `json:"limit" validate:"gte=1,lte=100"`
	ProfilePath    string  `json:"profile_path" validate:"required"`
	Model          string  `json:"model" validate:"required,contains=/"`
	ScoreThreshold float64 `json:"score_threshold" validate:"gte=0,lte=10"`
	Concurrency    int     `json:"concurrency" validate:"gte=1,lte=16"`
	SaveTokens     bool    `json:"save_tokens"`

	RequestTimeoutSeconds int     `json:"request_timeout_seconds" validate:"gte=1"`
	RequestsPerSecond     float64 `json:"requests_per_second" validate:"gt=0"`

	Upwork UpworkConfig `json:"upwork"`
	LLM    LLMConfig    `json:"llm"`
	Dedup  DedupConfig  `json:"dedup"`
}

// UpworkConfig holds the marketplace API endpoints.
type UpworkConfig struct {
	AuthURL    string `json:"auth_url" validate:"required,url"`
	TokenURL   string `json:"token_url" validate:"required,url"`
	GraphQLURL string `json:"graphql_url" validate:"required,url"`
}

// LLMConfig holds language-model settings. API keys are read from the
// environment only and never written to the config file.
type LLMConfig struct {
	Temperature    float32 `json:"temperature" validate:"gte=0,lte=2"`
	MaxTokens      int     `json:"max_tokens" validate:"gte=1"`
	TimeoutSeconds int     `json:"timeout_seconds" validate:"gte=1"`
	MaxRetries     int     `json:"max_retries" validate:"gte=0,lte=5"`

	AnthropicAPIKey string `json:"-"`
	GeminiAPIKey    string `json:"-"`
	OpenAIAPIKey    string `json:"-"`
	GroqAPIKey      string `json:"-"`
}

// DedupConfig selects the deduplication store backend.
type DedupConfig struct {
	Backend  string `json:"backend" validate:"oneof=file badger sqlite redis"`
	Path     string `json:"path"`
	RedisURL string `json:"redis_url"`
}

func DefaultConfig() Config {
	return Config{
		Query:                 envString("JOBPILOT_QUERY", "AI agent developer"),
		Limit:                 envInt("JOBPILOT_LIMIT", 10),
		ProfilePath:           envString("JOBPILOT_PROFILE", "./files/profile.md"),
		Model:                 envString("JOBPILOT_MODEL", "anthropic/claude-sonnet-4-20250514"),
		ScoreThreshold:        7.0,
		Concurrency:           envInt("JOBPILOT_CONCURRENCY", 1),
		RequestTimeoutSeconds: 30,
		RequestsPerSecond:     2,
		Upwork: UpworkConfig{
			AuthURL:    "https://www.upwork.com/ab/account-security/oauth2/authorize",
			TokenURL:   "https://www.upwork.com/api/v3/oauth2/token",
			GraphQLURL: "https://api.upwork.com/graphql",
		},
		LLM: LLMConfig{
			Temperature:     0.1,
			MaxTokens:       4096,
			TimeoutSeconds:  120,
			MaxRetries:      2,
			AnthropicAPIKey: envString("ANTHROPIC_API_KEY", ""),
			GeminiAPIKey:    envString("GEMINI_API_KEY", envString("GOOGLE_API_KEY", "")),
			OpenAIAPIKey:    envString("OPENAI_API_KEY", ""),
			GroqAPIKey:      envString("GROQ_API_KEY", ""),
		},
		Dedup: DedupConfig{
			Backend:  envString("JOBPILOT_DEDUP_BACKEND", "file"),
			Path:     envString("JOBPILOT_DEDUP_PATH", ""),
			RedisURL: envString("REDIS_URL", ""),
		},
	}
}

// Validate checks field ranges after file and env overlays are applied.
func (c Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			parts := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				parts = append(parts, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(parts, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Dedup.Backend == "redis" && strings.TrimSpace(c.Dedup.RedisURL) == "" {
		return fmt.Errorf("invalid config: dedup.redis_url is required for the redis backend")
	}
	return nil
}

// DedupPath returns the store location, defaulting to a file under dir.
func (c Config) DedupPath(dir string) string {
	if strings.TrimSpace(c.Dedup.Path) != "" {
		return c.Dedup.Path
	}
	switch c.Dedup.Backend {
	case "badger":
		return filepath.Join(dir, "seen.badger")
	case "sqlite":
		return filepath.Join(dir, "seen.db")
	default:
		return filepath.Join(dir, "seen_jobs.json")
	}
}

func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, DirName), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

func ProxiesPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ProxiesFileName), nil
}

func Load() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), err
	}
	return LoadFile(path)
}

// LoadFile overlays the json5 file at path onto the defaults. A missing or
// empty file yields the defaults.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return cfg, nil
	}

	if err := json5.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Init writes default config.json and proxies.txt if they don't already exist.
func Init() ([]string, error) {
	var created []string

	dir, err := ConfigDir()
	if err != nil {
		return created, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return created, err
	}

	configPath := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := writeConfig(configPath, DefaultConfig()); err != nil {
			return created, err
		}
		created = append(created, configPath)
	}

	proxiesPath := filepath.Join(dir, ProxiesFileName)
	if _, err := os.Stat(proxiesPath); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(proxiesPath, []byte(""), 0o644); err != nil {
			return created, err
		}
		created = append(created, proxiesPath)
	}

	return created, nil
}

func writeConfig(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func LoadProxies(flagValue string) ([]string, error) {
	if strings.TrimSpace(flagValue) != "" {
		return splitCSV(flagValue), nil
	}

	if env := strings.TrimSpace(os.Getenv("JOBPILOT_PROXIES")); env != "" {
		return splitCSV(env), nil
	}

	path, err := ProxiesPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var proxies []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		proxies = append(proxies, line)
	}
	return proxies, nil
}

func envString(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
