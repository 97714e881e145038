package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Provider and auth mode identifiers.
const (
	ProviderGateway   = "gateway"
	ProviderAnthropic = "anthropic"

	SearchDuckDuckGo = "duckduckgo"
	SearchJina       = "jina"

	AuthBasic  = "basic"
	AuthOAuth2 = "oauth2"

	// HistoryDisabled turns the run history store off.
	HistoryDisabled = "off"
)

// Config holds the full application configuration. It is built once by Load
// and handed to every component; nothing mutates it afterwards.
type Config struct {
	SharePoint          SharePointConfig `yaml:"sharepoint" mapstructure:"sharepoint"`
	LLM                 LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Search              SearchConfig     `yaml:"search" mapstructure:"search"`
	Output              OutputConfig     `yaml:"output" mapstructure:"output"`
	History             HistoryConfig    `yaml:"history" mapstructure:"history"`
	Log                 LogConfig        `yaml:"log" mapstructure:"log"`
	MaxRetries          int              `yaml:"max_retries" mapstructure:"max_retries"`
	RequestTimeout      int              `yaml:"request_timeout" mapstructure:"request_timeout"`
	ConfidenceThreshold int              `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
}

// SharePointConfig locates the input workbook and holds the credentials used
// to fetch it.
type SharePointConfig struct {
	URL          string `yaml:"url" mapstructure:"url"`
	Site         string `yaml:"site" mapstructure:"site"`
	Library      string `yaml:"library" mapstructure:"library"`
	File         string `yaml:"file" mapstructure:"file"`
	Username     string `yaml:"username" mapstructure:"username"`
	Password     string `yaml:"password" mapstructure:"password"`
	AuthMode     string `yaml:"auth_mode" mapstructure:"auth_mode"`
	TokenURL     string `yaml:"token_url" mapstructure:"token_url"`
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	Scope        string `yaml:"scope" mapstructure:"scope"`
}

// SiteURL joins the base URL and the site path.
func (c SharePointConfig) SiteURL() string {
	site := strings.Trim(c.Site, "/")
	base := strings.TrimRight(c.URL, "/")
	if site == "" {
		return base
	}
	return base + "/" + site
}

// LLMConfig selects and configures the language model backend.
type LLMConfig struct {
	Provider     string `yaml:"provider" mapstructure:"provider"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	APIKey       string `yaml:"api_key" mapstructure:"api_key"`
	Model        string `yaml:"model" mapstructure:"model"`
	AnthropicKey string `yaml:"anthropic_key" mapstructure:"anthropic_key"`
	MaxTokens    int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SearchConfig selects and configures the web search backend.
type SearchConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
	TopK     int    `yaml:"top_k" mapstructure:"top_k"`
	JinaKey  string `yaml:"jina_key" mapstructure:"jina_key"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
}

// OutputConfig locates the report workbook.
type OutputConfig struct {
	File string `yaml:"file" mapstructure:"file"`
	Dir  string `yaml:"dir" mapstructure:"dir"`
}

// HistoryConfig configures the SQLite run history.
type HistoryConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	Dir   string `yaml:"dir" mapstructure:"dir"`
}

// envBindings maps configuration keys to the environment variables operators
// set. Names are unprefixed to stay compatible with existing .env files.
var envBindings = map[string]string{
	"sharepoint.url":           "SHAREPOINT_URL",
	"sharepoint.site":          "SHAREPOINT_SITE",
	"sharepoint.library":       "SHAREPOINT_LIBRARY",
	"sharepoint.file":          "SHAREPOINT_FILE",
	"sharepoint.username":      "SHAREPOINT_USERNAME",
	"sharepoint.password":      "SHAREPOINT_PASSWORD",
	"sharepoint.auth_mode":     "SHAREPOINT_AUTH_MODE",
	"sharepoint.token_url":     "SHAREPOINT_TOKEN_URL",
	"sharepoint.client_id":     "SHAREPOINT_CLIENT_ID",
	"sharepoint.client_secret": "SHAREPOINT_CLIENT_SECRET",
	"sharepoint.scope":         "SHAREPOINT_SCOPE",
	"llm.provider":             "LLM_PROVIDER",
	"llm.base_url":             "LLM_BASE_URL",
	"llm.api_key":              "LLM_API_KEY",
	"llm.model":                "LLM_MODEL",
	"llm.anthropic_key":        "ANTHROPIC_API_KEY",
	"llm.max_tokens":           "LLM_MAX_TOKENS",
	"search.provider":          "SEARCH_PROVIDER",
	"search.top_k":             "SEARCH_TOP_K",
	"search.jina_key":          "JINA_API_KEY",
	"search.base_url":          "SEARCH_BASE_URL",
	"output.file":              "OUTPUT_FILE",
	"output.dir":               "OUTPUT_DIR",
	"history.path":             "HISTORY_DB",
	"log.level":                "LOG_LEVEL",
	"log.dir":                  "LOG_DIR",
	"max_retries":              "MAX_RETRIES",
	"request_timeout":          "REQUEST_TIMEOUT",
	"confidence_threshold":     "CONFIDENCE_THRESHOLD",
}

// Load reads configuration from .env, an optional config.yaml, and the
// environment. Real environment variables win over .env entries.
func Load() (*Config, error) {
	// .env is optional; godotenv never overrides variables already set.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, eris.Wrapf(err, "config: bind %s", env)
		}
	}

	v.SetDefault("sharepoint.auth_mode", AuthBasic)
	v.SetDefault("llm.provider", ProviderGateway)
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("search.provider", SearchDuckDuckGo)
	v.SetDefault("search.top_k", 5)
	v.SetDefault("output.file", "resultados_licenciamento.xlsx")
	v.SetDefault("output.dir", "./output")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "logs")
	v.SetDefault("max_retries", 3)
	v.SetDefault("request_timeout", 30)
	v.SetDefault("confidence_threshold", 70)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that every setting the verification run needs is present
// and in range. All problems are reported together.
func (c *Config) Validate() error {
	var missing []string
	req := func(val, name string) {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, name)
		}
	}

	req(c.SharePoint.URL, "SHAREPOINT_URL")
	req(c.SharePoint.Site, "SHAREPOINT_SITE")
	req(c.SharePoint.Library, "SHAREPOINT_LIBRARY")
	req(c.SharePoint.File, "SHAREPOINT_FILE")
	req(c.SharePoint.Username, "SHAREPOINT_USERNAME")
	req(c.SharePoint.Password, "SHAREPOINT_PASSWORD")

	var problems []string

	switch c.SharePoint.AuthMode {
	case AuthBasic:
	case AuthOAuth2:
		req(c.SharePoint.TokenURL, "SHAREPOINT_TOKEN_URL")
		req(c.SharePoint.ClientID, "SHAREPOINT_CLIENT_ID")
	default:
		problems = append(problems, fmt.Sprintf("SHAREPOINT_AUTH_MODE %q is not one of basic, oauth2", c.SharePoint.AuthMode))
	}

	switch c.LLM.Provider {
	case ProviderGateway:
		req(c.LLM.BaseURL, "LLM_BASE_URL")
		req(c.LLM.APIKey, "LLM_API_KEY")
	case ProviderAnthropic:
		req(c.LLM.AnthropicKey, "ANTHROPIC_API_KEY")
	default:
		problems = append(problems, fmt.Sprintf("LLM_PROVIDER %q is not one of gateway, anthropic", c.LLM.Provider))
	}
	req(c.LLM.Model, "LLM_MODEL")

	switch c.Search.Provider {
	case SearchDuckDuckGo:
	case SearchJina:
		req(c.Search.JinaKey, "JINA_API_KEY")
	default:
		problems = append(problems, fmt.Sprintf("SEARCH_PROVIDER %q is not one of duckduckgo, jina", c.Search.Provider))
	}

	req(c.Output.File, "OUTPUT_FILE")

	if c.MaxRetries < 1 {
		problems = append(problems, fmt.Sprintf("MAX_RETRIES must be >= 1 (got %d)", c.MaxRetries))
	}
	if c.RequestTimeout < 1 {
		problems = append(problems, fmt.Sprintf("REQUEST_TIMEOUT must be >= 1 second (got %d)", c.RequestTimeout))
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 100 {
		problems = append(problems, fmt.Sprintf("CONFIDENCE_THRESHOLD must be within 0-100 (got %d)", c.ConfidenceThreshold))
	}
	if c.Search.TopK < 1 {
		problems = append(problems, fmt.Sprintf("SEARCH_TOP_K must be >= 1 (got %d)", c.Search.TopK))
	}

	if len(missing) > 0 {
		problems = append([]string{"missing " + strings.Join(missing, ", ")}, problems...)
	}
	if len(problems) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Timeout returns REQUEST_TIMEOUT as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// OutputPath returns the full path of the report workbook.
func (c *Config) OutputPath() string {
	return filepath.Join(c.Output.Dir, c.Output.File)
}

// HistoryPath returns the SQLite history location, or "" when disabled.
func (c *Config) HistoryPath() string {
	switch strings.TrimSpace(c.History.Path) {
	case HistoryDisabled:
		return ""
	case "":
		return filepath.Join(c.Output.Dir, "historico.db")
	default:
		return c.History.Path
	}
}

// LogFileName returns the daily log file name for t.
func LogFileName(t time.Time) string {
	return fmt.Sprintf("websearch_agent_%s.log", t.Format("20060102"))
}

// InitLogger initializes the global zap logger. Entries go to the console
// and, when cfg.Dir is set, to one JSON log file per calendar day.
func InitLogger(cfg LogConfig) error {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}

	consoleEnc := zap.NewDevelopmentEncoderConfig()
	consoleEnc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEnc), zapcore.Lock(os.Stdout), level),
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return eris.Wrap(err, "config: create log dir")
		}
		path := filepath.Join(cfg.Dir, LogFileName(time.Now()))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return eris.Wrap(err, "config: open log file")
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(f),
			level,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	zap.ReplaceGlobals(logger)

	return nil
}
