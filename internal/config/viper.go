package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"fjacquet/ledgerflow/internal/fileutils"
	"fjacquet/ledgerflow/internal/parsererror"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Collaborator backends
const (
	ModelProviderOllama  = "ollama"
	ModelProviderCommand = "command"
	ModelProviderGemini  = "gemini"
)

// SourceConfig names one provider export (or several files of the same provider).
type SourceConfig struct {
	Name     string   `mapstructure:"name" yaml:"name"`
	Provider string   `mapstructure:"provider" yaml:"provider"`
	Paths    []string `mapstructure:"paths" yaml:"paths"`
}

// ProviderConfig describes the column layout of a provider export. Entries
// under `providers` add new providers or override the built-in ones.
type ProviderConfig struct {
	Encoding            string   `mapstructure:"encoding" yaml:"encoding"`
	TimeColumn          string   `mapstructure:"time_column" yaml:"time_column"`
	CounterpartyColumn  string   `mapstructure:"counterparty_column" yaml:"counterparty_column"`
	DescriptionColumns  []string `mapstructure:"description_columns" yaml:"description_columns"`
	AmountColumn        string   `mapstructure:"amount_column" yaml:"amount_column"`
	IncomeAmountColumn  string   `mapstructure:"income_amount_column" yaml:"income_amount_column"`
	ExpenseAmountColumn string   `mapstructure:"expense_amount_column" yaml:"expense_amount_column"`
	DirectionColumn     string   `mapstructure:"direction_column" yaml:"direction_column"`
	StatusColumn        string   `mapstructure:"status_column" yaml:"status_column"`
	TypeColumn          string   `mapstructure:"type_column" yaml:"type_column"`
	DateLayouts         []string `mapstructure:"date_layouts" yaml:"date_layouts"`
	IncomeMarkers       []string `mapstructure:"income_markers" yaml:"income_markers"`
	ExpenseMarkers      []string `mapstructure:"expense_markers" yaml:"expense_markers"`
	NeutralMarkers      []string `mapstructure:"neutral_markers" yaml:"neutral_markers"`
	CompletedStatuses   []string `mapstructure:"completed_statuses" yaml:"completed_statuses"`
	ExcludedMarkers     []string `mapstructure:"excluded_markers" yaml:"excluded_markers"`
}

// ModelConfig holds the category model connection details.
type ModelConfig struct {
	Provider          string `mapstructure:"provider" yaml:"provider"`
	Name              string `mapstructure:"name" yaml:"name"`
	Endpoint          string `mapstructure:"endpoint" yaml:"endpoint"`
	Executable        string `mapstructure:"executable" yaml:"executable"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries        int    `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelayMillis  int    `mapstructure:"retry_delay_ms" yaml:"retry_delay_ms"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	APIKey            string `mapstructure:"api_key" yaml:"-"` // Never serialize API key
}

// Config represents the complete pipeline configuration
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Metadata struct {
		Period string `mapstructure:"period" yaml:"period"`
		Tag    string `mapstructure:"tag" yaml:"tag"`
	} `mapstructure:"metadata" yaml:"metadata"`

	Sources []SourceConfig `mapstructure:"sources" yaml:"sources"`

	Output struct {
		Transactions string `mapstructure:"transactions" yaml:"transactions"`
		Report       string `mapstructure:"report" yaml:"report"`
	} `mapstructure:"output" yaml:"output"`

	Model ModelConfig `mapstructure:"model" yaml:"model"`

	Categories []string `mapstructure:"categories" yaml:"categories"`

	Report struct {
		CurrencySymbol string `mapstructure:"currency_symbol" yaml:"currency_symbol"`
	} `mapstructure:"report" yaml:"report"`

	Providers map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`

	// BaseDir is the directory of the config file; relative paths resolve against it.
	BaseDir string `mapstructure:"-" yaml:"-"`
}

var placeholderPattern = regexp.MustCompile(`\{([^{}]*)\}`)

// Load reads the configuration file at path, applies defaults and
// LEDGERFLOW_* environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &parsererror.ConfigError{Field: "config", Reason: "no configuration file given"}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &parsererror.ConfigError{Field: "config", Reason: "configuration file not readable", Err: err}
	}

	v := viper.New()

	// 1. Defaults
	setDefaults(v)

	// 2. Config file
	v.SetConfigFile(path)

	// 3. Environment variables
	v.SetEnvPrefix("LEDGERFLOW")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.BindEnv("model.api_key", "LEDGERFLOW_MODEL_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind GEMINI_API_KEY environment variable: %w", err)
	}

	// 4. Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, &parsererror.ConfigError{Field: "config", Reason: "unreadable configuration", Err: err}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &parsererror.ConfigError{Field: "config", Reason: "malformed configuration", Err: err}
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	cfg.BaseDir = filepath.Dir(absPath)

	// 5. Validate
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("metadata.period", "")
	v.SetDefault("metadata.tag", "")

	v.SetDefault("output.transactions", "{period}-transactions.csv")
	v.SetDefault("output.report", "{period}-report.md")

	v.SetDefault("model.provider", ModelProviderOllama)
	v.SetDefault("model.name", "qwen2.5:32b")
	v.SetDefault("model.endpoint", "http://localhost:11434")
	v.SetDefault("model.executable", "ollama")
	v.SetDefault("model.timeout_seconds", 60)
	v.SetDefault("model.max_retries", 2)
	v.SetDefault("model.retry_delay_ms", 500)
	v.SetDefault("model.requests_per_minute", 0)

	v.SetDefault("report.currency_symbol", "¥")
}

// validateConfig validates the configuration values. The first problem found
// is returned as a *parsererror.ConfigError naming the offending field.
func validateConfig(cfg *Config) error {
	if _, err := logrus.ParseLevel(strings.ToLower(cfg.Log.Level)); err != nil {
		return &parsererror.ConfigError{Field: "log.level", Reason: fmt.Sprintf("invalid log level %q", cfg.Log.Level)}
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return &parsererror.ConfigError{Field: "log.format", Reason: fmt.Sprintf("invalid log format %q (must be 'text' or 'json')", cfg.Log.Format)}
	}

	cfg.Metadata.Period = strings.TrimSpace(cfg.Metadata.Period)
	if cfg.Metadata.Period == "" {
		return &parsererror.ConfigError{Field: "metadata.period", Reason: "report period must be configured"}
	}

	if err := validateTemplate("output.transactions", cfg.Output.Transactions); err != nil {
		return err
	}
	if err := validateTemplate("output.report", cfg.Output.Report); err != nil {
		return err
	}

	seen := make(map[string]bool, len(cfg.Sources))
	for i, src := range cfg.Sources {
		field := fmt.Sprintf("sources[%d]", i)
		if strings.TrimSpace(src.Name) == "" {
			return &parsererror.ConfigError{Field: field + ".name", Reason: "source name must be set"}
		}
		if seen[src.Name] {
			return &parsererror.ConfigError{Field: field + ".name", Reason: fmt.Sprintf("duplicate source name %q", src.Name)}
		}
		seen[src.Name] = true
		if strings.TrimSpace(src.Provider) == "" {
			return &parsererror.ConfigError{Field: field + ".provider", Reason: "provider must be set"}
		}
		if len(src.Paths) == 0 {
			return &parsererror.ConfigError{Field: field + ".paths", Reason: "at least one input file is required"}
		}
	}

	if err := validateModel(&cfg.Model); err != nil {
		return err
	}

	if len(cfg.Categories) == 0 {
		return &parsererror.ConfigError{Field: "categories", Reason: "at least one category label is required"}
	}
	for i, label := range cfg.Categories {
		if strings.TrimSpace(label) == "" {
			return &parsererror.ConfigError{Field: fmt.Sprintf("categories[%d]", i), Reason: "label must not be empty"}
		}
	}

	return nil
}

// validateModel checks the settings every backend shares. Backend-specific
// settings are checked by ValidateBackend when a collaborator is built, so
// stages that never call the model do not need them.
func validateModel(m *ModelConfig) error {
	switch m.Provider {
	case ModelProviderOllama, ModelProviderCommand, ModelProviderGemini:
	default:
		return &parsererror.ConfigError{Field: "model.provider", Reason: fmt.Sprintf("unknown provider %q (must be ollama, command or gemini)", m.Provider)}
	}

	if strings.TrimSpace(m.Name) == "" {
		return &parsererror.ConfigError{Field: "model.name", Reason: "model name must be configured"}
	}
	if m.TimeoutSeconds < 1 || m.TimeoutSeconds > 600 {
		return &parsererror.ConfigError{Field: "model.timeout_seconds", Reason: fmt.Sprintf("must be between 1 and 600, got: %d", m.TimeoutSeconds)}
	}
	if m.MaxRetries < 0 || m.MaxRetries > 10 {
		return &parsererror.ConfigError{Field: "model.max_retries", Reason: fmt.Sprintf("must be between 0 and 10, got: %d", m.MaxRetries)}
	}
	if m.RetryDelayMillis < 0 {
		return &parsererror.ConfigError{Field: "model.retry_delay_ms", Reason: "must not be negative"}
	}
	if m.RequestsPerMinute < 0 || m.RequestsPerMinute > 1000 {
		return &parsererror.ConfigError{Field: "model.requests_per_minute", Reason: fmt.Sprintf("must be between 0 and 1000, got: %d", m.RequestsPerMinute)}
	}
	return nil
}

// ValidateBackend checks the settings of the selected provider.
func (m ModelConfig) ValidateBackend() error {
	switch m.Provider {
	case ModelProviderOllama:
		if strings.TrimSpace(m.Endpoint) == "" {
			return &parsererror.ConfigError{Field: "model.endpoint", Reason: "endpoint is required for the ollama provider"}
		}
	case ModelProviderCommand:
		if strings.TrimSpace(m.Executable) == "" {
			return &parsererror.ConfigError{Field: "model.executable", Reason: "executable is required for the command provider"}
		}
	case ModelProviderGemini:
		if m.APIKey == "" {
			return &parsererror.ConfigError{Field: "model.api_key", Reason: "GEMINI_API_KEY required for the gemini provider"}
		}
	default:
		return &parsererror.ConfigError{Field: "model.provider", Reason: fmt.Sprintf("unknown provider %q", m.Provider)}
	}
	return nil
}

func validateTemplate(field, template string) error {
	if strings.TrimSpace(template) == "" {
		return &parsererror.ConfigError{Field: field, Reason: "path template must not be empty"}
	}
	for _, match := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		switch match[1] {
		case "period", "tag":
		default:
			return &parsererror.ConfigError{Field: field, Reason: fmt.Sprintf("unknown placeholder {%s}", match[1])}
		}
	}
	return nil
}

// RenderPath expands {period} and {tag} in template and resolves the result
// against the config directory.
func (c *Config) RenderPath(template string) string {
	rendered := strings.NewReplacer(
		"{period}", c.Metadata.Period,
		"{tag}", c.Metadata.Tag,
	).Replace(template)
	return c.ResolvePath(rendered)
}

// ResolvePath makes a relative path relative to the config directory.
func (c *Config) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || c.BaseDir == "" {
		return path
	}
	return filepath.Join(c.BaseDir, path)
}

// TransactionsPath is the canonical CSV location for the configured period.
func (c *Config) TransactionsPath() string {
	return c.RenderPath(c.Output.Transactions)
}

// ReportPath is the default report location for the configured period.
func (c *Config) ReportPath() string {
	return c.RenderPath(c.Output.Report)
}

// SourceFiles returns the raw exports of source i, resolved against the
// config directory with glob patterns expanded in order. A plain path is
// returned even when it does not exist; a pattern matching nothing is a
// *parsererror.ConfigError.
func (c *Config) SourceFiles(i int) ([]string, error) {
	src := c.Sources[i]
	var files []string
	for j, p := range src.Paths {
		resolved := c.ResolvePath(p)
		if !strings.ContainsAny(resolved, "*?[") {
			files = append(files, resolved)
			continue
		}
		matches, err := fileutils.ExpandPaths([]string{resolved})
		if err != nil {
			return nil, &parsererror.ConfigError{Field: fmt.Sprintf("sources[%d].paths[%d]", i, j), Reason: "invalid pattern", Err: err}
		}
		if len(matches) == 0 {
			return nil, &parsererror.ConfigError{Field: fmt.Sprintf("sources[%d].paths[%d]", i, j), Reason: fmt.Sprintf("no input file matches %s", resolved)}
		}
		files = append(files, matches...)
	}
	return files, nil
}

// ValidateInputs checks that every configured raw export exists.
func (c *Config) ValidateInputs() error {
	for i, src := range c.Sources {
		for j, p := range src.Paths {
			field := fmt.Sprintf("sources[%d].paths[%d]", i, j)
			resolved := c.ResolvePath(p)
			if strings.ContainsAny(resolved, "*?[") {
				continue
			}
			info, err := os.Stat(resolved)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return &parsererror.ConfigError{Field: field, Reason: fmt.Sprintf("missing input file %s", resolved), Err: err}
				}
				return &parsererror.ConfigError{Field: field, Reason: "input file not readable", Err: err}
			}
			if info.IsDir() {
				return &parsererror.ConfigError{Field: field, Reason: fmt.Sprintf("%s is a directory", resolved)}
			}
		}
		if _, err := c.SourceFiles(i); err != nil {
			return err
		}
	}
	return nil
}
