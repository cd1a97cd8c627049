// Package root contains the root command for the application
package root

import (
	"fjacquet/ledgerflow/internal/config"
	"fjacquet/ledgerflow/internal/container"
	"fjacquet/ledgerflow/internal/logging"
	"fjacquet/ledgerflow/internal/pipeline"

	"github.com/spf13/cobra"
)

// CommonFlags represents the flags that are common to multiple commands
type CommonFlags struct {
	Config    string
	Input     string
	Output    string
	LogLevel  string
	LogFormat string
}

var (
	// Log is the shared logger instance for commands
	Log logging.Logger = logging.NewLogrusAdapter("info", "text")

	// AppContainer holds the dependencies built from the loaded configuration.
	// It is set by PersistentPreRunE before any subcommand runs.
	AppContainer *container.Container

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "ledgerflow",
		Short: "A CLI tool to normalize payment exports, categorize transactions and report on them.",
		Long: `ledgerflow turns Alipay, WeChat Pay and bank CSV exports into a canonical
transactions file, labels every transaction with a spending category using a
language model, and summarizes the result as a Markdown report.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if AppContainer == nil {
				return
			}
			if err := AppContainer.Close(); err != nil {
				Log.WithError(err).Warn("Failed to release model client")
			}
		},
	}

	// SharedFlags holds the values of the persistent flags.
	SharedFlags = CommonFlags{}
)

// Init initializes the root command and all flags
func Init() {
	Cmd.PersistentFlags().StringVarP(&SharedFlags.Config, "config", "c", "config.yaml", "Pipeline configuration file")
	Cmd.PersistentFlags().StringVarP(&SharedFlags.Input, "input", "i", "", "Input file (defaults to the configured transactions file)")
	Cmd.PersistentFlags().StringVarP(&SharedFlags.Output, "output", "o", "", "Output file (defaults to the configured path)")
	Cmd.PersistentFlags().StringVar(&SharedFlags.LogLevel, "log-level", "", "Log level override (trace, debug, info, warn, error)")
	Cmd.PersistentFlags().StringVar(&SharedFlags.LogFormat, "log-format", "", "Log format override (text, json)")
}

func setup(cmd *cobra.Command, args []string) error {
	config.LoadEnv()

	cfg, err := config.Load(SharedFlags.Config)
	if err != nil {
		return err
	}
	if SharedFlags.LogLevel != "" {
		cfg.Log.Level = SharedFlags.LogLevel
	}
	if SharedFlags.LogFormat != "" {
		cfg.Log.Format = SharedFlags.LogFormat
	}
	Log = config.ConfigureLoggingFromConfig(cfg)

	AppContainer, err = container.NewContainer(cfg, container.WithLogger(Log))
	if err != nil {
		return err
	}
	Log.Debug("Loaded configuration",
		logging.Field{Key: "config", Value: SharedFlags.Config},
		logging.Field{Key: logging.FieldPeriod, Value: cfg.Metadata.Period})
	return nil
}

// NewRunner returns a stage runner over AppContainer.
func NewRunner() *pipeline.Runner {
	return pipeline.NewRunner(AppContainer)
}

// Finish logs the run summary when the stage succeeded and returns err.
func Finish(summary *pipeline.RunSummary, err error) error {
	if err != nil {
		return err
	}
	summary.Log(Log)
	return nil
}
