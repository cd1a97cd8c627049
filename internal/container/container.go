// Package container provides dependency injection for the ledgerflow application.
// It centralizes the creation and wiring of all application dependencies,
// making them explicit and testable.
package container

import (
	"context"
	"fmt"
	"io"
	"sync"

	"fjacquet/ledgerflow/internal/annotator"
	"fjacquet/ledgerflow/internal/config"
	"fjacquet/ledgerflow/internal/ledger"
	"fjacquet/ledgerflow/internal/logging"
	"fjacquet/ledgerflow/internal/models"
	"fjacquet/ledgerflow/internal/normalizer"
	"fjacquet/ledgerflow/internal/report"
)

// Container holds all application dependencies and provides methods to access them.
//
// All fields are private and can only be accessed through getter methods.
// The annotator and its model client are built on first use, so stages that
// never call the model do not need its settings.
type Container struct {
	logger     logging.Logger
	config     *config.Config
	registry   *normalizer.Registry
	normalizer *normalizer.Normalizer
	store      *ledger.Store
	categories models.CategorySet
	reporter   *report.ReportGenerator

	mu           sync.Mutex
	collaborator annotator.Collaborator
	annotator    *annotator.Annotator
}

// Option customizes container construction.
type Option func(*options)

type options struct {
	logger       logging.Logger
	collaborator annotator.Collaborator
}

// WithLogger uses logger instead of one built from the Log section.
func WithLogger(logger logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithCollaborator replaces the model backend selected by the configuration.
func WithCollaborator(c annotator.Collaborator) Option {
	return func(o *options) { o.collaborator = c }
}

// NewContainer creates and wires all application dependencies.
func NewContainer(cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	// Create logger first as it's needed by other components
	logger := o.logger
	if logger == nil {
		logger = config.ConfigureLoggingFromConfig(cfg)
	}

	registry, err := normalizer.NewRegistry(cfg.Providers)
	if err != nil {
		return nil, err
	}

	categories := models.NewCategorySet(cfg.Categories)
	logger.Debug("Container initialized",
		logging.Field{Key: "providers", Value: registry.Names()},
		logging.Field{Key: "categories", Value: categories.Len()})

	return &Container{
		logger:       logger,
		config:       cfg,
		registry:     registry,
		normalizer:   normalizer.New(registry, logger.WithField(logging.FieldStage, "normalize")),
		store:        ledger.NewStore(logger),
		categories:   categories,
		reporter:     report.NewReportGenerator(logger.WithField(logging.FieldStage, "report")),
		collaborator: o.collaborator,
	}, nil
}

// GetLogger returns the container's logger instance.
func (c *Container) GetLogger() logging.Logger {
	return c.logger
}

// GetConfig returns the container's configuration instance.
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetRegistry returns the provider profiles.
func (c *Container) GetRegistry() *normalizer.Registry {
	return c.registry
}

// GetNormalizer returns the export normalizer.
func (c *Container) GetNormalizer() *normalizer.Normalizer {
	return c.normalizer
}

// GetStore returns the checkpoint file store.
func (c *Container) GetStore() *ledger.Store {
	return c.store
}

// GetAnnotator returns the category annotator, building the model client
// selected by the configuration on first use. Missing model settings are a
// *parsererror.ConfigError.
func (c *Container) GetAnnotator(ctx context.Context) (*annotator.Annotator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.annotator != nil {
		return c.annotator, nil
	}

	name := "stub"
	if c.collaborator == nil {
		collaborator, err := annotator.NewCollaborator(ctx, c.config.Model)
		if err != nil {
			return nil, err
		}
		c.collaborator = collaborator
		name = c.config.Model.Provider + "/" + c.config.Model.Name
	}

	c.annotator = annotator.New(
		c.collaborator,
		name,
		c.categories,
		annotator.OptionsFromConfig(c.config.Model),
		c.logger.WithField(logging.FieldStage, "annotate"),
	)
	c.logger.Debug("Annotator initialized", logging.Field{Key: "collaborator", Value: name})
	return c.annotator, nil
}

// GetReportGenerator returns the report generator.
func (c *Container) GetReportGenerator() *report.ReportGenerator {
	return c.reporter
}

// Close releases the collaborator's resources, if it holds any.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if closer, ok := c.collaborator.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
