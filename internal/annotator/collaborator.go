// Package annotator assigns one category label per transaction by asking a
// language model, falling back to the uncategorized label when the model
// fails or answers outside the configured set.
package annotator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fjacquet/ledgerflow/internal/config"
	"fjacquet/ledgerflow/internal/parsererror"
)

// Collaborator is a text-completion backend.
type Collaborator interface {
	// Complete sends prompt and returns the raw answer. labels is the
	// ordered set the answer should come from; backends may ignore it.
	Complete(ctx context.Context, prompt string, labels []string) (string, error)
}

// CollaboratorFunc adapts a plain function to Collaborator.
type CollaboratorFunc func(ctx context.Context, prompt string, labels []string) (string, error)

// Complete calls f.
func (f CollaboratorFunc) Complete(ctx context.Context, prompt string, labels []string) (string, error) {
	return f(ctx, prompt, labels)
}

// NewCollaborator builds the backend selected by cfg.Provider. Missing
// backend settings are a *parsererror.ConfigError.
func NewCollaborator(ctx context.Context, cfg config.ModelConfig) (Collaborator, error) {
	if err := cfg.ValidateBackend(); err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch strings.ToLower(cfg.Provider) {
	case config.ModelProviderOllama:
		return NewOllamaClient(cfg.Endpoint, cfg.Name, timeout), nil
	case config.ModelProviderCommand:
		return NewCommandClient(cfg.Executable, cfg.Name), nil
	case config.ModelProviderGemini:
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Name)
	default:
		return nil, &parsererror.ConfigError{Field: "model.provider", Reason: fmt.Sprintf("unknown provider %q", cfg.Provider)}
	}
}
