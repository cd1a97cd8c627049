package annotator

import (
	"context"
	"time"

	"fjacquet/ledgerflow/internal/config"
	"fjacquet/ledgerflow/internal/logging"
	"fjacquet/ledgerflow/internal/models"
	"fjacquet/ledgerflow/internal/parsererror"

	"golang.org/x/time/rate"
)

// Options bound the work done per transaction.
type Options struct {
	// Timeout applies to each collaborator call. Zero means no timeout.
	Timeout time.Duration
	// MaxRetries is the number of extra attempts after a failed call.
	MaxRetries int
	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration
	// RequestsPerMinute paces calls. Zero means unlimited.
	RequestsPerMinute int
}

// OptionsFromConfig maps the model section of the configuration.
func OptionsFromConfig(cfg config.ModelConfig) Options {
	return Options{
		Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
		MaxRetries:        cfg.MaxRetries,
		RetryDelay:        time.Duration(cfg.RetryDelayMillis) * time.Millisecond,
		RequestsPerMinute: cfg.RequestsPerMinute,
	}
}

// Decision records how one transaction got its category.
type Decision struct {
	Row          int    `yaml:"row"`
	Timestamp    string `yaml:"timestamp"`
	Counterparty string `yaml:"counterparty"`
	Amount       string `yaml:"amount"`
	Direction    string `yaml:"direction"`
	Answer       string `yaml:"answer,omitempty"`
	Category     string `yaml:"category"`
	Outcome      string `yaml:"outcome"`
	Attempts     int    `yaml:"attempts"`
	Reason       string `yaml:"reason,omitempty"`
	Error        string `yaml:"error,omitempty"`
}

// Result is the output of an annotation run.
type Result struct {
	Transactions []models.Transaction
	Decisions    []Decision
	// Failures holds the rows whose collaborator calls all failed.
	Failures []*parsererror.CollaboratorError
	Stats    models.AnnotationStats
}

// Annotator labels transactions one at a time, in order.
type Annotator struct {
	collaborator Collaborator
	name         string
	categories   models.CategorySet
	opts         Options
	limiter      *rate.Limiter
	logger       logging.Logger
}

// New creates an Annotator. name identifies the collaborator in errors and logs.
func New(collaborator Collaborator, name string, categories models.CategorySet, opts Options, logger logging.Logger) *Annotator {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	a := &Annotator{
		collaborator: collaborator,
		name:         name,
		categories:   categories,
		opts:         opts,
		logger:       logger,
	}
	if opts.RequestsPerMinute > 0 {
		a.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}
	return a
}

// Annotate returns a copy of transactions with every category set. Rows that
// already hold a configured label are kept; empty or unknown labels are sent
// to the collaborator. Collaborator failures never abort the run; only a
// cancelled ctx does, returning the rows processed so far.
func (a *Annotator) Annotate(ctx context.Context, transactions []models.Transaction) (*Result, error) {
	result := &Result{Transactions: make([]models.Transaction, 0, len(transactions))}
	labels := a.categories.Labels()

	for i, tx := range transactions {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		row := i + 1
		decision := Decision{
			Row:          row,
			Timestamp:    tx.FormattedTimestamp(),
			Counterparty: tx.Counterparty,
			Amount:       tx.FormattedAmount(),
			Direction:    tx.Direction.String(),
		}

		if tx.HasCategory() {
			if label, ok := a.categories.Match(tx.Category); ok {
				tx.Category = label
				decision.Category = label
				decision.Outcome = models.OutcomeKept
				a.record(result, tx, decision)
				continue
			}
			a.logger.Debug("Re-annotating unknown label",
				logging.Field{Key: "row", Value: row},
				logging.Field{Key: logging.FieldCategory, Value: tx.Category})
		}

		reply, attempts, err := a.complete(ctx, BuildPrompt(tx, labels), row)
		decision.Attempts = attempts
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			failure := &parsererror.CollaboratorError{Collaborator: a.name, Attempts: attempts, Err: err}
			result.Failures = append(result.Failures, failure)
			result.Stats.CallFails++
			tx.Category = models.FallbackCategory
			decision.Category = models.FallbackCategory
			decision.Outcome = models.OutcomeFallback
			decision.Error = failure.Error()
			a.record(result, tx, decision)
			continue
		}

		answer := ParseAnswer(reply)
		decision.Answer = answer.Category
		decision.Reason = answer.Reason
		if label, ok := a.categories.Match(answer.Category); ok {
			tx.Category = label
			decision.Category = label
			decision.Outcome = models.OutcomeModel
		} else {
			tx.Category = models.FallbackCategory
			decision.Category = models.FallbackCategory
			decision.Outcome = models.OutcomeFallback
			if decision.Reason == "" {
				decision.Reason = "answer is not a configured category"
			}
		}
		a.record(result, tx, decision)
	}

	result.Stats.LogSummary(a.logger)
	return result, nil
}

// complete calls the collaborator, retrying failed calls with a fixed delay.
func (a *Annotator) complete(ctx context.Context, prompt string, row int) (string, int, error) {
	var lastErr error
	for attempt := 1; attempt <= a.opts.MaxRetries+1; attempt++ {
		if attempt > 1 && a.opts.RetryDelay > 0 {
			if err := sleep(ctx, a.opts.RetryDelay); err != nil {
				return "", attempt - 1, err
			}
		}
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return "", attempt - 1, err
			}
		}

		reply, err := a.call(ctx, prompt)
		if err == nil {
			return reply, attempt, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", attempt, ctx.Err()
		}
		a.logger.WithError(err).Debug("Collaborator call failed",
			logging.Field{Key: "row", Value: row},
			logging.Field{Key: logging.FieldAttempt, Value: attempt})
	}
	return "", a.opts.MaxRetries + 1, lastErr
}

func (a *Annotator) call(ctx context.Context, prompt string) (string, error) {
	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}
	return a.collaborator.Complete(ctx, prompt, a.categories.Labels())
}

func (a *Annotator) record(result *Result, tx models.Transaction, d Decision) {
	result.Transactions = append(result.Transactions, tx)
	result.Decisions = append(result.Decisions, d)
	result.Stats.Record(d.Outcome)

	fields := []logging.Field{
		{Key: "row", Value: d.Row},
		{Key: logging.FieldCounterparty, Value: d.Counterparty},
		{Key: logging.FieldCategory, Value: d.Category},
		{Key: logging.FieldOutcome, Value: d.Outcome},
		{Key: logging.FieldAttempt, Value: d.Attempts},
	}
	if d.Reason != "" {
		fields = append(fields, logging.Field{Key: logging.FieldReason, Value: d.Reason})
	}

	switch d.Outcome {
	case models.OutcomeFallback:
		if d.Error != "" {
			fields = append(fields, logging.Field{Key: logging.FieldError, Value: d.Error})
		} else {
			fields = append(fields, logging.Field{Key: "answer", Value: d.Answer})
		}
		a.logger.Warn("Falling back to "+models.FallbackCategory, fields...)
	case models.OutcomeKept:
		a.logger.Debug("Keeping existing category", fields...)
	default:
		a.logger.Info("Annotated transaction", fields...)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
