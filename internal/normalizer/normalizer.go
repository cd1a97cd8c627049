// Package normalizer turns provider CSV exports into canonical transactions.
// Provider differences live in Profile data, not in code.
package normalizer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"fjacquet/ledgerflow/internal/currencyutils"
	"fjacquet/ledgerflow/internal/dateutils"
	"fjacquet/ledgerflow/internal/logging"
	"fjacquet/ledgerflow/internal/models"
	"fjacquet/ledgerflow/internal/parsererror"

	"github.com/shopspring/decimal"
)

// Result is the outcome of normalizing one export file.
type Result struct {
	File         string
	Provider     string
	Transactions []models.Transaction
	// Issues are rows skipped because a field could not be parsed.
	Issues []*parsererror.RowError
	// Dropped counts rows filtered out by status, marker, or direction.
	Dropped int
}

// Normalizer reads provider exports using the profiles of a Registry.
type Normalizer struct {
	logger   logging.Logger
	registry *Registry
}

// New creates a Normalizer. A nil logger falls back to a default logrus adapter.
func New(registry *Registry, logger logging.Logger) *Normalizer {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	return &Normalizer{logger: logger, registry: registry}
}

// SetLogger replaces the logger.
func (n *Normalizer) SetLogger(logger logging.Logger) {
	if logger != nil {
		n.logger = logger
	}
}

// NormalizeFile reads path with the named provider profile and tags every
// transaction with source. A missing file or unknown provider is a
// *parsererror.ConfigError.
func (n *Normalizer) NormalizeFile(path, source, provider string) (*Result, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- paths come from the user's config
	if err != nil {
		return nil, &parsererror.ConfigError{Field: "sources." + source, Reason: fmt.Sprintf("cannot read input file %s", path), Err: err}
	}

	var profile Profile
	if strings.EqualFold(provider, ProviderAuto) {
		profile, err = n.detect(data, path)
	} else {
		profile, err = n.registry.Lookup(provider)
	}
	if err != nil {
		return nil, err
	}

	return n.Normalize(bytes.NewReader(data), path, source, profile)
}

// Normalize reads an export from r. file is used in row issues and logs only.
func (n *Normalizer) Normalize(r io.Reader, file, source string, profile Profile) (*Result, error) {
	logger := n.logger.WithFields(
		logging.Field{Key: logging.FieldFile, Value: file},
		logging.Field{Key: logging.FieldProvider, Value: profile.Name},
		logging.Field{Key: logging.FieldSource, Value: source},
	)

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	data, err := decode(raw, profile.Encoding)
	if err != nil {
		return nil, err
	}

	records, err := readRecords(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV records from %s: %w", file, err)
	}

	headerIdx, columns := findHeader(records, profile)
	if headerIdx < 0 {
		return nil, &parsererror.InvalidFormatError{
			FilePath:       file,
			ExpectedFormat: profile.Name,
			Msg:            fmt.Sprintf("no header row with columns %s", strings.Join(profile.requiredColumns(), ", ")),
		}
	}
	logger.Debug("Located header row", logging.Field{Key: logging.FieldLine, Value: records[headerIdx].line})

	result := &Result{File: file, Provider: profile.Name}
	minFields := columns.maxIndex() + 1

	for _, rec := range records[headerIdx+1:] {
		if isBlank(rec.fields) {
			continue
		}
		if len(rec.fields) < minFields {
			// Export footers (totals, disclaimers) are short lines.
			logger.Debug("Ignoring short line", logging.Field{Key: logging.FieldLine, Value: rec.line})
			continue
		}

		tx, reason, err := convertRow(rec.fields, columns, profile, source)
		if err != nil {
			issue := &parsererror.RowError{File: file, Line: rec.line, Raw: strings.Join(rec.fields, ","), Err: err}
			result.Issues = append(result.Issues, issue)
			logger.WithError(err).Warn("Skipping unparseable row",
				logging.Field{Key: logging.FieldLine, Value: rec.line},
				logging.Field{Key: logging.FieldRaw, Value: issue.Raw})
			continue
		}
		if reason != "" {
			result.Dropped++
			logger.Debug("Dropping row",
				logging.Field{Key: logging.FieldLine, Value: rec.line},
				logging.Field{Key: logging.FieldReason, Value: reason})
			continue
		}
		result.Transactions = append(result.Transactions, tx)
	}

	logger.Info("Normalized export",
		logging.Field{Key: logging.FieldCount, Value: len(result.Transactions)},
		logging.Field{Key: "dropped", Value: result.Dropped},
		logging.Field{Key: "issues", Value: len(result.Issues)})

	return result, nil
}

// detect picks the first profile, by name, whose header appears in data.
func (n *Normalizer) detect(raw []byte, file string) (Profile, error) {
	data, err := decode(raw, "auto")
	if err != nil {
		return Profile{}, err
	}
	records, err := readRecords(data)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read CSV records from %s: %w", file, err)
	}
	for _, name := range n.registry.Names() {
		p := n.registry.profiles[name]
		if idx, _ := findHeader(records, p); idx >= 0 {
			n.logger.Debug("Detected provider",
				logging.Field{Key: logging.FieldFile, Value: file},
				logging.Field{Key: logging.FieldProvider, Value: name})
			return p, nil
		}
	}
	return Profile{}, &parsererror.InvalidFormatError{
		FilePath:       file,
		ExpectedFormat: strings.Join(n.registry.Names(), " | "),
		Msg:            "no known provider header found",
	}
}

type record struct {
	line   int
	fields []string
}

// readRecords parses every CSV record, tolerating a varying field count so
// that preambles and footers can be told apart from data later.
func readRecords(data []byte) ([]record, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records []record
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := reader.FieldPos(0)
		records = append(records, record{line: line, fields: fields})
	}
	return records, nil
}

type columnIndex struct {
	time, counterparty, amount, income, expense, direction, status, kind int
	description                                                          []int
}

func (c columnIndex) maxIndex() int {
	highest := -1
	for _, i := range append([]int{c.time, c.counterparty, c.amount, c.income, c.expense, c.direction, c.status, c.kind}, c.description...) {
		if i > highest {
			highest = i
		}
	}
	return highest
}

func findHeader(records []record, p Profile) (int, columnIndex) {
	required := p.requiredColumns()
	for i, rec := range records {
		positions := make(map[string]int, len(rec.fields))
		for j, f := range rec.fields {
			name := strings.TrimSpace(f)
			if _, seen := positions[name]; !seen {
				positions[name] = j
			}
		}
		found := true
		for _, col := range required {
			if _, ok := positions[col]; !ok {
				found = false
				break
			}
		}
		if !found {
			continue
		}

		lookup := func(col string) int {
			if col == "" {
				return -1
			}
			if idx, ok := positions[col]; ok {
				return idx
			}
			return -1
		}
		idx := columnIndex{
			time:         lookup(p.TimeColumn),
			counterparty: lookup(p.CounterpartyColumn),
			amount:       lookup(p.AmountColumn),
			income:       lookup(p.IncomeAmountColumn),
			expense:      lookup(p.ExpenseAmountColumn),
			direction:    lookup(p.DirectionColumn),
			status:       lookup(p.StatusColumn),
			kind:         lookup(p.TypeColumn),
		}
		for _, col := range p.DescriptionColumns {
			if j := lookup(col); j >= 0 {
				idx.description = append(idx.description, j)
			}
		}
		return i, idx
	}
	return -1, columnIndex{}
}

func cell(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[idx])
}

// textCell is cell with the "/" placeholder some exports use for empty text.
func textCell(fields []string, idx int) string {
	v := cell(fields, idx)
	if v == "/" {
		return ""
	}
	return v
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// convertRow returns either a transaction, a non-empty drop reason, or a
// parse error.
func convertRow(fields []string, cols columnIndex, p Profile, source string) (models.Transaction, string, error) {
	status := cell(fields, cols.status)
	if cols.status >= 0 && len(p.CompletedStatuses) > 0 && !matchesAny(status, p.CompletedStatuses, false) {
		return models.Transaction{}, fmt.Sprintf("status %q is not completed", status), nil
	}

	for _, value := range []string{status, cell(fields, cols.kind), cell(fields, cols.direction)} {
		if value != "" && matchesAny(value, p.ExcludedMarkers, true) {
			return models.Transaction{}, fmt.Sprintf("excluded marker in %q", value), nil
		}
	}

	var direction models.Direction
	if cols.direction >= 0 {
		marker := cell(fields, cols.direction)
		direction = resolveDirection(marker, p)
		if direction == "" {
			return models.Transaction{}, fmt.Sprintf("direction %q is neither income nor expense", marker), nil
		}
	}

	amount, signed, err := rowAmount(fields, cols, p.Name)
	if err != nil {
		return models.Transaction{}, "", err
	}
	if amount.IsZero() {
		return models.Transaction{}, "zero amount", nil
	}
	if direction == "" {
		direction = models.DirectionIncome
		if signed.IsNegative() {
			direction = models.DirectionExpense
		}
	}

	ts, err := dateutils.ParseTimestamp(cell(fields, cols.time), p.DateLayouts, nil)
	if err != nil {
		return models.Transaction{}, "", &parsererror.ParseError{Parser: p.Name, Field: "timestamp", Value: cell(fields, cols.time), Err: err}
	}

	description := ""
	for _, idx := range cols.description {
		if description = textCell(fields, idx); description != "" {
			break
		}
	}

	tx := models.Transaction{
		Timestamp:      ts,
		Source:         source,
		Counterparty:   textCell(fields, cols.counterparty),
		Direction:      direction,
		Amount:         amount,
		RawDescription: description,
	}
	if err := tx.Validate(); err != nil {
		return models.Transaction{}, "", err
	}
	return tx, "", nil
}

// rowAmount returns the magnitude rounded to two places and the signed value
// (expense columns count as negative).
func rowAmount(fields []string, cols columnIndex, parser string) (decimal.Decimal, decimal.Decimal, error) {
	if cols.amount >= 0 {
		v, err := currencyutils.ParseAmount(cell(fields, cols.amount))
		if err != nil {
			return decimal.Zero, decimal.Zero, &parsererror.ParseError{Parser: parser, Field: "amount", Value: cell(fields, cols.amount), Err: err}
		}
		return v.Abs(), v, nil
	}

	income, expense := cell(fields, cols.income), cell(fields, cols.expense)
	if income != "" {
		v, err := currencyutils.ParseAmount(income)
		if err != nil {
			return decimal.Zero, decimal.Zero, &parsererror.ParseError{Parser: parser, Field: "income_amount", Value: income, Err: err}
		}
		if !v.IsZero() {
			return v.Abs(), v.Abs(), nil
		}
	}
	if expense != "" {
		v, err := currencyutils.ParseAmount(expense)
		if err != nil {
			return decimal.Zero, decimal.Zero, &parsererror.ParseError{Parser: parser, Field: "expense_amount", Value: expense, Err: err}
		}
		return v.Abs(), v.Abs().Neg(), nil
	}
	if income == "" {
		return decimal.Zero, decimal.Zero, &parsererror.ParseError{Parser: parser, Field: "amount", Err: errors.New("both income and expense cells are empty")}
	}
	return decimal.Zero, decimal.Zero, nil
}

// resolveDirection checks neutral markers first, since a neutral marker such
// as 不计收支 contains the expense marker 支.
func resolveDirection(marker string, p Profile) models.Direction {
	if marker == "" {
		return ""
	}
	switch {
	case matchesAny(marker, p.NeutralMarkers, true):
		return ""
	case matchesAny(marker, p.ExpenseMarkers, true):
		return models.DirectionExpense
	case matchesAny(marker, p.IncomeMarkers, true):
		return models.DirectionIncome
	}
	if d, err := models.ParseDirection(marker); err == nil {
		return d
	}
	return ""
}

// matchesAny compares case-insensitively, by substring when contains is set
// and by equality otherwise.
func matchesAny(value string, markers []string, contains bool) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, m := range markers {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "" {
			continue
		}
		if contains && strings.Contains(v, m) {
			return true
		}
		if !contains && v == m {
			return true
		}
	}
	return false
}
