package ledger

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"fjacquet/ledgerflow/internal/fileutils"
	"fjacquet/ledgerflow/internal/logging"
	"fjacquet/ledgerflow/internal/models"
	"fjacquet/ledgerflow/internal/parsererror"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

// CanonicalHeader is the column order of the normalized checkpoint file.
var CanonicalHeader = []string{"timestamp", "source", "counterparty", "direction", "amount", "raw_description"}

// AnnotatedHeader adds the category column written by the annotator.
var AnnotatedHeader = append(append([]string(nil), CanonicalHeader...), "category")

// canonicalRow maps one line of the canonical CSV.
type canonicalRow struct {
	Timestamp      string `csv:"timestamp"`
	Source         string `csv:"source"`
	Counterparty   string `csv:"counterparty"`
	Direction      string `csv:"direction"`
	Amount         string `csv:"amount"`
	RawDescription string `csv:"raw_description"`
}

// annotatedRow maps one line of the annotated CSV.
type annotatedRow struct {
	Timestamp      string `csv:"timestamp"`
	Source         string `csv:"source"`
	Counterparty   string `csv:"counterparty"`
	Direction      string `csv:"direction"`
	Amount         string `csv:"amount"`
	RawDescription string `csv:"raw_description"`
	Category       string `csv:"category"`
}

// ReadResult is the content of a checkpoint file.
type ReadResult struct {
	Transactions []models.Transaction
	Issues       []*parsererror.RowError
	// HasCategory is true when the file carries the category column.
	HasCategory bool
}

// Store reads and writes checkpoint files.
type Store struct {
	logger logging.Logger
}

// NewStore creates a Store. A nil logger falls back to a default logrus adapter.
func NewStore(logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	return &Store{logger: logger}
}

// WriteCanonical writes transactions without the category column.
func (s *Store) WriteCanonical(path string, transactions []models.Transaction) error {
	rows := make([]*canonicalRow, 0, len(transactions))
	for _, tx := range transactions {
		rows = append(rows, &canonicalRow{
			Timestamp:      tx.FormattedTimestamp(),
			Source:         tx.Source,
			Counterparty:   tx.Counterparty,
			Direction:      tx.Direction.String(),
			Amount:         tx.FormattedAmount(),
			RawDescription: tx.RawDescription,
		})
	}
	return s.write(path, rows, CanonicalHeader, len(transactions))
}

// WriteAnnotated writes transactions including the category column.
func (s *Store) WriteAnnotated(path string, transactions []models.Transaction) error {
	rows := make([]*annotatedRow, 0, len(transactions))
	for _, tx := range transactions {
		rows = append(rows, &annotatedRow{
			Timestamp:      tx.FormattedTimestamp(),
			Source:         tx.Source,
			Counterparty:   tx.Counterparty,
			Direction:      tx.Direction.String(),
			Amount:         tx.FormattedAmount(),
			RawDescription: tx.RawDescription,
			Category:       tx.Category,
		})
	}
	return s.write(path, rows, AnnotatedHeader, len(transactions))
}

func (s *Store) write(path string, rows interface{}, header []string, count int) error {
	var buf bytes.Buffer
	csvWriter := csv.NewWriter(&buf)

	// an empty ledger still gets its header row
	if count == 0 {
		if err := csvWriter.Write(header); err != nil {
			return &parsererror.WriteError{Path: path, Err: err}
		}
		csvWriter.Flush()
	} else if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(csvWriter)); err != nil {
		return &parsererror.WriteError{Path: path, Err: err}
	}
	if err := csvWriter.Error(); err != nil {
		return &parsererror.WriteError{Path: path, Err: err}
	}

	if err := fileutils.WriteFileAtomic(path, buf.Bytes(), models.PermissionOutputFile); err != nil {
		return &parsererror.WriteError{Path: path, Err: err}
	}

	s.logger.Info("Wrote transactions",
		logging.Field{Key: logging.FieldOutputFile, Value: path},
		logging.Field{Key: logging.FieldCount, Value: count})
	return nil
}

// ReadLedger reads a canonical or annotated CSV. Rows whose fields cannot be
// parsed are reported as issues and skipped.
func (s *Store) ReadLedger(path string) (*ReadResult, error) {
	data, err := fileutils.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger %s: %w", path, err)
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	header, err := csv.NewReader(bytes.NewReader(data)).Read()
	if err != nil {
		return nil, &parsererror.InvalidFormatError{FilePath: path, ExpectedFormat: strings.Join(CanonicalHeader, ","), Msg: "missing header row"}
	}
	if missing := missingColumns(header, CanonicalHeader); len(missing) > 0 {
		return nil, &parsererror.InvalidFormatError{
			FilePath:       path,
			ExpectedFormat: strings.Join(CanonicalHeader, ","),
			Msg:            fmt.Sprintf("missing columns %s", strings.Join(missing, ", ")),
		}
	}

	var rows []*annotatedRow
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse ledger %s: %w", path, err)
	}

	result := &ReadResult{HasCategory: len(missingColumns(header, []string{"category"})) == 0}
	for i, row := range rows {
		tx, err := row.toTransaction()
		if err != nil {
			issue := &parsererror.RowError{
				File: path,
				Line: i + 2,
				Raw:  strings.Join([]string{row.Timestamp, row.Source, row.Counterparty, row.Direction, row.Amount, row.RawDescription}, ","),
				Err:  err,
			}
			result.Issues = append(result.Issues, issue)
			s.logger.WithError(err).Warn("Skipping malformed ledger row",
				logging.Field{Key: logging.FieldFile, Value: path},
				logging.Field{Key: logging.FieldLine, Value: issue.Line})
			continue
		}
		result.Transactions = append(result.Transactions, tx)
	}

	s.logger.Debug("Read ledger",
		logging.Field{Key: logging.FieldInputFile, Value: path},
		logging.Field{Key: logging.FieldCount, Value: len(result.Transactions)})
	return result, nil
}

func (r *annotatedRow) toTransaction() (models.Transaction, error) {
	ts, err := time.Parse(models.TimestampLayout, strings.TrimSpace(r.Timestamp))
	if err != nil {
		return models.Transaction{}, &parsererror.ParseError{Parser: "ledger", Field: "timestamp", Value: r.Timestamp, Err: err}
	}
	direction, err := models.ParseDirection(r.Direction)
	if err != nil {
		return models.Transaction{}, &parsererror.ParseError{Parser: "ledger", Field: "direction", Value: r.Direction, Err: err}
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(r.Amount))
	if err != nil {
		return models.Transaction{}, &parsererror.ParseError{Parser: "ledger", Field: "amount", Value: r.Amount, Err: err}
	}
	if amount.IsNegative() {
		return models.Transaction{}, &parsererror.ParseError{Parser: "ledger", Field: "amount", Value: r.Amount, Err: fmt.Errorf("amount must not be negative")}
	}

	return models.Transaction{
		Timestamp:      ts,
		Source:         r.Source,
		Counterparty:   r.Counterparty,
		Direction:      direction,
		Amount:         amount.Round(models.AmountPlaces),
		RawDescription: r.RawDescription,
		Category:       strings.TrimSpace(r.Category),
	}, nil
}

func missingColumns(header, required []string) []string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[strings.TrimSpace(h)] = true
	}
	var missing []string
	for _, col := range required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	return missing
}
