package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// CSVSource reads raw transactions from a delimited fixture file. The
// file is optional: when it does not exist the source reports
// ErrUnavailable and the chain moves on. Expected header columns are
// Date, Description, Amount and HMRC Category; unknown columns are
// ignored and missing ones read as empty.
type CSVSource struct {
	path string
	log  zerolog.Logger
}

// NewCSVSource creates a fixture-file source for the given path.
func NewCSVSource(path string, log zerolog.Logger) *CSVSource {
	return &CSVSource{path: path, log: log}
}

// Name implements Source.
func (s *CSVSource) Name() string {
	return string(KindCSV)
}

// Fetch implements Source. Structurally broken lines are skipped with a
// warning rather than aborting the whole read; rows with unparseable
// amounts or dates survive here and are dropped later by the normalizer,
// which owns field parsing. Date-range filtering does not apply to
// fixture data.
func (s *CSVSource) Fetch(ctx context.Context, accountID, startDate, endDate string) ([]RawTransaction, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("fixture %s: %w", s.path, ErrUnavailable)
		}
		return nil, &FetchError{Source: s.Name(), Err: err}
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []RawTransaction{}, nil
		}
		return nil, &FetchError{Source: s.Name(), Err: fmt.Errorf("read header: %w", err)}
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}

	field := func(record []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var records []RawTransaction
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, &FetchError{Source: s.Name(), Err: err}
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			s.log.Warn().Err(err).Int("line", line).Msg("Skipping malformed CSV line")
			continue
		}

		amount := field(record, "Amount")
		if _, ok := columns["Amount"]; !ok {
			// A fixture without an Amount column reads as zero amounts.
			amount = "0"
		}

		records = append(records, RawTransaction{
			Kind:        KindCSV,
			Date:        field(record, "Date"),
			Description: field(record, "Description"),
			Amount:      amount,
			Category:    field(record, "HMRC Category"),
			AccountID:   accountID,
		})
	}

	return records, nil
}

var _ Source = (*CSVSource)(nil)
