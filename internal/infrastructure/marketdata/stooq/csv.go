package stooq

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/jmanzanog/quote-resolver/internal/domain"
)

// legacyCloseIndex is the close column of the headerless "sd2t2ohlcv" layout.
const legacyCloseIndex = 6

func readRecords(text string) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimSpace(text)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid csv: %v", domain.ErrUpstreamMalformedBody, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: stooq no data", domain.ErrUpstreamMalformedBody)
	}
	return records, nil
}

func hasCloseHeader(header []string) bool {
	return strings.Contains(strings.ToLower(strings.Join(header, ",")), "close")
}

func headerIndex(header []string, name string) int {
	for i, h := range header {
		if strings.ToLower(strings.TrimSpace(h)) == name {
			return i
		}
	}
	return -1
}

func parseField(row []string, idx int) (domain.Decimal, error) {
	if idx < 0 || idx >= len(row) {
		return domain.Decimal{}, fmt.Errorf("%w: row has no column %d", domain.ErrUpstreamMalformedBody, idx)
	}
	raw := strings.TrimSpace(row[idx])
	px, err := domain.NewDecimalFromString(raw)
	if err != nil || !px.IsFinite() {
		return domain.Decimal{}, fmt.Errorf("%w: close %q is not numeric", domain.ErrUpstreamMalformedBody, raw)
	}
	return px, nil
}

// ParseClose extracts the close price from a Stooq CSV body. When the first
// row is a header naming a "close" column the column is located by name,
// otherwise the seventh field of the data row is used.
func ParseClose(text string) (domain.Decimal, error) {
	records, err := readRecords(text)
	if err != nil {
		return domain.Decimal{}, err
	}

	if hasCloseHeader(records[0]) {
		return closeByHeader(records)
	}

	row := records[0]
	if len(records) > 1 {
		row = records[1]
	}
	return parseField(row, legacyCloseIndex)
}

// ParseHeaderClose is ParseClose without the positional fallback.
func ParseHeaderClose(text string) (domain.Decimal, error) {
	records, err := readRecords(text)
	if err != nil {
		return domain.Decimal{}, err
	}
	return closeByHeader(records)
}

func closeByHeader(records [][]string) (domain.Decimal, error) {
	if len(records) < 2 {
		return domain.Decimal{}, fmt.Errorf("%w: stooq no data", domain.ErrUpstreamMalformedBody)
	}
	idx := headerIndex(records[0], "close")
	if idx == -1 {
		return domain.Decimal{}, fmt.Errorf("%w: stooq missing close column", domain.ErrUpstreamMalformedBody)
	}
	return parseField(records[1], idx)
}
