package decoder

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Canonical CSV column names
const (
	ColumnDate        = "date"
	ColumnAmount      = "amount"
	ColumnDebit       = "debit"
	ColumnCredit      = "credit"
	ColumnDescription = "description"
	ColumnBalance     = "balance"
	ColumnCurrency    = "currency"
)

var canonicalOrder = []string{ColumnDate, ColumnAmount, ColumnDebit, ColumnCredit, ColumnDescription, ColumnBalance, ColumnCurrency}

var headerSynonyms = map[string][]string{
	ColumnDate:        {"date", "дата", "дата операции", "дата проводки", "transaction date", "posting date", "value date"},
	ColumnAmount:      {"amount", "сумма", "сумма операции", "sum"},
	ColumnDebit:       {"debit", "дебет", "расход", "списание", "withdrawal"},
	ColumnCredit:      {"credit", "кредит", "приход", "поступление", "зачисление", "deposit"},
	ColumnDescription: {"description", "описание", "назначение платежа", "details", "комментарий", "comment", "narrative"},
	ColumnBalance:     {"balance", "остаток", "баланс", "running balance"},
	ColumnCurrency:    {"currency", "валюта"},
}

var delimiterCandidates = []rune{',', ';', '\t', '|'}

// RowSet is a CSV statement with canonical column names
type RowSet struct {
	Columns   []string
	Rows      [][]string
	HasHeader bool
	Delimiter rune
}

// ParseCSV sniffs the delimiter and header, maps header synonyms onto canonical names and
// derives a signed amount from debit/credit columns when no amount column exists.
func ParseCSV(data []byte) (*RowSet, error) {
	text := DecodeText(data)
	delimiter := sniffDelimiter(text)

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	records = dropBlankRecords(records)
	if len(records) == 0 {
		return nil, ErrEmptyStatement
	}

	width := 0
	for _, record := range records {
		width = max(width, len(record))
	}

	mapped, recognized := mapHeader(records[0])
	set := &RowSet{Delimiter: delimiter, HasHeader: recognized > 0}

	var columns []string
	body := records
	if set.HasHeader {
		columns = mapped
		for i := len(columns); i < width; i++ {
			columns = append(columns, fmt.Sprintf("col_%d", i+1))
		}
		body = records[1:]
	} else {
		columns = make([]string, width)
		for i := range columns {
			columns[i] = fmt.Sprintf("col_%d", i+1)
		}
	}

	set.Columns, set.Rows = normalizeRows(columns, body)
	return set, nil
}

// Render writes the row set back as comma separated text with a header line
func (s *RowSet) Render() (string, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(s.Columns); err != nil {
		return "", err
	}
	if err := writer.WriteAll(s.Rows); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func decodeCSV(data []byte) (string, error) {
	set, err := ParseCSV(data)
	if err != nil {
		// Malformed CSV is still useful to the model as plain text
		return DecodeText(data), nil
	}
	return set.Render()
}

func sniffDelimiter(text string) rune {
	lines := make([]string, 0, 10)
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == 10 {
			break
		}
	}

	best, bestScore := ',', 0
	for _, candidate := range delimiterCandidates {
		score := 0
		consistent := true
		first := -1
		for _, line := range lines {
			n := strings.Count(line, string(candidate))
			if first < 0 {
				first = n
			} else if n != first {
				consistent = false
			}
			score += n
		}
		if consistent {
			score *= 2
		}
		if first > 0 && score > bestScore {
			best, bestScore = candidate, score
		}
	}
	return best
}

func normalizeHeader(cell string) string {
	cell = strings.ToLower(strings.TrimSpace(cell))
	cell = strings.Trim(cell, `"':`)
	return strings.Join(strings.Fields(cell), " ")
}

// mapHeader returns the canonical name for every header cell and how many were recognized.
// Exact synonym matches win over prefix matches; each canonical name is used once.
func mapHeader(header []string) ([]string, int) {
	mapped := make([]string, len(header))
	taken := map[string]bool{}
	recognized := 0

	match := func(prefix bool) {
		for i, cell := range header {
			if mapped[i] != "" {
				continue
			}
			norm := normalizeHeader(cell)
			if norm == "" {
				continue
			}
			for _, canonical := range canonicalOrder {
				if taken[canonical] {
					continue
				}
				for _, synonym := range headerSynonyms[canonical] {
					if norm == synonym || (prefix && strings.HasPrefix(norm, synonym)) {
						mapped[i] = canonical
						taken[canonical] = true
						recognized++
						break
					}
				}
				if mapped[i] != "" {
					break
				}
			}
		}
	}
	match(false)
	match(true)

	for i, cell := range header {
		if mapped[i] != "" {
			continue
		}
		if norm := normalizeHeader(cell); norm != "" && !taken[norm] {
			mapped[i] = norm
			taken[norm] = true
		} else {
			mapped[i] = fmt.Sprintf("col_%d", i+1)
		}
	}
	return mapped, recognized
}

// normalizeRows puts canonical columns first and replaces debit/credit with a signed amount
// when the statement has no amount column of its own.
func normalizeRows(columns []string, records [][]string) ([]string, [][]string) {
	index := map[string]int{}
	for i, c := range columns {
		index[c] = i
	}

	_, hasAmount := index[ColumnAmount]
	debitIdx, hasDebit := index[ColumnDebit]
	creditIdx, hasCredit := index[ColumnCredit]
	derive := !hasAmount && (hasDebit || hasCredit)

	var order []int
	var out []string
	for _, canonical := range canonicalOrder {
		if derive && (canonical == ColumnDebit || canonical == ColumnCredit) {
			continue
		}
		if canonical == ColumnAmount && derive {
			order = append(order, -1)
			out = append(out, ColumnAmount)
			continue
		}
		if i, ok := index[canonical]; ok {
			order = append(order, i)
			out = append(out, canonical)
		}
	}
	isCanonical := map[string]bool{}
	for _, c := range canonicalOrder {
		isCanonical[c] = true
	}
	for i, c := range columns {
		if !isCanonical[c] {
			order = append(order, i)
			out = append(out, c)
		}
	}

	rows := make([][]string, 0, len(records))
	for _, record := range records {
		row := make([]string, len(order))
		for j, i := range order {
			if i < 0 {
				row[j] = signedAmount(cell(record, debitIdx, hasDebit), cell(record, creditIdx, hasCredit))
				continue
			}
			row[j] = cell(record, i, true)
		}
		rows = append(rows, row)
	}
	return out, rows
}

func cell(record []string, i int, ok bool) string {
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// signedAmount turns debit into a negative and credit into a positive amount
func signedAmount(debit, credit string) string {
	d, hasDebit := ParseAmount(debit)
	c, hasCredit := ParseAmount(credit)
	switch {
	case hasDebit && hasCredit:
		return c.Abs().Sub(d.Abs()).String()
	case hasDebit:
		return d.Abs().Neg().String()
	case hasCredit:
		return c.Abs().String()
	}
	return ""
}

// ParseAmount reads bank-formatted numbers such as "1 234,56", "-1,234.56" or "+100".
// It reports false for empty or non-numeric cells.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-':
			b.WriteRune(r)
		case r == '−':
			b.WriteRune('-')
		}
	}
	s := b.String()
	if s == "" || s == "-" {
		return decimal.Zero, false
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0 && lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastDot >= 0 && lastComma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func dropBlankRecords(records [][]string) [][]string {
	out := records[:0]
	for _, record := range records {
		for _, c := range record {
			if strings.TrimSpace(c) != "" {
				out = append(out, record)
				break
			}
		}
	}
	return out
}
