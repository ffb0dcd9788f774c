// Package importer reads expense sheets: kitty's own
// date;payer;description;category;amount layout and the CGD bank exports
// people already have on hand.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/apperr"
	enc "github.com/MrJamesThe3rd/kitty/internal/encoding"
)

// Row is one expense read from a sheet. Line is 1-based.
type Row struct {
	Line        int
	Date        time.Time
	PayerID     uuid.UUID
	Description string
	Category    string
	Amount      decimal.Decimal
}

// Result is a parsed sheet.
type Result struct {
	Profile string
	Charset enc.Charset
	Rows    []Row
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse reads a ';'-separated sheet in any supported layout. Rows with no
// payer column are attributed to defaultPayer.
func (p *Parser) Parse(r io.Reader, defaultPayer uuid.UUID) (*Result, error) {
	utf8r, charset, err := enc.Detect(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	reader := csv.NewReader(utf8r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, apperr.Validation("reading sheet: %v", err)
	}

	profile, cols, headerIdx := detectProfile(rows)
	if profile == nil {
		return nil, apperr.Validation("no known sheet layout found: expected date, description and amount columns")
	}

	parsed, err := parseRows(profile, cols, rows[headerIdx+1:], headerIdx+1, defaultPayer)
	if err != nil {
		return nil, err
	}

	return &Result{Profile: profile.Name, Charset: charset, Rows: parsed}, nil
}

// colIndex maps lower-cased column names to their index in the row.
type colIndex map[string]int

func (c colIndex) lookup(name string) int {
	if name == "" {
		return -1
	}

	if i, ok := c[name]; ok {
		return i
	}

	return -1
}

func detectProfile(rows [][]string) (*Profile, colIndex, int) {
	for rowIdx, row := range rows {
		cols := make(colIndex)

		for i, cell := range row {
			name := strings.ToLower(strings.TrimSpace(cell))
			if name != "" {
				cols[name] = i
			}
		}

		for i := range profiles {
			if matchesProfile(&profiles[i], cols) {
				return &profiles[i], cols, rowIdx
			}
		}
	}

	return nil, nil, 0
}

func matchesProfile(p *Profile, cols colIndex) bool {
	for _, name := range p.requiredCols() {
		if _, ok := cols[name]; !ok {
			return false
		}
	}

	return true
}

// parseRows extracts expenses below the header. headerRowNum is the
// 0-based index of the first data row in the file.
func parseRows(p *Profile, cols colIndex, rows [][]string, headerRowNum int, defaultPayer uuid.UUID) ([]Row, error) {
	var (
		dateIdx     = cols.lookup(p.DateCol)
		descIdx     = cols.lookup(p.DescCol)
		payerIdx    = cols.lookup(p.PayerCol)
		categoryIdx = cols.lookup(p.CategoryCol)
	)

	var out []Row

	for i, row := range rows {
		line := headerRowNum + i + 1

		dateStr := cellValue(row, dateIdx)
		if dateStr == "" {
			continue
		}

		date, err := time.Parse(p.DateLayout, dateStr)
		if err != nil {
			if p.BankExport {
				continue
			}

			return nil, apperr.Validation("line %d: invalid date %q", line, dateStr)
		}

		amount, ok, err := rowAmount(p, cols, row)
		if err != nil {
			return nil, apperr.Validation("line %d: %v", line, err)
		}

		if !ok {
			continue
		}

		desc := cellValue(row, descIdx)
		if desc == "" {
			return nil, apperr.Validation("line %d: missing description", line)
		}

		payer := defaultPayer

		if s := cellValue(row, payerIdx); s != "" {
			payer, err = uuid.Parse(s)
			if err != nil {
				return nil, apperr.Validation("line %d: payer %q is not a user id", line, s)
			}
		}

		out = append(out, Row{
			Line:        line,
			Date:        date,
			PayerID:     payer,
			Description: desc,
			Category:    cellValue(row, categoryIdx),
			Amount:      amount,
		})
	}

	return out, nil
}

// rowAmount returns the expense amount of a row and whether the row is an
// expense at all. Bank exports skip income and unreadable amounts.
func rowAmount(p *Profile, cols colIndex, row []string) (decimal.Decimal, bool, error) {
	if p.AmountMode == amountSplit {
		s := cellValue(row, cols.lookup(p.DebitCol))
		if s == "" {
			return decimal.Zero, false, nil
		}

		d, err := parseAmount(s)
		if err != nil || d.IsZero() {
			return decimal.Zero, false, nil
		}

		return d.Abs(), true, nil
	}

	s := cellValue(row, cols.lookup(p.AmountCol))

	d, err := parseAmount(s)

	if p.BankExport {
		if err != nil || !d.IsNegative() {
			return decimal.Zero, false, nil
		}

		return d.Neg(), true, nil
	}

	if err != nil {
		return decimal.Zero, false, err
	}

	if !d.IsPositive() {
		return decimal.Zero, false, fmt.Errorf("amount %s must be positive", d)
	}

	return d, true, nil
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}
