// Package ingest turns CSV and XLSX movement exports into validated
// transaction records. Malformed rows are rejected with their row number;
// nothing is coerced to a default.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/autoreorder/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrMalformed marks input rejected at the ingestion boundary.
var ErrMalformed = fmt.Errorf("%w: malformed input", domain.ErrDataIntegrity)

const (
	colMaterial = "material"
	colDate     = "posting_date"
	colQuantity = "quantity"
	colAmount   = "amount"
	colMovement = "movement_type"
	colVendor   = "vendor"
	colStock    = "stock"
)

var columnNameSanitizer = strings.NewReplacer(" ", "", "_", "", ".", "", "-", "", "/", "")

// columnAliases maps sanitized header names to canonical columns, covering
// SAP-style movement exports as well as plain snake_case files.
var columnAliases = map[string]string{
	"material":      colMaterial,
	"materialid":    colMaterial,
	"sku":           colMaterial,
	"postingdate":   colDate,
	"date":          colDate,
	"quantity":      colQuantity,
	"quantitydelta": colQuantity,
	"qty":           colQuantity,
	"orderqty":      colQuantity,
	"amount":        colAmount,
	"amtinloccur":   colAmount,
	"movementtype":  colMovement,
	"vendor":        colVendor,
	"stock":         colStock,
	"closingstock":  colStock,
	"reportedstock": colStock,
}

var requiredColumns = []string{colMaterial, colDate, colQuantity}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.DateOnly,
}

func normalizeColumnName(name string) string {
	name = strings.TrimSpace(strings.ToLower(strings.TrimPrefix(name, "\ufeff")))
	return columnNameSanitizer.Replace(name)
}

// ParseCSV reads a header row followed by movement rows.
func ParseCSV(r io.Reader) ([]domain.TransactionRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrMalformed)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	p, err := newRowParser(header)
	if err != nil {
		return nil, err
	}

	var records []domain.TransactionRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformed, line, err)
		}
		rec, skip, err := p.parse(row, line)
		if err != nil {
			return nil, err
		}
		if !skip {
			records = append(records, rec)
		}
	}
	return records, nil
}

// ParseRows parses an in-memory table whose first row is the header.
func ParseRows(rows [][]string) ([]domain.TransactionRecord, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty sheet", ErrMalformed)
	}
	p, err := newRowParser(rows[0])
	if err != nil {
		return nil, err
	}

	var records []domain.TransactionRecord
	for i, row := range rows[1:] {
		rec, skip, err := p.parse(row, i+2)
		if err != nil {
			return nil, err
		}
		if !skip {
			records = append(records, rec)
		}
	}
	return records, nil
}

type rowParser struct {
	index map[string]int
}

func newRowParser(header []string) (*rowParser, error) {
	index := make(map[string]int)
	for i, h := range header {
		canonical, ok := columnAliases[normalizeColumnName(h)]
		if !ok {
			continue
		}
		if _, dup := index[canonical]; dup {
			return nil, fmt.Errorf("%w: column %q mapped twice", ErrMalformed, canonical)
		}
		index[canonical] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: missing required column: %s", ErrMalformed, col)
		}
	}
	return &rowParser{index: index}, nil
}

func (p *rowParser) value(row []string, col string) string {
	if idx, ok := p.index[col]; ok && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

// parse returns skip=true for fully blank rows, which spreadsheets often
// carry at the end of a sheet.
func (p *rowParser) parse(row []string, line int) (domain.TransactionRecord, bool, error) {
	if blank(row) {
		return domain.TransactionRecord{}, true, nil
	}

	fail := func(format string, args ...interface{}) (domain.TransactionRecord, bool, error) {
		return domain.TransactionRecord{}, false,
			fmt.Errorf("%w: row %d: %s", ErrMalformed, line, fmt.Sprintf(format, args...))
	}

	material := p.value(row, colMaterial)
	if material == "" {
		return fail("material is empty")
	}

	date, err := parseDate(p.value(row, colDate))
	if err != nil {
		return fail("%v", err)
	}

	qty, err := parseNumber(p.value(row, colQuantity))
	if err != nil {
		return fail("quantity: %v", err)
	}

	rec := domain.TransactionRecord{
		MaterialID:    material,
		PostingDate:   date,
		QuantityDelta: qty,
		MovementType:  p.value(row, colMovement),
		Vendor:        p.value(row, colVendor),
	}

	if raw := p.value(row, colAmount); raw != "" {
		amount, err := decimal.NewFromString(stripCurrency(raw))
		if err != nil {
			return fail("amount %q is not a number", raw)
		}
		rec.MonetaryAmount = amount
	}

	if raw := p.value(row, colStock); raw != "" {
		stock, err := parseNumber(raw)
		if err != nil {
			return fail("stock: %v", err)
		}
		rec.ReportedStock = &stock
	}

	return rec, false, nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("posting date is empty")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("posting date %q has an unsupported format", raw)
}

func parseNumber(raw string) (float64, error) {
	if raw == "" {
		return 0, fmt.Errorf("value is empty")
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not finite", raw)
	}
	return v, nil
}

var currencyStripper = strings.NewReplacer("$", "", ",", "")

func stripCurrency(raw string) string {
	return currencyStripper.Replace(raw)
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
