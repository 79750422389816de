package customers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ImportError reports a CSV row that could not be turned into a customer.
// Line is the 1-based line number in the input, header included.
type ImportError struct {
	Line int    `json:"line"`
	Err  string `json:"error"`
}

// ImportCSV reads customers from CSV with a header row. Columns are matched by
// name, case-insensitively: name, email, phone, city, segment, totalSpend,
// visits, lastVisit (YYYY-MM-DD), age. Name and email columns are required.
// Bad rows are reported and skipped.
func ImportCSV(r io.Reader, now time.Time) ([]*Customer, []ImportError, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("%w: CSV input is empty", ErrInvalid)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"name", "email"} {
		if _, ok := cols[required]; !ok {
			return nil, nil, fmt.Errorf("%w: CSV header must include %q", ErrInvalid, required)
		}
	}

	var imported []*Customer
	var rowErrors []ImportError

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				rowErrors = append(rowErrors, ImportError{Line: parseErr.Line, Err: parseErr.Err.Error()})
				continue
			}
			return imported, rowErrors, fmt.Errorf("failed to read CSV: %w", err)
		}

		line, _ := reader.FieldPos(0)
		c, err := customerFromRow(cols, row, now)
		if err != nil {
			rowErrors = append(rowErrors, ImportError{Line: line, Err: err.Error()})
			continue
		}
		imported = append(imported, c)
	}

	return imported, rowErrors, nil
}

func customerFromRow(cols map[string]int, row []string, now time.Time) (*Customer, error) {
	get := func(name string) string {
		i, ok := cols[strings.ToLower(name)]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	c, err := NewCustomer(get("name"), get("email"), get("phone"), get("city"), now)
	if err != nil {
		return nil, err
	}

	if v := get("segment"); v != "" {
		c.Segment = v
	}
	if v := get("totalSpend"); v != "" {
		spend, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid totalSpend %q", v)
		}
		c.TotalSpend = spend
	}
	if v := get("visits"); v != "" {
		visits, err := strconv.Atoi(v)
		if err != nil || visits < 0 {
			return nil, fmt.Errorf("invalid visits %q", v)
		}
		c.Visits = visits
	}
	if v := get("lastVisit"); v != "" {
		at, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return nil, fmt.Errorf("invalid lastVisit %q (want YYYY-MM-DD)", v)
		}
		c.LastVisit = at
	}
	if v := get("age"); v != "" {
		age, err := strconv.Atoi(v)
		if err != nil || age < 0 {
			return nil, fmt.Errorf("invalid age %q", v)
		}
		c.Age = age
	}

	return c, nil
}
