package trace

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"Go2NetProfile/internal/model"
)

// CSVReader reads a packet list exported as CSV with a header row.
type CSVReader struct {
	src io.ReadCloser
	r   *csv.Reader
}

// NewCSVReader wraps src. The reader takes ownership of src.
func NewCSVReader(src io.ReadCloser) *CSVReader {
	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.ReuseRecord = false
	return &CSVReader{src: src, r: r}
}

// ReadAll reads every data row. Rows that cannot be parsed or that carry more
// fields than the header are returned as malformed records. Short rows are
// kept; their missing trailing columns are left out of Columns.
func (c *CSVReader) ReadAll() ([]model.RawRecord, error) {
	header, err := c.r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	var records []model.RawRecord
	for row := 0; ; row++ {
		fields, err := c.r.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return records, fmt.Errorf("failed to read CSV row %d: %w", row, err)
			}
			records = append(records, model.RawRecord{Row: row, Malformed: true, Err: err})
			continue
		}
		if len(fields) > len(header) {
			records = append(records, model.RawRecord{
				Row:       row,
				Malformed: true,
				Err:       fmt.Errorf("expected %d fields, saw %d", len(header), len(fields)),
			})
			continue
		}

		cols := make(map[string]string, len(fields))
		for i, value := range fields {
			cols[header[i]] = value
		}
		records = append(records, model.RawRecord{Row: row, Columns: cols})
	}
}

// Close closes the underlying source.
func (c *CSVReader) Close() error {
	return c.src.Close()
}
