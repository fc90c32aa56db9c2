// Package trace reads captured traffic traces into raw records.
package trace

import (
	"fmt"
	"os"

	"Go2NetProfile/internal/model"
)

// Formats understood by Open.
const (
	FormatCSV  = "csv"
	FormatPcap = "pcap"
)

// Reader yields the raw records of one trace in source order.
type Reader interface {
	ReadAll() ([]model.RawRecord, error)
	Close() error
}

// Open opens the trace at path with the reader for format.
func Open(path, format string) (Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace %s: %w", path, err)
	}

	var r Reader
	switch format {
	case FormatCSV:
		r = NewCSVReader(f)
	case FormatPcap:
		r, err = NewPcapReader(f)
	default:
		err = fmt.Errorf("unsupported trace format '%s'", format)
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}
