package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"poolPriceFetcher/internal/model"
)

// Storage defines a sink for price records.
type Storage interface {
	PutPriceBatch(records []model.PriceRecord) error
	Close() error
}

// Format selects the record file written into a run directory.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatJSONL   Format = "jsonl"
)

func ParseFormat(input string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(input))); f {
	case FormatParquet, FormatJSONL:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown output format %q", model.ErrConfiguration, input)
	}
}

// FileName returns the record file name for the format.
func (f Format) FileName() string {
	return "data." + string(f)
}

// Open creates the record sink for format inside dir.
func Open(format Format, dir string, precision uint8) (Storage, error) {
	path := filepath.Join(dir, format.FileName())
	switch format {
	case FormatParquet:
		return NewParquetStorage(path)
	case FormatJSONL:
		return NewJsonlStorage(path, precision), nil
	default:
		return nil, fmt.Errorf("%w: unknown output format %q", model.ErrConfiguration, format)
	}
}
