package storage

import (
	"fmt"
	"os"
	"sync"

	"github.com/parquet-go/parquet-go"

	"poolPriceFetcher/internal/model"
)

// parquetRow is the on-disk layout of data.parquet. Prices are base-10
// strings since 256-bit integers have no native parquet type.
type parquetRow struct {
	BlockNum   uint64 `parquet:"block_num"`
	Source     string `parquet:"source,dict"`
	Price      string `parquet:"price"`
	QuoteToken string `parquet:"quote_token,dict"`
	BaseToken  string `parquet:"base_token,dict"`
}

// ParquetStorage streams price records into a parquet file.
type ParquetStorage struct {
	mu     sync.Mutex
	file   *os.File
	writer *parquet.GenericWriter[parquetRow]
}

func NewParquetStorage(path string) (*ParquetStorage, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create parquet file: %w", err)
	}
	return &ParquetStorage{
		file:   file,
		writer: parquet.NewGenericWriter[parquetRow](file),
	}, nil
}

func (s *ParquetStorage) PutPriceBatch(records []model.PriceRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]parquetRow, 0, len(records))
	for _, r := range records {
		row := parquetRow{
			BlockNum:   r.BlockNumber,
			Source:     r.Source,
			Price:      "0",
			QuoteToken: r.QuoteToken.Hex(),
			BaseToken:  r.BaseToken.Hex(),
		}
		if r.Price != nil {
			row.Price = r.Price.Dec()
		}
		rows = append(rows, row)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.writer.Write(rows); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	return nil
}

// Close flushes the footer and closes the file.
func (s *ParquetStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writer.Close(); err != nil {
		s.file.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return s.file.Close()
}
