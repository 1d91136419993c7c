package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"poolPriceFetcher/internal/model"
)

type jsonlRecord struct {
	BlockNumber  uint64 `json:"block_num"`
	Source       string `json:"source"`
	Price        string `json:"price"`
	PriceDecimal string `json:"price_decimal"`
	QuoteToken   string `json:"quote_token"`
	BaseToken    string `json:"base_token"`
}

// JsonlStorage writes price records to a JSONL file.
type JsonlStorage struct {
	path      string
	precision uint8
	mu        sync.Mutex
}

func NewJsonlStorage(path string, precision uint8) *JsonlStorage {
	return &JsonlStorage{path: path, precision: precision}
}

// PutPriceBatch appends a batch of price records as JSON lines.
func (s *JsonlStorage) PutPriceBatch(records []model.PriceRecord) error {
	if len(records) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	enc := json.NewEncoder(writer)
	for _, record := range records {
		line := jsonlRecord{
			BlockNumber:  record.BlockNumber,
			Source:       record.Source,
			Price:        "0",
			PriceDecimal: record.PriceDecimal(s.precision).String(),
			QuoteToken:   record.QuoteToken.Hex(),
			BaseToken:    record.BaseToken.Hex(),
		}
		if record.Price != nil {
			line.Price = record.Price.Dec()
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("write price record: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return file.Close()
}

func (s *JsonlStorage) Close() error { return nil }
