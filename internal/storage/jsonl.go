package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"poolquote/internal/model"
)

// JsonlStorage appends records to a JSONL file, or stdout when path is "-".
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

func (s *JsonlStorage) PutPools(ctx context.Context, pools []model.Pool) error {
	records := make([]interface{}, 0, len(pools))
	for _, p := range pools {
		records = append(records, p)
	}
	return s.append(records)
}

func (s *JsonlStorage) PutQuotes(ctx context.Context, quotes []model.QuoteRecord) error {
	records := make([]interface{}, 0, len(quotes))
	for _, q := range quotes {
		records = append(records, q)
	}
	return s.append(records)
}

func (s *JsonlStorage) Close() error {
	return nil
}

func (s *JsonlStorage) append(records []interface{}) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file := os.Stdout
	if s.path != "-" {
		dir := filepath.Dir(s.path)
		if dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
		}
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open output file: %w", err)
		}
		defer f.Close()
		file = f
	}

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

var _ Storage = (*JsonlStorage)(nil)
