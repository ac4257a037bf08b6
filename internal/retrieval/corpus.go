package retrieval

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/cloo-solutions/logsage/internal/domain"
)

// CorpusSource yields historical ERROR messages to fit the index with.
type CorpusSource interface {
	Load(ctx context.Context) ([]string, error)
}

// ObjectGetter reads a single object from blob storage.
type ObjectGetter interface {
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
}

// LogLister lists log records, local or remote.
type LogLister interface {
	ListLogs(ctx context.Context, filter domain.LogFilter) ([]domain.LogRecord, error)
}

// ReadCSV keeps the message column of rows whose level column is ERROR.
// Rows with an empty message are skipped.
func ReadCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	levelCol, messageCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "level":
			levelCol = i
		case "message", "msg":
			messageCol = i
		}
	}
	if levelCol < 0 || messageCol < 0 {
		return nil, fmt.Errorf("csv must have level and message columns")
	}

	var messages []string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row: %w", err)
		}
		if levelCol >= len(row) || messageCol >= len(row) {
			continue
		}
		if domain.NormalizeLevel(row[levelCol]) != domain.LevelError {
			continue
		}
		if msg := strings.TrimSpace(row[messageCol]); msg != "" {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

// FileSource reads a CSV export from disk.
type FileSource struct {
	Path string
}

func (s FileSource) Load(_ context.Context) ([]string, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus file: %w", err)
	}
	defer f.Close()

	return readMaybeCompressed(f, s.Path)
}

// ObjectSource reads a CSV export from object storage. Keys ending in .zst
// are decompressed.
type ObjectSource struct {
	Store ObjectGetter
	Key   string
}

func (s ObjectSource) Load(ctx context.Context) ([]string, error) {
	body, err := s.Store.GetObject(ctx, s.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch corpus object %s: %w", s.Key, err)
	}
	defer body.Close()

	return readMaybeCompressed(body, s.Key)
}

// StoreSource takes the most recent ERROR messages from a log store.
type StoreSource struct {
	Logs  LogLister
	Limit int
}

func (s StoreSource) Load(ctx context.Context) ([]string, error) {
	records, err := s.Logs.ListLogs(ctx, domain.LogFilter{Level: domain.LevelError, Limit: s.Limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list error logs: %w", err)
	}

	messages := make([]string, 0, len(records))
	for i := range records {
		if !records[i].IsError() {
			continue
		}
		if msg := strings.TrimSpace(records[i].Message); msg != "" {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

// StaticSource is a fixed corpus.
type StaticSource []string

func (s StaticSource) Load(_ context.Context) ([]string, error) {
	out := make([]string, len(s))
	copy(out, s)
	return out, nil
}

// MultiSource concatenates sources in order.
type MultiSource []CorpusSource

func (m MultiSource) Load(ctx context.Context) ([]string, error) {
	var all []string
	for _, src := range m {
		docs, err := src.Load(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, docs...)
	}
	return all, nil
}

func readMaybeCompressed(r io.Reader, name string) ([]string, error) {
	if !strings.HasSuffix(name, ".zst") {
		return ReadCSV(r)
	}

	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open zstd stream: %w", err)
	}
	defer dec.Close()

	return ReadCSV(dec)
}
