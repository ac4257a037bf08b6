package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Conventional log levels. Level is free-form on ingest, these are only the
// values the pipeline knows how to reason about.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// LogRecord is a single application log event as held by the log store.
// Records are immutable once stored; they are only ever deleted.
type LogRecord struct {
	ID         string          `json:"id"`
	Timestamp  string          `json:"timestamp,omitempty"`
	App        string          `json:"app,omitempty"`
	URL        string          `json:"url,omitempty"`
	UserAgent  string          `json:"userAgent,omitempty"`
	Level      string          `json:"level"`
	Type       string          `json:"type,omitempty"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

// MaxListLimit is the largest page a log listing returns.
const MaxListLimit = 1000

// LogFilter narrows a log listing. Zero values mean "no filter".
type LogFilter struct {
	Level string
	App   string
	Limit int
}

// NormalizeLevel trims and upper-cases a level for comparison.
func NormalizeLevel(level string) string {
	return strings.ToUpper(strings.TrimSpace(level))
}

// IsError reports whether the record is ERROR level, ignoring case and
// surrounding whitespace.
func (r *LogRecord) IsError() bool {
	return NormalizeLevel(r.Level) == LevelError
}

// HasID reports whether the record carries a usable identifier.
func (r *LogRecord) HasID() bool {
	return strings.TrimSpace(r.ID) != ""
}

// ValidateForAppend checks a client-supplied record before the store assigns
// it an identifier.
func ValidateForAppend(r *LogRecord) error {
	if r == nil {
		return fmt.Errorf("log record cannot be nil")
	}
	if strings.TrimSpace(r.Level) == "" {
		return NewDomainErrorWithCause(ErrCodeValidation, "log level is required", ErrMissingRequiredField)
	}
	if len(r.Data) > 0 && !json.Valid(r.Data) {
		return NewDomainError(ErrCodeValidation, "log data must be valid JSON")
	}
	return nil
}
