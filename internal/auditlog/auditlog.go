// Package auditlog appends one JSON record per Planner/Executor call to a
// single newline-delimited JSON file.
//
// Design constraints:
//   - The file is append-only: the package never reads it back, rotates or
//     truncates it.
//   - Each Append performs exactly one Write of one complete line on an
//     O_APPEND handle, serialized by a mutex, so concurrent callers can only
//     interleave whole lines.
//   - Write failures are returned to the caller, never swallowed.
package auditlog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultPath is where the CLI and HTTP service log when nothing is configured.
const DefaultPath = "interaction_logs/interactions.jsonl"

// ErrNotObject is returned when an entry does not marshal to a JSON object.
var ErrNotObject = errors.New("auditlog: entry must be a JSON object")

// Log is an append-only JSONL interaction log.
//
// Expectations:
//   - Append creates the containing directory if absent
//   - Append writes exactly one line of compact JSON per call
//   - Append sets "ts" to the current UTC time in RFC 3339 form, replacing any supplied value
//   - Append preserves every other supplied field verbatim
//   - Append rejects entries that are not JSON objects with ErrNotObject
//   - Append on a nil *Log is a no-op
//   - Concurrent Appends never split or merge lines
type Log struct {
	path string
	mu   sync.Mutex
	f    *os.File
	now  func() time.Time
}

// New returns a Log writing to path. The file is opened lazily on first Append.
func New(path string) *Log {
	if path == "" {
		path = DefaultPath
	}
	return &Log{path: path, now: time.Now}
}

// Path returns the log file location.
func (l *Log) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append stamps entry with "ts" and writes it as one line.
func (l *Log) Append(entry any) error {
	if l == nil {
		return nil
	}
	line, err := l.encode(entry)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
			return fmt.Errorf("auditlog: create dir: %w", err)
		}
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("auditlog: open: %w", err)
		}
		l.f = f
	}
	if _, err := l.f.Write(line); err != nil {
		slog.Error("[AUDITLOG] write entry", "path", l.path, "error", err)
		return fmt.Errorf("auditlog: write: %w", err)
	}
	return nil
}

// encode turns entry into a single newline-terminated JSON object with "ts" set.
// Fields are held as json.RawMessage so their encoding is not altered.
func (l *Log) encode(entry any) ([]byte, error) {
	raw, err := marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("auditlog: marshal entry: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, ErrNotObject
	}
	ts, _ := json.Marshal(l.now().UTC().Format(time.RFC3339Nano))
	fields["ts"] = ts

	line, err := marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("auditlog: marshal entry: %w", err)
	}
	return append(line, '\n'), nil
}

// marshal is json.Marshal without HTML escaping, so briefs and generated file
// content containing <, > or & are logged as written.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Close releases the file handle. A later Append reopens it.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
