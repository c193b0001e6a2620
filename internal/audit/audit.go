// Package audit records the tamper-evident trail of a run: one JSON object
// per line, appended and flushed as each event happens so a crash mid-run
// still leaves a partial, inspectable history. Events are never rewritten;
// consumers read the file purely as history.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/specforge/specforge/internal/determinism"
)

// Event is one audit record. Level is "info" or "error"; Details carries
// event-specific fields.
type Event struct {
	TimeISO    string         `json:"time_iso"`
	Level      string         `json:"level"`
	RunID      string         `json:"run_id"`
	Stage      string         `json:"stage"`
	Event      string         `json:"event"`
	DurationMS int64          `json:"duration_ms"`
	Details    map[string]any `json:"details,omitempty"`
}

// Log is an append-only JSONL event recorder backed by a file. It is owned by
// the orchestrator's single thread of control and is not safe for concurrent
// use.
type Log struct {
	runID string
	file  *os.File
	now   func() time.Time
}

// Open creates (or truncates) the audit file for a run. The parent directory
// is created if needed.
func Open(path, runID string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return &Log{runID: runID, file: file, now: time.Now}, nil
}

// SetClock overrides the event timestamp source. Used by tests for stable
// output.
func (l *Log) SetClock(now func() time.Time) {
	l.now = now
}

// Append writes one event to the file and flushes it to the OS immediately.
// Time and run ID are filled in; callers supply stage, event and details.
func (l *Log) Append(stage, event, level string, duration time.Duration, details map[string]any) error {
	record := Event{
		TimeISO:    determinism.UTCStamp(l.now()),
		Level:      level,
		RunID:      l.runID,
		Stage:      stage,
		Event:      event,
		DurationMS: duration.Milliseconds(),
		Details:    details,
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	// Flush incrementally: a crash mid-run must still leave the trail so far.
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to flush audit log: %w", err)
	}
	return nil
}

// Info appends an info-level event.
func (l *Log) Info(stage, event string, duration time.Duration, details map[string]any) error {
	return l.Append(stage, event, "info", duration, details)
}

// Error appends an error-level event.
func (l *Log) Error(stage, event string, duration time.Duration, details map[string]any) error {
	return l.Append(stage, event, "error", duration, details)
}

// Close closes the underlying file.
func (l *Log) Close() error {
	return l.file.Close()
}

// Read loads every event from an audit file, in file order.
func Read(path string) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("malformed audit line %d: %w", len(events)+1, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return events, nil
}
