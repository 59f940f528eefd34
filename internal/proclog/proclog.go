// Package proclog tails the stdout and stderr of launched target
// processes, parses the lines into leveled entries, and feeds them to
// the fact engine as app_log facts.
package proclog

import (
	"bufio"
	"context"
	"io"
	"log"
	"regexp"
	"strings"
	"time"

	"winui-mcp-server/internal/facts"
)

// Entry is a parsed process output line.
type Entry struct {
	PID       int       `json:"pid"`
	Stream    string    `json:"stream"` // stdout or stderr
	Level     string    `json:"level"`  // ERROR, WARNING, INFO, DEBUG
	Tag       string    `json:"tag"`    // [STARTUP], [AUDIT], etc.
	Message   string    `json:"message"`
	Raw       string    `json:"raw"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives parsed lines as facts.
type Sink interface {
	AddFacts(ctx context.Context, fs []facts.Fact) error
}

var (
	// Bracketed tag: [TAG] message
	tagPattern = regexp.MustCompile(`^\[([A-Z_]+)\]\s+(.*)$`)
	// Leveled line: LEVEL: message
	levelPattern = regexp.MustCompile(`^(ERROR|WARNING|INFO|DEBUG|CRITICAL|TRACE):\s*(.*)$`)
	// Pipe-delimited level: ... | LEVEL | message
	pipedPattern = regexp.MustCompile(`^.*\|\s*(ERROR|WARNING|INFO|DEBUG)\s*\|\s*(.*)$`)
)

// parseLine classifies one raw output line.
func parseLine(pid int, stream, line string) Entry {
	e := Entry{
		PID:       pid,
		Stream:    stream,
		Level:     "INFO",
		Message:   line,
		Raw:       line,
		Timestamp: time.Now(),
	}
	if stream == "stderr" {
		e.Level = "ERROR"
	}

	if m := tagPattern.FindStringSubmatch(line); m != nil {
		e.Tag = m[1]
		e.Message = m[2]
		return e
	}
	if m := levelPattern.FindStringSubmatch(line); m != nil {
		e.Level = normalizeLevel(m[1])
		e.Message = m[2]
		return e
	}
	if m := pipedPattern.FindStringSubmatch(line); m != nil {
		e.Level = m[1]
		e.Message = m[2]
		return e
	}
	return e
}

func normalizeLevel(level string) string {
	switch level {
	case "CRITICAL":
		return "ERROR"
	case "TRACE":
		return "DEBUG"
	default:
		return level
	}
}

// Tailer reads process output streams line by line and forwards them.
type Tailer struct {
	sink Sink
}

func NewTailer(sink Sink) *Tailer {
	return &Tailer{sink: sink}
}

// Tail scans r until EOF or context cancellation, emitting one app_log
// fact per line. Intended to run in its own goroutine per stream.
func (t *Tailer) Tail(ctx context.Context, pid int, stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry := parseLine(pid, stream, line)
		t.forward(ctx, entry)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		log.Printf("tail pid %d %s: %v", pid, stream, err)
	}
}

func (t *Tailer) forward(ctx context.Context, e Entry) {
	if t.sink == nil {
		return
	}
	fact := facts.Fact{
		Predicate: "app_log",
		Args:      []interface{}{e.PID, e.Stream, e.Level, e.Tag, e.Raw},
		Timestamp: e.Timestamp,
	}
	if err := t.sink.AddFacts(ctx, []facts.Fact{fact}); err != nil {
		log.Printf("record app_log for pid %d: %v", e.PID, err)
	}
}
