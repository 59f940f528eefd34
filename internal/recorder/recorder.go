// Package recorder keeps a rotating action trace for post-mortem
// debugging of automation runs.
package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	MaxRotatedFiles = 3
	DefaultTraceDir = "data/traces"
)

// Event is a single record in the action trace.
type Event struct {
	Timestamp  time.Time   `json:"ts"`
	Type       string      `json:"type"`
	Generation string      `json:"generation,omitempty"`
	Data       interface{} `json:"data"`
}

// Recorder manages rotating JSONL trace files, one per server run.
type Recorder struct {
	mu       sync.Mutex
	file     *os.File
	encoder  *json.Encoder
	basePath string
}

// NewRecorder creates a recorder and ensures the trace directory exists.
func NewRecorder(basePath string) (*Recorder, error) {
	if basePath == "" {
		basePath = DefaultTraceDir
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, err
	}
	return &Recorder{basePath: basePath}, nil
}

// Start begins a new trace file, rotating old ones so only the last few
// runs are kept.
func (r *Recorder) Start(runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
	}

	if err := r.rotate(); err != nil {
		return fmt.Errorf("rotate traces: %w", err)
	}

	filename := fmt.Sprintf("trace_%s_%d.jsonl", runID, time.Now().UnixMilli())
	f, err := os.Create(filepath.Join(r.basePath, filename))
	if err != nil {
		return err
	}

	r.file = f
	r.encoder = json.NewEncoder(f)
	return nil
}

// Log writes one event to the current trace file. A recorder that was
// never started drops events silently.
func (r *Recorder) Log(eventType, generation string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoder == nil {
		return
	}

	_ = r.encoder.Encode(Event{
		Timestamp:  time.Now(),
		Type:       eventType,
		Generation: generation,
		Data:       data,
	})
}

// rotate keeps only the newest MaxRotatedFiles trace files.
func (r *Recorder) rotate() error {
	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		return err
	}

	var traces []struct {
		Name string
		Time time.Time
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		traces = append(traces, struct {
			Name string
			Time time.Time
		}{e.Name(), info.ModTime()})
	}

	sort.Slice(traces, func(i, j int) bool {
		return traces[i].Time.After(traces[j].Time)
	})

	if len(traces) >= MaxRotatedFiles {
		keep := MaxRotatedFiles - 1
		for i := keep; i < len(traces); i++ {
			_ = os.Remove(filepath.Join(r.basePath, traces[i].Name))
		}
	}
	return nil
}

// Close finishes the current trace file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		r.encoder = nil
		return err
	}
	return nil
}
