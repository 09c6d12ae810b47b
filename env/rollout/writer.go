// Package rollout persists environment transitions as compressed JSONL files
// and indexes finished episodes in SQLite.
package rollout

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Transition is one environment step as seen by the agents.
type Transition struct {
	Episode      int                  `json:"episode"`
	Step         int                  `json:"step"`
	Time         float64              `json:"time"`
	Actions      map[string][]float64 `json:"actions,omitempty"`
	Observations map[string][]float64 `json:"observations"`
	Rewards      map[string]float64   `json:"rewards"`
	Dones        map[string]bool      `json:"dones"`
}

// Writer appends transitions to one zstd-compressed JSONL file per episode.
// Safe for concurrent use.
type Writer struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	episode int
	path    string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// NewWriter creates a Writer placing files under baseDir.
func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir, prefix: "episode", episode: -1}
}

// PathFor returns the file an episode is written to.
func (w *Writer) PathFor(episode int) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%06d.jsonl.zst", w.prefix, episode))
}

// Begin closes the current file, if any, and starts the file for episode.
func (w *Writer) Begin(episode int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rotateLocked(episode)
}

// Write appends t to the file of t.Episode, switching files when needed.
func (w *Writer) Write(t Transition) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t.Episode != w.episode || w.w == nil {
		if err := w.rotateLocked(t.Episode); err != nil {
			return err
		}
	}
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Close flushes and closes the current file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) rotateLocked(episode int) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	path := w.PathFor(episode)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.episode = episode
	w.path = path
	return nil
}

func (w *Writer) closeLocked() error {
	var err1 error
	if w.w != nil {
		err1 = w.w.Flush()
	}
	if w.enc != nil {
		if err := w.enc.Close(); err1 == nil {
			err1 = err
		}
		w.enc = nil
	}
	if w.f != nil {
		if err := w.f.Close(); err1 == nil {
			err1 = err
		}
		w.f = nil
	}
	w.w = nil
	return err1
}

// ReadFile decodes every transition of one episode file.
func ReadFile(path string) ([]Transition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	var out []Transition
	for sc.Scan() {
		var t Transition
		if err := json.Unmarshal(sc.Bytes(), &t); err != nil {
			return nil, fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		out = append(out, t)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
