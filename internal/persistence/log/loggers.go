package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"stomparena.io/internal/sim"
)

// JSONLZstdWriter appends JSON lines to zstd-compressed files named
// <prefix>-<segment>.jsonl.zst, opening a new file whenever the segment
// changes.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string

	mu     sync.Mutex
	curSeg string
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Write appends v to the file for the current UTC hour.
func (w *JSONLZstdWriter) Write(v any) error {
	return w.WriteSegment(time.Now().UTC().Format("2006-01-02-15"), v)
}

func (w *JSONLZstdWriter) WriteSegment(segment string, v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if segment != w.curSeg || w.w == nil {
		if err := w.rotateLocked(segment); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

// Path returns the file a segment is written to.
func (w *JSONLZstdWriter) Path(segment string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, segment))
}

func (w *JSONLZstdWriter) rotateLocked(segment string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.Path(segment)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
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
	w.curSeg = segment
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curSeg = ""
	return err1
}

// TickEntry is one line of a match recording. The line for tick 0 carries
// the match config and the initial digest; every later line carries the
// inputs that produced that tick.
type TickEntry struct {
	Match  string                     `json:"match"`
	Tick   uint64                     `json:"tick"`
	Config *sim.MatchConfig           `json:"config,omitempty"`
	Inputs *[sim.MaxPlayers]sim.Input `json:"inputs,omitempty"`
	Digest string                     `json:"digest"`
}

// TickLogger writes one JSONL entry per tick (compressed), one file per
// match.
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(dataDir string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "events"), "events")}
}

func (l *TickLogger) WriteTick(e TickEntry) error { return l.w.WriteSegment(e.Match, e) }
func (l *TickLogger) Path(match string) string    { return l.w.Path(match) }
func (l *TickLogger) Close() error                { return l.w.Close() }

// AuditEntry records a room lifecycle event.
type AuditEntry struct {
	Time   string `json:"time"`
	Match  string `json:"match"`
	Tick   uint64 `json:"tick"`
	Kind   string `json:"kind"`
	Player int    `json:"player"`
	Detail string `json:"detail,omitempty"`
}

// AuditLogger writes audit JSONL entries (compressed), hour-rotated.
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(dataDir string) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "audit"), "audit")}
}

func (l *AuditLogger) WriteAudit(e AuditEntry) error {
	if e.Time == "" {
		e.Time = time.Now().UTC().Format(time.RFC3339Nano)
	}
	return l.w.Write(e)
}

func (l *AuditLogger) Close() error { return l.w.Close() }
