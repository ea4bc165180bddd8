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

	"voxelgather.ai/internal/protocol"
)

// HourlyWriter appends JSON lines to zstd files rotated every UTC hour:
// <dir>/<prefix>-YYYY-MM-DD-HH.jsonl.zst. Each hour is its own zstd stream,
// so a reopened hour appends a new frame.
type HourlyWriter struct {
	dir    string
	prefix string
	now    func() time.Time

	mu   sync.Mutex
	hour string
	f    *os.File
	enc  *zstd.Encoder
	buf  *bufio.Writer
}

func NewHourlyWriter(dir, prefix string) *HourlyWriter {
	return &HourlyWriter{dir: dir, prefix: prefix, now: time.Now}
}

func (w *HourlyWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if hour := w.now().UTC().Format("2006-01-02-15"); hour != w.hour {
		if err := w.rotate(hour); err != nil {
			return err
		}
	}
	if _, err := w.buf.Write(b); err != nil {
		return err
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return err
	}
	return w.buf.Flush()
}

func (w *HourlyWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeFile()
}

// Path is the file a given hour ("2006-01-02-15") goes to.
func (w *HourlyWriter) Path(hour string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

func (w *HourlyWriter) rotate(hour string) error {
	if err := w.closeFile(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.Path(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f, w.enc, w.hour = f, enc, hour
	w.buf = bufio.NewWriterSize(enc, 64*1024)
	return nil
}

func (w *HourlyWriter) closeFile() error {
	var err error
	if w.buf != nil {
		_ = w.buf.Flush()
		w.buf = nil
	}
	if w.enc != nil {
		err = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		if cerr := w.f.Close(); err == nil {
			err = cerr
		}
		w.f = nil
	}
	w.hour = ""
	return err
}

// TaskEventEntry is one line of the task event log.
type TaskEventEntry struct {
	Tick    uint64         `json:"tick"`
	AgentID string         `json:"agent_id"`
	Event   protocol.Event `json:"event"`
}

// TaskLogger records every agent-facing task event.
type TaskLogger struct{ w *HourlyWriter }

func NewTaskLogger(dataDir string) *TaskLogger {
	return &TaskLogger{w: NewHourlyWriter(filepath.Join(dataDir, "events"), "tasks")}
}

func (l *TaskLogger) WriteEvent(e TaskEventEntry) error { return l.w.Write(e) }
func (l *TaskLogger) Close() error                      { return l.w.Close() }

// ItemAuditEntry records a dropped item entity changing hands.
type ItemAuditEntry struct {
	Tick     uint64 `json:"tick"`
	Action   string `json:"action"`
	Pos      [3]int `json:"pos"`
	EntityID string `json:"entity_id,omitempty"`
	Item     string `json:"item"`
	Count    int    `json:"count"`
}

type AuditLogger struct{ w *HourlyWriter }

func NewAuditLogger(dataDir string) *AuditLogger {
	return &AuditLogger{w: NewHourlyWriter(filepath.Join(dataDir, "audit"), "items")}
}

func (l *AuditLogger) WriteAudit(e ItemAuditEntry) error { return l.w.Write(e) }
func (l *AuditLogger) Close() error                      { return l.w.Close() }
