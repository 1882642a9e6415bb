package audit

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"connections-portal/backend/internal/audit/domain"
)

// DefaultTailLimit is the number of entries TailRead returns when limit <= 0.
const DefaultTailLimit = 100

const (
	timestampLayout = "2006-01-02 15:04:05.000"
	backupLayout    = "20060102_150405"
	fieldSep        = " - "
)

// Sink is the durable destination for audit events.
type Sink interface {
	Record(e *domain.Event) error
	TailRead(limit int) (*TailResult, error)
	Archive() (backup string, err error)
}

// TailResult holds the parsed tail of the log and the total number of lines in the file.
type TailResult struct {
	Entries    []domain.Entry
	TotalLines int
}

// FileSink appends events as text lines "<timestamp> - <LEVEL> - <message>" to a single file.
type FileSink struct {
	path string
	nowF func() time.Time
	mu   sync.Mutex
}

// NewFileSink returns a FileSink writing to path. The file and its directory are created on first Record.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path, nowF: time.Now}
}

// Record appends one line for e.
func (s *FileSink) Record(e *domain.Event) error {
	if e == nil {
		return nil
	}
	line := FormatLine(e)
	s.mu.Lock()
	defer s.mu.Unlock()
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("audit: create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("audit: open log: %w", err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("audit: write log: %w", err)
	}
	return f.Close()
}

// TailRead returns the last limit lines of the log that parse as entries, oldest first.
// A missing log file is an empty result.
func (s *FileSink) TailRead(limit int) (*TailResult, error) {
	if limit <= 0 {
		limit = DefaultTailLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &TailResult{Entries: []domain.Entry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("audit: open log: %w", err)
	}
	defer f.Close()

	// Ring buffer of the last limit lines.
	ring := make([]string, 0, limit)
	total := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(ring) < limit {
			ring = append(ring, sc.Text())
		} else {
			ring[total%limit] = sc.Text()
		}
		total++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("audit: read log: %w", err)
	}
	lines := ring
	if total > limit {
		start := total % limit
		lines = make([]string, 0, limit)
		lines = append(lines, ring[start:]...)
		lines = append(lines, ring[:start]...)
	}

	entries := make([]domain.Entry, 0, len(lines))
	for _, line := range lines {
		if entry, ok := ParseLine(line); ok {
			entries = append(entries, entry)
		}
	}
	return &TailResult{Entries: entries, TotalLines: total}, nil
}

// Archive renames the log to <base>_backup_<YYYYMMDD_HHMMSS><ext> and creates a fresh empty log.
// A missing or empty log is left alone and backup is "".
func (s *FileSink) Archive() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("audit: stat log: %w", err)
	}
	if info.Size() == 0 {
		return "", nil
	}
	ext := filepath.Ext(s.path)
	backup := strings.TrimSuffix(s.path, ext) + "_backup_" + s.nowF().Format(backupLayout) + ext
	if err := os.Rename(s.path, backup); err != nil {
		return "", fmt.Errorf("audit: archive log: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return backup, fmt.Errorf("audit: create log: %w", err)
	}
	return backup, f.Close()
}

// FormatLine renders e as one log line. Newlines in fields are flattened so one event is one line.
func FormatLine(e *domain.Event) string {
	level := "INFO"
	if e.Outcome != domain.OutcomeSuccess {
		level = "WARNING"
	}
	ts := strings.Replace(e.CreatedAt.Format(timestampLayout), ".", ",", 1)
	msg := fmt.Sprintf("%s - Email: %s - IP: %s - User-Agent: %s - Status: %s - Details: %s",
		e.Action, e.Identity, e.IP, e.UserAgent, e.Outcome, e.Detail)
	return ts + fieldSep + level + fieldSep + flatten(msg)
}

// ParseLine splits a log line into timestamp, level and message. ok is false for lines without all three parts.
func ParseLine(line string) (domain.Entry, bool) {
	parts := strings.SplitN(strings.TrimRight(line, "\r"), fieldSep, 3)
	if len(parts) != 3 {
		return domain.Entry{}, false
	}
	return domain.Entry{Timestamp: parts[0], Level: parts[1], Message: parts[2]}, true
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func flatten(s string) string { return lineBreaks.Replace(s) }
