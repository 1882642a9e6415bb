package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"connections-portal/backend/internal/audit/domain"
)

func testEvent(action, outcome string, at time.Time) *domain.Event {
	return &domain.Event{
		Action:    action,
		Identity:  "user@example.com",
		IP:        "127.0.0.1",
		UserAgent: "test-agent",
		Outcome:   outcome,
		Detail:    "details",
		CreatedAt: at,
	}
}

func TestFormatLine(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 5, 7, 42*int(time.Millisecond), time.UTC)
	testCases := []struct {
		name    string
		outcome string
		want    string
	}{
		{"success is INFO", domain.OutcomeSuccess,
			"2025-03-01 09:05:07,042 - INFO - OTP_SENT - Email: user@example.com - IP: 127.0.0.1 - User-Agent: test-agent - Status: SUCCESS - Details: details"},
		{"failure is WARNING", domain.OutcomeFailed,
			"2025-03-01 09:05:07,042 - WARNING - OTP_SENT - Email: user@example.com - IP: 127.0.0.1 - User-Agent: test-agent - Status: FAILED - Details: details"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatLine(testEvent(domain.ActionOTPSent, tc.outcome, at)); got != tc.want {
				t.Errorf("FormatLine =\n%q\nwant\n%q", got, tc.want)
			}
		})
	}
}

func TestFormatLine_FlattensNewlines(t *testing.T) {
	e := testEvent(domain.ActionLoginAttempt, domain.OutcomeFailed, time.Now())
	e.UserAgent = "evil\n2025-01-01 00:00:00,000 - INFO - LOGIN_SUCCESS"
	if got := FormatLine(e); strings.Contains(got, "\n") {
		t.Errorf("line contains newline: %q", got)
	}
}

func TestParseLine(t *testing.T) {
	testCases := []struct {
		line string
		ok   bool
		want domain.Entry
	}{
		{"2025-03-01 09:05:07,042 - INFO - OTP_SENT - Email: a@b.co", true,
			domain.Entry{Timestamp: "2025-03-01 09:05:07,042", Level: "INFO", Message: "OTP_SENT - Email: a@b.co"}},
		{"ts - LEVEL", false, domain.Entry{}},
		{"", false, domain.Entry{}},
		{"garbage without separators", false, domain.Entry{}},
	}
	for _, tc := range testCases {
		got, ok := ParseLine(tc.line)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseLine(%q) = %+v, %v; want %+v, %v", tc.line, got, ok, tc.want, tc.ok)
		}
	}
}

func TestFileSink_TailRead_MissingFile(t *testing.T) {
	sink := NewFileSink(filepath.Join(t.TempDir(), "login_logs.log"))

	res, err := sink.TailRead(0)
	if err != nil {
		t.Fatalf("TailRead: %v", err)
	}
	if len(res.Entries) != 0 || res.TotalLines != 0 {
		t.Errorf("result = %+v, want empty", res)
	}
	if res.Entries == nil {
		t.Error("entries should be an empty slice, not nil")
	}
}

func TestFileSink_RecordAndTailRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "login_logs.log")
	sink := NewFileSink(path)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		e := testEvent(domain.ActionOTPSent, domain.OutcomeSuccess, base.Add(time.Duration(i)*time.Second))
		e.Detail = fmt.Sprintf("event-%d", i)
		if err := sink.Record(e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	res, err := sink.TailRead(3)
	if err != nil {
		t.Fatalf("TailRead: %v", err)
	}
	if res.TotalLines != 5 {
		t.Errorf("total lines = %d, want 5", res.TotalLines)
	}
	if len(res.Entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(res.Entries))
	}
	for i, want := range []string{"event-2", "event-3", "event-4"} {
		if !strings.HasSuffix(res.Entries[i].Message, "Details: "+want) {
			t.Errorf("entry %d = %q, want suffix %q", i, res.Entries[i].Message, want)
		}
		if res.Entries[i].Level != "INFO" {
			t.Errorf("entry %d level = %q, want INFO", i, res.Entries[i].Level)
		}
	}
}

func TestFileSink_TailRead_DefaultLimit(t *testing.T) {
	sink := NewFileSink(filepath.Join(t.TempDir(), "login_logs.log"))
	now := time.Now()
	for i := 0; i < DefaultTailLimit+20; i++ {
		e := testEvent(domain.ActionLoginAttempt, domain.OutcomeFailed, now)
		e.Detail = fmt.Sprintf("n=%d", i)
		if err := sink.Record(e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	res, err := sink.TailRead(0)
	if err != nil {
		t.Fatalf("TailRead: %v", err)
	}
	if len(res.Entries) != DefaultTailLimit {
		t.Fatalf("entries = %d, want %d", len(res.Entries), DefaultTailLimit)
	}
	if !strings.HasSuffix(res.Entries[0].Message, "n=20") {
		t.Errorf("first entry = %q, want n=20", res.Entries[0].Message)
	}
	if !strings.HasSuffix(res.Entries[DefaultTailLimit-1].Message, fmt.Sprintf("n=%d", DefaultTailLimit+19)) {
		t.Errorf("last entry = %q", res.Entries[DefaultTailLimit-1].Message)
	}
}

func TestFileSink_TailRead_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "login_logs.log")
	content := "2025-03-01 09:00:00,000 - INFO - OTP_SENT - ok\n" +
		"not a log line\n" +
		"2025-03-01 09:00:01,000 - WARNING - LOGIN_ATTEMPT - bad code\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := NewFileSink(path).TailRead(10)
	if err != nil {
		t.Fatalf("TailRead: %v", err)
	}
	if res.TotalLines != 3 {
		t.Errorf("total lines = %d, want 3", res.TotalLines)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(res.Entries))
	}
	if res.Entries[1].Level != "WARNING" {
		t.Errorf("level = %q, want WARNING", res.Entries[1].Level)
	}
}

func TestFileSink_Archive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "login_logs.log")
	sink := NewFileSink(path)
	sink.nowF = func() time.Time { return time.Date(2025, 3, 1, 14, 30, 5, 0, time.UTC) }

	if err := sink.Record(testEvent(domain.ActionOTPSent, domain.OutcomeSuccess, time.Now())); err != nil {
		t.Fatalf("Record: %v", err)
	}

	backup, err := sink.Archive()
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	want := filepath.Join(dir, "login_logs_backup_20250301_143005.log")
	if backup != want {
		t.Errorf("backup = %q, want %q", backup, want)
	}
	if b, err := os.ReadFile(backup); err != nil || !strings.Contains(string(b), "OTP_SENT") {
		t.Errorf("backup content = %q, err = %v", b, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("fresh log should exist: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("fresh log size = %d, want 0", info.Size())
	}

	res, err := sink.TailRead(0)
	if err != nil || len(res.Entries) != 0 {
		t.Errorf("TailRead after archive = %+v, %v; want empty", res, err)
	}
}

func TestFileSink_Archive_NothingToArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "login_logs.log")
	sink := NewFileSink(path)

	backup, err := sink.Archive()
	if err != nil || backup != "" {
		t.Errorf("Archive missing file = %q, %v; want no-op", backup, err)
	}

	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	backup, err = sink.Archive()
	if err != nil || backup != "" {
		t.Errorf("Archive empty file = %q, %v; want no-op", backup, err)
	}
}
