package mail

import (
	"context"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeSMTP is a minimal SMTP server accepting one session, without STARTTLS or AUTH.
type fakeSMTP struct {
	ln         net.Listener
	rejectRcpt bool

	mu   sync.Mutex
	from string
	rcpt string
	data string
	done chan struct{}
}

func startFakeSMTP(t *testing.T, rejectRcpt bool) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeSMTP{ln: ln, rejectRcpt: rejectRcpt, done: make(chan struct{})}
	go f.serve()
	t.Cleanup(func() { ln.Close() })
	return f
}

func (f *fakeSMTP) hostPort(t *testing.T) (string, int) {
	host, portStr, _ := net.SplitHostPort(f.ln.Addr().String())
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	return host, port
}

func (f *fakeSMTP) serve() {
	defer close(f.done)
	conn, err := f.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	tp := textproto.NewConn(conn)
	tp.PrintfLine("220 localhost ESMTP fake")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
			tp.PrintfLine("250-localhost")
			tp.PrintfLine("250 8BITMIME")
		case strings.HasPrefix(upper, "MAIL FROM:"):
			f.mu.Lock()
			f.from = line
			f.mu.Unlock()
			tp.PrintfLine("250 OK")
		case strings.HasPrefix(upper, "RCPT TO:"):
			if f.rejectRcpt {
				tp.PrintfLine("550 no such user")
				continue
			}
			f.mu.Lock()
			f.rcpt = line
			f.mu.Unlock()
			tp.PrintfLine("250 OK")
		case upper == "DATA":
			tp.PrintfLine("354 end with .")
			lines, err := tp.ReadDotLines()
			if err != nil {
				return
			}
			f.mu.Lock()
			f.data = strings.Join(lines, "\n")
			f.mu.Unlock()
			tp.PrintfLine("250 OK queued")
		case upper == "QUIT":
			tp.PrintfLine("221 bye")
			return
		default:
			tp.PrintfLine("502 not implemented")
		}
	}
}

func TestSMTPSender_SendOTP(t *testing.T) {
	srv := startFakeSMTP(t, false)
	host, port := srv.hostPort(t)
	s := NewSMTPSender(host, port, "", "", "portal@example.com", 10*time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.SendOTP(ctx, "user@example.com", "654321"); err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	<-srv.done

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if !strings.Contains(srv.from, "<portal@example.com>") {
		t.Errorf("MAIL FROM = %q", srv.from)
	}
	if !strings.Contains(srv.rcpt, "<user@example.com>") {
		t.Errorf("RCPT TO = %q", srv.rcpt)
	}
	if !strings.Contains(srv.data, "Subject: "+otpSubject) || !strings.Contains(srv.data, "654321") {
		t.Errorf("DATA = %q", srv.data)
	}
}

func TestSMTPSender_RecipientRejected(t *testing.T) {
	srv := startFakeSMTP(t, true)
	host, port := srv.hostPort(t)
	s := NewSMTPSender(host, port, "", "", "portal@example.com", time.Minute)

	err := s.SendOTP(context.Background(), "nobody@example.com", "654321")
	if err == nil || !strings.Contains(err.Error(), "RCPT TO") {
		t.Errorf("err = %v, want RCPT TO failure", err)
	}
}

func TestSMTPSender_NotConfigured(t *testing.T) {
	s := NewSMTPSender("", 587, "", "", "portal@example.com", time.Minute)
	if err := s.SendOTP(context.Background(), "user@example.com", "1"); err == nil {
		t.Error("expected error without host")
	}
}

func TestSMTPSender_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	s := NewSMTPSender("127.0.0.1", addr.Port, "", "", "portal@example.com", time.Minute)
	if err := s.SendOTP(context.Background(), "user@example.com", "1"); err == nil {
		t.Error("expected dial error")
	}
}
