package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

// SMTPSender sends code emails over SMTP, upgrading with STARTTLS when the server offers it.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TTL      time.Duration

	// tlsConfig overrides the STARTTLS config; nil means verify against Host.
	tlsConfig *tls.Config
	nowF      func() time.Time
}

// NewSMTPSender returns an SMTPSender. PLAIN auth is used only when username is set.
func NewSMTPSender(host string, port int, username, password, from string, ttl time.Duration) *SMTPSender {
	return &SMTPSender{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		TTL:      ttl,
		nowF:     time.Now,
	}
}

// SendOTP renders the code email and delivers it to one recipient. ctx bounds the whole SMTP session.
func (s *SMTPSender) SendOTP(ctx context.Context, to, code string) error {
	if s.Host == "" {
		return fmt.Errorf("mail: SMTP host not configured")
	}
	msg, err := RenderOTP(code, s.TTL)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("mail: dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("mail: smtp handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		cfg := s.tlsConfig
		if cfg == nil {
			cfg = &tls.Config{ServerName: s.Host, MinVersion: tls.VersionTLS12}
		}
		if err := c.StartTLS(cfg); err != nil {
			return fmt.Errorf("mail: starttls: %w", err)
		}
	}
	if s.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", s.Username, s.Password, s.Host)); err != nil {
			return fmt.Errorf("mail: auth: %w", err)
		}
	}
	if err := c.Mail(s.From); err != nil {
		return fmt.Errorf("mail: MAIL FROM: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("mail: RCPT TO: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("mail: DATA: %w", err)
	}
	if _, err := w.Write(msg.rfc822(s.From, to, s.nowF())); err != nil {
		w.Close()
		return fmt.Errorf("mail: write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mail: end message: %w", err)
	}
	return c.Quit()
}
