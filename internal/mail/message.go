// Package mail delivers one-time codes by email.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Sender delivers a one-time code to an email address. Implementations must not log the code.
type Sender interface {
	SendOTP(ctx context.Context, to, code string) error
}

// Message is a rendered plain-text email.
type Message struct {
	Subject string
	Body    string
}

const otpSubject = "Your login code"

var otpBody = template.Must(template.New("otp").Parse(`Your one-time login code is: {{.Code}}

This code expires in {{.Minutes}} minute{{if ne .Minutes 1}}s{{end}}. If you did not request it, you can ignore this email.
`))

// RenderOTP renders the login code email for code, valid for ttl.
func RenderOTP(code string, ttl time.Duration) (Message, error) {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	var buf bytes.Buffer
	err := otpBody.Execute(&buf, struct {
		Code    string
		Minutes int
	}{code, minutes})
	if err != nil {
		return Message{}, fmt.Errorf("mail: render otp: %w", err)
	}
	return Message{Subject: otpSubject, Body: buf.String()}, nil
}

// rfc822 returns the message with headers, CRLF line endings as SMTP DATA expects.
func (m Message) rfc822(from, to string, date time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(m.Body, "\r\n", "\n"), "\n", "\r\n"))
	return []byte(b.String())
}
