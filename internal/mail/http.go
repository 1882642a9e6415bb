package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// HTTPSender sends code emails through a JSON mail API (POST {from,to,subject,text}).
type HTTPSender struct {
	APIKey     string
	BaseURL    string
	From       string
	TTL        time.Duration
	HTTPClient *http.Client
}

// NewHTTPSender returns a sender that posts to baseURL with apiKey in the Authorization header.
func NewHTTPSender(apiKey, baseURL, from string, ttl time.Duration) *HTTPSender {
	return &HTTPSender{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		From:       from,
		TTL:        ttl,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// SendOTP renders the code email and posts it. Does not log the code.
func (s *HTTPSender) SendOTP(ctx context.Context, to, code string) error {
	if s.APIKey == "" {
		return fmt.Errorf("mail: API key not configured")
	}
	if s.BaseURL == "" {
		return fmt.Errorf("mail: API URL not configured")
	}
	msg, err := RenderOTP(code, s.TTL)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(map[string]string{
		"from":    s.From,
		"to":      to,
		"subject": msg.Subject,
		"text":    msg.Body,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", s.APIKey)
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("mail: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
