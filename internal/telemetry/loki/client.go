// Package loki pushes telemetry events to Grafana Loki over its v1 push API.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrEmptyBaseURL is returned by NewClient when no Loki URL is configured.
var ErrEmptyBaseURL = errors.New("loki: base URL is empty")

// jobLabel is the fixed "job" label on every stream.
const jobLabel = "connections-portal"

// Label values may be any string; anything outside this set is replaced to keep LogQL selectors simple.
var labelSanitize = regexp.MustCompile(`[^a-zA-Z0-9_\-:.]`)

// PushRequest is the Loki push API request body.
type PushRequest struct {
	Streams []Stream `json:"streams"`
}

// Stream is one label set and its [timestamp_ns, line] pairs.
type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

// Entry is a single log line bound for Loki.
type Entry struct {
	Timestamp time.Time
	Line      string
	Labels    map[string]string
}

// eventFields is the subset of a telemetry event used for labels and timestamp.
// Identity and client IP stay in the line only; as labels they would explode stream cardinality.
type eventFields struct {
	EventType string    `json:"eventType"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
	Metadata  struct {
		Action  string `json:"action"`
		Outcome string `json:"outcome"`
	} `json:"metadata"`
}

// EntryFromEventJSON turns a telemetry event (the Kafka message value) into an Entry.
// The raw JSON is kept as the line. Unparseable input is still shipped, stamped with the current time.
func EntryFromEventJSON(raw []byte) Entry {
	e := Entry{Timestamp: time.Now().UTC(), Line: string(raw), Labels: map[string]string{}}
	var f eventFields
	if err := json.Unmarshal(raw, &f); err != nil {
		return e
	}
	if !f.CreatedAt.IsZero() {
		e.Timestamp = f.CreatedAt
	}
	e.Labels["event_type"] = f.EventType
	e.Labels["source"] = f.Source
	e.Labels["action"] = f.Metadata.Action
	e.Labels["outcome"] = f.Metadata.Outcome
	return e
}

// Client pushes batches of entries to one Loki instance.
type Client struct {
	pushURL string
	http    *http.Client
}

// NewClient returns a Client for baseURL (e.g. http://localhost:3100). httpClient may be nil.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, ErrEmptyBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		pushURL: strings.TrimSuffix(baseURL, "/") + "/loki/api/v1/push",
		http:    httpClient,
	}, nil
}

// Push sends entries in a single request, one stream per distinct label set. No-op for an empty batch.
func (c *Client) Push(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	payload, err := json.Marshal(buildRequest(entries))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pushURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("loki: push returned %s", resp.Status)
	}
	return nil
}

func buildRequest(entries []Entry) PushRequest {
	var order []string
	byKey := make(map[string]*Stream)
	for _, e := range entries {
		labels := streamLabels(e.Labels)
		key := labelKey(labels)
		s, ok := byKey[key]
		if !ok {
			s = &Stream{Stream: labels}
			byKey[key] = s
			order = append(order, key)
		}
		s.Values = append(s.Values, []string{strconv.FormatInt(e.Timestamp.UnixNano(), 10), e.Line})
	}
	out := PushRequest{Streams: make([]Stream, 0, len(order))}
	for _, key := range order {
		s := byKey[key]
		sort.SliceStable(s.Values, func(i, j int) bool {
			a, _ := strconv.ParseInt(s.Values[i][0], 10, 64)
			b, _ := strconv.ParseInt(s.Values[j][0], 10, 64)
			return a < b
		})
		out.Streams = append(out.Streams, *s)
	}
	return out
}

// streamLabels sanitizes values, drops empty ones, and adds job.
func streamLabels(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+1)
	for k, v := range in {
		if v = labelSanitize.ReplaceAllString(strings.TrimSpace(v), "_"); v != "" {
			out[k] = v
		}
	}
	out["job"] = jobLabel
	return out
}

func labelKey(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(',')
	}
	return b.String()
}
