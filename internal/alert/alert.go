// Package alert delivers escalation and pipeline-risk messages to a Slack
// incoming webhook.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/johnwards/pipemon/internal/telemetry"
)

const (
	// Username is the bot name shown on every message.
	Username = "Pipeline Health Monitor"
	// IconEmoji is the bot avatar.
	IconEmoji = ":robot_face:"

	// DefaultRate is the default delivery pace in messages per second.
	DefaultRate    = 1.0
	defaultTimeout = 10 * time.Second
)

// ErrNotConfigured is returned when no webhook URL is set.
var ErrNotConfigured = errors.New("alert webhook not configured")

// DeliveryError reports a non-2xx webhook response.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("webhook returned %d: %s", e.StatusCode, e.Body)
}

// Field is one attachment field.
type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Attachment is a colored block of fields.
type Attachment struct {
	Color  string  `json:"color,omitempty"`
	Fields []Field `json:"fields,omitempty"`
	Footer string  `json:"footer,omitempty"`
	TS     int64   `json:"ts,omitempty"`
}

// Message is the webhook payload. Username, icon and channel are filled by
// the sender.
type Message struct {
	Text        string       `json:"text"`
	Username    string       `json:"username"`
	IconEmoji   string       `json:"icon_emoji"`
	Channel     string       `json:"channel,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Sender posts messages to the webhook, paced by a token bucket.
type Sender struct {
	url     string
	channel string
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

// Option configures a Sender.
type Option func(*Sender)

// WithChannel overrides the webhook's default channel.
func WithChannel(ch string) Option {
	return func(s *Sender) { s.channel = ch }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) { s.client = c }
}

// WithRate sets the delivery pace in messages per second. Zero or negative
// disables pacing.
func WithRate(perSecond float64) Option {
	return func(s *Sender) {
		if perSecond <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithClock injects the time used for attachment timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Sender) { s.now = now }
}

// New returns a sender for webhookURL. An empty URL yields a sender whose
// every call fails with ErrNotConfigured.
func New(webhookURL string, opts ...Option) *Sender {
	s := &Sender{
		url:     webhookURL,
		client:  &http.Client{Timeout: defaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(DefaultRate), 1),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configured reports whether a webhook URL is set.
func (s *Sender) Configured() bool { return s.url != "" }

// Send delivers one message.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for send slot: %w", err)
	}

	msg.Username = Username
	msg.IconEmoji = IconEmoji
	if s.channel != "" {
		msg.Channel = s.channel
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &DeliveryError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (s *Sender) deliver(ctx context.Context, kind string, msg Message) error {
	err := s.Send(ctx, msg)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.Is(err, ErrNotConfigured) {
			outcome = "not_configured"
		}
	}
	telemetry.AlertsSent.WithLabelValues(kind, outcome).Inc()
	return err
}

// sendAll delivers every item and returns how many succeeded. Individual
// failures are logged; ErrNotConfigured and context cancellation stop the
// batch and are returned.
func sendAll[T any](ctx context.Context, kind string, items []T, format func(T) Message, s *Sender) (int, error) {
	if !s.Configured() {
		return 0, ErrNotConfigured
	}
	sent := 0
	for _, item := range items {
		if err := s.deliver(ctx, kind, format(item)); err != nil {
			if ctx.Err() != nil {
				return sent, ctx.Err()
			}
			slog.Warn("alert delivery failed", "kind", kind, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}
